package chat

import "github.com/google/uuid"

// Session is the active conversation of one user: its id and the in-memory
// message list. It is not safe for concurrent use; callers process one input
// per session at a time.
type Session struct {
	ID       string
	Messages []Message
}

func NewConversationID() string {
	return uuid.NewString()
}

// NewSession starts a conversation with a single assistant greeting.
func NewSession(greeting string) *Session {
	return &Session{
		ID:       NewConversationID(),
		Messages: []Message{TextMessage(RoleAssistant, greeting)},
	}
}

// Load replaces the session with a stored conversation.
func (s *Session) Load(id string, messages []Message) {
	s.ID = id
	s.Messages = cloneMessages(messages)
}

// Append adds to the in-memory list only; persisting is the caller's job.
func (s *Session) Append(m Message) {
	s.Messages = append(s.Messages, m)
}

// Snapshot returns a copy of the message list.
func (s *Session) Snapshot() []Message {
	return cloneMessages(s.Messages)
}
