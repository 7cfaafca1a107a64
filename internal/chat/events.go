package chat

import "context"

type EventKind string

const (
	EventUser      EventKind = "user"
	EventDrawing   EventKind = "drawing"
	EventChunk     EventKind = "chunk"
	EventAssistant EventKind = "assistant"
	EventNotice    EventKind = "notice"
)

// Event is what a presentation layer renders while a turn runs.
// Chunk, drawing and notice events carry Text; user and assistant events carry Message.
type Event struct {
	Kind    EventKind
	Text    string
	Message *Message
}

type EmitFunc func(Event)

// Gateway is the boundary to the two remote generation capabilities.
type Gateway interface {
	// CompleteChat streams reply fragments for history. Both channels are closed
	// when the stream ends; errs carries at most one error and is closed first.
	CompleteChat(ctx context.Context, history []Message) (chunks <-chan string, errs <-chan error)
	// GenerateImage returns one PNG-encoded image.
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
}

// Notifier is told about every successful save.
type Notifier interface {
	ConversationSaved(ctx context.Context, conv Conversation) error
}

// TurnResult describes how one input was handled. Notice is set when the
// generation failed; Reply is set when an assistant message was appended.
type TurnResult struct {
	Route  Route
	Reply  *Message
	Notice string
}

func (r TurnResult) Failed() bool {
	return r.Notice != ""
}
