package rabbitmq

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/suPer8Hu/nextile-ai/internal/chat"
)

const EventConversationSaved = "conversation.saved"

var ErrBadEvent = errors.New("malformed event")

// SavedEvent is published after every successful catalog write.
type SavedEvent struct {
	Type         string            `json:"type"`
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	Date         string            `json:"date"`
	MessageCount int               `json:"message_count"`
	SavedAt      time.Time         `json:"saved_at"`
	Conversation chat.Conversation `json:"conversation"`
}

func NewSavedEvent(conv chat.Conversation, now time.Time) SavedEvent {
	return SavedEvent{
		Type:         EventConversationSaved,
		ID:           conv.ID,
		Title:        conv.Title,
		Date:         conv.Date,
		MessageCount: len(conv.Messages),
		SavedAt:      now,
		Conversation: conv,
	}
}

func DecodeSavedEvent(body []byte) (SavedEvent, error) {
	var ev SavedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return SavedEvent{}, errors.Join(ErrBadEvent, err)
	}
	if ev.Type != EventConversationSaved || ev.ID == "" {
		return SavedEvent{}, ErrBadEvent
	}
	if ev.Conversation.ID == "" {
		ev.Conversation.ID = ev.ID
	}
	return ev, nil
}
