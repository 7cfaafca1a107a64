package chat

import (
	"bytes"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ImageMIME is the only format image messages are stored in.
const ImageMIME = "image/png"

// Message is either text or an encoded image, never both.
type Message struct {
	Role  Role   `json:"role"`
	Text  string `json:"text,omitempty"`
	Image []byte `json:"image,omitempty"`
	MIME  string `json:"mime,omitempty"`
}

func TextMessage(role Role, text string) Message {
	return Message{Role: role, Text: text}
}

func ImageMessage(role Role, png []byte) Message {
	return Message{Role: role, Image: bytes.Clone(png), MIME: ImageMIME}
}

func (m Message) IsImage() bool {
	return len(m.Image) > 0
}

// Conversation is one entry of the stored catalog.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Date      string    `json:"date"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  []Message `json:"messages"`
}

// Catalog maps conversation id to conversation.
type Catalog map[string]Conversation
