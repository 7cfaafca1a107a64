package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"
)

const (
	// CatalogKey is the single entry every store keeps the catalog under.
	CatalogKey = "chats"

	DefaultTitle = "New chat"
	titleRunes   = 20
	dateLayout   = "Jan 02"
)

var ErrConversationNotFound = errors.New("conversation not found")

// Store is the durable catalog of conversations. Implementations open and close
// their underlying storage on every call and write the whole catalog back on Save.
type Store interface {
	LoadAll(ctx context.Context) (Catalog, error)
	Save(ctx context.Context, id string, messages []Message) (Conversation, error)
	ClearAll(ctx context.Context) error
}

// Title is the first 20 characters of the first user text message plus "...",
// or DefaultTitle when there is none.
func Title(messages []Message) string {
	for _, m := range messages {
		if m.Role != RoleUser {
			continue
		}
		if m.IsImage() {
			break
		}
		r := []rune(m.Text)
		if len(r) > titleRunes {
			r = r[:titleRunes]
		}
		return string(r) + "..."
	}
	return DefaultTitle
}

// Put writes the record for id into c and returns it. CreatedAt survives
// overwrites of an existing id.
func (c Catalog) Put(id string, messages []Message, now time.Time) Conversation {
	conv := Conversation{
		ID:        id,
		Title:     Title(messages),
		Date:      now.Format(dateLayout),
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  cloneMessages(messages),
	}
	if prev, ok := c[id]; ok && !prev.CreatedAt.IsZero() {
		conv.CreatedAt = prev.CreatedAt
	}
	c[id] = conv
	return conv
}

// Recent returns the conversations newest first by creation time.
func (c Catalog) Recent() []Conversation {
	out := make([]Conversation, 0, len(c))
	for _, conv := range c {
		out = append(out, conv)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// EncodeCatalog is the on-disk form shared by all store backends.
func EncodeCatalog(c Catalog) ([]byte, error) {
	if c == nil {
		c = Catalog{}
	}
	b, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode catalog: %w", err)
	}
	return b, nil
}

// DecodeCatalog treats empty input as an empty catalog.
func DecodeCatalog(b []byte) (Catalog, error) {
	c := Catalog{}
	if len(b) == 0 {
		return c, nil
	}
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	for id, conv := range c {
		if conv.ID == "" {
			conv.ID = id
			c[id] = conv
		}
	}
	return c, nil
}

func cloneMessages(in []Message) []Message {
	out := make([]Message, len(in))
	copy(out, in)
	return out
}
