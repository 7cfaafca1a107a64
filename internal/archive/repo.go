// Package archive keeps the latest snapshot of every saved conversation in a
// relational table, fed by the conversation.saved events.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/suPer8Hu/nextile-ai/internal/chat"
	"gorm.io/gorm"
)

type Record struct {
	ID           string    `gorm:"primaryKey;size:64"`
	Title        string    `gorm:"size:64"`
	Date         string    `gorm:"size:16"`
	MessageCount int       `gorm:"not null"`
	Payload      []byte    `gorm:"not null"`
	SavedAt      time.Time `gorm:"index"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (Record) TableName() string { return "archived_conversations" }

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) (*Repo, error) {
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("migrate archived_conversations: %w", err)
	}
	return &Repo{db: db}, nil
}

// Upsert stores conv unless a snapshot saved later is already archived.
// It reports whether the row was written.
func (r *Repo) Upsert(ctx context.Context, conv chat.Conversation, savedAt time.Time) (bool, error) {
	payload, err := json.Marshal(conv)
	if err != nil {
		return false, err
	}

	written := false
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Record
		err := tx.Where("id = ?", conv.ID).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
		case err != nil:
			return err
		case existing.SavedAt.After(savedAt):
			// deliveries can arrive out of order after a retry
			return nil
		}

		rec := Record{
			ID:           conv.ID,
			Title:        conv.Title,
			Date:         conv.Date,
			MessageCount: len(conv.Messages),
			Payload:      payload,
			SavedAt:      savedAt,
			CreatedAt:    existing.CreatedAt,
		}
		if err := tx.Save(&rec).Error; err != nil {
			return err
		}
		written = true
		return nil
	})
	return written, err
}

func (r *Repo) Get(ctx context.Context, id string) (chat.Conversation, error) {
	var rec Record
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return chat.Conversation{}, chat.ErrConversationNotFound
		}
		return chat.Conversation{}, err
	}
	var conv chat.Conversation
	if err := json.Unmarshal(rec.Payload, &conv); err != nil {
		return chat.Conversation{}, fmt.Errorf("decode archived %s: %w", id, err)
	}
	return conv, nil
}

// List returns record headers, most recently saved first.
func (r *Repo) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var recs []Record
	err := r.db.WithContext(ctx).
		Select("id", "title", "date", "message_count", "saved_at", "created_at", "updated_at").
		Order("saved_at DESC").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}
