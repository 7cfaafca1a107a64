// Package sqlstore keeps the conversation catalog in a gorm-managed key/value table.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/suPer8Hu/nextile-ai/internal/chat"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Entry is one named value of one store.
type Entry struct {
	Store     string `gorm:"primaryKey;size:64"`
	Key       string `gorm:"primaryKey;size:64"`
	Value     []byte `gorm:"not null"`
	UpdatedAt time.Time
}

func (Entry) TableName() string { return "kv_entries" }

type Store struct {
	db   *gorm.DB
	name string
	now  func() time.Time
}

// New migrates the table and returns a store scoped to name.
func New(db *gorm.DB, name string) (*Store, error) {
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("migrate kv_entries: %w", err)
	}
	return &Store{db: db, name: name, now: time.Now}, nil
}

func (s *Store) LoadAll(ctx context.Context) (chat.Catalog, error) {
	return s.load(s.db.WithContext(ctx), false)
}

func (s *Store) Save(ctx context.Context, id string, messages []chat.Message) (chat.Conversation, error) {
	var conv chat.Conversation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		catalog, err := s.load(tx, true)
		if err != nil {
			return err
		}
		now := s.now()
		conv = catalog.Put(id, messages, now)

		b, err := chat.EncodeCatalog(catalog)
		if err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "store"}, {Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&Entry{Store: s.name, Key: chat.CatalogKey, Value: b, UpdatedAt: now}).Error
	})
	if err != nil {
		return chat.Conversation{}, fmt.Errorf("save conversation %s: %w", id, err)
	}
	return conv, nil
}

func (s *Store) ClearAll(ctx context.Context) error {
	return s.db.WithContext(ctx).
		Where("store = ?", s.name).
		Delete(&Entry{}).Error
}

func (s *Store) load(tx *gorm.DB, forUpdate bool) (chat.Catalog, error) {
	q := tx.Where("store = ? AND `key` = ?", s.name, chat.CatalogKey)
	if forUpdate && tx.Dialector.Name() == "mysql" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var e Entry
	if err := q.First(&e).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return chat.Catalog{}, nil
		}
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return chat.DecodeCatalog(e.Value)
}
