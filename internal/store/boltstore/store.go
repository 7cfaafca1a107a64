// Package boltstore is the default catalog backend: a single bbolt file that is
// opened and closed on every call, so several processes can share it.
package boltstore

import (
	"context"
	"fmt"
	"time"

	"github.com/suPer8Hu/nextile-ai/internal/chat"
	bolt "go.etcd.io/bbolt"
)

const lockTimeout = 5 * time.Second

type Store struct {
	path   string
	bucket []byte
	now    func() time.Time
}

// New returns a store writing to path, inside a bucket named after the store.
func New(path, name string) *Store {
	return &Store{path: path, bucket: []byte(name), now: time.Now}
}

func (s *Store) LoadAll(ctx context.Context) (chat.Catalog, error) {
	var raw []byte
	err := s.withDB(ctx, func(db *bolt.DB) error {
		return db.View(func(tx *bolt.Tx) error {
			b := tx.Bucket(s.bucket)
			if b == nil {
				return nil
			}
			if v := b.Get([]byte(chat.CatalogKey)); v != nil {
				raw = append([]byte(nil), v...)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return chat.DecodeCatalog(raw)
}

func (s *Store) Save(ctx context.Context, id string, messages []chat.Message) (chat.Conversation, error) {
	var conv chat.Conversation
	err := s.withDB(ctx, func(db *bolt.DB) error {
		return db.Update(func(tx *bolt.Tx) error {
			b, err := tx.CreateBucketIfNotExists(s.bucket)
			if err != nil {
				return err
			}
			catalog, err := chat.DecodeCatalog(b.Get([]byte(chat.CatalogKey)))
			if err != nil {
				return err
			}
			conv = catalog.Put(id, messages, s.now())
			enc, err := chat.EncodeCatalog(catalog)
			if err != nil {
				return err
			}
			return b.Put([]byte(chat.CatalogKey), enc)
		})
	})
	if err != nil {
		return chat.Conversation{}, fmt.Errorf("save conversation %s: %w", id, err)
	}
	return conv, nil
}

func (s *Store) ClearAll(ctx context.Context) error {
	return s.withDB(ctx, func(db *bolt.DB) error {
		return db.Update(func(tx *bolt.Tx) error {
			b := tx.Bucket(s.bucket)
			if b == nil {
				return nil
			}
			return b.Delete([]byte(chat.CatalogKey))
		})
	})
}

func (s *Store) withDB(ctx context.Context, fn func(*bolt.DB) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db, err := bolt.Open(s.path, 0o600, &bolt.Options{Timeout: lockTimeout})
	if err != nil {
		return fmt.Errorf("open %s: %w", s.path, err)
	}
	defer db.Close()
	return fn(db)
}
