// Package redisstore keeps the conversation catalog under one redis key.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/suPer8Hu/nextile-ai/internal/chat"
)

const maxTxRetries = 10

var ErrContention = errors.New("catalog changed concurrently too many times")

type Store struct {
	rdb *redis.Client
	key string
	now func() time.Time
}

func New(rdb *redis.Client, name string) *Store {
	return &Store{rdb: rdb, key: name + ":" + chat.CatalogKey, now: time.Now}
}

// Connect dials redis and checks it answers.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return rdb, nil
}

func (s *Store) LoadAll(ctx context.Context) (chat.Catalog, error) {
	raw, err := s.rdb.Get(ctx, s.key).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get %s: %w", s.key, err)
	}
	return chat.DecodeCatalog(raw)
}

// Save rewrites the catalog under WATCH so a concurrent writer forces a retry
// instead of losing its conversation.
func (s *Store) Save(ctx context.Context, id string, messages []chat.Message) (chat.Conversation, error) {
	var conv chat.Conversation
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, s.key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		catalog, err := chat.DecodeCatalog(raw)
		if err != nil {
			return err
		}
		conv = catalog.Put(id, messages, s.now())
		enc, err := chat.EncodeCatalog(catalog)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.key, enc, 0)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.rdb.Watch(ctx, txf, s.key)
		if err == nil {
			return conv, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return chat.Conversation{}, fmt.Errorf("save conversation %s: %w", id, err)
	}
	return chat.Conversation{}, fmt.Errorf("save conversation %s: %w", id, ErrContention)
}

func (s *Store) ClearAll(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("del %s: %w", s.key, err)
	}
	return nil
}
