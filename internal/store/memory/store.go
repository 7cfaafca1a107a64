// Package memory is a process-local catalog used by tests and the terminal demo mode.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/suPer8Hu/nextile-ai/internal/chat"
)

type Store struct {
	mu      sync.Mutex
	catalog chat.Catalog
	now     func() time.Time
}

func New() *Store {
	return &Store{catalog: chat.Catalog{}, now: time.Now}
}

func (s *Store) LoadAll(ctx context.Context) (chat.Catalog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// round-trip through the codec so callers never share slices with the store
	b, err := chat.EncodeCatalog(s.catalog)
	if err != nil {
		return nil, err
	}
	return chat.DecodeCatalog(b)
}

func (s *Store) Save(ctx context.Context, id string, messages []chat.Message) (chat.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog.Put(id, messages, s.now()), nil
}

func (s *Store) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog = chat.Catalog{}
	return nil
}
