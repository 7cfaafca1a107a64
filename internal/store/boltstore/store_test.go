package boltstore

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/nextile-ai/internal/chat"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "nextile_storage.db"), "nextile_storage")
}

func TestLoadAll_MissingFileIsEmpty(t *testing.T) {
	s := newTestStore(t)
	all, err := s.LoadAll(context.Background())
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestSave_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	msgs := []chat.Message{
		chat.TextMessage(chat.RoleAssistant, "Hey there! What's on your mind?"),
		chat.TextMessage(chat.RoleUser, "What is a goroutine, exactly?"),
		chat.TextMessage(chat.RoleAssistant, "A lightweight thread."),
		chat.TextMessage(chat.RoleUser, "/draw gopher"),
		chat.ImageMessage(chat.RoleAssistant, []byte{0x89, 'P', 'N', 'G', 9, 9}),
	}

	conv, err := s.Save(ctx, "c1", msgs)
	require.NoError(t, err)
	require.Equal(t, "What is a goroutine,...", conv.Title)

	// a second instance over the same file sees the write
	other := New(s.path, "nextile_storage")
	all, err := other.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	got := all["c1"].Messages
	require.Len(t, got, len(msgs))
	for i := range msgs {
		require.Equal(t, msgs[i].Role, got[i].Role)
		require.Equal(t, msgs[i].Text, got[i].Text)
		require.Equal(t, msgs[i].Image, got[i].Image)
	}
}

func TestSave_OverwriteSameID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, "c1", []chat.Message{chat.TextMessage(chat.RoleUser, "a")})
	require.NoError(t, err)
	_, err = s.Save(ctx, "c1", []chat.Message{chat.TextMessage(chat.RoleUser, "a"), chat.TextMessage(chat.RoleAssistant, "b")})
	require.NoError(t, err)

	all, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Len(t, all["c1"].Messages, 2)
}

func TestClearAll(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ClearAll(ctx))
	_, err := s.Save(ctx, "c1", []chat.Message{chat.TextMessage(chat.RoleUser, "a")})
	require.NoError(t, err)
	require.NoError(t, s.ClearAll(ctx))

	all, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestSave_ConcurrentWritersKeepEveryConversation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := []string{"a", "b", "c", "d", "e", "f"}
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			// each goroutine uses its own handle, like separate sessions do
			w := New(s.path, "nextile_storage")
			_, err := w.Save(ctx, id, []chat.Message{chat.TextMessage(chat.RoleUser, id)})
			require.NoError(t, err)
		}(id)
	}
	wg.Wait()

	all, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, len(ids))
}
