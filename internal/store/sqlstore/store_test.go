package sqlstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/suPer8Hu/nextile-ai/internal/chat"
	"github.com/suPer8Hu/nextile-ai/internal/db"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.Connect(db.DriverSQLite, fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}

func TestSaveAndLoadAll(t *testing.T) {
	gdb := openTestDB(t)
	s, err := New(gdb, "nextile_storage")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()

	all, err := s.LoadAll(ctx)
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected empty catalog, got %d", len(all))
	}

	msgs := []chat.Message{
		chat.TextMessage(chat.RoleAssistant, "Hello! How can I help you?"),
		chat.TextMessage(chat.RoleUser, "/draw a lighthouse"),
		chat.ImageMessage(chat.RoleAssistant, []byte{0x89, 'P', 'N', 'G', 0, 1, 2}),
	}
	conv, err := s.Save(ctx, "c1", msgs)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if conv.Title != "/draw a lighthouse..." {
		t.Fatalf("unexpected title %q", conv.Title)
	}

	if _, err := s.Save(ctx, "c2", msgs[:2]); err != nil {
		t.Fatalf("save c2: %v", err)
	}

	all, err = s.LoadAll(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(all))
	}
	got := all["c1"].Messages
	if len(got) != 3 || !got[2].IsImage() || string(got[2].Image) != string(msgs[2].Image) {
		t.Fatalf("messages did not round-trip: %+v", got)
	}

	var count int64
	if err := gdb.Model(&Entry{}).Where("store = ?", "nextile_storage").Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected the catalog in a single row, got %d", count)
	}
}

func TestSave_OverwriteKeepsCreatedAt(t *testing.T) {
	s, err := New(openTestDB(t), "nextile_storage")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()

	t0 := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return t0 }
	if _, err := s.Save(ctx, "c1", []chat.Message{chat.TextMessage(chat.RoleUser, "one")}); err != nil {
		t.Fatalf("save: %v", err)
	}
	s.now = func() time.Time { return t0.Add(24 * time.Hour) }
	conv, err := s.Save(ctx, "c1", []chat.Message{chat.TextMessage(chat.RoleUser, "one"), chat.TextMessage(chat.RoleAssistant, "two")})
	if err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if !conv.CreatedAt.Equal(t0) || conv.Date != "Feb 02" {
		t.Fatalf("unexpected record: created=%v date=%q", conv.CreatedAt, conv.Date)
	}
}

func TestClearAll_ScopedToStoreName(t *testing.T) {
	gdb := openTestDB(t)
	a, err := New(gdb, "a")
	if err != nil {
		t.Fatalf("new a: %v", err)
	}
	b, err := New(gdb, "b")
	if err != nil {
		t.Fatalf("new b: %v", err)
	}
	ctx := context.Background()
	msgs := []chat.Message{chat.TextMessage(chat.RoleUser, "hi")}
	if _, err := a.Save(ctx, "x", msgs); err != nil {
		t.Fatalf("save a: %v", err)
	}
	if _, err := b.Save(ctx, "y", msgs); err != nil {
		t.Fatalf("save b: %v", err)
	}

	if err := a.ClearAll(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if all, _ := a.LoadAll(ctx); len(all) != 0 {
		t.Fatalf("expected a to be empty, got %d", len(all))
	}
	if all, _ := b.LoadAll(ctx); len(all) != 1 {
		t.Fatalf("expected b untouched, got %d", len(all))
	}
	// clearing an empty store is fine
	if err := a.ClearAll(ctx); err != nil {
		t.Fatalf("clear again: %v", err)
	}
}
