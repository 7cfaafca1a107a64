package chat

import (
	"testing"
	"time"
)

func TestTitle(t *testing.T) {
	cases := []struct {
		name     string
		messages []Message
		want     string
	}{
		{"short", []Message{TextMessage(RoleAssistant, "hey"), TextMessage(RoleUser, "Hi")}, "Hi..."},
		{"truncated", []Message{TextMessage(RoleUser, "Tell me about Go channels please")}, "Tell me about Go cha..."},
		{"runes", []Message{TextMessage(RoleUser, "héllo wörld ünïcode tëxt")}, "héllo wörld ünïcode ..."},
		{"no user", []Message{TextMessage(RoleAssistant, "hello")}, DefaultTitle},
		{"image first", []Message{ImageMessage(RoleUser, []byte{1}), TextMessage(RoleUser, "later")}, DefaultTitle},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Title(tc.messages); got != tc.want {
				t.Fatalf("Title() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestCatalogPut_KeepsCreatedAt(t *testing.T) {
	c := Catalog{}
	t0 := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	c.Put("a", []Message{TextMessage(RoleUser, "x")}, t0)
	conv := c.Put("a", []Message{TextMessage(RoleUser, "x"), TextMessage(RoleAssistant, "y")}, t0.Add(48*time.Hour))

	if !conv.CreatedAt.Equal(t0) {
		t.Fatalf("CreatedAt changed to %v", conv.CreatedAt)
	}
	if conv.Date != "Jan 04" {
		t.Fatalf("unexpected date %q", conv.Date)
	}
	if len(c) != 1 || len(c["a"].Messages) != 2 {
		t.Fatalf("expected one entry with two messages, got %+v", c)
	}
}

func TestCatalogPut_CopiesMessages(t *testing.T) {
	c := Catalog{}
	msgs := []Message{TextMessage(RoleUser, "x")}
	c.Put("a", msgs, time.Now())
	msgs[0].Text = "mutated"
	if c["a"].Messages[0].Text != "x" {
		t.Fatalf("catalog shares the caller's slice")
	}
}

func TestCatalogCodec(t *testing.T) {
	c := Catalog{}
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	c.Put("text", []Message{TextMessage(RoleAssistant, "hi"), TextMessage(RoleUser, "")}, now)
	c.Put("img", []Message{TextMessage(RoleUser, "/draw x"), ImageMessage(RoleAssistant, []byte{0x89, 0x50, 0x4e, 0x47})}, now.Add(time.Minute))

	b, err := EncodeCatalog(c)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeCatalog(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(got))
	}
	img := got["img"].Messages[1]
	if !img.IsImage() || img.MIME != ImageMIME || string(img.Image) != string([]byte{0x89, 0x50, 0x4e, 0x47}) {
		t.Fatalf("image message lost: %+v", img)
	}
	if got["text"].Messages[1].Role != RoleUser || got["text"].Messages[1].IsImage() {
		t.Fatalf("empty text message decoded wrongly: %+v", got["text"].Messages[1])
	}

	recent := got.Recent()
	if recent[0].ID != "img" || recent[1].ID != "text" {
		t.Fatalf("unexpected order %s, %s", recent[0].ID, recent[1].ID)
	}
}

func TestDecodeCatalog_Empty(t *testing.T) {
	c, err := DecodeCatalog(nil)
	if err != nil || c == nil || len(c) != 0 {
		t.Fatalf("expected empty catalog, got %v %v", c, err)
	}
	if _, err := DecodeCatalog([]byte("{not json")); err == nil {
		t.Fatalf("expected decode error")
	}
}
