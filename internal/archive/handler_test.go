package archive

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

type envelope struct {
	Code int             `json:"code"`
	Data json.RawMessage `json:"data"`
}

func get(t *testing.T, r http.Handler, path string) (int, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %s: %v (%s)", path, err, w.Body.String())
	}
	return w.Code, env
}

func TestRouter_ListAndGet(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := newTestRepo(t)
	t0 := time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b"} {
		if _, err := repo.Upsert(context.Background(), conversation(id, "hello "+id), t0.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	r := NewRouter(repo)

	code, env := get(t, r, "/archive?limit=10")
	if code != http.StatusOK || env.Code != 0 {
		t.Fatalf("list: status=%d code=%d", code, env.Code)
	}
	var list struct {
		Conversations []recordView `json:"conversations"`
	}
	if err := json.Unmarshal(env.Data, &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Conversations) != 2 || list.Conversations[0].ID != "b" || list.Conversations[0].Title != "hello b..." {
		t.Fatalf("unexpected list %+v", list.Conversations)
	}

	code, env = get(t, r, "/archive/a")
	if code != http.StatusOK {
		t.Fatalf("get: status=%d", code)
	}
	var conv struct {
		ID       string `json:"id"`
		Messages []struct {
			Text string `json:"text"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(env.Data, &conv); err != nil {
		t.Fatalf("decode conversation: %v", err)
	}
	if conv.ID != "a" || len(conv.Messages) != 1 || conv.Messages[0].Text != "hello a" {
		t.Fatalf("unexpected conversation %+v", conv)
	}

	code, env = get(t, r, "/archive/missing")
	if code != http.StatusNotFound || env.Code != 40401 {
		t.Fatalf("missing: status=%d code=%d", code, env.Code)
	}
}
