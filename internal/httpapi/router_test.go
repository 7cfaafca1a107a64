package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/nextile-ai/internal/chat"
	"github.com/suPer8Hu/nextile-ai/internal/httpapi/handlers"
	"github.com/suPer8Hu/nextile-ai/internal/httpapi/middleware"
	"github.com/suPer8Hu/nextile-ai/internal/persona"
	"github.com/suPer8Hu/nextile-ai/internal/store/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeGateway struct {
	chunks  []string
	image   []byte
	started chan struct{}
	release chan struct{}
}

func (g *fakeGateway) CompleteChat(ctx context.Context, history []chat.Message) (<-chan string, <-chan error) {
	chunks := make(chan string)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errs)
		if g.started != nil {
			g.started <- struct{}{}
			<-g.release
		}
		for _, c := range g.chunks {
			chunks <- c
		}
	}()
	return chunks, errs
}

func (g *fakeGateway) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	return g.image, nil
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	t      *testing.T
	router *gin.Engine
	cookie *http.Cookie
}

func newTestServer(t *testing.T, gw *fakeGateway) *testServer {
	t.Helper()
	svc := chat.NewService(memory.New(), gw, persona.NewHolder(persona.Default()))
	h := handlers.NewHandler(svc, handlers.NewSessions(svc.StartNew))
	r := NewRouter(h, Options{SessionSecret: []byte("test-secret")})

	ts := &testServer{t: t, router: r}
	w := ts.do(http.MethodGet, "/", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.SessionCookie {
			ts.cookie = c
		}
	}
	require.NotNil(t, ts.cookie)
	return ts
}

func (ts *testServer) do(method, path, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Accept", "application/json")
	}
	if ts.cookie != nil {
		req.AddCookie(ts.cookie)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) api(method, path string, body any, out any) envelope {
	ts.t.Helper()
	raw := ""
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(ts.t, err)
		raw = string(b)
	}
	w := ts.do(method, path, "application/json", raw)
	var env envelope
	require.NoError(ts.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if out != nil && env.Code == 0 {
		require.NoError(ts.t, json.Unmarshal(env.Data, out))
	}
	return env
}

type sessionData struct {
	ConversationID string `json:"conversation_id"`
	Messages       []struct {
		Role     string `json:"role"`
		Text     string `json:"text"`
		ImageURL string `json:"image_url"`
	} `json:"messages"`
}

type conversationsData struct {
	Conversations []struct {
		ID     string `json:"id"`
		Title  string `json:"title"`
		Active bool   `json:"active"`
	} `json:"conversations"`
}

func TestPing(t *testing.T) {
	ts := newTestServer(t, &fakeGateway{})
	w := ts.do(http.MethodGet, "/ping", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"code":0,"message":"ok","data":{"pong":true}}`, w.Body.String())
}

func TestIndex_ShowsGreeting(t *testing.T) {
	ts := newTestServer(t, &fakeGateway{})
	w := ts.do(http.MethodGet, "/", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	require.Contains(t, body, "Nextile AI")
	require.Contains(t, body, "Message Nextile AI...")

	var sess sessionData
	ts.api(http.MethodGet, "/api/session", nil, &sess)
	require.Len(t, sess.Messages, 1)
	require.Equal(t, "assistant", sess.Messages[0].Role)
	require.True(t, persona.Default().IsGreeting(sess.Messages[0].Text))
}

func TestSendMessage_JSON(t *testing.T) {
	ts := newTestServer(t, &fakeGateway{chunks: []string{"Hello ", "there"}})

	env := ts.api(http.MethodPost, "/chat/messages", map[string]string{"prompt": "Hi"}, nil)
	require.Equal(t, 0, env.Code)
	require.Contains(t, string(env.Data), "Hello there")

	var sess sessionData
	ts.api(http.MethodGet, "/api/session", nil, &sess)
	require.Len(t, sess.Messages, 3)
	require.Equal(t, "Hi", sess.Messages[1].Text)

	var convs conversationsData
	ts.api(http.MethodGet, "/api/conversations", nil, &convs)
	require.Len(t, convs.Conversations, 1)
	require.Equal(t, "Hi...", convs.Conversations[0].Title)
	require.True(t, convs.Conversations[0].Active)
}

func TestSendMessage_FormRedirects(t *testing.T) {
	ts := newTestServer(t, &fakeGateway{chunks: []string{"ok"}})
	req := httptest.NewRequest(http.MethodPost, "/chat/messages", strings.NewReader(url.Values{"prompt": {"hello"}}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(ts.cookie)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusSeeOther, w.Code)
	require.Equal(t, "/", w.Header().Get("Location"))
}

func TestSendMessage_Empty(t *testing.T) {
	ts := newTestServer(t, &fakeGateway{})
	env := ts.api(http.MethodPost, "/chat/messages", map[string]string{"prompt": "   "}, nil)
	require.Equal(t, 10002, env.Code)
}

func TestStreamMessage_Chat(t *testing.T) {
	ts := newTestServer(t, &fakeGateway{chunks: []string{"a", "b"}})
	w := ts.do(http.MethodPost, "/chat/messages/stream", "application/x-www-form-urlencoded", url.Values{"prompt": {"hey"}}.Encode())
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	body := w.Body.String()
	order := []string{"event: user", "event: chunk", "event: assistant", "event: done"}
	last := -1
	for _, marker := range order {
		i := strings.Index(body, marker)
		require.Greater(t, i, last, "missing or out of order: %s\n%s", marker, body)
		last = i
	}
	require.Contains(t, body, `"delta":"a"`)
}

func TestStreamMessage_DrawAndImage(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	ts := newTestServer(t, &fakeGateway{image: png})
	w := ts.do(http.MethodPost, "/chat/messages/stream", "application/x-www-form-urlencoded", url.Values{"prompt": {"/draw a kite"}}.Encode())
	body := w.Body.String()
	require.Contains(t, body, "event: drawing")
	require.Contains(t, body, "a kite")

	var sess sessionData
	ts.api(http.MethodGet, "/api/session", nil, &sess)
	require.Len(t, sess.Messages, 3)
	imgURL := sess.Messages[2].ImageURL
	require.NotEmpty(t, imgURL)

	img := ts.do(http.MethodGet, imgURL, "", "")
	require.Equal(t, http.StatusOK, img.Code)
	require.Equal(t, "image/png", img.Header().Get("Content-Type"))
	require.Equal(t, png, img.Body.Bytes())

	// a text message is not an image
	env := ts.api(http.MethodGet, "/chat/images/1", nil, nil)
	require.Equal(t, 40402, env.Code)
}

func TestSelectAndClear(t *testing.T) {
	ts := newTestServer(t, &fakeGateway{chunks: []string{"ok"}})
	ts.api(http.MethodPost, "/chat/messages", map[string]string{"prompt": "first"}, nil)

	var first sessionData
	ts.api(http.MethodGet, "/api/session", nil, &first)

	var started struct {
		ConversationID string `json:"conversation_id"`
	}
	ts.api(http.MethodPost, "/chat/new", map[string]string{}, &started)
	require.NotEqual(t, first.ConversationID, started.ConversationID)

	env := ts.api(http.MethodPost, "/chat/select/"+first.ConversationID, map[string]string{}, nil)
	require.Equal(t, 0, env.Code)
	var resumed sessionData
	ts.api(http.MethodGet, "/api/session", nil, &resumed)
	require.Equal(t, first.ConversationID, resumed.ConversationID)
	require.Len(t, resumed.Messages, 3)

	env = ts.api(http.MethodPost, "/chat/select/does-not-exist", map[string]string{}, nil)
	require.Equal(t, 40401, env.Code)

	ts.api(http.MethodPost, "/chat/clear", map[string]string{}, nil)
	var convs conversationsData
	ts.api(http.MethodGet, "/api/conversations", nil, &convs)
	require.Empty(t, convs.Conversations)
}

func TestBusySessionIsRejected(t *testing.T) {
	gw := &fakeGateway{chunks: []string{"x"}, started: make(chan struct{}), release: make(chan struct{})}
	ts := newTestServer(t, gw)

	done := make(chan *httptest.ResponseRecorder)
	go func() {
		done <- ts.do(http.MethodPost, "/chat/messages", "application/json", `{"prompt":"slow"}`)
	}()
	<-gw.started

	env := ts.api(http.MethodPost, "/chat/messages", map[string]string{"prompt": "again"}, nil)
	require.Equal(t, 40900, env.Code)

	close(gw.release)
	w := <-done
	require.Equal(t, http.StatusOK, w.Code)
}

func TestNoRoute(t *testing.T) {
	ts := newTestServer(t, &fakeGateway{})
	env := ts.api(http.MethodGet, "/nope", nil, nil)
	require.Equal(t, 40400, env.Code)
}
