package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/nextile-ai/internal/observability"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestBrowserSession_IssuesAndReusesCookie(t *testing.T) {
	secret := []byte("test-secret")
	r := gin.New()
	r.Use(BrowserSession(secret))
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, BrowserID(c)) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	first := w.Body.String()
	require.Len(t, first, 26)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, SessionCookie, cookies[0].Name)
	require.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, first, w.Body.String())
	require.Empty(t, w.Result().Cookies())
}

func TestBrowserSession_RejectsForeignSignature(t *testing.T) {
	token, err := SignBrowserID([]byte("other"), "01HZZZZZZZZZZZZZZZZZZZZZZZ", time.Now())
	require.NoError(t, err)

	r := gin.New()
	r.Use(BrowserSession([]byte("test-secret")))
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, BrowserID(c)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.NotEqual(t, "01HZZZZZZZZZZZZZZZZZZZZZZZ", w.Body.String())
	require.Len(t, w.Result().Cookies(), 1)
}

func TestParseBrowserID_Expired(t *testing.T) {
	secret := []byte("s")
	token, err := SignBrowserID(secret, "abc", time.Now().Add(-2*sessionTTL))
	require.NoError(t, err)
	_, err = ParseBrowserID(secret, token)
	require.Error(t, err)
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, observability.RequestIDFromContext(c.Request.Context()))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Len(t, w.Body.String(), 26)
	require.Equal(t, w.Body.String(), w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "given-id")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, "given-id", w.Body.String())
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.GET("/", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.JSONEq(t, `{"code":50000,"message":"internal error","data":null}`, w.Body.String())
}
