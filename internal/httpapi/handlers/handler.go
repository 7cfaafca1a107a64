package handlers

import (
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/nextile-ai/internal/chat"
	"github.com/suPer8Hu/nextile-ai/internal/common"
	"github.com/suPer8Hu/nextile-ai/internal/httpapi/middleware"
	"github.com/suPer8Hu/nextile-ai/internal/httpapi/render"
)

type Handler struct {
	Chat     *chat.Service
	Sessions *Sessions
	Markdown *render.Markdown

	page *template.Template
}

func NewHandler(svc *chat.Service, sessions *Sessions) *Handler {
	return &Handler{
		Chat:     svc,
		Sessions: sessions,
		Markdown: render.NewMarkdown(),
		page:     template.Must(template.New("index.html").Funcs(templateFuncs).ParseFS(templates, "templates/index.html")),
	}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}

// lockSession returns the caller's browser session, locked. ok is false when a turn
// is already running; the caller has answered the request in that case.
func (h *Handler) lockSession(c *gin.Context, wait bool) (*browserSession, bool) {
	bs := h.Sessions.get(middleware.BrowserID(c))
	if wait {
		bs.mu.Lock()
		return bs, true
	}
	if !bs.mu.TryLock() {
		common.Fail(c, http.StatusConflict, 40900, "a message is already being processed")
		return nil, false
	}
	return bs, true
}
