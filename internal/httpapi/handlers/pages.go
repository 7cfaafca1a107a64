package handlers

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/nextile-ai/internal/chat"
	"github.com/suPer8Hu/nextile-ai/internal/observability"
	"github.com/suPer8Hu/nextile-ai/internal/persona"
)

//go:embed templates/index.html
var templates embed.FS

var templateFuncs = template.FuncMap{
	"initial": func(role string) string {
		if role == string(chat.RoleUser) {
			return "You"
		}
		return "AI"
	},
}

type messageView struct {
	Role     string        `json:"role"`
	HTML     template.HTML `json:"html,omitempty"`
	Text     string        `json:"text,omitempty"`
	ImageURL string        `json:"image_url,omitempty"`
}

type conversationView struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Date         string `json:"date"`
	MessageCount int    `json:"message_count"`
	Active       bool   `json:"active"`
}

type pageView struct {
	Persona        persona.Persona
	BannerHTML     template.HTML
	ConversationID string
	Messages       []messageView
	Conversations  []conversationView
	Error          string
}

// imageURL names the conversation too, so a cached image never leaks into
// another conversation at the same index.
func imageURL(conversationID string, index int) string {
	return fmt.Sprintf("/chat/images/%d?c=%s", index, url.QueryEscape(conversationID))
}

func (h *Handler) viewMessage(conversationID string, index int, m chat.Message) messageView {
	if m.IsImage() {
		return messageView{Role: string(m.Role), ImageURL: imageURL(conversationID, index)}
	}
	return messageView{Role: string(m.Role), Text: m.Text, HTML: h.Markdown.HTML(m.Text)}
}

func (h *Handler) viewMessages(sess *chat.Session) []messageView {
	out := make([]messageView, 0, len(sess.Messages))
	for i, m := range sess.Messages {
		out = append(out, h.viewMessage(sess.ID, i, m))
	}
	return out
}

func conversationViews(convs []chat.Conversation, activeID string) []conversationView {
	out := make([]conversationView, 0, len(convs))
	for _, conv := range convs {
		out = append(out, conversationView{
			ID:           conv.ID,
			Title:        conv.Title,
			Date:         conv.Date,
			MessageCount: len(conv.Messages),
			Active:       conv.ID == activeID,
		})
	}
	return out
}

// Index renders the chat page: sidebar history and the active conversation.
func (h *Handler) Index(c *gin.Context) {
	ctx := c.Request.Context()
	bs, _ := h.lockSession(c, true)
	defer bs.mu.Unlock()

	p := h.Chat.Persona()
	view := pageView{
		Persona:        p,
		BannerHTML:     h.Markdown.HTML(p.Banner),
		ConversationID: bs.sess.ID,
		Messages:       h.viewMessages(bs.sess),
	}
	convs, err := h.Chat.Conversations(ctx)
	if err != nil {
		observability.LoggerFromContext(ctx).Error("load conversations", "err", err)
		view.Error = "Chat history is unavailable right now."
	} else {
		view.Conversations = conversationViews(convs, bs.sess.ID)
	}

	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := h.page.Execute(c.Writer, view); err != nil {
		observability.LoggerFromContext(ctx).Error("render page", "err", err)
	}
}

// wantsJSON is true for API clients; browsers posting forms get a redirect.
func wantsJSON(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "application/json") ||
		strings.HasPrefix(c.ContentType(), "application/json")
}
