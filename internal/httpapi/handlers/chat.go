package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/nextile-ai/internal/chat"
	"github.com/suPer8Hu/nextile-ai/internal/common"
	"github.com/suPer8Hu/nextile-ai/internal/observability"
)

const heartbeatInterval = 15 * time.Second

type sendMessageReq struct {
	Prompt string `form:"prompt" json:"prompt"`
}

func (h *Handler) done(c *gin.Context, data any) {
	if wantsJSON(c) {
		common.OK(c, data)
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) NewChat(c *gin.Context) {
	bs, ok := h.lockSession(c, false)
	if !ok {
		return
	}
	defer bs.mu.Unlock()

	bs.sess = h.Chat.StartNew()
	h.done(c, gin.H{"conversation_id": bs.sess.ID})
}

func (h *Handler) SelectChat(c *gin.Context) {
	bs, ok := h.lockSession(c, false)
	if !ok {
		return
	}
	defer bs.mu.Unlock()

	sess, err := h.Chat.Resume(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, chat.ErrConversationNotFound) {
			common.Fail(c, http.StatusNotFound, 40401, "conversation not found")
			return
		}
		observability.LoggerFromContext(c.Request.Context()).Error("resume conversation", "err", err)
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to load conversation")
		return
	}
	bs.sess = sess
	h.done(c, gin.H{"conversation_id": sess.ID})
}

func (h *Handler) ClearChats(c *gin.Context) {
	bs, ok := h.lockSession(c, false)
	if !ok {
		return
	}
	defer bs.mu.Unlock()

	sess, err := h.Chat.ClearHistory(c.Request.Context())
	if err != nil {
		observability.LoggerFromContext(c.Request.Context()).Error("clear history", "err", err)
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to clear history")
		return
	}
	bs.sess = sess
	h.done(c, gin.H{"conversation_id": sess.ID})
}

// SendMessage runs one full turn and answers when it is over.
func (h *Handler) SendMessage(c *gin.Context) {
	var req sendMessageReq
	if err := c.ShouldBind(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid request")
		return
	}

	bs, ok := h.lockSession(c, false)
	if !ok {
		return
	}
	defer bs.mu.Unlock()

	res, err := h.Chat.Send(c.Request.Context(), bs.sess, req.Prompt, nil)
	if err != nil {
		if errors.Is(err, chat.ErrEmptyInput) {
			if wantsJSON(c) {
				common.Fail(c, http.StatusBadRequest, 10002, "message is empty")
				return
			}
			c.Redirect(http.StatusSeeOther, "/")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50003, "failed to save conversation")
		return
	}

	data := gin.H{
		"conversation_id": bs.sess.ID,
		"route":           res.Route.Kind.String(),
		"notice":          res.Notice,
	}
	if res.Reply != nil {
		data["reply"] = h.viewMessage(bs.sess.ID, len(bs.sess.Messages)-1, *res.Reply)
	}
	h.done(c, data)
}

type sseEvent struct {
	name    string
	payload gin.H
}

// StreamMessage runs one turn and reports it as server-sent events:
// user, drawing, chunk, assistant, notice, then done or error.
func (h *Handler) StreamMessage(c *gin.Context) {
	var req sendMessageReq
	if err := c.ShouldBind(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid request")
		return
	}

	bs, ok := h.lockSession(c, false)
	if !ok {
		return
	}
	defer bs.mu.Unlock()

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		common.Fail(c, http.StatusInternalServerError, 50004, "streaming unsupported")
		return
	}

	ctx := c.Request.Context()
	log := observability.LoggerFromContext(ctx)
	sess := bs.sess

	events := make(chan sseEvent, 32)
	type outcome struct {
		res chat.TurnResult
		err error
	}
	finished := make(chan outcome, 1)

	go func() {
		// runs on the turn's goroutine, the only one touching sess until finished
		emit := func(e chat.Event) {
			events <- h.toSSE(sess, e)
		}
		res, err := h.Chat.Send(ctx, sess, req.Prompt, emit)
		close(events)
		finished <- outcome{res: res, err: err}
	}()

	// SSE headers
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	write := func(ev sseEvent) {
		if ctx.Err() != nil {
			return
		}
		b, err := json.Marshal(ev.payload)
		if err != nil {
			fmt.Fprintf(c.Writer, "event: error\ndata: {\"message\":\"json marshal failed\"}\n\n")
			flusher.Flush()
			return
		}
		fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", ev.name, b)
		flusher.Flush()
	}

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	// keep draining after a disconnect so the turn can finish and release the session
	for events != nil {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			write(ev)
		case <-ticker.C:
			write(sseEvent{name: "ping", payload: gin.H{"type": "ping", "ts": time.Now().Unix()}})
		}
	}

	out := <-finished
	switch {
	case errors.Is(out.err, chat.ErrEmptyInput):
		write(sseEvent{name: "error", payload: gin.H{"type": "error", "message": "message is empty"}})
	case out.err != nil:
		log.Error("stream turn failed", "err", out.err)
		write(sseEvent{name: "error", payload: gin.H{"type": "error", "message": "failed to save conversation"}})
	default:
		write(sseEvent{name: "done", payload: gin.H{
			"type":            "done",
			"conversation_id": sess.ID,
			"route":           out.res.Route.Kind.String(),
			"failed":          out.res.Failed(),
		}})
	}
}

func (h *Handler) toSSE(sess *chat.Session, e chat.Event) sseEvent {
	name := string(e.Kind)
	switch e.Kind {
	case chat.EventChunk:
		return sseEvent{name: name, payload: gin.H{"type": name, "delta": e.Text}}
	case chat.EventUser, chat.EventAssistant:
		// the message was just appended, so it is the last one
		view := h.viewMessage(sess.ID, len(sess.Messages)-1, *e.Message)
		return sseEvent{name: name, payload: gin.H{"type": name, "message": view}}
	default:
		return sseEvent{name: name, payload: gin.H{"type": name, "text": e.Text}}
	}
}

func (h *Handler) ListConversations(c *gin.Context) {
	bs, _ := h.lockSession(c, true)
	activeID := bs.sess.ID
	bs.mu.Unlock()

	convs, err := h.Chat.Conversations(c.Request.Context())
	if err != nil {
		observability.LoggerFromContext(c.Request.Context()).Error("load conversations", "err", err)
		common.Fail(c, http.StatusInternalServerError, 50005, "failed to load conversations")
		return
	}
	common.OK(c, gin.H{"conversations": conversationViews(convs, activeID)})
}

func (h *Handler) CurrentSession(c *gin.Context) {
	bs, _ := h.lockSession(c, true)
	defer bs.mu.Unlock()

	common.OK(c, gin.H{
		"conversation_id": bs.sess.ID,
		"messages":        h.viewMessages(bs.sess),
	})
}

// Image serves the PNG of an image message in the active conversation.
func (h *Handler) Image(c *gin.Context) {
	idx, err := strconv.Atoi(c.Param("index"))
	if err != nil || idx < 0 {
		common.Fail(c, http.StatusBadRequest, 10003, "invalid image index")
		return
	}

	bs, _ := h.lockSession(c, true)
	defer bs.mu.Unlock()

	if conv := c.Query("c"); conv != "" && conv != bs.sess.ID {
		common.Fail(c, http.StatusNotFound, 40402, "image not found")
		return
	}
	if idx >= len(bs.sess.Messages) || !bs.sess.Messages[idx].IsImage() {
		common.Fail(c, http.StatusNotFound, 40402, "image not found")
		return
	}
	m := bs.sess.Messages[idx]
	c.Header("Cache-Control", "private, max-age=3600")
	c.Data(http.StatusOK, m.MIME, m.Image)
}
