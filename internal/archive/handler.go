package archive

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/nextile-ai/internal/chat"
	"github.com/suPer8Hu/nextile-ai/internal/common"
	"github.com/suPer8Hu/nextile-ai/internal/observability"
)

type recordView struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Date         string    `json:"date"`
	MessageCount int       `json:"message_count"`
	SavedAt      time.Time `json:"saved_at"`
}

// NewRouter serves the archive read-only:
// GET /archive?limit=n lists snapshots, GET /archive/:id returns one conversation.
func NewRouter(repo *Repo) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})

	r.GET("/ping", func(c *gin.Context) {
		common.OK(c, gin.H{"pong": true})
	})

	r.GET("/archive", func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.Query("limit"))
		recs, err := repo.List(c.Request.Context(), limit)
		if err != nil {
			observability.LoggerFromContext(c.Request.Context()).Error("list archive", "err", err)
			common.Fail(c, http.StatusInternalServerError, 50006, "failed to list archive")
			return
		}
		out := make([]recordView, 0, len(recs))
		for _, rec := range recs {
			out = append(out, recordView{
				ID:           rec.ID,
				Title:        rec.Title,
				Date:         rec.Date,
				MessageCount: rec.MessageCount,
				SavedAt:      rec.SavedAt,
			})
		}
		common.OK(c, gin.H{"conversations": out})
	})

	r.GET("/archive/:id", func(c *gin.Context) {
		conv, err := repo.Get(c.Request.Context(), c.Param("id"))
		if errors.Is(err, chat.ErrConversationNotFound) {
			common.Fail(c, http.StatusNotFound, 40401, "conversation not found")
			return
		}
		if err != nil {
			observability.LoggerFromContext(c.Request.Context()).Error("get archive", "err", err)
			common.Fail(c, http.StatusInternalServerError, 50007, "failed to load conversation")
			return
		}
		common.OK(c, conv)
	})
	return r
}
