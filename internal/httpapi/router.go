package httpapi

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/nextile-ai/internal/common"
	"github.com/suPer8Hu/nextile-ai/internal/httpapi/handlers"
	"github.com/suPer8Hu/nextile-ai/internal/httpapi/middleware"
)

type Options struct {
	SessionSecret []byte
	// AllowOrigins enables CORS for the JSON API when non-empty.
	AllowOrigins []string
	// AccessLog turns on gin's request logger.
	AccessLog bool
}

func NewRouter(h *handlers.Handler, opts Options) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	if opts.AccessLog {
		r.Use(gin.Logger())
	}
	r.Use(middleware.Recovery())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())
	if len(opts.AllowOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     opts.AllowOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost},
			AllowHeaders:     []string{"Content-Type", middleware.RequestIDHeader},
			ExposeHeaders:    []string{middleware.RequestIDHeader},
			AllowCredentials: true,
		}))
	}

	r.GET("/ping", h.Ping)

	// everything below belongs to one browser session
	s := r.Group("/")
	s.Use(middleware.BrowserSession(opts.SessionSecret))
	s.GET("/", h.Index)
	s.POST("/chat/new", h.NewChat)
	s.POST("/chat/select/:id", h.SelectChat)
	s.POST("/chat/clear", h.ClearChats)
	s.POST("/chat/messages", h.SendMessage)
	s.POST("/chat/messages/stream", h.StreamMessage)
	s.GET("/chat/images/:index", h.Image)
	s.GET("/api/conversations", h.ListConversations)
	s.GET("/api/session", h.CurrentSession)
	return r
}
