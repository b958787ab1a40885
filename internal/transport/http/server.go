package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-dm/internal/config"
	"github.com/vovakirdan/wirechat-dm/internal/core"
	"github.com/vovakirdan/wirechat-dm/internal/service/messages"
	"github.com/vovakirdan/wirechat-dm/internal/service/readstate"
)

// Services are the collaborators the HTTP layer routes requests to.
type Services struct {
	Hub      core.Hub
	Gateway  *core.Gateway
	Relay    *core.Relay
	Messages *messages.Service
	Tracker  *readstate.Tracker
}

// NewServer builds an HTTP server with the REST API and the live channel.
func NewServer(svc Services, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           NewHandler(svc, cfg, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewHandler serves /ws straight from a ServeMux so the upgrade can hijack
// the connection; every other path goes to the gin engine.
func NewHandler(svc Services, cfg *config.Config, logger *zerolog.Logger) stdhttp.Handler {
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(svc.Gateway, WSOptions{
		ReadLimit:         cfg.MaxMessageBytes,
		PingInterval:      cfg.PingInterval,
		MessagesPerMinute: cfg.MessagesPerMinute,
	}, logger))
	mux.Handle("/", NewRouter(svc, logger))
	return mux
}

// NewRouter registers the REST routes on a fresh gin engine.
func NewRouter(svc Services, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", healthHandler)

	h := NewMessageHandlers(svc.Hub, svc.Relay, svc.Messages, svc.Tracker, logger)
	router.GET("/conversation/:recipientId", h.GetConversation)
	router.POST("/message", h.SendMessage)
	router.GET("/unread/:userId", h.GetUnread)
	router.POST("/mark-read", h.MarkRead)
	router.GET("/presence/:userId", h.GetPresence)

	return router
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
