package http

import (
	"log/slog"
	"net/http"

	"github.com/gdugdh24/mpit2026-matchqueue/internal/delivery/http/handler"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/delivery/http/middleware"
	"github.com/gin-gonic/gin"
)

type Router struct {
	authHandler    *handler.AuthHandler
	matchHandler   *handler.MatchHandler
	authMiddleware *middleware.AuthMiddleware
	socketHandler  http.Handler
	log            *slog.Logger
}

// NewRouter wires the REST API. socketHandler may be nil.
func NewRouter(
	authHandler *handler.AuthHandler,
	matchHandler *handler.MatchHandler,
	authMiddleware *middleware.AuthMiddleware,
	socketHandler http.Handler,
	log *slog.Logger,
) *Router {
	return &Router{
		authHandler:    authHandler,
		matchHandler:   matchHandler,
		authMiddleware: authMiddleware,
		socketHandler:  socketHandler,
		log:            log,
	}
}

func (r *Router) Setup() *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestID(), middleware.Logger(r.log), gin.Recovery())

	// Health check (supports both GET and HEAD)
	healthHandler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	}
	router.GET("/health", healthHandler)
	router.HEAD("/health", healthHandler)

	if r.socketHandler != nil {
		router.GET("/socket.io/*any", gin.WrapH(r.socketHandler))
		router.POST("/socket.io/*any", gin.WrapH(r.socketHandler))
	}

	// API v1
	v1 := router.Group("/api/v1")
	protected := v1.Group("")
	protected.Use(r.authMiddleware.RequireAuth())
	{
		protected.GET("/auth/me", r.authHandler.Me)

		matches := protected.Group("/matches")
		{
			matches.POST("/start", r.matchHandler.Start)
			matches.GET("/check", r.matchHandler.Check)
			matches.POST("/stop", r.matchHandler.Stop)
			matches.POST("/join-queue", r.matchHandler.JoinQueue)
			matches.GET("/status", r.matchHandler.Status)
			matches.GET("/active", r.matchHandler.Active)
			matches.GET("/history", r.matchHandler.History)
			matches.GET("/:matchId", r.matchHandler.Get)
			matches.POST("/:matchId/leave", r.matchHandler.Leave)
			matches.GET("/:matchId/messages", r.matchHandler.Messages)
		}
	}

	return router
}
