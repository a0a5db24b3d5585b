// Package server exposes the chat service over HTTP with gin.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/colloquy/pkg/chat"
	"github.com/go-go-golems/colloquy/pkg/events"
)

const (
	DefaultIdentityHeader = "X-User-ID"
	// ModelCookie holds the chat model the client last selected.
	ModelCookie = "chat-model"

	keepaliveInterval = 30 * time.Second
	userIDKey         = "userID"
)

type Server struct {
	router         *gin.Engine
	chats          *chat.Service
	events         *events.Router
	identityHeader string
	keepalive      time.Duration
}

type Option func(*Server)

// WithIdentityHeader names the header the upstream identity provider puts
// the caller's user id in.
func WithIdentityHeader(header string) Option {
	return func(s *Server) {
		if header != "" {
			s.identityHeader = header
		}
	}
}

func WithKeepalive(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.keepalive = d
		}
	}
}

func New(chats *chat.Service, eventRouter *events.Router, options ...Option) *Server {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	s := &Server{
		router:         r,
		chats:          chats,
		events:         eventRouter,
		identityHeader: DefaultIdentityHeader,
		keepalive:      keepaliveInterval,
	}
	for _, option := range options {
		option(s)
	}
	r.Use(s.identity())
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// Serve listens on addr until ctx is cancelled, then shuts down gracefully
// within shutdownTimeout.
func (s *Server) Serve(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		log.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "listen")
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info().Msg("Shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	})
	return eg.Wait()
}

func (s *Server) registerRoutes() {
	api := s.router.Group("/api")

	api.GET("/models", s.listModels)

	api.POST("/chat", s.sendMessage)
	api.GET("/chat/:id", s.getChat)
	api.DELETE("/chat/:id", s.deleteChat)
	api.GET("/chat/:id/stream", s.streamChat)
	api.PATCH("/chat/:id/visibility", s.updateVisibility)
	api.GET("/chat/:id/export", s.exportChat)
	api.DELETE("/messages/:id/trailing", s.deleteTrailingMessages)

	api.GET("/history", s.history)

	api.GET("/vote", s.getVotes)
	api.PATCH("/vote", s.vote)

	api.GET("/document", s.getDocuments)
	api.POST("/document", s.saveDocument)
	api.DELETE("/document", s.deleteDocuments)

	api.GET("/suggestions", s.getSuggestions)
	api.POST("/suggestions", s.saveSuggestions)
}

func (s *Server) identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(userIDKey, c.GetHeader(s.identityHeader))
		c.Next()
	}
}

func userID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	}
}
