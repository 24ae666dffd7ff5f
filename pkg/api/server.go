// Package api exposes the negotiation engine over HTTP and WebSocket: REST
// endpoints for sessions and the agent registry, plus the event stream.
package api

import (
	"context"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/parley-ai/parley/pkg/config"
	"github.com/parley-ai/parley/pkg/engine"
	"github.com/parley-ai/parley/pkg/events"
	"github.com/parley-ai/parley/pkg/profile"
	"github.com/parley-ai/parley/pkg/resonance"
)

// Server is the HTTP/WebSocket front of the negotiation engine.
type Server struct {
	cfg         *config.ServerConfig
	engine      *engine.Engine
	profiles    profile.Store
	index       *resonance.Index
	connManager *events.ConnectionManager

	router *gin.Engine
	http   *http.Server
}

// NewServer wires the routes. connManager may be nil, which disables /ws.
func NewServer(cfg *config.ServerConfig, eng *engine.Engine, profiles profile.Store, index *resonance.Index, connManager *events.ConnectionManager) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		cfg:         cfg,
		engine:      eng,
		profiles:    profiles,
		index:       index,
		connManager: connManager,
		router:      gin.New(),
	}
	s.router.Use(gin.Recovery())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/ws", s.wsHandler)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/negotiations", s.createNegotiationHandler)
		v1.GET("/negotiations", s.listNegotiationsHandler)
		v1.GET("/negotiations/:id", s.getNegotiationHandler)
		v1.POST("/negotiations/:id/confirm", s.confirmNegotiationHandler)
		v1.POST("/negotiations/:id/cancel", s.cancelNegotiationHandler)

		v1.GET("/agents", s.listAgentsHandler)
		v1.POST("/agents", s.upsertAgentHandler)
		v1.DELETE("/agents/:id", s.deactivateAgentHandler)
		v1.GET("/agents/search", s.searchAgentsHandler)
	}
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the server on the given address, blocking until shutdown.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{Addr: addr, Handler: s.router}
	return s.http.ListenAndServe()
}

// StartWithListener serves on an existing listener. Used by tests that need
// an ephemeral port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.http = &http.Server{Handler: s.router}
	return s.http.Serve(ln)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
