// Package server exposes a small debug HTTP surface over the engine's
// Control API. It is not the production interface (spec.md §6 names the
// HTTP surface an interface-only Non-goal); it exists so the Control API
// can be exercised over the wire in tests and local debugging, the same
// role the teacher's own internal/server package plays for its bridge.
package server

import (
	"github.com/gin-gonic/gin"

	"github.com/ridgeline-labs/slope-scraper/internal/engine"
)

// Server wraps a gin.Engine around an engine.Engine.
type Server struct {
	Router *gin.Engine
	Engine *engine.Engine
}

// NewServer builds a Server but does not start it.
func NewServer(e *engine.Engine) *Server {
	router := gin.Default()
	s := &Server{Router: router, Engine: e}
	s.routes()
	return s
}

// StartHTTPServer runs the debug server on addr, blocking until it exits.
func (s *Server) StartHTTPServer(addr string) error {
	return s.Router.Run(addr)
}
