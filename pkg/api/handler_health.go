package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/parley-ai/parley/pkg/version"
)

// healthHandler handles GET /health. Minimal and unauthenticated; external
// LLM providers are deliberately not probed here.
func (s *Server) healthHandler(c *gin.Context) {
	resp := gin.H{
		"status":  "healthy",
		"version": version.Full(),
	}
	if s.connManager != nil {
		resp["ws_connections"] = s.connManager.ActiveConnections()
	}
	c.JSON(http.StatusOK, resp)
}
