package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/parley-ai/parley/pkg/models"
)

// UpsertAgentRequest is the body of POST /api/v1/agents.
type UpsertAgentRequest struct {
	ID           string   `json:"id" binding:"required"`
	DisplayName  string   `json:"display_name,omitempty"`
	ProfileText  string   `json:"profile_text" binding:"required"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// listAgentsHandler handles GET /api/v1/agents.
func (s *Server) listAgentsHandler(c *gin.Context) {
	agents, err := s.profiles.ListActiveAgents(c.Request.Context())
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, agents)
}

// upsertAgentHandler handles POST /api/v1/agents.
func (s *Server) upsertAgentHandler(c *gin.Context) {
	var req UpsertAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p := &models.AgentProfile{
		ID:           req.ID,
		DisplayName:  req.DisplayName,
		ProfileText:  req.ProfileText,
		Capabilities: req.Capabilities,
		Active:       true,
	}
	if err := s.profiles.UpsertProfile(c.Request.Context(), p); err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// deactivateAgentHandler handles DELETE /api/v1/agents/:id.
func (s *Server) deactivateAgentHandler(c *gin.Context) {
	if err := s.profiles.DeactivateAgent(c.Request.Context(), c.Param("id")); err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deactivated"})
}

// searchAgentsHandler handles GET /api/v1/agents/search?q=...&limit=N, a
// free-text similarity search over the profile index.
func (s *Server) searchAgentsHandler(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter q is required"})
		return
	}
	limit := 10
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer within [1, 100]"})
			return
		}
		limit = n
	}

	ctx := c.Request.Context()
	agents, err := s.profiles.ListActiveAgents(ctx)
	if err != nil {
		renderError(c, err)
		return
	}
	if err := s.index.Sync(ctx, agents); err != nil {
		renderError(c, err)
		return
	}
	results, err := s.index.Search(ctx, query, limit)
	if err != nil {
		renderError(c, err)
		return
	}
	if results == nil {
		results = []models.ScoredAgent{}
	}
	c.JSON(http.StatusOK, gin.H{"query": query, "results": results})
}
