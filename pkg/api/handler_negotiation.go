package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/parley-ai/parley/pkg/engine"
)

// CreateNegotiationRequest is the body of POST /api/v1/negotiations.
type CreateNegotiationRequest struct {
	RawIntent   string   `json:"raw_intent" binding:"required"`
	Hints       []string `json:"hints,omitempty"`
	KStar       int      `json:"k_star,omitempty"`
	MinScore    *float64 `json:"min_score,omitempty"`
	AutoConfirm bool     `json:"auto_confirm,omitempty"`
}

// ConfirmNegotiationRequest is the body of POST /api/v1/negotiations/:id/confirm.
// FormulatedText, when set, replaces the formulated demand before freezing.
type ConfirmNegotiationRequest struct {
	FormulatedText string `json:"formulated_text,omitempty"`
}

// createNegotiationHandler handles POST /api/v1/negotiations.
func (s *Server) createNegotiationHandler(c *gin.Context) {
	var req CreateNegotiationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, err := s.engine.Submit(req.RawIntent, engine.SubmitOptions{
		Hints:       req.Hints,
		KStar:       req.KStar,
		MinScore:    req.MinScore,
		AutoConfirm: req.AutoConfirm,
	})
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sess)
}

// listNegotiationsHandler handles GET /api/v1/negotiations.
func (s *Server) listNegotiationsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Sessions())
}

// getNegotiationHandler handles GET /api/v1/negotiations/:id.
func (s *Server) getNegotiationHandler(c *gin.Context) {
	sess, err := s.engine.Session(c.Param("id"))
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// confirmNegotiationHandler handles POST /api/v1/negotiations/:id/confirm.
func (s *Server) confirmNegotiationHandler(c *gin.Context) {
	var req ConfirmNegotiationRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	if err := s.engine.Confirm(c.Param("id"), req.FormulatedText); err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "confirmed"})
}

// cancelNegotiationHandler handles POST /api/v1/negotiations/:id/cancel.
func (s *Server) cancelNegotiationHandler(c *gin.Context) {
	if err := s.engine.Cancel(c.Param("id")); err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "cancelling"})
}
