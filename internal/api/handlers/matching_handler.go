package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tailorjob/backend/internal/services"
)

type MatchingHandler struct {
	svc services.MatchingService
}

func NewMatchingHandler(svc services.MatchingService) *MatchingHandler {
	return &MatchingHandler{svc: svc}
}

type AnalyzeMatchRequest struct {
	CVID  string `json:"cv_id" binding:"required"`
	JobID string `json:"job_id" binding:"required"`
}

func (h *MatchingHandler) Analyze(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var req AnalyzeMatchRequest
	if !bindJSON(c, "MatchingHandler.Analyze", &req) {
		return
	}
	res, err := h.svc.Analyze(c.Request.Context(), userID, req.CVID, req.JobID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Score answers null when no fresh analysis is stored.
func (h *MatchingHandler) Score(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	res, err := h.svc.GetScore(c.Request.Context(), userID, c.Param("cv_id"), c.Param("job_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *MatchingHandler) DeleteScore(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	res, err := h.svc.DeleteScore(c.Request.Context(), userID, c.Param("cv_id"), c.Param("job_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *MatchingHandler) Rank(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	rows, err := h.svc.Rank(c.Request.Context(), userID, c.Param("cv_id"), queryLimit(c, 20, 100))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}
