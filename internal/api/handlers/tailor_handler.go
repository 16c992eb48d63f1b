package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tailorjob/backend/internal/services"
)

type TailorHandler struct {
	svc  services.TailorService
	chat services.ChatService
}

func NewTailorHandler(svc services.TailorService, chat services.ChatService) *TailorHandler {
	return &TailorHandler{svc: svc, chat: chat}
}

func (h *TailorHandler) Start(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	res, err := h.svc.Start(c.Request.Context(), userID, c.Param("cv_id"), c.Param("job_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *TailorHandler) Get(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	row, err := h.svc.Get(c.Request.Context(), userID, c.Param("cv_id"), c.Param("job_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

func (h *TailorHandler) Status(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	st, err := h.svc.Status(c.Request.Context(), userID, c.Param("cv_id"), c.Param("job_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *TailorHandler) Revisions(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	revs, err := h.svc.Revisions(c.Request.Context(), userID, c.Param("cv_id"), c.Param("job_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"revisions": revs})
}

type ChatRequest struct {
	Content string `json:"content" binding:"required"`
}

func (h *TailorHandler) Chat(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var req ChatRequest
	if !bindJSON(c, "TailorHandler.Chat", &req) {
		return
	}
	res, err := h.chat.Send(c.Request.Context(), userID, c.Param("cv_id"), c.Param("job_id"), req.Content)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *TailorHandler) ChatHistory(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	hist, err := h.chat.History(c.Request.Context(), userID, c.Param("cv_id"), c.Param("job_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, hist)
}
