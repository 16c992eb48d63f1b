package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tailorjob/backend/internal/services"
)

type JobHandler struct {
	svc services.JobService
}

func NewJobHandler(svc services.JobService) *JobHandler {
	return &JobHandler{svc: svc}
}

type ScrapeJobRequest struct {
	URL string `json:"url" binding:"required"`
}

func (h *JobHandler) Create(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var req services.CreateJobInput
	if !bindJSON(c, "JobHandler.Create", &req) {
		return
	}
	job, err := h.svc.Create(c.Request.Context(), userID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, job)
}

func (h *JobHandler) Scrape(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var req ScrapeJobRequest
	if !bindJSON(c, "JobHandler.Scrape", &req) {
		return
	}
	job, err := h.svc.Scrape(c.Request.Context(), userID, req.URL)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, job)
}

func (h *JobHandler) List(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	rows, err := h.svc.List(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *JobHandler) Get(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	job, err := h.svc.Get(c.Request.Context(), userID, c.Param("job_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *JobHandler) Update(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var req services.UpdateJobInput
	if !bindJSON(c, "JobHandler.Update", &req) {
		return
	}
	job, err := h.svc.Update(c.Request.Context(), userID, c.Param("job_id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *JobHandler) Delete(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), userID, c.Param("job_id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Job deleted"})
}
