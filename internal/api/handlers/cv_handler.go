package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tailorjob/backend/internal/services"
	"github.com/tailorjob/backend/internal/utils"
)

// uploads are read with one byte of slack so the service can reject oversize files itself
const maxUploadRead = services.MaxCVBytes + 1

type CVHandler struct {
	svc services.CVService
}

func NewCVHandler(svc services.CVService) *CVHandler {
	return &CVHandler{svc: svc}
}

func (h *CVHandler) Upload(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "CVHandler.Upload", "missing multipart field 'file'", err))
		return
	}
	file, err := fh.Open()
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, "CVHandler.Upload", "failed to open upload", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadRead))
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "CVHandler.Upload", "failed to read upload", err))
		return
	}

	res, err := h.svc.Upload(c.Request.Context(), userID, services.UploadInput{Filename: fh.Filename, Data: data})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *CVHandler) Status(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}
	job, err := h.svc.ParseStatus(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *CVHandler) List(c *gin.Context) {
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

func (h *CVHandler) Get(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	detail, err := h.svc.Get(c.Request.Context(), userID, c.Param("cv_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *CVHandler) Reparse(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	res, err := h.svc.Reparse(c.Request.Context(), userID, c.Param("cv_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *CVHandler) SetPrimary(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	if err := h.svc.SetPrimary(c.Request.Context(), userID, c.Param("cv_id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Primary CV updated"})
}

func (h *CVHandler) Delete(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), userID, c.Param("cv_id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "CV deleted"})
}

func (h *CVHandler) Download(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	url, err := h.svc.DownloadURL(c.Request.Context(), userID, c.Param("cv_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (h *CVHandler) Notifications(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	rows, err := h.svc.Notifications(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *CVHandler) MarkNotificationRead(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	if err := h.svc.MarkNotificationRead(c.Request.Context(), userID, c.Param("notification_id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *CVHandler) DeleteNotification(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteNotification(c.Request.Context(), userID, c.Param("notification_id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
