package alerting

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Sender interface {
	Configured() bool
	Send(ctx context.Context, msg *Message) error
}

type Handler struct {
	sender Sender
	log    *logrus.Entry
	now    func() time.Time
}

func NewHandler(sender Sender, log *logrus.Entry) *Handler {
	return &Handler{sender: sender, log: log, now: time.Now}
}

func (h *Handler) Register(r gin.IRouter) {
	r.POST("/webhook", h.Webhook)
	r.GET("/health", h.Health)
}

// Webhook receives an Alertmanager notification and forwards it to Discord.
func (h *Handler) Webhook(c *gin.Context) {
	if !h.sender.Configured() {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Discord webhook URL not configured"})
		return
	}
	var p Payload
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No data received"})
		return
	}
	msg := Format(p, h.now())
	if msg == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No alerts to send"})
		return
	}
	if err := h.sender.Send(c.Request.Context(), msg); err != nil {
		h.log.WithError(err).Error("discord forward failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send to Discord"})
		return
	}
	h.log.WithField("alerts", len(msg.Embeds)).Info("alerts forwarded")
	c.JSON(http.StatusOK, gin.H{"success": true, "alerts_sent": len(msg.Embeds)})
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "discord_configured": h.sender.Configured()})
}
