// Package handler contains the HTTP endpoints: the hub callback, channel
// administration, and health.
package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/live-notify/youtube-broadcast-tracker-go/internal/hub"
	"github.com/live-notify/youtube-broadcast-tracker-go/internal/metrics"
	"github.com/live-notify/youtube-broadcast-tracker-go/internal/parser"
	"github.com/live-notify/youtube-broadcast-tracker-go/internal/tracker"
	"github.com/live-notify/youtube-broadcast-tracker-go/pkg/logger"
)

const maxNotificationBody = 1 << 20 // 1MB

// WebhookHandler serves the PubSubHubbub callback endpoint.
type WebhookHandler struct {
	tracker *tracker.Tracker
}

// NewWebhookHandler creates a webhook handler bound to the tracker.
func NewWebhookHandler(t *tracker.Tracker) *WebhookHandler {
	return &WebhookHandler{tracker: t}
}

// HandleVerification answers the hub's GET verification handshake: the
// challenge is echoed back when local tracking state matches the declared
// mode, otherwise the hub gets a 404.
func (h *WebhookHandler) HandleVerification(c *gin.Context) {
	topic := c.Query("hub.topic")
	challenge := c.Query("hub.challenge")
	mode := c.Query("hub.mode")

	channelID, err := hub.ChannelIDFromTopic(topic)
	if err != nil {
		logger.Log.Warn("verification request with unusable topic",
			zap.String("topic", topic),
			zap.Error(err),
		)
		c.Status(http.StatusNotFound)
		return
	}

	if !h.tracker.Verify(hub.Mode(mode), channelID) {
		c.Status(http.StatusNotFound)
		return
	}

	c.String(http.StatusOK, challenge)
}

// HandleNotification ingests a POSTed Atom feed body. The hub always gets
// a success response, even when processing is skipped: push delivery is
// at-least-once and the periodic tick re-reconciles anything missed.
func (h *WebhookHandler) HandleNotification(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxNotificationBody))
	if err != nil {
		logger.Log.Error("failed to read notification body", zap.Error(err))
		c.Status(http.StatusOK)
		return
	}

	feed, err := parser.Parse(body)
	if err != nil {
		logger.Log.Warn("malformed notification body, acknowledging anyway",
			zap.Error(err),
		)
		metrics.NotificationsReceived.WithLabelValues("malformed").Inc()
		c.Status(http.StatusOK)
		return
	}

	if feed.Deleted {
		metrics.NotificationsReceived.WithLabelValues("deleted").Inc()
		c.Status(http.StatusOK)
		return
	}

	for _, n := range feed.Notifications {
		h.tracker.HandleNotification(c.Request.Context(), n)
	}

	c.Status(http.StatusOK)
}
