package handler

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/live-notify/youtube-broadcast-tracker-go/internal/tracker"
	"github.com/live-notify/youtube-broadcast-tracker-go/pkg/logger"
)

// YouTubeChannelIDRegex validates YouTube channel IDs (UC followed by 22
// characters).
var YouTubeChannelIDRegex = regexp.MustCompile(`^UC[a-zA-Z0-9_-]{22}$`)

// RegistryWriter is the mutable side of the channel registry.
type RegistryWriter interface {
	Put(ctx context.Context, ownerKey, channelID string) error
	Remove(ctx context.Context, channelID string) error
}

// ChannelHandler exposes the registry's change hooks over HTTP. Adding,
// removing, and re-pointing a channel map directly onto subscribe,
// unsubscribe, and unsubscribe-then-subscribe.
type ChannelHandler struct {
	tracker  *tracker.Tracker
	registry RegistryWriter
}

// NewChannelHandler creates a channel admin handler.
func NewChannelHandler(t *tracker.Tracker, registry RegistryWriter) *ChannelHandler {
	return &ChannelHandler{tracker: t, registry: registry}
}

type channelRequest struct {
	OwnerKey  string `json:"owner_key" binding:"required"`
	ChannelID string `json:"channel_id" binding:"required"`
}

// ErrorResponse is the error body shape for the admin endpoints.
type ErrorResponse struct {
	Status    int       `json:"status"`
	Error     string    `json:"error"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Path      string    `json:"path"`
}

// HandleAdd registers a channel and subscribes to its upload feed.
func (h *ChannelHandler) HandleAdd(c *gin.Context) {
	var req channelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.sendError(c, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if !YouTubeChannelIDRegex.MatchString(req.ChannelID) {
		h.sendError(c, http.StatusBadRequest, "Bad Request",
			"invalid channel_id format (must start with 'UC' followed by 22 characters)")
		return
	}

	if err := h.registry.Put(c.Request.Context(), req.OwnerKey, req.ChannelID); err != nil {
		logger.Log.Error("failed to register channel",
			zap.String("channel_id", req.ChannelID),
			zap.Error(err),
		)
		h.sendError(c, http.StatusInternalServerError, "Internal Server Error", "failed to register channel")
		return
	}

	if err := h.tracker.Subscribe(c.Request.Context(), req.ChannelID); err != nil {
		if errors.Is(err, tracker.ErrConflict) {
			h.sendError(c, http.StatusConflict, "Conflict", "channel is already tracked")
			return
		}
		logger.Log.Warn("hub subscribe did not complete",
			zap.String("channel_id", req.ChannelID),
			zap.Error(err),
		)
	}

	c.JSON(http.StatusCreated, gin.H{
		"channel_id": req.ChannelID,
		"owner_key":  req.OwnerKey,
		"status":     "subscribed",
	})
}

// HandleRemove unsubscribes a channel and drops its registration.
func (h *ChannelHandler) HandleRemove(c *gin.Context) {
	channelID := c.Param("channelId")

	if err := h.tracker.Unsubscribe(c.Request.Context(), channelID, true); err != nil {
		if errors.Is(err, tracker.ErrNotTracked) {
			h.sendError(c, http.StatusNotFound, "Not Found", "channel is not tracked")
			return
		}
		logger.Log.Warn("hub unsubscribe did not complete",
			zap.String("channel_id", channelID),
			zap.Error(err),
		)
	}

	if err := h.registry.Remove(c.Request.Context(), channelID); err != nil {
		logger.Log.Error("failed to deregister channel",
			zap.String("channel_id", channelID),
			zap.Error(err),
		)
	}

	c.JSON(http.StatusOK, gin.H{
		"channel_id": channelID,
		"status":     "unsubscribed",
	})
}

// HandleUpdate re-points an owner at a new channel id: the old channel is
// unsubscribed, the new one registered and subscribed.
func (h *ChannelHandler) HandleUpdate(c *gin.Context) {
	oldID := c.Param("channelId")

	var req channelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.sendError(c, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if !YouTubeChannelIDRegex.MatchString(req.ChannelID) {
		h.sendError(c, http.StatusBadRequest, "Bad Request",
			"invalid channel_id format (must start with 'UC' followed by 22 characters)")
		return
	}

	if err := h.tracker.UpdateChannel(c.Request.Context(), oldID, req.ChannelID); err != nil {
		switch {
		case errors.Is(err, tracker.ErrNotTracked):
			h.sendError(c, http.StatusNotFound, "Not Found", "channel is not tracked")
			return
		case errors.Is(err, tracker.ErrConflict):
			h.sendError(c, http.StatusConflict, "Conflict", "new channel is already tracked")
			return
		default:
			logger.Log.Warn("channel update did not fully complete",
				zap.String("old_channel_id", oldID),
				zap.String("new_channel_id", req.ChannelID),
				zap.Error(err),
			)
		}
	}

	if err := h.registry.Remove(c.Request.Context(), oldID); err != nil {
		logger.Log.Error("failed to deregister old channel",
			zap.String("channel_id", oldID),
			zap.Error(err),
		)
	}
	if err := h.registry.Put(c.Request.Context(), req.OwnerKey, req.ChannelID); err != nil {
		logger.Log.Error("failed to register new channel",
			zap.String("channel_id", req.ChannelID),
			zap.Error(err),
		)
	}

	c.JSON(http.StatusOK, gin.H{
		"channel_id": req.ChannelID,
		"owner_key":  req.OwnerKey,
		"status":     "resubscribed",
	})
}

func (h *ChannelHandler) sendError(c *gin.Context, status int, errText, message string) {
	c.JSON(status, ErrorResponse{
		Status:    status,
		Error:     errText,
		Message:   message,
		Timestamp: time.Now(),
		Path:      c.Request.URL.Path,
	})
}
