package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/live-notify/youtube-broadcast-tracker-go/internal/tracker"
)

// NewRouter assembles the gin engine: hub callback, channel admin, health,
// and prometheus metrics.
func NewRouter(t *tracker.Tracker, registry RegistryWriter) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	webhook := NewWebhookHandler(t)
	router.GET("/youtube/callback", webhook.HandleVerification)
	router.POST("/youtube/callback", webhook.HandleNotification)

	channels := NewChannelHandler(t, registry)
	api := router.Group("/api/v1")
	{
		api.POST("/channels", channels.HandleAdd)
		api.DELETE("/channels/:channelId", channels.HandleRemove)
		api.PUT("/channels/:channelId", channels.HandleUpdate)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now(),
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}
