// Package metrics exposes prometheus instrumentation for the tracker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NotificationsReceived counts webhook notification bodies by outcome
	// (processed, duplicate, deleted, malformed, untracked).
	NotificationsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "youtube_notifications_received_total",
		Help: "Webhook notifications received, labeled by processing outcome.",
	}, []string{"outcome"})

	// EventsEmitted counts events handed to the bus by category.
	EventsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "youtube_events_emitted_total",
		Help: "Notification events emitted, labeled by event name.",
	}, []string{"event"})

	// TickRemovals counts snapshots dropped by the reconciliation tick.
	TickRemovals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "youtube_tick_removals_total",
		Help: "Pending broadcasts removed by the tick, labeled by reason.",
	}, []string{"reason"})

	// TrackedChannels gauges the current subscription count.
	TrackedChannels = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "youtube_tracked_channels",
		Help: "Number of channels with an active push subscription.",
	})
)
