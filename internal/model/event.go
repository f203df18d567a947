package model

// EventType identifies a notification category.
type EventType string

// EventType constants define the notification categories emitted downstream.
const (
	EventPublish  EventType = "video_publish"
	EventSchedule EventType = "broadcast_schedule"
	EventReminder EventType = "broadcast_reminder"
	EventLive     EventType = "broadcast_live"
)

// NotificationEvent describes one lifecycle transition for a channel's video.
// It is handed to the event bus and never persisted.
type NotificationEvent struct {
	Type      EventType
	ChannelID string
	OwnerKey  string
	Video     *VideoSnapshot
}

// DisplayTimeLayout is how scheduled/actual start times are rendered in
// outbound event payloads.
const DisplayTimeLayout = "2006-01-02 3:04PM (MST)"
