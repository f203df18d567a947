// Package bus carries normalized notification events to the downstream
// event bus.
package bus

import (
	"context"

	"github.com/live-notify/youtube-broadcast-tracker-go/internal/model"
)

// Event is the outbound wire form of one notification.
type Event struct {
	Name    string  `json:"name"`
	Owner   string  `json:"owner"`
	Payload Payload `json:"payload"`
}

// Payload carries the display fields for one event.
type Payload struct {
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	Images             []string `json:"images"`
	Link               string   `json:"link"`
	ScheduledStartTime string   `json:"scheduled_start_time,omitempty"`
	ActualStartTime    string   `json:"actual_start_time,omitempty"`
}

// Publisher hands events to the downstream bus.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

// FromNotification converts an internal notification into its outbound
// form. Broadcast events carry display-formatted start times; the reminder
// and schedule categories never expose an actual start.
func FromNotification(n *model.NotificationEvent) *Event {
	v := n.Video
	e := &Event{
		Name:  string(n.Type),
		Owner: n.OwnerKey,
		Payload: Payload{
			Title:       v.Title,
			Description: v.Description,
			Images:      []string{v.Thumbnail},
			Link:        v.Link,
		},
	}

	if n.Type != model.EventPublish && v.ScheduledStart != nil {
		e.Payload.ScheduledStartTime = v.ScheduledStart.Format(model.DisplayTimeLayout)
	}
	if n.Type == model.EventLive && v.ActualStart != nil {
		e.Payload.ActualStartTime = v.ActualStart.Format(model.DisplayTimeLayout)
	}

	return e
}
