// Package model contains the data models for the broadcast tracking service.
package model

import (
	"fmt"
	"time"
)

// Kind classifies a YouTube resource as a plain upload or a live broadcast.
type Kind string

// Kind constants define the possible resource classifications.
const (
	KindPlain     Kind = "PLAIN"
	KindBroadcast Kind = "BROADCAST"
)

// VideoSnapshot is the last-known state of one video or broadcast resource.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type VideoSnapshot struct {
	ID             string
	Title          string
	Link           string
	Kind           Kind
	Description    string
	Thumbnail      string
	ScheduledStart *time.Time
	ActualStart    *time.Time
}

// Clone returns a deep copy of the snapshot so callers can hold it outside
// the tracker lock without aliasing tracked state.
func (v *VideoSnapshot) Clone() *VideoSnapshot {
	c := *v
	if v.ScheduledStart != nil {
		t := *v.ScheduledStart
		c.ScheduledStart = &t
	}
	if v.ActualStart != nil {
		t := *v.ActualStart
		c.ActualStart = &t
	}
	return &c
}

// PersistedVideo is the serialized form of a VideoSnapshot. Timestamps are
// portable unix-epoch seconds, zero meaning absent.
type PersistedVideo struct {
	VideoID        string `json:"video_id"`
	Title          string `json:"title"`
	Link           string `json:"link"`
	Type           string `json:"type"`
	Description    string `json:"description"`
	Thumbnail      string `json:"thumbnail"`
	ScheduledStart int64  `json:"scheduled_start_time"`
	ActualStart    int64  `json:"actual_start_time"`
}

// Dump converts a snapshot into its persisted form.
func (v *VideoSnapshot) Dump() PersistedVideo {
	p := PersistedVideo{
		VideoID:     v.ID,
		Title:       v.Title,
		Link:        v.Link,
		Type:        string(v.Kind),
		Description: v.Description,
		Thumbnail:   v.Thumbnail,
	}
	if v.ScheduledStart != nil {
		p.ScheduledStart = v.ScheduledStart.Unix()
	}
	if v.ActualStart != nil {
		p.ActualStart = v.ActualStart.Unix()
	}
	return p
}

// Load rebuilds a snapshot from its persisted form.
func Load(p PersistedVideo) (*VideoSnapshot, error) {
	v := &VideoSnapshot{
		ID:          p.VideoID,
		Title:       p.Title,
		Link:        p.Link,
		Description: p.Description,
		Thumbnail:   p.Thumbnail,
	}
	switch Kind(p.Type) {
	case KindPlain, KindBroadcast:
		v.Kind = Kind(p.Type)
	default:
		return nil, fmt.Errorf("unknown resource type %q", p.Type)
	}
	if p.ScheduledStart != 0 {
		t := time.Unix(p.ScheduledStart, 0).In(time.Local)
		v.ScheduledStart = &t
	}
	if p.ActualStart != 0 {
		t := time.Unix(p.ActualStart, 0).In(time.Local)
		v.ActualStart = &t
	}
	return v, nil
}
