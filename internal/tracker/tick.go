package tracker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/live-notify/youtube-broadcast-tracker-go/internal/metrics"
	"github.com/live-notify/youtube-broadcast-tracker-go/internal/model"
	"github.com/live-notify/youtube-broadcast-tracker-go/pkg/logger"
)

const (
	// tickLeadWindow is how long before the scheduled start the tick
	// begins re-querying a pending broadcast.
	tickLeadWindow = 10 * time.Minute

	// liveFreshnessWindow bounds how stale an observed actual start may be
	// and still produce a LIVE event; anything older went live during an
	// outage and is silently resolved.
	liveFreshnessWindow = 3 * time.Hour
)

type pendingPair struct {
	channelID string
	video     *model.VideoSnapshot
}

type removal struct {
	channelID string
	videoID   string
	reason    string
}

// Tick is the periodic reconciliation pass. It re-queries every pending
// broadcast near or past its scheduled start, emits LIVE for those that
// went live within the freshness window, and drops resolved, unreachable,
// or corrupt entries. Removals are collected during the scan and applied
// afterwards, never mid-iteration. A tick that is still running causes the
// next one to be skipped.
func (t *Tracker) Tick(ctx context.Context) {
	if !t.tickBusy.TryLock() {
		logger.Log.Warn("previous tick still running, skipping")
		return
	}
	defer t.tickBusy.Unlock()

	t.mu.Lock()
	pairs := make([]pendingPair, 0)
	for channelID, videos := range t.channels {
		for _, v := range videos {
			pairs = append(pairs, pendingPair{channelID: channelID, video: v.Clone()})
		}
	}
	t.mu.Unlock()

	var removals []removal
	var live []*model.NotificationEvent

	for _, p := range pairs {
		now := t.now()
		v := p.video

		if v.ScheduledStart == nil {
			// A pending broadcast always has a scheduled time; a missing
			// one means the entry is corrupt.
			logger.Log.Warn("pending broadcast has no scheduled start time, deleting",
				zap.String("video_id", v.ID),
				zap.String("channel_id", p.channelID),
			)
			removals = append(removals, removal{p.channelID, v.ID, "corrupt"})
			continue
		}

		if now.Sub(*v.ScheduledStart) < -tickLeadWindow {
			// Still well ahead of the scheduled start.
			continue
		}

		refreshed, err := t.resolver.Resolve(ctx, v.ID)
		if err != nil {
			// Give up on an unreachable resource instead of retrying it
			// inside every tick.
			logger.Log.Warn("video query failure, deleting",
				zap.String("video_id", v.ID),
				zap.Error(err),
			)
			removals = append(removals, removal{p.channelID, v.ID, "unreachable"})
			continue
		}

		if refreshed.ActualStart == nil {
			// Scheduled but not live yet; leave untouched.
			continue
		}

		// Resolved: at most one LIVE per video, only while fresh.
		if now.Sub(*refreshed.ActualStart) < liveFreshnessWindow {
			merged := v.Clone()
			merged.Description = refreshed.Description
			merged.Thumbnail = refreshed.Thumbnail
			if refreshed.ScheduledStart != nil {
				merged.ScheduledStart = refreshed.ScheduledStart
			}
			merged.ActualStart = refreshed.ActualStart
			live = append(live, &model.NotificationEvent{
				Type:      model.EventLive,
				ChannelID: p.channelID,
				Video:     merged,
			})
		} else {
			logger.Log.Info("broadcast went live outside freshness window, resolving silently",
				zap.String("video_id", v.ID),
				zap.Time("actual_start", *refreshed.ActualStart),
			)
		}
		removals = append(removals, removal{p.channelID, v.ID, "resolved"})
	}

	t.mu.Lock()
	for _, r := range removals {
		t.removeLocked(r.channelID, r.videoID)
		t.reminders.Cancel(r.channelID, r.videoID)
		metrics.TickRemovals.WithLabelValues(r.reason).Inc()
	}
	t.mu.Unlock()

	for _, n := range live {
		t.emit(ctx, n)
	}
}

// removeLocked drops one video from a channel's pending set. Caller holds
// the lock.
func (t *Tracker) removeLocked(channelID, videoID string) {
	videos, ok := t.channels[channelID]
	if !ok {
		return
	}
	for i, v := range videos {
		if v.ID == videoID {
			t.channels[channelID] = append(videos[:i], videos[i+1:]...)
			return
		}
	}
}
