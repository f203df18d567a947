package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/live-notify/youtube-broadcast-tracker-go/internal/metrics"
	"github.com/live-notify/youtube-broadcast-tracker-go/internal/model"
	"github.com/live-notify/youtube-broadcast-tracker-go/internal/store"
	"github.com/live-notify/youtube-broadcast-tracker-go/pkg/logger"
)

// State record names. Each is an independent blob; either may be absent on
// a fresh deployment.
const (
	liveStateKey  = "youtube_live_state"
	videoStateKey = "youtube_video_state"
)

type videoStateRecord struct {
	Videos []model.PersistedVideo `json:"videos"`
}

// Snapshot serializes the tracked-channel map and the published-video set
// into their two persisted records.
func (t *Tracker) Snapshot(ctx context.Context) error {
	t.mu.Lock()
	liveState := make(map[string][]model.PersistedVideo, len(t.channels))
	for channelID, videos := range t.channels {
		dumps := make([]model.PersistedVideo, 0, len(videos))
		for _, v := range videos {
			dumps = append(dumps, v.Dump())
		}
		liveState[channelID] = dumps
	}
	videoState := videoStateRecord{Videos: make([]model.PersistedVideo, 0, len(t.published))}
	for _, v := range t.published {
		videoState.Videos = append(videoState.Videos, v.Dump())
	}
	t.mu.Unlock()

	liveBlob, err := json.Marshal(liveState)
	if err != nil {
		return fmt.Errorf("marshal live state: %w", err)
	}
	videoBlob, err := json.Marshal(videoState)
	if err != nil {
		return fmt.Errorf("marshal video state: %w", err)
	}

	if err := t.store.Set(ctx, liveStateKey, string(liveBlob)); err != nil {
		return err
	}
	return t.store.Set(ctx, videoStateKey, string(videoBlob))
}

// Restore loads both records, tolerating either being absent, and rebuilds
// in-memory state. Every restored pending broadcast is re-resolved to
// refresh live data; those that still lack an actual start are re-inserted
// and get their reminder job re-armed. The published set is restored
// verbatim.
func (t *Tracker) Restore(ctx context.Context) error {
	liveState := make(map[string][]model.PersistedVideo)
	if raw, err := t.store.Get(ctx, liveStateKey); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		logger.Log.Warn("missing live state record, starting empty")
	} else if err := json.Unmarshal([]byte(raw), &liveState); err != nil {
		return fmt.Errorf("unmarshal live state: %w", err)
	}

	var videoState videoStateRecord
	if raw, err := t.store.Get(ctx, videoStateKey); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		logger.Log.Warn("missing video state record, starting empty")
	} else if err := json.Unmarshal([]byte(raw), &videoState); err != nil {
		return fmt.Errorf("unmarshal video state: %w", err)
	}

	for channelID, dumps := range liveState {
		t.mu.Lock()
		if _, ok := t.channels[channelID]; !ok {
			t.channels[channelID] = []*model.VideoSnapshot{}
		}
		t.mu.Unlock()

		for _, dump := range dumps {
			video, err := model.Load(dump)
			if err != nil {
				logger.Log.Warn("dropping unreadable persisted video",
					zap.String("video_id", dump.VideoID),
					zap.Error(err),
				)
				continue
			}
			t.restorePending(ctx, channelID, video)
		}
	}

	for _, dump := range videoState.Videos {
		video, err := model.Load(dump)
		if err != nil {
			logger.Log.Warn("dropping unreadable published video",
				zap.String("video_id", dump.VideoID),
				zap.Error(err),
			)
			continue
		}
		t.mu.Lock()
		t.published[video.ID] = video
		t.mu.Unlock()
	}

	t.mu.Lock()
	metrics.TrackedChannels.Set(float64(len(t.channels)))
	t.mu.Unlock()

	return nil
}

// restorePending refreshes one persisted broadcast and re-arms it if it is
// still waiting for its live transition. A resolution failure keeps the
// stored copy rather than losing tracked state on a flaky restart.
func (t *Tracker) restorePending(ctx context.Context, channelID string, video *model.VideoSnapshot) {
	refreshed, err := t.resolver.Resolve(ctx, video.ID)
	if err != nil {
		logger.Log.Warn("could not refresh restored broadcast, keeping stored copy",
			zap.String("video_id", video.ID),
			zap.Error(err),
		)
	} else {
		video.Description = refreshed.Description
		video.Thumbnail = refreshed.Thumbnail
		if refreshed.ScheduledStart != nil {
			video.ScheduledStart = refreshed.ScheduledStart
		}
		video.ActualStart = refreshed.ActualStart
	}

	if video.ActualStart != nil {
		// Went live while we were down; the stored entry is resolved.
		logger.Log.Info("restored broadcast already live, dropping",
			zap.String("video_id", video.ID),
		)
		return
	}
	if video.ScheduledStart == nil {
		logger.Log.Warn("restored broadcast has no scheduled start time, dropping",
			zap.String("video_id", video.ID),
		)
		return
	}

	logger.Log.Debug("restored pending broadcast",
		zap.String("video_id", video.ID),
		zap.String("channel_id", channelID),
	)

	t.mu.Lock()
	t.replaceLocked(channelID, video)
	t.armReminderLocked(channelID, video)
	t.mu.Unlock()
}
