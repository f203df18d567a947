// Package resolver queries the YouTube Data API for a single resource and
// normalizes it into a VideoSnapshot.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	youtube "google.golang.org/api/youtube/v3"

	"github.com/live-notify/youtube-broadcast-tracker-go/internal/model"
	"github.com/live-notify/youtube-broadcast-tracker-go/pkg/logger"
)

var (
	// ErrNotFound is returned when the API response contains no matching
	// item. It is a non-retriable resolution failure: the caller must not
	// retry the same response, only possibly re-resolve later.
	ErrNotFound = errors.New("video not found in API response")
)

const (
	retryBaseDelay = 500 * time.Millisecond
	retryMaxDelay  = 30 * time.Second
)

// Resolver resolves video ids against the YouTube Data API, cycling through
// a pool of API keys so one exhausted credential does not take the process
// down.
type Resolver struct {
	services []*youtube.Service
	cursor   atomic.Uint64
}

// New builds a Resolver with one API client per key. Extra client options
// (custom endpoint, http client) are applied to every client; tests use them
// to point at a stub server.
func New(ctx context.Context, apiKeys []string, extra ...option.ClientOption) (*Resolver, error) {
	if len(apiKeys) == 0 {
		return nil, errors.New("at least one YouTube API key is required")
	}

	services := make([]*youtube.Service, 0, len(apiKeys))
	for _, key := range apiKeys {
		opts := append([]option.ClientOption{option.WithAPIKey(key)}, extra...)
		svc, err := youtube.NewService(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("create YouTube service: %w", err)
		}
		services = append(services, svc)
	}

	return &Resolver{services: services}, nil
}

// next returns the service for the next API key in round-robin order.
func (r *Resolver) next() *youtube.Service {
	n := r.cursor.Add(1)
	return r.services[(n-1)%uint64(len(r.services))]
}

// Resolve fetches snippet and live-streaming details for one video id.
//
// Transient failures (network errors, 5xx, rejected credentials) are retried
// with capped exponential backoff until ctx is cancelled; they are never
// surfaced to the caller. An empty items array is surfaced as ErrNotFound.
func (r *Resolver) Resolve(ctx context.Context, videoID string) (*model.VideoSnapshot, error) {
	delay := retryBaseDelay

	for {
		svc := r.next()
		resp, err := svc.Videos.
			List([]string{"snippet", "liveStreamingDetails"}).
			Id(videoID).
			Context(ctx).
			Do()
		if err == nil {
			if len(resp.Items) == 0 {
				logger.Log.Error("YouTube data API returned no items",
					zap.String("video_id", videoID),
				)
				return nil, ErrNotFound
			}
			return r.buildSnapshot(videoID, resp.Items[0]), nil
		}

		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			switch {
			case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden:
				// Bad or exhausted credential. The next attempt uses the
				// next key in the pool.
				logger.Log.Warn("YouTube API key rejected, cycling",
					zap.Int("status", apiErr.Code),
					zap.String("video_id", videoID),
				)
			case apiErr.Code >= 500:
				logger.Log.Warn("YouTube API server error, retrying",
					zap.Int("status", apiErr.Code),
					zap.String("video_id", videoID),
				)
			default:
				return nil, fmt.Errorf("%w: status %d", ErrNotFound, apiErr.Code)
			}
		} else {
			logger.Log.Warn("YouTube API request failed, retrying",
				zap.Error(err),
				zap.String("video_id", videoID),
			)
		}

		if err := sleep(ctx, jitter(delay)); err != nil {
			return nil, err
		}
		if delay *= 2; delay > retryMaxDelay {
			delay = retryMaxDelay
		}
	}
}

// buildSnapshot maps an API video item onto a snapshot, classifying it as a
// broadcast when live-streaming details are present and normalizing
// timestamps to the local zone.
func (r *Resolver) buildSnapshot(videoID string, item *youtube.Video) *model.VideoSnapshot {
	v := &model.VideoSnapshot{
		ID:   videoID,
		Link: fmt.Sprintf("https://www.youtube.com/watch?v=%s", videoID),
		Kind: model.KindPlain,
	}

	if sn := item.Snippet; sn != nil {
		v.Title = sn.Title
		v.Description = sn.Description + " ..."
		if sn.Thumbnails != nil && sn.Thumbnails.Standard != nil {
			v.Thumbnail = sn.Thumbnails.Standard.Url
		}
	}

	if ls := item.LiveStreamingDetails; ls != nil {
		v.Kind = model.KindBroadcast
		if t, err := time.Parse(time.RFC3339, ls.ScheduledStartTime); err == nil && ls.ScheduledStartTime != "" {
			local := t.In(time.Local)
			v.ScheduledStart = &local
		}
		if t, err := time.Parse(time.RFC3339, ls.ActualStartTime); err == nil && ls.ActualStartTime != "" {
			local := t.In(time.Local)
			v.ActualStart = &local
		}
	}

	return v
}

func jitter(d time.Duration) time.Duration {
	half := int64(d) / 2
	return time.Duration(half + rand.Int63n(int64(d)))
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
