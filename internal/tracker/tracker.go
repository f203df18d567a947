// Package tracker implements the channel-tracking and reconciliation
// engine: subscription lifecycle, push/pull hybrid ingestion, the broadcast
// state machine, reminder scheduling, and state snapshot/restore.
package tracker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/live-notify/youtube-broadcast-tracker-go/internal/bus"
	"github.com/live-notify/youtube-broadcast-tracker-go/internal/config"
	"github.com/live-notify/youtube-broadcast-tracker-go/internal/hub"
	"github.com/live-notify/youtube-broadcast-tracker-go/internal/metrics"
	"github.com/live-notify/youtube-broadcast-tracker-go/internal/model"
	"github.com/live-notify/youtube-broadcast-tracker-go/internal/parser"
	"github.com/live-notify/youtube-broadcast-tracker-go/internal/registry"
	"github.com/live-notify/youtube-broadcast-tracker-go/internal/store"
	"github.com/live-notify/youtube-broadcast-tracker-go/pkg/logger"
)

var (
	// ErrConflict is returned when subscribing a channel that is already
	// tracked.
	ErrConflict = errors.New("channel already tracked")

	// ErrNotTracked is returned when unsubscribing a channel that is not
	// tracked.
	ErrNotTracked = errors.New("channel not tracked")
)

// Resolver refreshes a video snapshot from the metadata API.
type Resolver interface {
	Resolve(ctx context.Context, videoID string) (*model.VideoSnapshot, error)
}

// HubClient issues push subscription requests.
type HubClient interface {
	Subscribe(ctx context.Context, channelID string) error
	Unsubscribe(ctx context.Context, channelID string) error
}

// Deps wires the tracker's collaborators.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type Deps struct {
	Resolver Resolver
	Hub      HubClient
	Bus      bus.Publisher
	Registry registry.Registry
	Store    store.KV
	Events   config.EventsConfig
	Now      func() time.Time
}

// Tracker owns the tracked-channel map and the published-video dedup set.
//
// Webhook ingestion, the periodic tick, and fired reminder callbacks are
// concurrent triggers over the same state; one mutex serializes every
// mutation. Network calls (resolver, hub, bus) are never made while the
// lock is held: resolve first, then apply under lock.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type Tracker struct {
	mu        sync.Mutex
	channels  map[string][]*model.VideoSnapshot
	published map[string]*model.VideoSnapshot

	resolver  Resolver
	hub       HubClient
	bus       bus.Publisher
	registry  registry.Registry
	store     store.KV
	events    config.EventsConfig
	now       func() time.Time
	reminders *ReminderScheduler

	tickBusy  sync.Mutex
	renewBusy sync.Mutex
}

// New constructs a tracker with empty state.
func New(d Deps) *Tracker {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		channels:  make(map[string][]*model.VideoSnapshot),
		published: make(map[string]*model.VideoSnapshot),
		resolver:  d.Resolver,
		hub:       d.Hub,
		bus:       d.Bus,
		registry:  d.Registry,
		store:     d.Store,
		events:    d.Events,
		now:       now,
		reminders: NewReminderScheduler(),
	}
}

// Tracked reports whether the channel has an active push subscription.
func (t *Tracker) Tracked(channelID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.channels[channelID]
	return ok
}

// Subscribe registers an empty pending set for the channel and issues the
// hub subscribe request. The tracking entry is registered before the hub
// call so the hub's verification handshake finds it.
func (t *Tracker) Subscribe(ctx context.Context, channelID string) error {
	t.mu.Lock()
	if _, ok := t.channels[channelID]; ok {
		t.mu.Unlock()
		return ErrConflict
	}
	t.channels[channelID] = []*model.VideoSnapshot{}
	metrics.TrackedChannels.Set(float64(len(t.channels)))
	t.mu.Unlock()

	logger.Log.Info("subscribing channel", zap.String("channel_id", channelID))
	return t.hub.Subscribe(ctx, channelID)
}

// Unsubscribe cancels the channel's reminder jobs, optionally drops its
// tracking entry, and issues the hub unsubscribe request. Reminders are
// cancelled synchronously before the hub call so a fired reminder cannot
// race the removed entry.
func (t *Tracker) Unsubscribe(ctx context.Context, channelID string, remove bool) error {
	t.mu.Lock()
	if _, ok := t.channels[channelID]; !ok {
		t.mu.Unlock()
		return ErrNotTracked
	}
	t.reminders.CancelChannel(channelID)
	if remove {
		delete(t.channels, channelID)
	}
	metrics.TrackedChannels.Set(float64(len(t.channels)))
	t.mu.Unlock()

	logger.Log.Info("unsubscribing channel",
		zap.String("channel_id", channelID),
		zap.Bool("remove", remove),
	)
	return t.hub.Unsubscribe(ctx, channelID)
}

// UpdateChannel handles a registry update hook: the old channel id is
// unsubscribed, the new one subscribed.
func (t *Tracker) UpdateChannel(ctx context.Context, oldID, newID string) error {
	if err := t.Unsubscribe(ctx, oldID, true); err != nil && !errors.Is(err, hub.ErrHubRejected) {
		return err
	}
	return t.Subscribe(ctx, newID)
}

// Renew re-issues the hub subscribe request for every tracked channel. It
// never overlaps a previous run still in flight.
func (t *Tracker) Renew(ctx context.Context) {
	if !t.renewBusy.TryLock() {
		logger.Log.Warn("previous renewal still running, skipping")
		return
	}
	defer t.renewBusy.Unlock()

	t.mu.Lock()
	ids := make([]string, 0, len(t.channels))
	for id := range t.channels {
		ids = append(ids, id)
	}
	t.mu.Unlock()

	for _, id := range ids {
		if err := t.hub.Subscribe(ctx, id); err != nil {
			logger.Log.Warn("lease renewal failed",
				zap.String("channel_id", id),
				zap.Error(err),
			)
		}
	}
	logger.Log.Info("lease renewal completed", zap.Int("channels", len(ids)))
}

// InitialSubscribe subscribes every channel the registry knows about. It is
// meant to run as a one-shot delayed task once the webhook endpoint is
// reachable, so the hub's verification handshake can be answered.
func (t *Tracker) InitialSubscribe(ctx context.Context) {
	ids, err := t.registry.ChannelIDs(ctx)
	if err != nil {
		logger.Log.Error("failed to list registry channels", zap.Error(err))
		return
	}

	logger.Log.Info("subscribing registered channels", zap.Strings("channel_ids", ids))
	for _, id := range ids {
		err := t.Subscribe(ctx, id)
		if errors.Is(err, ErrConflict) {
			// Already tracked from a restored snapshot; refresh the hub
			// lease anyway.
			err = t.hub.Subscribe(ctx, id)
		}
		if err != nil && !errors.Is(err, hub.ErrHubRejected) {
			logger.Log.Warn("initial subscribe failed",
				zap.String("channel_id", id),
				zap.Error(err),
			)
		}
	}
	logger.Log.Info("initial subscribe finished")
}

// Verify answers the hub's verification handshake. A subscribe is
// confirmed only for channels currently tracked, an unsubscribe only for
// channels no longer tracked.
func (t *Tracker) Verify(mode hub.Mode, channelID string) bool {
	tracked := t.Tracked(channelID)
	accept := (mode == hub.ModeSubscribe && tracked) ||
		(mode == hub.ModeUnsubscribe && !tracked)

	if accept {
		logger.Log.Info("accepting hub verification",
			zap.String("mode", string(mode)),
			zap.String("channel_id", channelID),
		)
	} else {
		logger.Log.Info("rejecting hub verification",
			zap.String("mode", string(mode)),
			zap.String("channel_id", channelID),
		)
	}
	return accept
}

// HandleNotification reconciles one parsed feed entry against tracked
// state. Failures degrade to "skip this delivery": push delivery repeats
// and the tick re-reconciles, so nothing is surfaced to the hub.
func (t *Tracker) HandleNotification(ctx context.Context, n parser.Notification) {
	t.mu.Lock()
	_, tracked := t.channels[n.ChannelID]
	var prior *model.VideoSnapshot
	for _, v := range t.channels[n.ChannelID] {
		if v.ID == n.VideoID {
			prior = v.Clone()
			break
		}
	}
	t.mu.Unlock()

	logger.Log.Info("reconciling notification",
		zap.String("video_id", n.VideoID),
		zap.String("channel_id", n.ChannelID),
		zap.Bool("tracked", tracked),
	)

	video, err := t.resolver.Resolve(ctx, n.VideoID)
	if err != nil {
		// Push delivery is at-least-once and the tick re-queries, so a
		// failed resolution costs nothing but this delivery.
		logger.Log.Warn("query failure, ignoring notification",
			zap.String("video_id", n.VideoID),
			zap.Error(err),
		)
		metrics.NotificationsReceived.WithLabelValues("resolve_failed").Inc()
		return
	}

	// The feed entry owns identity fields; the API owns the rest.
	if n.Title != "" {
		video.Title = n.Title
	}
	if n.Link != "" {
		video.Link = n.Link
	}

	if prior != nil && prior.Title == video.Title &&
		timeEqual(prior.ScheduledStart, video.ScheduledStart) {
		logger.Log.Debug("duplicate notification, ignoring",
			zap.String("video_id", n.VideoID),
		)
		metrics.NotificationsReceived.WithLabelValues("duplicate").Inc()
		return
	}

	switch {
	case video.Kind == model.KindPlain:
		t.handlePlain(ctx, n.ChannelID, video)
	case video.ActualStart == nil:
		t.handlePendingBroadcast(ctx, n.ChannelID, video, tracked)
	default:
		// A broadcast already live is not expected from a push
		// notification; the LIVE transition belongs to the tick. Refresh
		// the stored copy and move on.
		t.refreshPending(n.ChannelID, video)
		metrics.NotificationsReceived.WithLabelValues("already_live").Inc()
	}
}

// handlePlain emits PUBLISH at most once per video id, ever.
func (t *Tracker) handlePlain(ctx context.Context, channelID string, video *model.VideoSnapshot) {
	t.mu.Lock()
	_, seen := t.published[video.ID]
	if !seen {
		t.published[video.ID] = video.Clone()
	}
	t.mu.Unlock()

	if seen {
		metrics.NotificationsReceived.WithLabelValues("duplicate").Inc()
		return
	}
	metrics.NotificationsReceived.WithLabelValues("processed").Inc()
	t.emit(ctx, &model.NotificationEvent{
		Type:      model.EventPublish,
		ChannelID: channelID,
		Video:     video,
	})
}

// handlePendingBroadcast stores the refreshed snapshot, arms the reminder,
// and emits SCHEDULE. A broadcast without a scheduled time cannot be
// tracked and is dropped.
func (t *Tracker) handlePendingBroadcast(ctx context.Context, channelID string, video *model.VideoSnapshot, tracked bool) {
	if video.ScheduledStart == nil {
		logger.Log.Warn("broadcast missing scheduled start time, dropping",
			zap.String("video_id", video.ID),
		)
		metrics.NotificationsReceived.WithLabelValues("malformed").Inc()
		return
	}

	if tracked {
		t.mu.Lock()
		if _, still := t.channels[channelID]; still {
			t.replaceLocked(channelID, video.Clone())
			t.armReminderLocked(channelID, video)
		}
		t.mu.Unlock()
		metrics.NotificationsReceived.WithLabelValues("processed").Inc()
	} else {
		// Notifications can arrive for channels we never subscribed; the
		// event still goes out but no state is kept for them.
		metrics.NotificationsReceived.WithLabelValues("untracked").Inc()
	}

	t.emit(ctx, &model.NotificationEvent{
		Type:      model.EventSchedule,
		ChannelID: channelID,
		Video:     video,
	})
}

// refreshPending updates an existing pending entry in place without
// emitting anything. Once the entry carries an actual start its reminder
// job is dropped; a reminder for a stream already live is noise.
func (t *Tracker) refreshPending(channelID string, video *model.VideoSnapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, v := range t.channels[channelID] {
		if v.ID == video.ID {
			t.channels[channelID][i] = video.Clone()
			if video.ActualStart != nil {
				t.reminders.Cancel(channelID, video.ID)
			}
			return
		}
	}
}

// replaceLocked performs an identity-keyed replace in a channel's pending
// set; the set never holds two entries for one video id. Caller holds the
// lock.
func (t *Tracker) replaceLocked(channelID string, video *model.VideoSnapshot) {
	videos := t.channels[channelID]
	for i, v := range videos {
		if v.ID == video.ID {
			videos[i] = video
			return
		}
	}
	t.channels[channelID] = append(videos, video)
}

// armReminderLocked replaces any pending reminder job for the video with
// one firing at its scheduled start. Caller holds the lock.
func (t *Tracker) armReminderLocked(channelID string, video *model.VideoSnapshot) {
	reminder := video.Clone()
	t.reminders.Arm(channelID, video.ID, *video.ScheduledStart, func() {
		t.emit(context.Background(), &model.NotificationEvent{
			Type:      model.EventReminder,
			ChannelID: channelID,
			Video:     reminder,
		})
	})
}

// emit looks up the owning entity, applies the per-category enable flags,
// and hands the event to the bus. Called without the lock held.
func (t *Tracker) emit(ctx context.Context, n *model.NotificationEvent) {
	if !t.eventEnabled(n.Type) {
		logger.Log.Debug("event category disabled, skipping",
			zap.String("event", string(n.Type)),
		)
		return
	}

	owner, err := t.registry.Lookup(ctx, n.ChannelID)
	if err != nil {
		if !errors.Is(err, registry.ErrOwnerNotFound) {
			logger.Log.Warn("owner lookup failed",
				zap.String("channel_id", n.ChannelID),
				zap.Error(err),
			)
		}
		owner = n.ChannelID
	}
	n.OwnerKey = owner

	if err := t.bus.Publish(ctx, bus.FromNotification(n)); err != nil {
		logger.Log.Error("failed to publish event",
			zap.String("event", string(n.Type)),
			zap.String("channel_id", n.ChannelID),
			zap.String("video_id", n.Video.ID),
			zap.Error(err),
		)
		return
	}

	metrics.EventsEmitted.WithLabelValues(string(n.Type)).Inc()
	logger.Log.Info("event emitted",
		zap.String("event", string(n.Type)),
		zap.String("channel_id", n.ChannelID),
		zap.String("video_id", n.Video.ID),
	)
}

func (t *Tracker) eventEnabled(e model.EventType) bool {
	switch e {
	case model.EventPublish:
		return t.events.PublishEnabled
	case model.EventSchedule:
		return t.events.ScheduleEnabled
	case model.EventReminder:
		return t.events.ReminderEnabled
	case model.EventLive:
		return t.events.LiveEnabled
	}
	return false
}

func timeEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
