package tracker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/live-notify/youtube-broadcast-tracker-go/internal/config"
	"github.com/live-notify/youtube-broadcast-tracker-go/pkg/logger"
)

// Runner drives the tracker's periodic work: the reconciliation tick, the
// state snapshot, lease renewal, and the one-shot delayed initial
// subscribe. The initial subscribe is deferred so the webhook endpoint is
// already serving when the hub attempts its verification handshake.
type Runner struct {
	tracker *Tracker
	cfg     config.TrackerConfig
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewRunner creates a runner; nothing starts until Start is called.
func NewRunner(t *Tracker, cfg config.TrackerConfig) *Runner {
	return &Runner{tracker: t, cfg: cfg}
}

// Start launches the background loops.
func (r *Runner) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	r.loop(ctx, r.cfg.TickInterval, "tick", r.tracker.Tick)
	r.loop(ctx, r.cfg.SnapshotInterval, "snapshot", func(ctx context.Context) {
		if err := r.tracker.Snapshot(ctx); err != nil {
			logger.Log.Error("state snapshot failed", zap.Error(err))
		}
	})
	r.loop(ctx, r.cfg.RenewalInterval, "renewal", r.tracker.Renew)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		select {
		case <-ctx.Done():
		case <-time.After(r.cfg.InitSubscribeWait):
			r.tracker.InitialSubscribe(ctx)
		}
	}()

	logger.Log.Info("tracker runner started",
		zap.Duration("tick_interval", r.cfg.TickInterval),
		zap.Duration("snapshot_interval", r.cfg.SnapshotInterval),
		zap.Duration("renewal_interval", r.cfg.RenewalInterval),
	)
}

// Stop cancels the loops, waits for in-flight runs, and flushes a final
// state snapshot.
func (r *Runner) Stop(ctx context.Context) {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()

	if err := r.tracker.Snapshot(ctx); err != nil {
		logger.Log.Error("final state snapshot failed", zap.Error(err))
	} else {
		logger.Log.Info("final state snapshot written")
	}
}

func (r *Runner) loop(ctx context.Context, interval time.Duration, name string, run func(context.Context)) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				logger.Log.Debug("loop stopped", zap.String("loop", name))
				return
			case <-ticker.C:
				run(ctx)
			}
		}
	}()
}
