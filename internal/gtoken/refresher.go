package gtoken

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// BackgroundRefresher proactively renews bundles that expire soon. It is an
// explicit task with a start/stop contract, owned by main.
type BackgroundRefresher struct {
	manager  *Manager
	store    Store
	interval time.Duration
	window   time.Duration
	log      *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewBackgroundRefresher sweeps every interval for bundles expiring within
// window
func NewBackgroundRefresher(m *Manager, store Store, interval, window time.Duration, log *zap.Logger) *BackgroundRefresher {
	return &BackgroundRefresher{
		manager:  m,
		store:    store,
		interval: interval,
		window:   window,
		log:      log,
	}
}

// Start launches the refresh loop. It returns immediately; call Stop to
// shut the loop down.
func (r *BackgroundRefresher) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	go func() {
		defer close(r.done)
		r.Run(ctx)
	}()
}

// Stop cancels the loop and waits for it to finish
func (r *BackgroundRefresher) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
}

// Run executes the refresh loop until ctx is cancelled
func (r *BackgroundRefresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *BackgroundRefresher) sweep(ctx context.Context) {
	ids, err := r.store.ExpiringWithin(ctx, r.window)
	if err != nil {
		r.log.Error("Token refresh sweep failed", zap.Error(err))
		return
	}

	for _, id := range ids {
		if _, err := r.manager.RefreshNow(ctx, id); err != nil {
			r.log.Warn("Proactive token refresh failed", zap.Uint("empresa_id", id), zap.Error(err))
		}
	}
}
