// Package gtoken keeps per-empresa Google token bundles alive. The manager
// is an injected dependency, never a process-global: handlers read access
// tokens through it, and a background refresher proactively renews bundles
// that are about to expire.
package gtoken

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"agendacerto/internal/googlecal"
	"agendacerto/prometheus"
)

// ErrNotConnected is returned when an empresa has no Google token bundle
var ErrNotConnected = errors.New("gtoken: empresa has no google connection")

// Store persists token bundles per empresa
type Store interface {
	Bundle(ctx context.Context, empresaID uint) (googlecal.Bundle, error)
	SaveBundle(ctx context.Context, empresaID uint, b googlecal.Bundle) error
	ClearBundle(ctx context.Context, empresaID uint) error
	ExpiringWithin(ctx context.Context, window time.Duration) ([]uint, error)
}

// Refresher trades a refresh token for a fresh bundle. *googlecal.OAuth
// satisfies it.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (googlecal.Bundle, error)
}

// Manager owns the token read/refresh policy: reads past expiry trigger
// exactly one background refresh; a failed refresh discards the whole
// bundle, forcing the empresa to reconnect.
type Manager struct {
	store     Store
	refresher Refresher
	log       *zap.Logger

	mu       sync.Mutex
	inflight map[uint]struct{}

	now func() time.Time

	// onRefreshDone, when set, is called after a scheduled refresh settles.
	// Tests use it to synchronize with the fire-and-forget goroutine.
	onRefreshDone func(empresaID uint, err error)
}

// NewManager builds a token manager over the given store and refresher
func NewManager(store Store, refresher Refresher, log *zap.Logger) *Manager {
	return &Manager{
		store:     store,
		refresher: refresher,
		log:       log,
		inflight:  make(map[uint]struct{}),
		now:       time.Now,
	}
}

// AccessToken returns the empresa's current access token. When the bundle's
// expiry has passed, the stale token is still returned and a single
// background refresh is scheduled; the next read sees the renewed bundle.
func (m *Manager) AccessToken(ctx context.Context, empresaID uint) (string, error) {
	b, err := m.store.Bundle(ctx, empresaID)
	if err != nil {
		return "", err
	}
	if b.AccessToken == "" {
		return "", ErrNotConnected
	}

	if b.Expired(m.now()) {
		m.scheduleRefresh(empresaID, b.RefreshToken)
	}
	return b.AccessToken, nil
}

// Bundle returns the stored bundle without triggering a refresh
func (m *Manager) Bundle(ctx context.Context, empresaID uint) (googlecal.Bundle, error) {
	return m.store.Bundle(ctx, empresaID)
}

// SaveBundle stores a freshly exchanged bundle for the empresa
func (m *Manager) SaveBundle(ctx context.Context, empresaID uint, b googlecal.Bundle) error {
	return m.store.SaveBundle(ctx, empresaID, b)
}

// RefreshNow refreshes the empresa's bundle synchronously. Success replaces
// the stored bundle; failure clears it.
func (m *Manager) RefreshNow(ctx context.Context, empresaID uint) (googlecal.Bundle, error) {
	b, err := m.store.Bundle(ctx, empresaID)
	if err != nil {
		return googlecal.Bundle{}, err
	}
	if b.RefreshToken == "" {
		return googlecal.Bundle{}, ErrNotConnected
	}
	return m.refresh(ctx, empresaID, b.RefreshToken)
}

// scheduleRefresh fires one background refresh for the empresa. Reads that
// race with an inflight refresh do not schedule another.
func (m *Manager) scheduleRefresh(empresaID uint, refreshToken string) {
	m.mu.Lock()
	if _, busy := m.inflight[empresaID]; busy {
		m.mu.Unlock()
		return
	}
	m.inflight[empresaID] = struct{}{}
	m.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		_, err := m.refresh(ctx, empresaID, refreshToken)

		m.mu.Lock()
		delete(m.inflight, empresaID)
		m.mu.Unlock()

		if m.onRefreshDone != nil {
			m.onRefreshDone(empresaID, err)
		}
	}()
}

func (m *Manager) refresh(ctx context.Context, empresaID uint, refreshToken string) (googlecal.Bundle, error) {
	fresh, err := m.refresher.Refresh(ctx, refreshToken)
	if err != nil {
		// No distinction between transient and revoked-grant failures:
		// the bundle is dropped and the empresa must reconnect.
		prometheus.RecordTokenRefresh("failure")
		m.log.Warn("Google token refresh failed, clearing bundle",
			zap.Uint("empresa_id", empresaID),
			zap.Error(err))
		if clearErr := m.store.ClearBundle(ctx, empresaID); clearErr != nil {
			m.log.Error("Failed to clear token bundle", zap.Uint("empresa_id", empresaID), zap.Error(clearErr))
		}
		return googlecal.Bundle{}, err
	}

	if err := m.store.SaveBundle(ctx, empresaID, fresh); err != nil {
		m.log.Error("Failed to persist refreshed bundle", zap.Uint("empresa_id", empresaID), zap.Error(err))
		return googlecal.Bundle{}, err
	}

	prometheus.RecordTokenRefresh("success")
	m.log.Debug("Google token refreshed", zap.Uint("empresa_id", empresaID), zap.Time("expiry", fresh.Expiry))
	return fresh, nil
}

// Disconnect removes the empresa's bundle
func (m *Manager) Disconnect(ctx context.Context, empresaID uint) error {
	return m.store.ClearBundle(ctx, empresaID)
}
