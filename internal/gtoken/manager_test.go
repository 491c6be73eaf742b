package gtoken

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"agendacerto/internal/googlecal"
)

type fakeStore struct {
	mu      sync.Mutex
	bundles map[uint]googlecal.Bundle
}

func newFakeStore() *fakeStore {
	return &fakeStore{bundles: make(map[uint]googlecal.Bundle)}
}

func (s *fakeStore) Bundle(_ context.Context, id uint) (googlecal.Bundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bundles[id], nil
}

func (s *fakeStore) SaveBundle(_ context.Context, id uint, b googlecal.Bundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bundles[id] = b
	return nil
}

func (s *fakeStore) ClearBundle(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bundles[id] = googlecal.Bundle{}
	return nil
}

func (s *fakeStore) ExpiringWithin(_ context.Context, window time.Duration) ([]uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uint
	for id, b := range s.bundles {
		if b.RefreshToken != "" && b.ExpiresWithin(time.Now(), window) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type fakeRefresher struct {
	mu     sync.Mutex
	calls  int
	bundle googlecal.Bundle
	err    error
}

func (r *fakeRefresher) Refresh(context.Context, string) (googlecal.Bundle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return googlecal.Bundle{}, r.err
	}
	return r.bundle, nil
}

func (r *fakeRefresher) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func TestAccessToken_ExpiredBundleSchedulesExactlyOneRefresh(t *testing.T) {
	store := newFakeStore()
	fresh := googlecal.Bundle{
		AccessToken:  "fresh-token",
		RefreshToken: "refresh-1",
		Expiry:       time.Now().Add(time.Hour),
	}
	refresher := &fakeRefresher{bundle: fresh}

	m := NewManager(store, refresher, zap.NewNop())

	done := make(chan error, 4)
	m.onRefreshDone = func(_ uint, err error) { done <- err }

	stale := googlecal.Bundle{
		AccessToken:  "stale-token",
		RefreshToken: "refresh-1",
		Expiry:       time.Now().Add(-time.Minute),
	}
	require.NoError(t, store.SaveBundle(context.Background(), 7, stale))

	// Two reads of an expired bundle: the stale token is still served
	// and only one refresh may be scheduled.
	tok, err := m.AccessToken(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, "stale-token", tok)
	_, err = m.AccessToken(context.Background(), 7)
	require.NoError(t, err)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled refresh never completed")
	}

	require.Equal(t, 1, refresher.callCount())

	got, err := store.Bundle(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, "fresh-token", got.AccessToken, "successful refresh replaces the stored bundle")
}

func TestAccessToken_FailedRefreshClearsBundle(t *testing.T) {
	store := newFakeStore()
	refresher := &fakeRefresher{err: errors.New("invalid_grant")}

	m := NewManager(store, refresher, zap.NewNop())

	done := make(chan error, 1)
	m.onRefreshDone = func(_ uint, err error) { done <- err }

	stale := googlecal.Bundle{
		AccessToken:  "stale-token",
		RefreshToken: "revoked",
		Expiry:       time.Now().Add(-time.Minute),
	}
	require.NoError(t, store.SaveBundle(context.Background(), 3, stale))

	_, err := m.AccessToken(context.Background(), 3)
	require.NoError(t, err)

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled refresh never completed")
	}

	got, err := store.Bundle(context.Background(), 3)
	require.NoError(t, err)
	require.Empty(t, got.AccessToken, "failed refresh discards all tokens")
	require.Empty(t, got.RefreshToken)

	_, err = m.AccessToken(context.Background(), 3)
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestRefreshNow_WithoutRefreshToken(t *testing.T) {
	store := newFakeStore()
	m := NewManager(store, &fakeRefresher{}, zap.NewNop())

	_, err := m.RefreshNow(context.Background(), 42)
	require.ErrorIs(t, err, ErrNotConnected)
}
