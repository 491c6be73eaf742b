package gtoken

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"agendacerto/internal/googlecal"
)

func TestBackgroundRefresher_SweepsAndStops(t *testing.T) {
	store := newFakeStore()
	store.SaveBundle(context.Background(), 1, googlecal.Bundle{
		AccessToken:  "stale",
		RefreshToken: "rt-1",
		Expiry:       time.Now().Add(time.Minute),
	})

	ref := &fakeRefresher{bundle: googlecal.Bundle{
		AccessToken:  "fresh",
		RefreshToken: "rt-1",
		Expiry:       time.Now().Add(time.Hour),
	}}
	m := NewManager(store, ref, zap.NewNop())

	r := NewBackgroundRefresher(m, store, 5*time.Millisecond, 10*time.Minute, zap.NewNop())
	r.Start()

	require.Eventually(t, func() bool { return ref.callCount() >= 1 },
		time.Second, 5*time.Millisecond, "the loop must sweep expiring bundles")

	stopped := make(chan struct{})
	go func() {
		r.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not terminate the loop")
	}

	b, err := m.Bundle(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "fresh", b.AccessToken)
}
