package googlecal

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"agendacerto/pkg/config"
)

func TestAuthCodeURL_CarriesPKCEChallenge(t *testing.T) {
	o := NewOAuth(&config.GoogleConfig{
		ClientID:    "client-1",
		RedirectURL: "https://app.example.com/google/callback",
		Scope:       "https://www.googleapis.com/auth/calendar",
	})

	verifier := NewVerifier()
	u, err := url.Parse(o.AuthCodeURL("state-1", verifier))
	require.NoError(t, err)

	q := u.Query()
	require.Equal(t, "S256", q.Get("code_challenge_method"))
	require.Equal(t, oauth2.S256ChallengeFromVerifier(verifier), q.Get("code_challenge"))
	require.Equal(t, "offline", q.Get("access_type"))
	require.Equal(t, "consent", q.Get("prompt"))
	require.Equal(t, "state-1", q.Get("state"))
}

func TestBundleExpiry(t *testing.T) {
	now := time.Now()
	b := Bundle{Expiry: now.Add(5 * time.Minute)}
	require.False(t, b.Expired(now))
	require.True(t, b.Expired(now.Add(5*time.Minute)))
	require.True(t, b.ExpiresWithin(now, 10*time.Minute))
	require.False(t, b.ExpiresWithin(now, time.Minute))

	require.False(t, Bundle{}.Expired(now), "a zero expiry never counts as expired")
}
