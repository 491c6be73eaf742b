package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"agendacerto/internal/empresa/repofakes"
	"agendacerto/internal/googlecal"
	"agendacerto/internal/gtoken"
	"agendacerto/internal/model"
	"agendacerto/internal/ttlstore"
)

type noopRefresher struct{}

func (noopRefresher) Refresh(context.Context, string) (googlecal.Bundle, error) {
	return googlecal.Bundle{}, nil
}

func newShareFixture(t *testing.T, calendarURL string) (*ShareHandler, *ttlstore.MemoryStore, uint) {
	t.Helper()

	repo := repofakes.New()
	emp := &model.Empresa{UserID: 1, Nome: "Barbearia", Slug: "barbearia"}
	require.NoError(t, repo.CreateEmpresa(context.Background(), emp))
	require.NoError(t, repo.SaveBundle(context.Background(), emp.ID, googlecal.Bundle{
		AccessToken:  "live-token",
		RefreshToken: "refresh",
		Expiry:       time.Now().Add(time.Hour),
	}))

	shares := ttlstore.NewMemoryStore()
	tokens := gtoken.NewManager(repo, noopRefresher{}, zap.NewNop())
	cal := googlecal.NewClient(googlecal.WithEndpoint(calendarURL))
	return NewShareHandler(shares, tokens, cal, 24*time.Hour), shares, emp.ID
}

func shareContext(e *echo.Echo, method, target string, empresaID uint) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if empresaID != 0 {
		c.Set("empresa_id", empresaID)
	}
	return c, rec
}

func TestShare_CreateValidateFetchWindow(t *testing.T) {
	calSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{
				{
					"id":      "ev1",
					"summary": "Corte",
					"start":   map[string]string{"dateTime": time.Now().Add(2 * time.Hour).Format(time.RFC3339)},
					"end":     map[string]string{"dateTime": time.Now().Add(3 * time.Hour).Format(time.RFC3339)},
				},
			},
		})
	}))
	defer calSrv.Close()

	e := echo.New()
	h, _, empID := newShareFixture(t, calSrv.URL)

	c, rec := shareContext(e, http.MethodPost, "/api/calendar/share", empID)
	require.NoError(t, h.Create(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Len(t, created.Token, 64, "token must be 256 bits of hex")
	require.WithinDuration(t, time.Now().Add(24*time.Hour), created.ExpiresAt, time.Minute)

	c, rec = shareContext(e, http.MethodGet, "/agenda/validate?token="+created.Token, 0)
	require.NoError(t, h.Validate(c))
	require.Equal(t, http.StatusOK, rec.Code)

	c, rec = shareContext(e, http.MethodGet, "/agenda/events?token="+created.Token, 0)
	require.NoError(t, h.Events(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var page struct {
		Events []googlecal.Event `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Events, 1)
	require.Equal(t, "Corte", page.Events[0].Title)
}

func TestShare_UnknownTokenIsNotFound(t *testing.T) {
	e := echo.New()
	h, _, _ := newShareFixture(t, "http://unused.invalid")

	c, rec := shareContext(e, http.MethodGet, "/agenda/validate?token=deadbeef", 0)
	require.NoError(t, h.Validate(c))
	require.Equal(t, http.StatusNotFound, rec.Code)

	c, rec = shareContext(e, http.MethodGet, "/agenda/events?token=deadbeef", 0)
	require.NoError(t, h.Events(c))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestShare_ExpiredTokenIsGoneThenNotFound(t *testing.T) {
	e := echo.New()
	h, shares, _ := newShareFixture(t, "http://unused.invalid")

	shares.Put("stale-token", "old-access", -time.Minute)

	c, rec := shareContext(e, http.MethodGet, "/agenda/events?token=stale-token", 0)
	require.NoError(t, h.Events(c))
	require.Equal(t, http.StatusGone, rec.Code, "first read of an expired token reports 410")

	c, rec = shareContext(e, http.MethodGet, "/agenda/events?token=stale-token", 0)
	require.NoError(t, h.Events(c))
	require.Equal(t, http.StatusNotFound, rec.Code, "the expired entry is deleted eagerly")
}

func TestShare_RevokeDeletesToken(t *testing.T) {
	e := echo.New()
	h, shares, _ := newShareFixture(t, "http://unused.invalid")

	shares.Put("tok", "access", time.Hour)

	c, rec := shareContext(e, http.MethodDelete, "/api/calendar/share/tok", 1)
	c.SetParamNames("token")
	c.SetParamValues("tok")
	require.NoError(t, h.Revoke(c))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Zero(t, shares.Len())
}
