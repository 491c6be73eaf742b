package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"agendacerto/internal/empresa"
	"agendacerto/internal/empresa/repofakes"
	"agendacerto/internal/googlecal"
	"agendacerto/internal/gtoken"
	"agendacerto/internal/model"
	"agendacerto/internal/n8n"
	"agendacerto/internal/ttlstore"
	"agendacerto/pkg/config"
	"agendacerto/prometheus"
)

type googleFixture struct {
	handler *GoogleHandler
	repo    *repofakes.FakeRepository
	states  *ttlstore.MemoryStore
	emp     *model.Empresa
}

func newGoogleFixture(t *testing.T, tokenURL, n8nURL string) *googleFixture {
	t.Helper()

	repo := repofakes.New()
	emp := &model.Empresa{UserID: 1, Nome: "Barbearia", Slug: "barbearia"}
	require.NoError(t, repo.CreateEmpresa(context.Background(), emp))

	oauth := googlecal.NewOAuth(&config.GoogleConfig{
		ClientID:     "client-1",
		ClientSecret: "secret",
		RedirectURL:  "http://app.test/google/callback",
		Scope:        "https://www.googleapis.com/auth/calendar",
	}, googlecal.WithAuthEndpoint(tokenURL+"/auth", tokenURL+"/token"))

	svc := empresa.NewService(repo)
	tokens := gtoken.NewManager(repo, noopRefresher{}, zap.NewNop())
	prov := n8n.NewProvisioner(n8n.NewClientWith(n8nURL, "key", nil), repo, "tpl-1", "", zap.NewNop())
	states := ttlstore.NewMemoryStore()

	h := NewGoogleHandler(oauth, tokens, svc, prov, states, "http://app.test", zap.NewNop())
	return &googleFixture{handler: h, repo: repo, states: states, emp: emp}
}

func newFakeTokenServer() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at-1","refresh_token":"rt-1","token_type":"Bearer","expires_in":3600}`))
	}))
}

func newFakeN8NServer() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message":"unavailable"}`))
	}))
}

func TestCallback_ReconnectDoesNotDriftGauge(t *testing.T) {
	tokenSrv := newFakeTokenServer()
	defer tokenSrv.Close()
	n8nSrv := newFakeN8NServer()
	defer n8nSrv.Close()

	e := echo.New()
	fx := newGoogleFixture(t, tokenSrv.URL, n8nSrv.URL)

	before := testutil.ToFloat64(prometheus.ConnectedEmpresasGauge)

	for i := 0; i < 2; i++ {
		state := fmt.Sprintf("state-%d", i)
		fx.states.Put(state, fmt.Sprintf("%d:verifier-%d", fx.emp.ID, i), time.Minute)

		req := httptest.NewRequest(http.MethodGet,
			"/google/callback?code=auth-code&state="+state, nil)
		rec := httptest.NewRecorder()
		require.NoError(t, fx.handler.Callback(e.NewContext(req, rec)))
		require.Equal(t, http.StatusFound, rec.Code)
		require.Contains(t, rec.Header().Get(echo.HeaderLocation), "google=connected")
	}

	require.Equal(t, before+1, testutil.ToFloat64(prometheus.ConnectedEmpresasGauge),
		"a reconnect must not count the empresa twice")
}

func TestDisconnect_RepeatedCallsDecrementOnce(t *testing.T) {
	tokenSrv := newFakeTokenServer()
	defer tokenSrv.Close()
	n8nSrv := newFakeN8NServer()
	defer n8nSrv.Close()

	e := echo.New()
	fx := newGoogleFixture(t, tokenSrv.URL, n8nSrv.URL)
	require.NoError(t, fx.repo.SaveBundle(context.Background(), fx.emp.ID, googlecal.Bundle{
		AccessToken:  "at-1",
		RefreshToken: "rt-1",
		Expiry:       time.Now().Add(time.Hour),
	}))
	prometheus.ConnectedEmpresasGauge.Inc()

	before := testutil.ToFloat64(prometheus.ConnectedEmpresasGauge)

	for i := 0; i < 2; i++ {
		c, rec := shareContext(e, http.MethodDelete, "/api/google/disconnect", fx.emp.ID)
		require.NoError(t, fx.handler.Disconnect(c))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	require.Equal(t, before-1, testutil.ToFloat64(prometheus.ConnectedEmpresasGauge),
		"disconnecting an already disconnected empresa must not decrement again")
}
