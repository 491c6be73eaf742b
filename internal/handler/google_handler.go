package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"agendacerto/internal/empresa"
	"agendacerto/internal/googlecal"
	"agendacerto/internal/gtoken"
	"agendacerto/internal/middleware"
	"agendacerto/internal/n8n"
	"agendacerto/internal/ttlstore"
	"agendacerto/pkg/logger"
	"agendacerto/prometheus"
)

// stateTTL bounds how long an OAuth consent roundtrip may take
const stateTTL = 10 * time.Minute

// GoogleHandler drives the Google Calendar OAuth lifecycle: consent URL,
// callback exchange, refresh, status and disconnect.
type GoogleHandler struct {
	oauth       *googlecal.OAuth
	tokens      *gtoken.Manager
	svc         *empresa.Service
	provisioner *n8n.Provisioner
	states      ttlstore.Store
	appBaseURL  string
	log         *zap.Logger
}

// NewGoogleHandler builds the Google OAuth handler
func NewGoogleHandler(oauth *googlecal.OAuth, tokens *gtoken.Manager, svc *empresa.Service, provisioner *n8n.Provisioner, states ttlstore.Store, appBaseURL string, log *zap.Logger) *GoogleHandler {
	return &GoogleHandler{
		oauth:       oauth,
		tokens:      tokens,
		svc:         svc,
		provisioner: provisioner,
		states:      states,
		appBaseURL:  appBaseURL,
		log:         log,
	}
}

// Connect returns the consent URL for the authenticated empresa. The state
// parameter maps back to the empresa id on callback and expires quickly.
func (h *GoogleHandler) Connect(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordGoogleOAuth("connect")

	empresaID, ok := middleware.EmpresaID(c)
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "no empresa in token"})
	}

	state, err := googlecal.NewState()
	if err != nil {
		log.Error("Failed to generate oauth state", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start google connection"})
	}

	// The PKCE verifier lives server-side next to the empresa id until the
	// callback returns with the matching state.
	verifier := googlecal.NewVerifier()
	h.states.Put(state, strconv.FormatUint(uint64(empresaID), 10)+":"+verifier, stateTTL)

	return c.JSON(http.StatusOK, echo.Map{
		"auth_url": h.oauth.AuthCodeURL(state, verifier),
	})
}

// Callback receives the provider redirect, exchanges the code, persists the
// token bundle and kicks off workflow provisioning in the background. It is
// a public route; the state parameter is the only credential.
func (h *GoogleHandler) Callback(c echo.Context) error {
	log := logger.FromContext(c)

	if errParam := c.QueryParam("error"); errParam != "" {
		log.Warn("Google consent denied", zap.String("error", errParam))
		prometheus.RecordGoogleOAuth("denied")
		return c.Redirect(http.StatusFound, h.appBaseURL+"/dashboard?google=denied")
	}

	state := c.QueryParam("state")
	code := c.QueryParam("code")
	if state == "" || code == "" {
		prometheus.RecordGoogleOAuth("invalid_callback")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing code or state"})
	}

	entry, err := h.states.Get(state)
	if err != nil {
		log.Error("Unknown or expired oauth state", zap.Error(err))
		prometheus.RecordGoogleOAuth("bad_state")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or expired state"})
	}
	h.states.Delete(state)

	idStr, verifier, _ := strings.Cut(entry.Value, ":")
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid state"})
	}
	empresaID := uint(id)

	emp, err := h.svc.ByID(c.Request().Context(), empresaID)
	if err != nil {
		log.Error("Cannot load empresa for callback", zap.Error(err), zap.Uint("empresa_id", empresaID))
		return c.Redirect(http.StatusFound, h.appBaseURL+"/dashboard?google=error")
	}

	bundle, err := h.oauth.Exchange(c.Request().Context(), code, verifier)
	if err != nil {
		log.Error("Code exchange failed", zap.Error(err), zap.Uint("empresa_id", empresaID))
		prometheus.RecordGoogleOAuth("exchange_failed")
		return c.Redirect(http.StatusFound, h.appBaseURL+"/dashboard?google=error")
	}

	if err := h.tokens.SaveBundle(c.Request().Context(), empresaID, bundle); err != nil {
		log.Error("Failed to persist token bundle", zap.Error(err), zap.Uint("empresa_id", empresaID))
		return c.Redirect(http.StatusFound, h.appBaseURL+"/dashboard?google=error")
	}
	prometheus.RecordGoogleOAuth("connected")
	if !emp.GoogleConnected {
		// Reconnects must not count the same empresa twice.
		prometheus.ConnectedEmpresasGauge.Inc()
	}
	log.Info("Google calendar connected", zap.Uint("empresa_id", empresaID))

	// Provisioning talks to n8n and can take seconds; the browser redirect
	// must not wait for it.
	go h.provisionAsync(empresaID)

	return c.Redirect(http.StatusFound, h.appBaseURL+"/dashboard?google=connected")
}

func (h *GoogleHandler) provisionAsync(empresaID uint) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	emp, err := h.svc.ByID(ctx, empresaID)
	if err != nil {
		h.log.Error("Cannot load empresa for provisioning",
			zap.Uint("empresa_id", empresaID), zap.Error(err))
		return
	}
	if _, err := h.provisioner.Provision(ctx, emp); err != nil && !errors.Is(err, n8n.ErrProvisionInProgress) {
		h.log.Error("Post-connect provisioning failed",
			zap.Uint("empresa_id", empresaID), zap.Error(err))
	}
}

// Status reports the connection state of the authenticated empresa
func (h *GoogleHandler) Status(c echo.Context) error {
	log := logger.FromContext(c)

	empresaID, ok := middleware.EmpresaID(c)
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "no empresa in token"})
	}

	emp, err := h.svc.ByID(c.Request().Context(), empresaID)
	if err != nil {
		if errors.Is(err, empresa.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "empresa not found"})
		}
		log.Error("Failed to load empresa", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load status"})
	}

	status := echo.Map{
		"google_connected":    emp.GoogleConnected,
		"n8n_workflow_id":     emp.N8NWorkflowID,
		"n8n_workflow_status": emp.N8NWorkflowStatus,
	}
	if emp.GoogleConnected {
		bundle, err := h.tokens.Bundle(c.Request().Context(), empresaID)
		if err == nil && bundle.AccessToken != "" {
			status["token_expiry"] = bundle.Expiry
			status["token_expired"] = bundle.Expired(time.Now())
		}
	}
	return c.JSON(http.StatusOK, status)
}

// Refresh forces a synchronous token refresh
func (h *GoogleHandler) Refresh(c echo.Context) error {
	log := logger.FromContext(c)

	empresaID, ok := middleware.EmpresaID(c)
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "no empresa in token"})
	}

	bundle, err := h.tokens.RefreshNow(c.Request().Context(), empresaID)
	if err != nil {
		if errors.Is(err, gtoken.ErrNotConnected) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "google calendar is not connected"})
		}
		log.Error("Manual token refresh failed", zap.Error(err), zap.Uint("empresa_id", empresaID))
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "token refresh failed, please reconnect"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message":      "token refreshed",
		"token_expiry": bundle.Expiry,
	})
}

// Disconnect drops the stored token bundle
func (h *GoogleHandler) Disconnect(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordGoogleOAuth("disconnect")

	empresaID, ok := middleware.EmpresaID(c)
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "no empresa in token"})
	}

	wasConnected := false
	if emp, err := h.svc.ByID(c.Request().Context(), empresaID); err == nil {
		wasConnected = emp.GoogleConnected
	}

	if err := h.tokens.Disconnect(c.Request().Context(), empresaID); err != nil {
		log.Error("Failed to disconnect google", zap.Error(err), zap.Uint("empresa_id", empresaID))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to disconnect"})
	}
	if wasConnected {
		prometheus.ConnectedEmpresasGauge.Dec()
	}

	log.Info("Google calendar disconnected", zap.Uint("empresa_id", empresaID))
	return c.JSON(http.StatusOK, echo.Map{"message": "google calendar disconnected"})
}
