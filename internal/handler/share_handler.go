package handler

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"agendacerto/internal/googlecal"
	"agendacerto/internal/gtoken"
	"agendacerto/internal/middleware"
	"agendacerto/internal/ttlstore"
	"agendacerto/pkg/logger"
	"agendacerto/prometheus"
)

// publicWindow is how far ahead a share link lets third parties look
const publicWindow = 7 * 24 * time.Hour

// ShareHandler mints and serves public calendar share links. Each link is a
// random 256-bit token mapped to a copy of the empresa's access token in an
// injected TTL store.
type ShareHandler struct {
	shares ttlstore.Store
	tokens *gtoken.Manager
	cal    *googlecal.Client
	ttl    time.Duration
}

// NewShareHandler builds the share handler over the given TTL store
func NewShareHandler(shares ttlstore.Store, tokens *gtoken.Manager, cal *googlecal.Client, ttl time.Duration) *ShareHandler {
	return &ShareHandler{shares: shares, tokens: tokens, cal: cal, ttl: ttl}
}

// Create mints a share token for the authenticated empresa
func (h *ShareHandler) Create(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordShareToken("create")

	empresaID, ok := middleware.EmpresaID(c)
	if !ok {
		return tokenError(c, errNoEmpresa)
	}
	accessToken, err := h.tokens.AccessToken(c.Request().Context(), empresaID)
	if err != nil {
		return tokenError(c, err)
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		log.Error("Failed to generate share token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create share link"})
	}
	token := hex.EncodeToString(raw)

	entry := h.shares.Put(token, accessToken, h.ttl)
	prometheus.ActiveShareTokensGauge.Set(float64(h.shares.Len()))

	log.Info("Share token created", zap.Time("expires_at", entry.ExpiresAt))
	return c.JSON(http.StatusCreated, echo.Map{
		"token":      token,
		"expires_at": entry.ExpiresAt,
	})
}

// lookup resolves the token query parameter against the store and writes
// the 404/410 responses itself; ok reports whether the caller may proceed.
func (h *ShareHandler) lookup(c echo.Context) (ttlstore.Entry, bool, error) {
	token := c.QueryParam("token")
	if token == "" {
		return ttlstore.Entry{}, false, c.JSON(http.StatusBadRequest, echo.Map{"error": "token is required"})
	}

	entry, err := h.shares.Get(token)
	if err != nil {
		prometheus.ActiveShareTokensGauge.Set(float64(h.shares.Len()))
		if errors.Is(err, ttlstore.ErrExpired) {
			prometheus.RecordShareToken("expired")
			return ttlstore.Entry{}, false, c.JSON(http.StatusGone, echo.Map{"error": "share link has expired"})
		}
		prometheus.RecordShareToken("not_found")
		return ttlstore.Entry{}, false, c.JSON(http.StatusNotFound, echo.Map{"error": "share link not found"})
	}
	return entry, true, nil
}

// Validate reports whether a share token is still usable. Unauthenticated.
func (h *ShareHandler) Validate(c echo.Context) error {
	prometheus.RecordShareToken("validate")

	entry, ok, err := h.lookup(c)
	if !ok {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"valid":      true,
		"expires_at": entry.ExpiresAt,
	})
}

// Events serves the read-only 7-day event window for a share token. It is
// unauthenticated: the token itself is the credential.
func (h *ShareHandler) Events(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordShareToken("lookup")

	entry, ok, err := h.lookup(c)
	if !ok {
		return err
	}

	calendarID := c.QueryParam("calendarId")
	if calendarID == "" {
		calendarID = "primary"
	}

	now := time.Now()
	events, err := h.cal.PublicEvents(c.Request().Context(), entry.Value, googlecal.EventQuery{
		CalendarID: calendarID,
		TimeMin:    now,
		TimeMax:    now.Add(publicWindow),
	})
	if err != nil {
		if googlecal.StatusCode(err) == http.StatusUnauthorized {
			// The copied access token died before the link did.
			h.shares.Delete(c.QueryParam("token"))
			prometheus.ActiveShareTokensGauge.Set(float64(h.shares.Len()))
			return c.JSON(http.StatusGone, echo.Map{"error": "share link has expired"})
		}
		log.Error("Public calendar fetch failed", zap.Error(err))
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "calendar provider error"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"events": events,
		"window": echo.Map{"start": now, "end": now.Add(publicWindow)},
	})
}

// Revoke deletes a share token before its TTL runs out
func (h *ShareHandler) Revoke(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordShareToken("revoke")

	token := c.Param("token")
	if _, err := h.shares.Get(token); err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "share link not found"})
	}
	h.shares.Delete(token)
	prometheus.ActiveShareTokensGauge.Set(float64(h.shares.Len()))

	log.Info("Share token revoked")
	return c.NoContent(http.StatusNoContent)
}
