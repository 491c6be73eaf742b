package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"agendacerto/pkg/config"
)

// DebugHandler dumps a redacted view of the effective configuration.
// It is not mounted in production.
type DebugHandler struct {
	cfg *config.Config
}

// NewDebugHandler builds the debug handler
func NewDebugHandler(cfg *config.Config) *DebugHandler {
	return &DebugHandler{cfg: cfg}
}

// Env returns the loaded configuration with secrets masked
func (h *DebugHandler) Env(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"server": echo.Map{
			"port":     h.cfg.Server.Port,
			"env":      h.cfg.Server.Env,
			"base_url": h.cfg.Server.BaseURL,
		},
		"db": echo.Map{
			"host":     h.cfg.DB.Host,
			"port":     h.cfg.DB.Port,
			"name":     h.cfg.DB.DBName,
			"user":     h.cfg.DB.User,
			"password": redact(h.cfg.DB.Password),
		},
		"google": echo.Map{
			"client_id":     redact(h.cfg.Google.ClientID),
			"client_secret": redact(h.cfg.Google.ClientSecret),
			"redirect_url":  h.cfg.Google.RedirectURL,
			"scope":         h.cfg.Google.Scope,
		},
		"n8n": echo.Map{
			"base_url":    h.cfg.N8N.BaseURL,
			"api_key":     redact(h.cfg.N8N.APIKey),
			"template_id": h.cfg.N8N.TemplateID,
			"webhook_id":  h.cfg.N8N.WebhookID,
		},
		"share": echo.Map{
			"token_ttl": h.cfg.Share.TokenTTL.String(),
		},
		"refresh": echo.Map{
			"interval": h.cfg.Refresh.Interval.String(),
			"window":   h.cfg.Refresh.Window.String(),
		},
	})
}

// redact keeps a short prefix so operators can tell which credential is
// loaded without exposing it
func redact(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 6 {
		return "***"
	}
	return secret[:4] + strings.Repeat("*", 8)
}
