package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"agendacerto/internal/googlecal"
	"agendacerto/internal/gtoken"
	"agendacerto/internal/middleware"
	"agendacerto/pkg/logger"
	"agendacerto/prometheus"
)

var errNoEmpresa = errors.New("handler: token carries no empresa")

// CalendarHandler proxies calendar reads and writes for the authenticated
// empresa, resolving the access token through the token manager.
type CalendarHandler struct {
	cal    *googlecal.Client
	tokens *gtoken.Manager
}

// NewCalendarHandler builds the calendar handler
func NewCalendarHandler(cal *googlecal.Client, tokens *gtoken.Manager) *CalendarHandler {
	return &CalendarHandler{cal: cal, tokens: tokens}
}

func (h *CalendarHandler) accessToken(c echo.Context) (string, error) {
	empresaID, ok := middleware.EmpresaID(c)
	if !ok {
		return "", errNoEmpresa
	}
	return h.tokens.AccessToken(c.Request().Context(), empresaID)
}

// tokenError writes the response for an access-token resolution failure
func tokenError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, errNoEmpresa):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "no empresa in token"})
	case errors.Is(err, gtoken.ErrNotConnected):
		return c.JSON(http.StatusConflict, echo.Map{"error": "google calendar is not connected"})
	default:
		logger.FromContext(c).Error("Failed to resolve access token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to resolve access token"})
	}
}

// upstreamError maps provider failures onto the response. Auth failures
// pass through so the client knows to reconnect.
func upstreamError(c echo.Context, err error) error {
	log := logger.FromContext(c)
	switch googlecal.StatusCode(err) {
	case http.StatusUnauthorized:
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "google token rejected, please reconnect"})
	case http.StatusForbidden:
		return c.JSON(http.StatusForbidden, echo.Map{"error": "insufficient google calendar permissions"})
	case http.StatusNotFound:
		return c.JSON(http.StatusNotFound, echo.Map{"error": "calendar or event not found"})
	default:
		log.Error("Google calendar request failed", zap.Error(err))
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "calendar provider error"})
	}
}

// Events returns the event window for one calendar or all of them merged
func (h *CalendarHandler) Events(c echo.Context) error {
	token, err := h.accessToken(c)
	if err != nil {
		return tokenError(c, err)
	}

	calendarID := c.QueryParam("calendarId")
	if calendarID == "" {
		calendarID = googlecal.AllCalendars
	}
	prometheus.RecordCalendarFetch(fetchScope(calendarID))

	timeMin, timeMax, err := parseRange(c.QueryParam("timeMin"), c.QueryParam("timeMax"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "timeMin and timeMax must be RFC3339 timestamps"})
	}

	page, err := h.cal.Events(c.Request().Context(), token, googlecal.EventQuery{
		CalendarID: calendarID,
		TimeMin:    timeMin,
		TimeMax:    timeMax,
		PageToken:  c.QueryParam("pageToken"),
	})
	if err != nil {
		return upstreamError(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

// Calendars returns the empresa's calendar list
func (h *CalendarHandler) Calendars(c echo.Context) error {
	token, err := h.accessToken(c)
	if err != nil {
		return tokenError(c, err)
	}

	calendars, err := h.cal.ListCalendars(c.Request().Context(), token)
	if err != nil {
		return upstreamError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"calendars": calendars})
}

// CreateCalendar creates a secondary calendar
func (h *CalendarHandler) CreateCalendar(c echo.Context) error {
	token, err := h.accessToken(c)
	if err != nil {
		return tokenError(c, err)
	}

	var req struct {
		Summary string `json:"summary"`
	}
	if err := c.Bind(&req); err != nil || req.Summary == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "summary is required"})
	}

	created, err := h.cal.CreateCalendar(c.Request().Context(), token, req.Summary)
	if err != nil {
		return upstreamError(c, err)
	}
	return c.JSON(http.StatusCreated, created)
}

type eventRequest struct {
	CalendarID string `json:"calendarId"`
	googlecal.EventInput
}

// CreateEvent inserts an event into the given calendar
func (h *CalendarHandler) CreateEvent(c echo.Context) error {
	token, err := h.accessToken(c)
	if err != nil {
		return tokenError(c, err)
	}

	var req eventRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Title == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title is required"})
	}
	if req.CalendarID == "" {
		req.CalendarID = "primary"
	}

	created, err := h.cal.CreateEvent(c.Request().Context(), token, req.CalendarID, req.EventInput)
	if err != nil {
		return upstreamError(c, err)
	}
	return c.JSON(http.StatusCreated, created)
}

// UpdateEvent patches an existing event
func (h *CalendarHandler) UpdateEvent(c echo.Context) error {
	token, err := h.accessToken(c)
	if err != nil {
		return tokenError(c, err)
	}

	var req eventRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.CalendarID == "" {
		req.CalendarID = "primary"
	}

	updated, err := h.cal.UpdateEvent(c.Request().Context(), token, req.CalendarID, c.Param("id"), req.EventInput)
	if err != nil {
		return upstreamError(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

// DeleteEvent removes an event
func (h *CalendarHandler) DeleteEvent(c echo.Context) error {
	token, err := h.accessToken(c)
	if err != nil {
		return tokenError(c, err)
	}

	calendarID := c.QueryParam("calendarId")
	if calendarID == "" {
		calendarID = "primary"
	}

	if err := h.cal.DeleteEvent(c.Request().Context(), token, calendarID, c.Param("id")); err != nil {
		return upstreamError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// parseRange defaults to the current month when no range is given
func parseRange(min, max string) (time.Time, time.Time, error) {
	now := time.Now()
	timeMin := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	timeMax := timeMin.AddDate(0, 1, 0)

	if min != "" {
		t, err := time.Parse(time.RFC3339, min)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		timeMin = t
	}
	if max != "" {
		t, err := time.Parse(time.RFC3339, max)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		timeMax = t
	}
	return timeMin, timeMax, nil
}

func fetchScope(calendarID string) string {
	if calendarID == googlecal.AllCalendars {
		return "all"
	}
	return "single"
}
