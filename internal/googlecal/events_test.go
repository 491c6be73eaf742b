package googlecal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeCalendarAPI serves just enough of the Calendar v3 surface for the
// aggregation path.
func fakeCalendarAPI(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var eventCalls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/users/me/calendarList", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{
			"kind": "calendar#calendarList",
			"items": []map[string]any{
				{"id": "primary", "summary": "Agenda", "primary": true, "backgroundColor": "#4285f4"},
				{"id": "work@example.com", "summary": "Work", "backgroundColor": "#0b8043"},
			},
		})
	})
	mux.HandleFunc("/calendars/", func(w http.ResponseWriter, r *http.Request) {
		eventCalls.Add(1)
		calendarID := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/calendars/"), "/events")

		var items []map[string]any
		switch calendarID {
		case "primary":
			items = []map[string]any{
				{
					"id":      "ev1",
					"summary": "Corte de cabelo",
					"start":   map[string]any{"dateTime": "2026-03-10T09:00:00-03:00"},
					"end":     map[string]any{"dateTime": "2026-03-10T10:00:00-03:00"},
				},
				{
					"id":    "ev2",
					"start": map[string]any{"date": "2026-03-11"},
					"end":   map[string]any{"date": "2026-03-12"},
				},
			}
		case "work@example.com":
			items = []map[string]any{
				{
					"id":      "ev3",
					"summary": "Reunião",
					"colorId": "5",
					"start":   map[string]any{"dateTime": "2026-03-09T15:00:00-03:00"},
					"end":     map[string]any{"dateTime": "2026-03-09T16:00:00-03:00"},
				},
			}
		}
		writeJSON(t, w, map[string]any{"kind": "calendar#events", "items": items})
	})

	return httptest.NewServer(mux), &eventCalls
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestEvents_AggregatesAllCalendars(t *testing.T) {
	srv, eventCalls := fakeCalendarAPI(t)
	defer srv.Close()

	client := NewClient(WithEndpoint(srv.URL))

	page, err := client.Events(context.Background(), "test-token", EventQuery{
		CalendarID: AllCalendars,
		TimeMin:    time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
		TimeMax:    time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Equal(t, int32(2), eventCalls.Load(), "one fetch per calendar")
	require.Len(t, page.Events, 3)
	require.Empty(t, page.NextPageToken)

	// Flattened results are sorted by start time
	require.Equal(t, "ev3", page.Events[0].ID)
	require.Equal(t, "ev1", page.Events[1].ID)
	require.Equal(t, "ev2", page.Events[2].ID)

	// Normalization: calendar id, calendar color fallback, untitled default
	require.Equal(t, "work@example.com", page.Events[0].CalendarID)
	require.Equal(t, "5", page.Events[0].Color, "event colorId wins over calendar color")
	require.Equal(t, "#4285f4", page.Events[1].Color, "calendar color fills in")
	require.Equal(t, "Sem título", page.Events[2].Title)
	require.True(t, page.Events[2].AllDay)
}

func TestEvents_SingleCalendar(t *testing.T) {
	srv, eventCalls := fakeCalendarAPI(t)
	defer srv.Close()

	client := NewClient(WithEndpoint(srv.URL))

	page, err := client.Events(context.Background(), "test-token", EventQuery{CalendarID: "primary"})
	require.NoError(t, err)
	require.Equal(t, int32(1), eventCalls.Load())
	require.Len(t, page.Events, 2)
	require.Equal(t, "Corte de cabelo", page.Events[0].Title)
	require.Equal(t, "primary", page.Events[0].CalendarID)
}
