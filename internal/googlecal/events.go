package googlecal

import (
	"context"
	"sort"
	"sync"
	"time"

	"google.golang.org/api/calendar/v3"
)

// AllCalendars selects event aggregation across every calendar the token
// can read
const AllCalendars = "all"

// Event is the provider-neutral event shape served to clients
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	AllDay      bool      `json:"allDay"`
	Color       string    `json:"color,omitempty"`
	CalendarID  string    `json:"calendarId"`
	Location    string    `json:"location,omitempty"`
	HTMLLink    string    `json:"htmlLink,omitempty"`
}

// Calendar is a normalized calendar-list entry
type Calendar struct {
	ID      string `json:"id"`
	Summary string `json:"summary"`
	Primary bool   `json:"primary"`
	Color   string `json:"color,omitempty"`
}

// EventQuery selects an event window on one calendar or on all of them
type EventQuery struct {
	CalendarID string
	TimeMin    time.Time
	TimeMax    time.Time
	PageToken  string
}

// EventPage is one page of normalized events. NextPageToken is only set for
// single-calendar queries; aggregation flattens all pages' worth of the
// first page per calendar.
type EventPage struct {
	Events        []Event `json:"events"`
	NextPageToken string  `json:"nextPageToken,omitempty"`
}

// ListCalendars returns the token's calendar list
func (c *Client) ListCalendars(ctx context.Context, accessToken string) ([]Calendar, error) {
	svc, err := c.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	resp, err := svc.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return nil, err
	}

	calendars := make([]Calendar, 0, len(resp.Items))
	for _, item := range resp.Items {
		calendars = append(calendars, Calendar{
			ID:      item.Id,
			Summary: item.Summary,
			Primary: item.Primary,
			Color:   item.BackgroundColor,
		})
	}
	return calendars, nil
}

// Events fetches a normalized event window. With CalendarID "" or "all" it
// fans one request out per calendar, waits for all of them, and flattens the
// results; completion order does not matter.
func (c *Client) Events(ctx context.Context, accessToken string, q EventQuery) (EventPage, error) {
	if q.CalendarID != "" && q.CalendarID != AllCalendars {
		return c.calendarEvents(ctx, accessToken, q.CalendarID, "", q)
	}

	calendars, err := c.ListCalendars(ctx, accessToken)
	if err != nil {
		return EventPage{}, err
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		all      []Event
		firstErr error
	)
	for _, cal := range calendars {
		wg.Add(1)
		go func(cal Calendar) {
			defer wg.Done()
			page, err := c.calendarEvents(ctx, accessToken, cal.ID, cal.Color, EventQuery{
				TimeMin: q.TimeMin,
				TimeMax: q.TimeMax,
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			all = append(all, page.Events...)
		}(cal)
	}
	wg.Wait()

	if firstErr != nil {
		return EventPage{}, firstErr
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Start.Before(all[j].Start) })
	return EventPage{Events: all}, nil
}

func (c *Client) calendarEvents(ctx context.Context, accessToken, calendarID, color string, q EventQuery) (EventPage, error) {
	svc, err := c.service(ctx, accessToken)
	if err != nil {
		return EventPage{}, err
	}

	call := svc.Events.List(calendarID).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx)
	if !q.TimeMin.IsZero() {
		call = call.TimeMin(q.TimeMin.Format(time.RFC3339))
	}
	if !q.TimeMax.IsZero() {
		call = call.TimeMax(q.TimeMax.Format(time.RFC3339))
	}
	if q.PageToken != "" {
		call = call.PageToken(q.PageToken)
	}

	resp, err := call.Do()
	if err != nil {
		return EventPage{}, err
	}

	events := make([]Event, 0, len(resp.Items))
	for _, item := range resp.Items {
		events = append(events, normalizeEvent(item, calendarID, color))
	}
	return EventPage{Events: events, NextPageToken: resp.NextPageToken}, nil
}

// EventInput is the writable subset of an event
type EventInput struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	AllDay      bool      `json:"allDay"`
	ColorID     string    `json:"colorId,omitempty"`
}

func (in EventInput) toProviderEvent() *calendar.Event {
	ev := &calendar.Event{
		Summary:     in.Title,
		Description: in.Description,
		Location:    in.Location,
		ColorId:     in.ColorID,
	}
	if in.AllDay {
		ev.Start = &calendar.EventDateTime{Date: in.Start.Format("2006-01-02")}
		ev.End = &calendar.EventDateTime{Date: in.End.Format("2006-01-02")}
	} else {
		ev.Start = &calendar.EventDateTime{DateTime: in.Start.Format(time.RFC3339)}
		ev.End = &calendar.EventDateTime{DateTime: in.End.Format(time.RFC3339)}
	}
	return ev
}

// CreateEvent inserts an event into the calendar
func (c *Client) CreateEvent(ctx context.Context, accessToken, calendarID string, in EventInput) (Event, error) {
	svc, err := c.service(ctx, accessToken)
	if err != nil {
		return Event{}, err
	}
	created, err := svc.Events.Insert(calendarID, in.toProviderEvent()).Context(ctx).Do()
	if err != nil {
		return Event{}, err
	}
	return normalizeEvent(created, calendarID, ""), nil
}

// UpdateEvent patches an existing event
func (c *Client) UpdateEvent(ctx context.Context, accessToken, calendarID, eventID string, in EventInput) (Event, error) {
	svc, err := c.service(ctx, accessToken)
	if err != nil {
		return Event{}, err
	}
	updated, err := svc.Events.Patch(calendarID, eventID, in.toProviderEvent()).Context(ctx).Do()
	if err != nil {
		return Event{}, err
	}
	return normalizeEvent(updated, calendarID, ""), nil
}

// DeleteEvent removes an event from the calendar
func (c *Client) DeleteEvent(ctx context.Context, accessToken, calendarID, eventID string) error {
	svc, err := c.service(ctx, accessToken)
	if err != nil {
		return err
	}
	return svc.Events.Delete(calendarID, eventID).Context(ctx).Do()
}

// CreateCalendar creates a secondary calendar
func (c *Client) CreateCalendar(ctx context.Context, accessToken, summary string) (Calendar, error) {
	svc, err := c.service(ctx, accessToken)
	if err != nil {
		return Calendar{}, err
	}
	created, err := svc.Calendars.Insert(&calendar.Calendar{Summary: summary}).Context(ctx).Do()
	if err != nil {
		return Calendar{}, err
	}
	return Calendar{ID: created.Id, Summary: created.Summary}, nil
}

// PublicEvents returns the share-link view of an event window: public fields
// only, no attendee or organizer details beyond the calendar id.
func (c *Client) PublicEvents(ctx context.Context, accessToken string, q EventQuery) ([]Event, error) {
	page, err := c.calendarEvents(ctx, accessToken, q.CalendarID, "", q)
	if err != nil {
		return nil, err
	}
	return page.Events, nil
}

func normalizeEvent(ev *calendar.Event, calendarID, color string) Event {
	start, allDay := eventTime(ev.Start)
	end, _ := eventTime(ev.End)

	title := ev.Summary
	if title == "" {
		title = "Sem título"
	}

	if calendarID == "" && ev.Organizer != nil {
		calendarID = ev.Organizer.Email
	}

	evColor := ev.ColorId
	if evColor == "" {
		evColor = color
	}

	return Event{
		ID:          ev.Id,
		Title:       title,
		Description: ev.Description,
		Start:       start,
		End:         end,
		AllDay:      allDay,
		Color:       evColor,
		CalendarID:  calendarID,
		Location:    ev.Location,
		HTMLLink:    ev.HtmlLink,
	}
}

func eventTime(edt *calendar.EventDateTime) (time.Time, bool) {
	if edt == nil {
		return time.Time{}, false
	}
	if edt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, edt.DateTime)
		if err != nil {
			return time.Time{}, false
		}
		return t, false
	}
	if edt.Date != "" {
		t, err := time.ParseInLocation("2006-01-02", edt.Date, time.Local)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}
