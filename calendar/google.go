package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const primaryCalendar = "primary"

// GoogleUpstream talks to the Google Calendar v3 API on the user's
// primary calendar. All times are sent in UTC.
type GoogleUpstream struct {
	svc        *gcal.Service
	calendarID string
}

func NewGoogleUpstream(ctx context.Context, opts ...option.ClientOption) (*GoogleUpstream, error) {
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating calendar service: %w", err)
	}
	return &GoogleUpstream{svc: svc, calendarID: primaryCalendar}, nil
}

func (g *GoogleUpstream) Insert(ctx context.Context, ev Event) (Event, error) {
	item, err := g.svc.Events.Insert(g.calendarID, &gcal.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		Start:       toEventDateTime(ev.Start),
		End:         toEventDateTime(ev.End),
	}).Context(ctx).Do()
	if err != nil {
		return Event{}, providerError(err)
	}
	return convertEvent(item)
}

func (g *GoogleUpstream) List(ctx context.Context, from time.Time, maxResults int) ([]Event, error) {
	resp, err := g.svc.Events.List(g.calendarID).
		TimeMin(from.UTC().Format(time.RFC3339)).
		MaxResults(int64(maxResults)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, providerError(err)
	}

	events := make([]Event, 0, len(resp.Items))
	for _, item := range resp.Items {
		event, err := convertEvent(item)
		if err != nil {
			continue // skip malformed events
		}
		events = append(events, event)
	}
	return events, nil
}

func (g *GoogleUpstream) Get(ctx context.Context, id string) (Event, error) {
	item, err := g.svc.Events.Get(g.calendarID, id).Context(ctx).Do()
	if err != nil {
		return Event{}, providerError(err)
	}
	if item.Status == "cancelled" {
		return Event{}, &ProviderError{StatusCode: http.StatusGone, Message: "event was deleted"}
	}
	return convertEvent(item)
}

func (g *GoogleUpstream) Patch(ctx context.Context, id string, patch EventPatch) (Event, error) {
	body := &gcal.Event{}
	if patch.Summary != nil {
		body.Summary = *patch.Summary
	}
	if patch.Description != nil {
		body.Description = *patch.Description
	}
	if patch.Start != nil {
		body.Start = toEventDateTime(*patch.Start)
	}
	if patch.End != nil {
		body.End = toEventDateTime(*patch.End)
	}

	item, err := g.svc.Events.Patch(g.calendarID, id, body).Context(ctx).Do()
	if err != nil {
		return Event{}, providerError(err)
	}
	return convertEvent(item)
}

func (g *GoogleUpstream) Delete(ctx context.Context, id string) error {
	if err := g.svc.Events.Delete(g.calendarID, id).Context(ctx).Do(); err != nil {
		return providerError(err)
	}
	return nil
}

func toEventDateTime(t time.Time) *gcal.EventDateTime {
	return &gcal.EventDateTime{DateTime: t.UTC().Format(time.RFC3339), TimeZone: "UTC"}
}

func convertEvent(item *gcal.Event) (Event, error) {
	event := Event{
		ID:          item.Id,
		Summary:     item.Summary,
		Description: item.Description,
		Status:      item.Status,
		HtmlLink:    item.HtmlLink,
	}

	var err error
	if event.Start, event.AllDay, err = parseEventTime(item.Start); err != nil {
		return Event{}, fmt.Errorf("parse start: %w", err)
	}
	if event.End, _, err = parseEventTime(item.End); err != nil {
		return Event{}, fmt.Errorf("parse end: %w", err)
	}
	return event, nil
}

func parseEventTime(dt *gcal.EventDateTime) (time.Time, bool, error) {
	switch {
	case dt == nil:
		return time.Time{}, false, nil
	case dt.DateTime != "":
		t, err := time.Parse(time.RFC3339, dt.DateTime)
		return t, false, err
	case dt.Date != "":
		t, err := time.Parse("2006-01-02", dt.Date)
		return t, true, err
	default:
		return time.Time{}, false, nil
	}
}

// providerError normalizes googleapi and oauth2 failures into *ProviderError.
func providerError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		pe := &ProviderError{StatusCode: gerr.Code, Message: gerr.Message, Err: err}
		if len(gerr.Errors) > 0 {
			pe.Reason = gerr.Errors[0].Reason
		}
		return pe
	}
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		return &ProviderError{StatusCode: http.StatusUnauthorized, Message: "token refresh rejected", Err: err}
	}
	return err
}
