package google

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/custodia-labs/relaysync/internal/core/domain"
	"github.com/custodia-labs/relaysync/internal/core/ports/driven"
)

// statusCancelled marks a deleted event in Calendar API listings.
const statusCancelled = "cancelled"

// Ensure EventDirectory implements the interface.
var _ driven.RemoteDirectory = (*EventDirectory)(nil)

// EventDirectory syncs calendar events through the Google Calendar API.
type EventDirectory struct {
	svc        *calendar.Service
	calendarID string
	limiter    *RateLimiter
}

// NewEventDirectory creates an event directory for one calendar.
func NewEventDirectory(ctx context.Context, ts oauth2.TokenSource, calendarID string) (*EventDirectory, error) {
	svc, err := calendar.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("creating calendar service: %w", err)
	}
	return &EventDirectory{
		svc:        svc,
		calendarID: calendarID,
		limiter:    NewRateLimiter(ServiceCalendar),
	}, nil
}

// Provider returns the provider identifier.
func (d *EventDirectory) Provider() string { return domain.ProviderGoogle }

// Kind returns the record kind this directory serves.
func (d *EventDirectory) Kind() domain.RecordKind { return domain.KindEvent }

// Validate checks credentials and calendar access.
func (d *EventDirectory) Validate(ctx context.Context) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := d.svc.Calendars.Get(d.calendarID).Context(ctx).Do()
	return classify(d.limiter, err)
}

// ListChanges returns one page of the events listing. ShowDeleted keeps
// cancelled events in the stream so deletions propagate.
func (d *EventDirectory) ListChanges(ctx context.Context, cursor string) (*driven.ChangePage, error) {
	cur, err := DecodeCursor(cursor)
	if err != nil {
		return nil, err
	}

	if err := d.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	call := d.svc.Events.List(d.calendarID).
		ShowDeleted(true).
		SingleEvents(true).
		MaxResults(pageSize).
		Context(ctx)
	if cur.SyncToken != "" {
		call = call.SyncToken(cur.SyncToken)
	}
	if cur.PageToken != "" {
		call = call.PageToken(cur.PageToken)
	}

	resp, err := call.Do()
	if err != nil {
		return nil, classify(d.limiter, err)
	}

	changes := make([]driven.RemoteChange, 0, len(resp.Items))
	for _, event := range resp.Items {
		changes = append(changes, eventToChange(event))
	}

	page := &driven.ChangePage{Changes: changes}
	if resp.NextPageToken != "" {
		page.HasMore = true
		page.NextCursor = (&Cursor{Version: CursorVersion, SyncToken: cur.SyncToken, PageToken: resp.NextPageToken}).Encode()
	} else {
		page.NextCursor = (&Cursor{Version: CursorVersion, SyncToken: resp.NextSyncToken}).Encode()
	}
	return page, nil
}

// Push creates or updates the event remotely.
func (d *EventDirectory) Push(ctx context.Context, rec *domain.Record) (*driven.PushResult, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	event := fieldsToEvent(rec.Fields)

	var pushed *calendar.Event
	var err error
	if rec.RemoteID == "" {
		pushed, err = d.svc.Events.Insert(d.calendarID, event).Context(ctx).Do()
	} else {
		pushed, err = d.svc.Events.Update(d.calendarID, rec.RemoteID, event).Context(ctx).Do()
	}
	if err != nil {
		return nil, classify(d.limiter, err)
	}

	return &driven.PushResult{
		RemoteID:        pushed.Id,
		RemoteUpdatedAt: parseEventTime(pushed.Updated),
	}, nil
}

// Remove deletes the event remotely. Already-gone is success.
func (d *EventDirectory) Remove(ctx context.Context, remoteID string) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := d.svc.Events.Delete(d.calendarID, remoteID).Context(ctx).Do(); err != nil {
		if isGone(err) {
			return nil
		}
		return classify(d.limiter, err)
	}
	return nil
}

// Close releases resources.
func (d *EventDirectory) Close() error { return nil }

// eventToChange maps a Calendar API event onto a RemoteChange.
func eventToChange(event *calendar.Event) driven.RemoteChange {
	change := driven.RemoteChange{
		RemoteID:        event.Id,
		RemoteUpdatedAt: parseEventTime(event.Updated),
	}
	if event.Status == statusCancelled {
		change.Deleted = true
		return change
	}
	change.Fields = eventToFields(event)
	return change
}

// eventToFields maps event attributes onto the engine's flat field map.
func eventToFields(event *calendar.Event) map[string]any {
	fields := make(map[string]any)

	if event.Summary != "" {
		fields["title"] = event.Summary
	}
	if event.Description != "" {
		fields["description"] = event.Description
	}
	if event.Location != "" {
		fields["location"] = event.Location
	}

	if start, allDay := eventDateTime(event.Start); start != "" {
		fields["start"] = start
		if allDay {
			fields["all_day"] = true
		}
	}
	if end, _ := eventDateTime(event.End); end != "" {
		fields["end"] = end
	}

	return fields
}

// fieldsToEvent maps the engine's field map back onto a Calendar API event.
func fieldsToEvent(fields map[string]any) *calendar.Event {
	event := &calendar.Event{}

	if v, ok := fields["title"].(string); ok {
		event.Summary = v
	}
	if v, ok := fields["description"].(string); ok {
		event.Description = v
	}
	if v, ok := fields["location"].(string); ok {
		event.Location = v
	}

	allDay, _ := fields["all_day"].(bool)
	if v, ok := fields["start"].(string); ok && v != "" {
		event.Start = toEventDateTime(v, allDay)
	}
	if v, ok := fields["end"].(string); ok && v != "" {
		event.End = toEventDateTime(v, allDay)
	}

	return event
}

// eventDateTime flattens the API's dual date/dateTime shape. The second
// return reports an all-day (date only) value.
func eventDateTime(edt *calendar.EventDateTime) (string, bool) {
	if edt == nil {
		return "", false
	}
	if edt.DateTime != "" {
		return edt.DateTime, false
	}
	return edt.Date, edt.Date != ""
}

func toEventDateTime(value string, allDay bool) *calendar.EventDateTime {
	if allDay {
		return &calendar.EventDateTime{Date: value}
	}
	return &calendar.EventDateTime{DateTime: value}
}

func parseEventTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
