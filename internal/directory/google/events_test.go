package google

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"
)

func TestEventToChange_Cancelled(t *testing.T) {
	event := &calendar.Event{
		Id:      "ev-1",
		Status:  statusCancelled,
		Updated: "2026-05-01T10:00:00Z",
	}

	change := eventToChange(event)
	assert.True(t, change.Deleted)
	assert.Equal(t, "ev-1", change.RemoteID)
	assert.Nil(t, change.Fields)
}

func TestEventToFields_TimedEvent(t *testing.T) {
	event := &calendar.Event{
		Id:          "ev-1",
		Summary:     "Standup",
		Description: "Daily sync",
		Location:    "Room 4",
		Start:       &calendar.EventDateTime{DateTime: "2026-05-01T09:00:00Z"},
		End:         &calendar.EventDateTime{DateTime: "2026-05-01T09:15:00Z"},
	}

	fields := eventToFields(event)
	assert.Equal(t, "Standup", fields["title"])
	assert.Equal(t, "Daily sync", fields["description"])
	assert.Equal(t, "Room 4", fields["location"])
	assert.Equal(t, "2026-05-01T09:00:00Z", fields["start"])
	assert.Equal(t, "2026-05-01T09:15:00Z", fields["end"])
	_, allDay := fields["all_day"]
	assert.False(t, allDay)
}

func TestEventToFields_AllDayEvent(t *testing.T) {
	event := &calendar.Event{
		Id:      "ev-2",
		Summary: "Company holiday",
		Start:   &calendar.EventDateTime{Date: "2026-05-04"},
		End:     &calendar.EventDateTime{Date: "2026-05-05"},
	}

	fields := eventToFields(event)
	assert.Equal(t, "2026-05-04", fields["start"])
	assert.Equal(t, true, fields["all_day"])
}

func TestFieldsToEvent_RoundTrip(t *testing.T) {
	fields := map[string]any{
		"title":       "Standup",
		"description": "Daily sync",
		"location":    "Room 4",
		"start":       "2026-05-01T09:00:00Z",
		"end":         "2026-05-01T09:15:00Z",
	}

	event := fieldsToEvent(fields)
	assert.Equal(t, "Standup", event.Summary)
	require.NotNil(t, event.Start)
	assert.Equal(t, "2026-05-01T09:00:00Z", event.Start.DateTime)
	assert.Empty(t, event.Start.Date)
}

func TestFieldsToEvent_AllDay(t *testing.T) {
	event := fieldsToEvent(map[string]any{
		"title":   "Company holiday",
		"all_day": true,
		"start":   "2026-05-04",
		"end":     "2026-05-05",
	})

	require.NotNil(t, event.Start)
	assert.Equal(t, "2026-05-04", event.Start.Date)
	assert.Empty(t, event.Start.DateTime)
}

func TestParseEventTime(t *testing.T) {
	assert.True(t, parseEventTime("").IsZero())
	assert.True(t, parseEventTime("garbage").IsZero())
	assert.Equal(t, 2026, parseEventTime("2026-05-01T10:00:00Z").Year())
}
