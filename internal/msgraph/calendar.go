package msgraph

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// graphTimeFormat is the fractional-second layout Graph uses for the
// calendarView window parameters and event date-times.
const graphTimeFormat = "2006-01-02T15:04:05.0000000"

// Event is a calendar event with the fields the checker selects.
type Event struct {
	ID                         string    `json:"id"`
	Subject                    string    `json:"subject"`
	IsReminderOn               bool      `json:"isReminderOn"`
	IsCancelled                bool      `json:"isCancelled"`
	ReminderMinutesBeforeStart int       `json:"reminderMinutesBeforeStart"`
	Start                      EventTime `json:"start"`
	Location                   Location  `json:"location"`
}

// EventTime is a Graph dateTimeTimeZone value.
type EventTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

// Location is an event location.
type Location struct {
	DisplayName string `json:"displayName"`
}

// StartTime parses the event's start as UTC. Graph pads date-times with
// seven fractional digits; anything after the seconds is dropped.
func (e *Event) StartTime() (time.Time, error) {
	raw := e.Start.DateTime
	if i := strings.LastIndex(raw, "."); i >= 0 {
		raw = raw[:i]
	}
	t, err := time.Parse("2006-01-02T15:04:05", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse event start %q: %w", e.Start.DateTime, err)
	}
	return t.UTC(), nil
}

// WeekEvents returns the user's calendar view from now until a week ahead,
// ordered by start time. A week is long enough to cover the longest
// expected reminder lead time.
func (c *Client) WeekEvents(ctx context.Context, token string, now time.Time) ([]Event, error) {
	now = now.UTC()
	params := url.Values{
		"startDateTime": {now.Format(graphTimeFormat)},
		"endDateTime":   {now.AddDate(0, 0, 7).Format(graphTimeFormat)},
		"$select": {"isReminderOn,reminderMinutesBeforeStart," +
			"subject,start,location,isCancelled"},
		"$orderby": {"start/dateTime ASC"},
	}

	var page struct {
		Value []Event `json:"value"`
	}
	if err := c.getJSON(ctx, token, "/me/calendarView", params, &page); err != nil {
		return nil, fmt.Errorf("fetch calendar view: %w", err)
	}
	return page.Value, nil
}
