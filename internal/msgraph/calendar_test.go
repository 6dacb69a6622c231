package msgraph

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_WeekEvents(t *testing.T) {
	var query url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/me/calendarView", r.URL.Path)
		query = r.URL.Query()
		fmt.Fprint(w, `{"value":[
			{"id":"e1","subject":"Standup","isReminderOn":true,"isCancelled":false,
			 "reminderMinutesBeforeStart":15,
			 "start":{"dateTime":"2026-09-01T09:00:00.0000000","timeZone":"UTC"},
			 "location":{"displayName":"Room 1"}}
		]}`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	now := time.Date(2026, 8, 31, 10, 30, 0, 0, time.UTC)

	events, err := c.WeekEvents(context.Background(), "tok", now)

	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Standup", events[0].Subject)
	assert.Equal(t, 15, events[0].ReminderMinutesBeforeStart)
	assert.Equal(t, "Room 1", events[0].Location.DisplayName)

	assert.Equal(t, "2026-08-31T10:30:00.0000000", query.Get("startDateTime"))
	assert.Equal(t, "2026-09-07T10:30:00.0000000", query.Get("endDateTime"))
	assert.Contains(t, query.Get("$select"), "reminderMinutesBeforeStart")
	assert.Equal(t, "start/dateTime ASC", query.Get("$orderby"))
}

func TestEvent_StartTime(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    time.Time
		wantErr bool
	}{
		{
			name: "graph fractional format",
			raw:  "2026-09-01T09:00:00.0000000",
			want: time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "no fractional seconds",
			raw:  "2026-09-01T09:00:00",
			want: time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC),
		},
		{
			name:    "garbage",
			raw:     "not-a-time",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := &Event{Start: EventTime{DateTime: tt.raw, TimeZone: "UTC"}}
			got, err := ev.StartTime()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %v, want %v", got, tt.want)
		})
	}
}
