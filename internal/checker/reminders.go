package checker

import (
	"sort"
	"time"

	"github.com/metoffice/owa-checker/internal/logger"
	"github.com/metoffice/owa-checker/internal/msgraph"
)

// Reminder is a pending meeting notification.
type Reminder struct {
	EventID  string
	Issued   bool
	Remind   time.Time
	Start    time.Time
	Subject  string
	Location string
}

// UpdateReminders reconciles the reminder cache with the latest calendar
// view. Events without a reminder setting or that have been cancelled are
// ignored; events that have vanished from the view (cancelled or expired)
// are dropped; events already started are never added.
func (s *Session) UpdateReminders(events []msgraph.Event, now time.Time) {
	// Anything left in stale after the sweep was not mentioned by the
	// calendar view any more.
	stale := make(map[string]struct{}, len(s.reminders))
	for id := range s.reminders {
		stale[id] = struct{}{}
	}

	for _, ev := range events {
		if !ev.IsReminderOn || ev.IsCancelled {
			continue
		}

		start, err := ev.StartTime()
		if err != nil {
			logger.Warn("skipping event with bad start time: %v", err)
			continue
		}

		if existing, ok := s.reminders[ev.ID]; ok {
			delete(stale, ev.ID)
			if existing.Issued {
				continue
			}
		}

		// The view sometimes returns events earlier than the requested
		// window start; anything already started is not worth a reminder.
		if now.After(start) {
			continue
		}

		s.reminders[ev.ID] = &Reminder{
			EventID:  ev.ID,
			Remind:   start.Add(-time.Duration(ev.ReminderMinutesBeforeStart) * time.Minute),
			Start:    start,
			Subject:  ev.Subject,
			Location: ev.Location.DisplayName,
		}
	}

	if len(events) > 0 {
		for id := range stale {
			delete(s.reminders, id)
		}
	}
}

// DueReminders returns the reminders whose time has arrived, marking each
// issued so it fires at most once. Results are ordered by start time.
func (s *Session) DueReminders(now time.Time) []*Reminder {
	var due []*Reminder
	for _, r := range s.reminders {
		if r.Issued || now.Before(r.Remind) {
			continue
		}
		r.Issued = true
		due = append(due, r)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].Start.Before(due[j].Start) })
	return due
}

// PendingReminders returns how many reminders are queued but not yet issued.
func (s *Session) PendingReminders() int {
	n := 0
	for _, r := range s.reminders {
		if !r.Issued {
			n++
		}
	}
	return n
}
