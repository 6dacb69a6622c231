package checker

import (
	"github.com/metoffice/owa-checker/internal/msgraph"
)

// Session owns the checker's per-run mutable state: the set of message IDs
// already notified, the received-time watermark for mail queries and the
// pending reminder cache. It is created empty at process start; nothing is
// persisted across runs, so a restart may re-notify items within the
// lookback window.
type Session struct {
	seen       map[string]struct{}
	lastSeen   string
	reminders  map[string]*Reminder
	unreadLast int
}

// NewSession creates an empty session.
func NewSession() *Session {
	return &Session{
		seen:      make(map[string]struct{}),
		reminders: make(map[string]*Reminder),
	}
}

// FilterNew returns the messages not yet notified, in their input order,
// and records every message as seen. The watermark advances to the most
// recent receivedDateTime observed. The Graph timestamps are RFC 3339 in
// UTC so lexicographic comparison orders them correctly.
func (s *Session) FilterNew(msgs []msgraph.Message) []msgraph.Message {
	var fresh []msgraph.Message
	for _, m := range msgs {
		if _, ok := s.seen[m.ID]; !ok {
			fresh = append(fresh, m)
		}
		s.seen[m.ID] = struct{}{}
		if m.ReceivedDateTime > s.lastSeen {
			s.lastSeen = m.ReceivedDateTime
		}
	}
	return fresh
}

// HasSeen reports whether a message ID has already been recorded.
func (s *Session) HasSeen(id string) bool {
	_, ok := s.seen[id]
	return ok
}

// LastSeen returns the mail watermark, empty before the first result.
func (s *Session) LastSeen() string {
	return s.lastSeen
}
