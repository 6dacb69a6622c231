// Package notify is the boundary to the desktop notification toolkit.
package notify

import (
	"fmt"

	"github.com/gen2brain/beeep"
)

// Notification is a single popup request.
type Notification struct {
	Title string
	Body  string
	// Urgent raises the notification at alert level (used for reminders
	// and re-authentication prompts).
	Urgent bool
}

// Notifier displays desktop notifications. Failures at this boundary are
// logged by callers and never abort a poll cycle.
type Notifier interface {
	Notify(n Notification) error
}

// Desktop sends notifications through the platform notification service.
type Desktop struct {
	icon string
}

// NewDesktop creates the desktop notifier.
func NewDesktop() *Desktop {
	beeep.AppName = "OWA Checker"
	return &Desktop{}
}

// Notify displays a popup.
func (d *Desktop) Notify(n Notification) error {
	if n.Urgent {
		return beeep.Alert(n.Title, n.Body, d.icon)
	}
	return beeep.Notify(n.Title, n.Body, d.icon)
}

// MailNotification formats a popup for a new message. A missing subject is
// shown as "(No Subject)" and a missing sender address as "(No Address)".
func MailNotification(sender, subject, address string) Notification {
	if subject == "" {
		subject = "(No Subject)"
	}
	if address == "" {
		address = "(No Address)"
	}
	return Notification{
		Title: sender,
		Body:  fmt.Sprintf("%s\n%s", subject, address),
	}
}

// OverflowNotification is the summary popup raised when a cycle produced
// more new messages than the popup limit allows.
func OverflowNotification() Notification {
	return Notification{Title: "Plus further message(s)..."}
}

// ReminderNotification formats a popup for a meeting reminder.
func ReminderNotification(subject, location string, minutesToStart int) Notification {
	if subject == "" {
		subject = "Untitled Meeting"
	}
	if location == "" {
		location = "No Location Set"
	}
	return Notification{
		Title:  fmt.Sprintf("%s in %d minute(s)", subject, minutesToStart),
		Body:   location,
		Urgent: true,
	}
}
