// Package checker drives the timer-based poll loop: refresh the access
// token, check mail, check the calendar, issue due reminders, sleep until
// the next interval boundary.
package checker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/metoffice/owa-checker/internal/auth"
	"github.com/metoffice/owa-checker/internal/config"
	"github.com/metoffice/owa-checker/internal/logger"
	"github.com/metoffice/owa-checker/internal/msgraph"
	"github.com/metoffice/owa-checker/internal/notify"
)

// MaxRetries is how many consecutive Graph failures are tolerated before
// the run aborts. The poll interval is the only backoff.
const MaxRetries = 5

// TokenSource hands out valid access tokens. Satisfied by *auth.Refresher.
type TokenSource interface {
	EnsureValid(ctx context.Context) (string, error)
	Invalidate()
}

// SettingsSource returns the current user settings; reads reflect config
// file changes applied by the watcher.
type SettingsSource func() config.Settings

// Checker polls Microsoft Graph and raises notifications for new mail and
// upcoming meetings.
type Checker struct {
	graph    *msgraph.Client
	tokens   TokenSource
	notifier notify.Notifier
	settings SettingsSource
	sess     *Session

	retries   int
	suspended bool
	now       func() time.Time
}

// New creates a checker.
func New(graph *msgraph.Client, tokens TokenSource, notifier notify.Notifier, settings SettingsSource) *Checker {
	return &Checker{
		graph:    graph,
		tokens:   tokens,
		notifier: notifier,
		settings: settings,
		sess:     NewSession(),
		now:      time.Now,
	}
}

// Run validates the stored credential, then loops until ctx is cancelled.
// The first pass is quiet: existing unread mail is recorded without popups.
func (c *Checker) Run(ctx context.Context) error {
	token, err := c.tokens.EnsureValid(ctx)
	if errors.Is(err, auth.ErrAuthRequired) {
		return fmt.Errorf("no usable credential, run with --auth to sign in: %w", err)
	}
	if err != nil {
		return fmt.Errorf("could not obtain an access token: %w", err)
	}

	user, err := c.graph.Me(ctx, token)
	if err != nil {
		return fmt.Errorf("could not fetch user profile: %w", err)
	}
	c.graph.SetAnchorMailbox(user.Email())
	logger.Info("checking mail and calendar for %s", user.Email())

	s := c.settings()
	// Start the counters at their multiples so the first cycle also
	// checks the calendar.
	calendarCount := s.CalendarMultiple
	reminderCount := s.ReminderMultiple
	firstPass := true

	for {
		s = c.settings()
		calendarCount++
		reminderCount++

		if err := c.cycle(ctx, s, firstPass, &calendarCount, &reminderCount); err != nil {
			return err
		}
		firstPass = false

		// Sleep until the next interval boundary rather than for a full
		// interval, keeping cycles in step with the wall clock.
		interval := s.CheckInterval()
		sleep := interval - time.Duration(c.now().UnixNano())%interval
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil
		case <-time.After(sleep):
		}
	}
}

// cycle performs one pass. A nil return means carry on; a non-nil return
// aborts the run.
func (c *Checker) cycle(ctx context.Context, s config.Settings, quiet bool, calendarCount, reminderCount *int) error {
	token, err := c.tokens.EnsureValid(ctx)
	if errors.Is(err, auth.ErrAuthRequired) {
		c.suspend()
		return nil
	}
	if errors.Is(err, auth.ErrStoreWrite) {
		// The refreshed pair could not be written; carrying on would
		// leave a rotated refresh token only in memory.
		return fmt.Errorf("persist refreshed token: %w", err)
	}
	if err != nil {
		return c.fail("refresh access token", err)
	}
	if c.suspended {
		c.suspended = false
		logger.Info("credential restored, resuming checks")
	}

	if err := c.checkMail(ctx, token, s, quiet); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		if ferr := c.fail("check mail", err); ferr != nil {
			return ferr
		}
	}

	if *calendarCount >= s.CalendarMultiple {
		if err := c.checkCalendar(ctx, token); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			if ferr := c.fail("check calendar", err); ferr != nil {
				return ferr
			}
		} else {
			*calendarCount = 0
		}
	}

	if *reminderCount >= s.ReminderMultiple {
		c.issueReminders()
		*reminderCount = 0
	}

	return nil
}

// suspend pauses polling until the credential works again. The user is
// told once; subsequent cycles only retry the token refresh, which starts
// succeeding after a separate --auth run rewrites the store.
func (c *Checker) suspend() {
	c.tokens.Invalidate()
	if c.suspended {
		return
	}
	c.suspended = true
	logger.Error("refresh token rejected, waiting for re-authentication")
	if err := c.notifier.Notify(notify.Notification{
		Title:  "OWA Checker: sign-in required",
		Body:   "Your session has expired. Run owachecker --auth to sign in again.",
		Urgent: true,
	}); err != nil {
		logger.Warn("could not display re-authentication notice: %v", err)
	}
}

// fail counts a transient failure. The cycle is skipped and retried at the
// next interval; too many consecutive failures abort the run.
func (c *Checker) fail(op string, err error) error {
	c.retries++
	logger.Error("%s failed (attempt %d of %d): %v", op, c.retries, MaxRetries, err)
	if c.retries > MaxRetries {
		return fmt.Errorf("%s: giving up after %d consecutive failures: %w", op, c.retries, err)
	}
	return nil
}

// checkMail fetches the unread count and any messages newer than the
// watermark, notifying the ones not seen before.
func (c *Checker) checkMail(ctx context.Context, token string, s config.Settings, quiet bool) error {
	unread, err := c.graph.UnreadCount(ctx, token, s.Folders)
	if err != nil {
		return err
	}
	c.retries = 0

	if unread != c.sess.unreadLast {
		logger.Debug("unread messages: %d", unread)
	}
	c.sess.unreadLast = unread
	if unread == 0 {
		return nil
	}

	msgs, err := c.graph.NewMessages(ctx, token, s.Folders, c.sess.LastSeen())
	if err != nil {
		return err
	}

	fresh := c.sess.FilterNew(msgs)
	if quiet || len(fresh) == 0 {
		return nil
	}

	for i, m := range fresh {
		if i == s.MailPopupLimit {
			c.post(notify.OverflowNotification())
			break
		}
		c.post(notify.MailNotification(m.SenderName(), m.Subject, m.SenderAddress()))
	}
	return nil
}

// checkCalendar refreshes the reminder cache from the week's calendar view.
func (c *Checker) checkCalendar(ctx context.Context, token string) error {
	now := c.now().UTC()
	events, err := c.graph.WeekEvents(ctx, token, now)
	if err != nil {
		return err
	}
	c.retries = 0

	c.sess.UpdateReminders(events, now)
	logger.Debug("calendar checked: %d events, %d pending reminders",
		len(events), c.sess.PendingReminders())
	return nil
}

// issueReminders raises popups for reminders whose time has arrived. The
// minutes-to-start is computed from the current time so a reminder issued
// late (e.g. after a restart) still shows an accurate figure.
func (c *Checker) issueReminders() {
	now := c.now().UTC()
	for _, r := range c.sess.DueReminders(now) {
		minutes := int(r.Start.Sub(now).Minutes()) + 1
		c.post(notify.ReminderNotification(r.Subject, r.Location, minutes))
	}
}

// post displays a notification; toolkit failures are logged only.
func (c *Checker) post(n notify.Notification) {
	if err := c.notifier.Notify(n); err != nil {
		logger.Warn("could not display notification %q: %v", n.Title, err)
	}
}
