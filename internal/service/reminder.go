package service

import (
	"context"
	"time"

	"github.com/invoicely/backend/internal/domain"
	"github.com/sirupsen/logrus"
)

// ReminderScheduler plans payment reminders for an invoice.
type ReminderScheduler interface {
	Schedule(ctx context.Context, inv *domain.Invoice) error
}

// reminderOffsets are relative to the due date.
var reminderOffsets = []struct {
	label  string
	offset time.Duration
}{
	{"before_due", -3 * 24 * time.Hour},
	{"on_due", 0},
	{"after_due", 3 * 24 * time.Hour},
}

// LogReminderScheduler records intended reminders in the log. No message is
// sent.
type LogReminderScheduler struct {
	log *logrus.Logger
}

func NewLogReminderScheduler(log *logrus.Logger) *LogReminderScheduler {
	return &LogReminderScheduler{log: log}
}

func (r *LogReminderScheduler) Schedule(_ context.Context, inv *domain.Invoice) error {
	for _, ro := range ReminderTimes(inv.DueDate) {
		r.log.WithFields(logrus.Fields{
			"invoiceId":     inv.ID,
			"invoiceNumber": inv.InvoiceNumber,
			"userId":        inv.UserID,
			"kind":          ro.Kind,
			"at":            ro.At.Format(time.RFC3339),
		}).Info("payment reminder scheduled")
	}
	return nil
}

// Reminder is one planned reminder.
type Reminder struct {
	Kind string
	At   time.Time
}

// ReminderTimes returns the reminder plan for a due date.
func ReminderTimes(due time.Time) []Reminder {
	out := make([]Reminder, 0, len(reminderOffsets))
	for _, ro := range reminderOffsets {
		out = append(out, Reminder{Kind: ro.label, At: due.Add(ro.offset)})
	}
	return out
}
