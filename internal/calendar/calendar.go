// Package calendar renders reminders as iCalendar data and computes
// recurrence dates.
package calendar

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/gabai/gabai/internal/storage"
)

// EventDuration is the length of every exported reminder event.
const EventDuration = 30 * time.Minute

const productID = "-//GabAi//Reminders//EN"

// Recurrence values a reminder may carry.
const (
	Daily   = "daily"
	Weekly  = "weekly"
	Monthly = "monthly"
	Yearly  = "yearly"
)

var rrules = map[string]string{
	Daily:   "FREQ=DAILY",
	Weekly:  "FREQ=WEEKLY",
	Monthly: "FREQ=MONTHLY",
	Yearly:  "FREQ=YEARLY",
}

// ValidRecurrence reports whether r is empty or a supported recurrence.
func ValidRecurrence(r string) bool {
	_, ok := rrules[r]
	return r == "" || ok
}

// Export renders reminders as a calendar named name.
func Export(name string, reminders []storage.Reminder, now time.Time) string {
	cal := newCalendar()
	if name != "" {
		cal.SetXWRCalName(name)
	}
	for _, r := range reminders {
		addEvent(cal, r, now)
	}
	return cal.Serialize()
}

// Event renders a single reminder as a calendar with one event.
func Event(r storage.Reminder, now time.Time) string {
	cal := newCalendar()
	addEvent(cal, r, now)
	return cal.Serialize()
}

func newCalendar() *ics.Calendar {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)
	return cal
}

func addEvent(cal *ics.Calendar, r storage.Reminder, now time.Time) {
	ev := cal.AddEvent(r.ID)
	ev.SetDtStampTime(now)
	ev.SetCreatedTime(r.CreatedAt)
	ev.SetModifiedAt(r.UpdatedAt)
	ev.SetStartAt(r.DueDate)
	ev.SetEndAt(r.DueDate.Add(EventDuration))
	ev.SetSummary(r.Title)
	if r.Description != "" {
		ev.SetDescription(r.Description)
	}
	if r.Category != "" {
		ev.AddCategory(r.Category)
	}
	if rule, ok := rrules[r.Recurrence]; ok {
		ev.AddRrule(rule)
	}
	if r.Completed {
		ev.SetStatus(ics.ObjectStatusCompleted)
	} else {
		ev.SetStatus(ics.ObjectStatusConfirmed)
	}
}

// NextOccurrence returns the due date following due for a recurrence.
func NextOccurrence(due time.Time, recurrence string) (time.Time, error) {
	switch recurrence {
	case Daily:
		return due.AddDate(0, 0, 1), nil
	case Weekly:
		return due.AddDate(0, 0, 7), nil
	case Monthly:
		return due.AddDate(0, 1, 0), nil
	case Yearly:
		return due.AddDate(1, 0, 0), nil
	default:
		return time.Time{}, fmt.Errorf("no next occurrence for recurrence %q", recurrence)
	}
}
