package calendar

import (
	"strings"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/gabai/gabai/internal/storage"
)

var now = time.Date(2026, 10, 19, 14, 0, 0, 0, time.UTC)

func reminder(id, title string, due time.Time) storage.Reminder {
	return storage.Reminder{
		ID: id, UserID: "u1", Title: title, DueDate: due,
		Category: "Appointment", CreatedAt: now, UpdatedAt: now,
	}
}

func TestEvent(t *testing.T) {
	due := time.Date(2026, 10, 20, 19, 0, 0, 0, time.UTC)
	r := reminder("r1", "Call the dentist", due)
	r.Recurrence = Weekly
	r.Description = "Ask about cleaning"

	out := Event(r, now)

	cal, err := ics.ParseCalendar(strings.NewReader(out))
	if err != nil {
		t.Fatalf("ParseCalendar: %v\n%s", err, out)
	}
	events := cal.Events()
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	ev := events[0]
	if ev.Id() != "r1" {
		t.Errorf("UID = %q, want r1", ev.Id())
	}
	start, err := ev.GetStartAt()
	if err != nil || !start.Equal(due) {
		t.Errorf("start = %v, %v; want %v", start, err, due)
	}
	end, err := ev.GetEndAt()
	if err != nil || !end.Equal(due.Add(30*time.Minute)) {
		t.Errorf("end = %v, %v; want +30m", end, err)
	}
	for _, want := range []string{"SUMMARY:Call the dentist", "RRULE:FREQ=WEEKLY", "CATEGORIES:Appointment", "PRODID:-//GabAi//Reminders//EN", "STATUS:CONFIRMED"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestExport(t *testing.T) {
	rs := []storage.Reminder{
		reminder("r1", "One", now.Add(time.Hour)),
		reminder("r2", "Two", now.Add(2*time.Hour)),
	}
	rs[1].Completed = true

	out := Export("Ada's reminders", rs, now)
	cal, err := ics.ParseCalendar(strings.NewReader(out))
	if err != nil {
		t.Fatalf("ParseCalendar: %v", err)
	}
	if len(cal.Events()) != 2 {
		t.Errorf("events = %d, want 2", len(cal.Events()))
	}
	if !strings.Contains(out, "X-WR-CALNAME:Ada's reminders") || !strings.Contains(out, "STATUS:COMPLETED") {
		t.Errorf("output:\n%s", out)
	}
	if strings.Contains(out, "RRULE") {
		t.Error("non-recurring reminders must not carry RRULE")
	}
}

func TestExport_Empty(t *testing.T) {
	out := Export("", nil, now)
	if !strings.Contains(out, "BEGIN:VCALENDAR") || strings.Contains(out, "BEGIN:VEVENT") {
		t.Errorf("output:\n%s", out)
	}
}

func TestNextOccurrence(t *testing.T) {
	due := time.Date(2026, 1, 31, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		rec  string
		want time.Time
	}{
		{Daily, time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)},
		{Weekly, time.Date(2026, 2, 7, 9, 0, 0, 0, time.UTC)},
		{Monthly, time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)}, // Feb 31 normalizes
		{Yearly, time.Date(2027, 1, 31, 9, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := NextOccurrence(due, tt.rec)
		if err != nil || !got.Equal(tt.want) {
			t.Errorf("NextOccurrence(%s) = %v, %v; want %v", tt.rec, got, err, tt.want)
		}
	}
	if _, err := NextOccurrence(due, ""); err == nil {
		t.Error("expected error for non-recurring reminder")
	}
}

func TestValidRecurrence(t *testing.T) {
	for _, r := range []string{"", Daily, Weekly, Monthly, Yearly} {
		if !ValidRecurrence(r) {
			t.Errorf("ValidRecurrence(%q) = false", r)
		}
	}
	if ValidRecurrence("hourly") {
		t.Error("hourly should be invalid")
	}
}
