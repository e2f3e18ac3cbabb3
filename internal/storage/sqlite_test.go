package storage

import (
	"slices"
	"strings"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// Reopening a data directory keeps the schema and the rows in it.
func TestReopenKeepsSchemaAndData(t *testing.T) {
	dir := t.TempDir()

	first, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	before, err := first.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if err := first.EnqueueJob(Job{ID: "recat-keep", Type: recategorize, PayloadJSON: "{}"}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	first.Close()

	second, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	after, err := second.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if !slices.Equal(before, after) {
		t.Errorf("applied migrations %v became %v on reopen", before, after)
	}
	if !slices.IsSorted(after) || len(after) < 2 {
		t.Errorf("applied migrations = %v, want ascending 001 and 002", after)
	}
	if _, err := second.GetJob("recat-keep"); err != nil {
		t.Errorf("job lost across reopen: %v", err)
	}
}

func TestSchemaIndexes(t *testing.T) {
	s := openTestStore(t)

	rows, err := s.db.Query(`SELECT name FROM sqlite_master WHERE type = 'index' AND name LIKE 'idx_%'`)
	if err != nil {
		t.Fatalf("listing indexes: %v", err)
	}
	defer rows.Close()
	have := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatal(err)
		}
		have[name] = true
	}
	for _, want := range []string{
		"idx_conversations_user", "idx_messages_conversation", "idx_smart_lists_user",
		"idx_list_items_list", "idx_reminders_user_due", "idx_contacts_user", "idx_jobs_status_run_after",
	} {
		if !have[want] {
			t.Errorf("missing index %s", want)
		}
	}
}

func TestParseMigrationVersion(t *testing.T) {
	v, err := parseMigrationVersion("002_jobs.sql")
	if err != nil {
		t.Fatalf("parseMigrationVersion: %v", err)
	}
	if v != 2 {
		t.Errorf("version = %d, want 2", v)
	}
	if _, err := parseMigrationVersion("jobs.sql"); err == nil {
		t.Error("expected error for file without numeric prefix")
	}
}

func TestTimeFormatOrdersLexically(t *testing.T) {
	a := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	b := a.Add(500 * time.Millisecond)
	c := time.Date(2025, 1, 1, 10, 0, 0, 0, time.FixedZone("EST", -5*3600))
	if !(formatTime(a) < formatTime(b)) {
		t.Errorf("%s should sort before %s", formatTime(a), formatTime(b))
	}
	if !(formatTime(b) < formatTime(c)) {
		t.Errorf("%s should sort before %s", formatTime(b), formatTime(c))
	}
	got, err := parseTime(formatTime(b))
	if err != nil {
		t.Fatalf("parseTime: %v", err)
	}
	if !got.Equal(b) {
		t.Errorf("round trip = %v, want %v", got, b)
	}
}

const recategorize = "recategorize_item"

// pinClock freezes the store clock at 2026-03-14 12:00 UTC and returns a
// function that moves it forward.
func pinClock(s *Store) func(time.Duration) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	return func(d time.Duration) { now = now.Add(d) }
}

func enqueueRecategorize(t *testing.T, s *Store, id, item string) {
	t.Helper()
	payload := `{"item_id":"` + item + `","name":"oat milk","list_type":"shopping"}`
	if err := s.EnqueueJob(Job{ID: id, Type: recategorize, PayloadJSON: payload}); err != nil {
		t.Fatalf("EnqueueJob(%s): %v", id, err)
	}
}

func TestJobQueue_ClaimMarksRunning(t *testing.T) {
	s := openTestStore(t)
	pinClock(s)
	enqueueRecategorize(t, s, "recat-oat", "item-oat")

	job, err := s.ClaimNextJob([]string{recategorize})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if job == nil {
		t.Fatal("no job claimed")
	}
	if job.ID != "recat-oat" || job.Status != "running" {
		t.Errorf("claimed %s in state %s", job.ID, job.Status)
	}
	if job.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want default 3", job.MaxAttempts)
	}
	if !strings.Contains(job.PayloadJSON, `"item_id":"item-oat"`) {
		t.Errorf("payload = %s", job.PayloadJSON)
	}

	stored, err := s.GetJob("recat-oat")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if stored.Status != "running" {
		t.Errorf("stored status = %s, want running", stored.Status)
	}

	again, err := s.ClaimNextJob([]string{recategorize})
	if err != nil {
		t.Fatalf("second ClaimNextJob: %v", err)
	}
	if again != nil {
		t.Errorf("running job %s handed out twice", again.ID)
	}
}

func TestJobQueue_ClaimSelection(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, s *Store)
		types []string
		want  string
	}{
		{
			name:  "empty queue",
			setup: func(*testing.T, *Store) {},
			types: []string{recategorize},
		},
		{
			name:  "no types requested",
			setup: func(t *testing.T, s *Store) { enqueueRecategorize(t, s, "recat-1", "item-1") },
		},
		{
			name: "other job type only",
			setup: func(t *testing.T, s *Store) {
				if err := s.EnqueueJob(Job{ID: "digest-1", Type: "send_digest", PayloadJSON: "{}"}); err != nil {
					t.Fatal(err)
				}
			},
			types: []string{recategorize},
		},
		{
			name: "scheduled for later",
			setup: func(t *testing.T, s *Store) {
				later := s.now().Add(10 * time.Minute)
				if err := s.EnqueueJob(Job{ID: "recat-later", Type: recategorize, PayloadJSON: "{}", RunAfter: later}); err != nil {
					t.Fatal(err)
				}
			},
			types: []string{recategorize},
		},
		{
			name: "earliest run_after first",
			setup: func(t *testing.T, s *Store) {
				enqueueRecategorize(t, s, "recat-now", "item-now")
				earlier := s.now().Add(-time.Hour)
				if err := s.EnqueueJob(Job{ID: "recat-overdue", Type: recategorize, PayloadJSON: "{}", RunAfter: earlier}); err != nil {
					t.Fatal(err)
				}
			},
			types: []string{recategorize},
			want:  "recat-overdue",
		},
		{
			name: "filters by type",
			setup: func(t *testing.T, s *Store) {
				if err := s.EnqueueJob(Job{ID: "digest-1", Type: "send_digest", PayloadJSON: "{}"}); err != nil {
					t.Fatal(err)
				}
				enqueueRecategorize(t, s, "recat-2", "item-2")
			},
			types: []string{recategorize},
			want:  "recat-2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := openTestStore(t)
			pinClock(s)
			tt.setup(t, s)

			job, err := s.ClaimNextJob(tt.types)
			if err != nil {
				t.Fatalf("ClaimNextJob: %v", err)
			}
			got := ""
			if job != nil {
				got = job.ID
			}
			if got != tt.want {
				t.Errorf("claimed %q, want %q", got, tt.want)
			}
		})
	}
}

func TestJobQueue_Complete(t *testing.T) {
	s := openTestStore(t)
	pinClock(s)
	enqueueRecategorize(t, s, "recat-done", "item-done")
	if _, err := s.ClaimNextJob([]string{recategorize}); err != nil {
		t.Fatal(err)
	}

	if err := s.CompleteJob("recat-done"); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}
	job, err := s.GetJob("recat-done")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.Status != "completed" {
		t.Errorf("status = %s, want completed", job.Status)
	}
	if err := s.CompleteJob("recat-missing"); err != ErrNotFound {
		t.Errorf("CompleteJob(missing) = %v, want ErrNotFound", err)
	}
}

// A failing categorizer call is retried after 2s then 4s, and the third
// failure is terminal.
func TestJobQueue_FailureBackoff(t *testing.T) {
	s := openTestStore(t)
	advance := pinClock(s)
	enqueueRecategorize(t, s, "recat-flaky", "item-flaky")

	backoffs := []time.Duration{2 * time.Second, 4 * time.Second}
	for attempt, wait := range backoffs {
		job, err := s.ClaimNextJob([]string{recategorize})
		if err != nil || job == nil {
			t.Fatalf("attempt %d: claim = %v, %v", attempt+1, job, err)
		}
		failedAt := s.now()
		if err := s.FailJob(job.ID, "categorizer timeout"); err != nil {
			t.Fatalf("FailJob: %v", err)
		}

		stored, err := s.GetJob(job.ID)
		if err != nil {
			t.Fatalf("GetJob: %v", err)
		}
		if stored.Status != "pending" || stored.Attempts != attempt+1 {
			t.Errorf("attempt %d: status=%s attempts=%d", attempt+1, stored.Status, stored.Attempts)
		}
		if !stored.RunAfter.Equal(failedAt.Add(wait)) {
			t.Errorf("attempt %d: run_after = %v, want %v", attempt+1, stored.RunAfter, failedAt.Add(wait))
		}
		if stored.LastError != "categorizer timeout" {
			t.Errorf("last_error = %q", stored.LastError)
		}

		if early, _ := s.ClaimNextJob([]string{recategorize}); early != nil {
			t.Errorf("attempt %d: job claimable before backoff elapsed", attempt+1)
		}
		advance(wait)
	}

	job, err := s.ClaimNextJob([]string{recategorize})
	if err != nil || job == nil {
		t.Fatalf("final claim = %v, %v", job, err)
	}
	if err := s.FailJob(job.ID, "categorizer unavailable"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}
	stored, err := s.GetJob(job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if stored.Status != "failed" || stored.Attempts != 3 {
		t.Errorf("status=%s attempts=%d, want failed after 3", stored.Status, stored.Attempts)
	}
	advance(time.Hour)
	if next, _ := s.ClaimNextJob([]string{recategorize}); next != nil {
		t.Errorf("failed job %s was claimed again", next.ID)
	}
	if err := s.FailJob("recat-missing", "x"); err != ErrNotFound {
		t.Errorf("FailJob(missing) = %v, want ErrNotFound", err)
	}
}
