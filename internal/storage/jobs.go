package storage

import (
	"database/sql"
	"strings"
	"time"
)

const jobColumns = `id, type, payload_json, status, attempts, max_attempts, run_after, created_at, updated_at, last_error`

const defaultMaxAttempts = 3

func scanJob(row rowScanner) (Job, error) {
	var (
		j                          Job
		runAfter, created, updated string
		lastError                  sql.NullString
	)
	if err := row.Scan(&j.ID, &j.Type, &j.PayloadJSON, &j.Status, &j.Attempts, &j.MaxAttempts,
		&runAfter, &created, &updated, &lastError); err != nil {
		return Job{}, err
	}
	j.LastError = lastError.String
	for _, f := range []struct {
		raw string
		dst *time.Time
	}{{runAfter, &j.RunAfter}, {created, &j.CreatedAt}, {updated, &j.UpdatedAt}} {
		t, err := parseTime(f.raw)
		if err != nil {
			return Job{}, err
		}
		*f.dst = t
	}
	return j, nil
}

// EnqueueJob stores a pending job. A zero RunAfter means now.
func (s *Store) EnqueueJob(job Job) error {
	now := s.now()
	if job.RunAfter.IsZero() {
		job.RunAfter = now
	}
	if job.MaxAttempts <= 0 {
		job.MaxAttempts = defaultMaxAttempts
	}
	_, err := s.db.Exec(`INSERT INTO jobs (id, type, payload_json, status, attempts, max_attempts, run_after, created_at, updated_at)
		VALUES (?, ?, ?, 'pending', 0, ?, ?, ?, ?)`,
		job.ID, job.Type, job.PayloadJSON, job.MaxAttempts,
		formatTime(job.RunAfter), formatTime(now), formatTime(now))
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

// ClaimNextJob moves the oldest due pending job of one of the given types to
// running and returns it. It returns nil, nil when nothing is due.
func (s *Store) ClaimNextJob(types []string) (*Job, error) {
	if len(types) == 0 {
		return nil, nil
	}
	now := formatTime(s.now())

	args := []any{now, now}
	for _, t := range types {
		args = append(args, t)
	}
	query := `UPDATE jobs SET status = 'running', updated_at = ?
		WHERE id = (
			SELECT id FROM jobs
			WHERE status = 'pending' AND run_after <= ? AND type IN (?` + strings.Repeat(", ?", len(types)-1) + `)
			ORDER BY run_after, created_at
			LIMIT 1
		)
		RETURNING ` + jobColumns

	j, err := scanJob(s.db.QueryRow(query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (s *Store) CompleteJob(id string) error {
	res, err := s.db.Exec(`UPDATE jobs SET status = 'completed', updated_at = ? WHERE id = ?`, formatTime(s.now()), id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// FailJob records a failed attempt. The job goes back to pending after
// 2^attempts seconds until max_attempts is reached, then stays failed.
func (s *Store) FailJob(id, reason string) error {
	j, err := s.GetJob(id)
	if err != nil {
		return err
	}
	now := s.now()
	attempts := j.Attempts + 1

	status, runAfter := "failed", j.RunAfter
	if attempts < j.MaxAttempts {
		status, runAfter = "pending", now.Add(time.Second<<attempts)
	}
	res, err := s.db.Exec(`UPDATE jobs SET status = ?, attempts = ?, last_error = ?, run_after = ?, updated_at = ? WHERE id = ?`,
		status, attempts, reason, formatTime(runAfter), formatTime(now), id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) GetJob(id string) (Job, error) {
	j, err := scanJob(s.db.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return Job{}, ErrNotFound
	}
	return j, err
}
