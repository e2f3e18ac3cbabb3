package storage

import (
	"database/sql"
	"time"
)

const reminderColumns = `id, user_id, title, description, due_date, category, completed, recurrence, created_at, updated_at`

func (s *Store) CreateReminder(r Reminder) error {
	now := s.now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	_, err := s.db.Exec(`INSERT INTO reminders (`+reminderColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.Title, r.Description, formatTime(r.DueDate), r.Category,
		boolToInt(r.Completed), r.Recurrence, formatTime(r.CreatedAt), formatTime(now),
	)
	return err
}

func (s *Store) GetReminder(id string) (Reminder, error) {
	return scanReminder(s.db.QueryRow(`SELECT `+reminderColumns+` FROM reminders WHERE id = ?`, id))
}

// ListReminders returns a user's reminders ordered by due date.
func (s *Store) ListReminders(userID string) ([]Reminder, error) {
	return s.queryReminders(`SELECT `+reminderColumns+` FROM reminders WHERE user_id = ? ORDER BY due_date ASC, created_at ASC`, userID)
}

// PendingReminders returns a user's incomplete reminders due before the given time.
func (s *Store) PendingReminders(userID string, before time.Time) ([]Reminder, error) {
	return s.queryReminders(`SELECT `+reminderColumns+` FROM reminders
		WHERE user_id = ? AND completed = 0 AND due_date < ? ORDER BY due_date ASC`, userID, formatTime(before))
}

func (s *Store) queryReminders(query string, args ...any) ([]Reminder, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) UpdateReminder(id string, p ReminderPatch) (Reminder, error) {
	var u updateBuilder
	if p.Title != nil {
		u.set("title", *p.Title)
	}
	if p.Description != nil {
		u.set("description", *p.Description)
	}
	if p.DueDate != nil {
		u.set("due_date", formatTime(*p.DueDate))
	}
	if p.Category != nil {
		u.set("category", *p.Category)
	}
	if p.Completed != nil {
		u.set("completed", boolToInt(*p.Completed))
	}
	if p.Recurrence != nil {
		u.set("recurrence", *p.Recurrence)
	}
	if err := s.apply("reminders", id, &u); err != nil {
		return Reminder{}, err
	}
	return s.GetReminder(id)
}

// ToggleReminder flips the completion flag.
func (s *Store) ToggleReminder(id string) (Reminder, error) {
	res, err := s.db.Exec(`UPDATE reminders SET completed = 1 - completed, updated_at = ? WHERE id = ?`, formatTime(s.now()), id)
	if err != nil {
		return Reminder{}, err
	}
	if err := requireAffected(res); err != nil {
		return Reminder{}, err
	}
	return s.GetReminder(id)
}

func (s *Store) DeleteReminder(id string) error {
	res, err := s.db.Exec(`DELETE FROM reminders WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func scanReminder(row rowScanner) (Reminder, error) {
	var r Reminder
	var completed int
	var due, createdAt, updatedAt string
	err := row.Scan(&r.ID, &r.UserID, &r.Title, &r.Description, &due, &r.Category,
		&completed, &r.Recurrence, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return Reminder{}, ErrNotFound
	}
	if err != nil {
		return Reminder{}, err
	}
	r.Completed = completed == 1
	if r.DueDate, err = parseTime(due); err != nil {
		return Reminder{}, err
	}
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return Reminder{}, err
	}
	if r.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Reminder{}, err
	}
	return r, nil
}
