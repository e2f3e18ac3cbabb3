package storage

import (
	"database/sql"
	"strings"
)

const userColumns = `id, email, name, password_hash, preferences, onboarding_completed, created_at, updated_at`

// CreateUser inserts u. Emails are unique case-insensitively; a duplicate
// returns ErrConflict.
func (s *Store) CreateUser(u User) error {
	now := s.now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.PreferencesJSON == "" {
		u.PreferencesJSON = "{}"
	}
	_, err := s.db.Exec(`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, strings.ToLower(strings.TrimSpace(u.Email)), u.Name, u.PasswordHash, u.PreferencesJSON,
		boolToInt(u.OnboardingCompleted), formatTime(u.CreatedAt), formatTime(now),
	)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (s *Store) GetUser(id string) (User, error) {
	return scanUser(s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (s *Store) GetUserByEmail(email string) (User, error) {
	return scanUser(s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE email = ?`,
		strings.ToLower(strings.TrimSpace(email))))
}

// UpdateUser applies a partial update and returns the stored row.
func (s *Store) UpdateUser(id string, p UserPatch) (User, error) {
	var u updateBuilder
	if p.Name != nil {
		u.set("name", *p.Name)
	}
	if p.PreferencesJSON != nil {
		u.set("preferences", *p.PreferencesJSON)
	}
	if p.OnboardingCompleted != nil {
		u.set("onboarding_completed", boolToInt(*p.OnboardingCompleted))
	}
	if err := s.apply("users", id, &u); err != nil {
		return User{}, err
	}
	return s.GetUser(id)
}

func scanUser(row rowScanner) (User, error) {
	var u User
	var onboarding int
	var createdAt, updatedAt string
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.PreferencesJSON, &onboarding, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	u.OnboardingCompleted = onboarding == 1
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return User{}, err
	}
	if u.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return User{}, err
	}
	return u, nil
}
