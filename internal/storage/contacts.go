package storage

import "database/sql"

const contactColumns = `id, user_id, name, company, title, email, phone, website, address, notes, source, created_at, updated_at`

func (s *Store) CreateContact(c Contact) error {
	now := s.now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.Source == "" {
		c.Source = "manual"
	}
	_, err := s.db.Exec(`INSERT INTO contacts (`+contactColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Name, c.Company, c.Title, c.Email, c.Phone, c.Website, c.Address, c.Notes, c.Source,
		formatTime(c.CreatedAt), formatTime(now),
	)
	return err
}

func (s *Store) GetContact(id string) (Contact, error) {
	return scanContact(s.db.QueryRow(`SELECT `+contactColumns+` FROM contacts WHERE id = ?`, id))
}

// ListContacts returns a user's contacts, newest first.
func (s *Store) ListContacts(userID string) ([]Contact, error) {
	rows, err := s.db.Query(`SELECT `+contactColumns+` FROM contacts WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) UpdateContact(id string, p ContactPatch) (Contact, error) {
	var u updateBuilder
	fields := []struct {
		col string
		v   *string
	}{
		{"name", p.Name},
		{"company", p.Company},
		{"title", p.Title},
		{"email", p.Email},
		{"phone", p.Phone},
		{"website", p.Website},
		{"address", p.Address},
		{"notes", p.Notes},
	}
	for _, f := range fields {
		if f.v != nil {
			u.set(f.col, *f.v)
		}
	}
	if err := s.apply("contacts", id, &u); err != nil {
		return Contact{}, err
	}
	return s.GetContact(id)
}

func (s *Store) DeleteContact(id string) error {
	res, err := s.db.Exec(`DELETE FROM contacts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func scanContact(row rowScanner) (Contact, error) {
	var c Contact
	var createdAt, updatedAt string
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Company, &c.Title, &c.Email, &c.Phone,
		&c.Website, &c.Address, &c.Notes, &c.Source, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return Contact{}, ErrNotFound
	}
	if err != nil {
		return Contact{}, err
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return Contact{}, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Contact{}, err
	}
	return c, nil
}
