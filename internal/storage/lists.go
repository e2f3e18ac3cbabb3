package storage

import (
	"database/sql"
	"fmt"
)

const listColumns = `id, user_id, name, type, categories, is_shared, share_code, collaborators, created_at, updated_at`

// --- Smart lists ---

func (s *Store) CreateList(l SmartList) error {
	now := s.now()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	_, err := s.db.Exec(`INSERT INTO smart_lists (`+listColumns+`) VALUES (?, ?, ?, ?, ?, 0, NULL, ?, ?, ?)`,
		l.ID, l.UserID, l.Name, l.Type, encodeStrings(l.Categories), encodeStrings(l.Collaborators),
		formatTime(l.CreatedAt), formatTime(now),
	)
	return err
}

func (s *Store) GetList(id string) (SmartList, error) {
	return scanList(s.db.QueryRow(`SELECT `+listColumns+` FROM smart_lists WHERE id = ?`, id))
}

func (s *Store) GetListByShareCode(code string) (SmartList, error) {
	if code == "" {
		return SmartList{}, ErrNotFound
	}
	return scanList(s.db.QueryRow(`SELECT `+listColumns+` FROM smart_lists WHERE share_code = ? AND is_shared = 1`, code))
}

// ListListsForUser returns the lists a user owns or collaborates on, oldest first.
func (s *Store) ListListsForUser(userID string) ([]SmartList, error) {
	rows, err := s.db.Query(`SELECT `+listColumns+` FROM smart_lists
		WHERE user_id = ? OR EXISTS (SELECT 1 FROM json_each(smart_lists.collaborators) WHERE value = ?)
		ORDER BY created_at ASC, rowid ASC`, userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SmartList
	for rows.Next() {
		l, err := scanList(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) UpdateList(id string, p ListPatch) (SmartList, error) {
	var u updateBuilder
	if p.Name != nil {
		u.set("name", *p.Name)
	}
	if p.Type != nil {
		u.set("type", *p.Type)
	}
	if p.Categories != nil {
		u.set("categories", encodeStrings(*p.Categories))
	}
	if err := s.apply("smart_lists", id, &u); err != nil {
		return SmartList{}, err
	}
	return s.GetList(id)
}

// SetListSharing enables sharing with code, or disables it when code is empty.
// is_shared and share_code always change together.
func (s *Store) SetListSharing(id, code string) (SmartList, error) {
	var u updateBuilder
	if code == "" {
		u.set("is_shared", 0)
		u.set("share_code", nil)
	} else {
		u.set("is_shared", 1)
		u.set("share_code", code)
	}
	if err := s.apply("smart_lists", id, &u); err != nil {
		return SmartList{}, err
	}
	return s.GetList(id)
}

// AddCollaborator appends userID to the list's collaborators. The owner and
// existing collaborators are rejected with ErrConflict. The read and the write
// share one transaction so concurrent invites cannot drop each other.
func (s *Store) AddCollaborator(listID, userID string) (SmartList, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return SmartList{}, err
	}
	defer tx.Rollback()

	l, err := scanList(tx.QueryRow(`SELECT `+listColumns+` FROM smart_lists WHERE id = ?`, listID))
	if err != nil {
		return SmartList{}, err
	}
	if l.UserID == userID || l.HasAccess(userID) {
		return SmartList{}, ErrConflict
	}
	collaborators := append(l.Collaborators, userID)
	res, err := tx.Exec(`UPDATE smart_lists SET collaborators = ?, updated_at = ? WHERE id = ?`,
		encodeStrings(collaborators), formatTime(s.now()), listID)
	if err != nil {
		return SmartList{}, err
	}
	if err := requireAffected(res); err != nil {
		return SmartList{}, err
	}
	if err := tx.Commit(); err != nil {
		return SmartList{}, err
	}
	return s.GetList(listID)
}

// DeleteList removes the list's items first, then the list itself.
func (s *Store) DeleteList(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM list_items WHERE list_id = ?`, id); err != nil {
		return fmt.Errorf("deleting items: %w", err)
	}
	res, err := tx.Exec(`DELETE FROM smart_lists WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	return tx.Commit()
}

func scanList(row rowScanner) (SmartList, error) {
	var l SmartList
	var categories, collaborators, createdAt, updatedAt string
	var shared int
	var code sql.NullString
	err := row.Scan(&l.ID, &l.UserID, &l.Name, &l.Type, &categories, &shared, &code, &collaborators, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return SmartList{}, ErrNotFound
	}
	if err != nil {
		return SmartList{}, err
	}
	l.IsShared = shared == 1
	l.ShareCode = code.String
	if l.Categories, err = decodeStrings(categories); err != nil {
		return SmartList{}, err
	}
	if l.Collaborators, err = decodeStrings(collaborators); err != nil {
		return SmartList{}, err
	}
	if l.CreatedAt, err = parseTime(createdAt); err != nil {
		return SmartList{}, err
	}
	if l.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return SmartList{}, err
	}
	return l, nil
}

// --- List items ---

const itemColumns = `id, list_id, name, category, completed, amount, currency, quantity, unit, position, priority, assigned_to, created_at, updated_at`

// CreateItem appends i to the end of its list; the stored position is
// returned in the result. The list must exist.
func (s *Store) CreateItem(i ListItem) (ListItem, error) {
	now := s.now()
	if i.CreatedAt.IsZero() {
		i.CreatedAt = now
	}
	i.UpdatedAt = now

	tx, err := s.db.Begin()
	if err != nil {
		return ListItem{}, err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM smart_lists WHERE id = ?`, i.ListID).Scan(&exists); err != nil {
		return ListItem{}, err
	}
	if exists == 0 {
		return ListItem{}, ErrNotFound
	}
	if err := tx.QueryRow(`SELECT COALESCE(MAX(position) + 1, 0) FROM list_items WHERE list_id = ?`, i.ListID).Scan(&i.Position); err != nil {
		return ListItem{}, err
	}

	_, err = tx.Exec(`INSERT INTO list_items (`+itemColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		i.ID, i.ListID, i.Name, i.Category, boolToInt(i.Completed), nullFloat(i.Amount), i.Currency,
		nullFloat(i.Quantity), i.Unit, i.Position, i.Priority, i.AssignedTo,
		formatTime(i.CreatedAt), formatTime(i.UpdatedAt),
	)
	if err != nil {
		return ListItem{}, err
	}
	if err := tx.Commit(); err != nil {
		return ListItem{}, err
	}
	return i, nil
}

func (s *Store) GetItem(id string) (ListItem, error) {
	return scanItem(s.db.QueryRow(`SELECT `+itemColumns+` FROM list_items WHERE id = ?`, id))
}

// ListItems returns a list's items ordered by position.
func (s *Store) ListItems(listID string) ([]ListItem, error) {
	rows, err := s.db.Query(`SELECT `+itemColumns+` FROM list_items WHERE list_id = ? ORDER BY position ASC, created_at ASC`, listID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ListItem
	for rows.Next() {
		i, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

func (s *Store) UpdateItem(id string, p ItemPatch) (ListItem, error) {
	var u updateBuilder
	if p.Name != nil {
		u.set("name", *p.Name)
	}
	if p.Category != nil {
		u.set("category", *p.Category)
	}
	if p.Completed != nil {
		u.set("completed", boolToInt(*p.Completed))
	}
	if p.Amount != nil {
		u.set("amount", *p.Amount)
	}
	if p.Currency != nil {
		u.set("currency", *p.Currency)
	}
	if p.Quantity != nil {
		u.set("quantity", *p.Quantity)
	}
	if p.Unit != nil {
		u.set("unit", *p.Unit)
	}
	if p.Position != nil {
		u.set("position", *p.Position)
	}
	if p.Priority != nil {
		u.set("priority", *p.Priority)
	}
	if p.AssignedTo != nil {
		u.set("assigned_to", *p.AssignedTo)
	}
	if err := s.apply("list_items", id, &u); err != nil {
		return ListItem{}, err
	}
	return s.GetItem(id)
}

// ToggleItem flips the completion flag.
func (s *Store) ToggleItem(id string) (ListItem, error) {
	res, err := s.db.Exec(`UPDATE list_items SET completed = 1 - completed, updated_at = ? WHERE id = ?`, formatTime(s.now()), id)
	if err != nil {
		return ListItem{}, err
	}
	if err := requireAffected(res); err != nil {
		return ListItem{}, err
	}
	return s.GetItem(id)
}

func (s *Store) DeleteItem(id string) error {
	res, err := s.db.Exec(`DELETE FROM list_items WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func scanItem(row rowScanner) (ListItem, error) {
	var i ListItem
	var completed int
	var amount, quantity sql.NullFloat64
	var createdAt, updatedAt string
	err := row.Scan(&i.ID, &i.ListID, &i.Name, &i.Category, &completed, &amount, &i.Currency,
		&quantity, &i.Unit, &i.Position, &i.Priority, &i.AssignedTo, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return ListItem{}, ErrNotFound
	}
	if err != nil {
		return ListItem{}, err
	}
	i.Completed = completed == 1
	if amount.Valid {
		v := amount.Float64
		i.Amount = &v
	}
	if quantity.Valid {
		v := quantity.Float64
		i.Quantity = &v
	}
	if i.CreatedAt, err = parseTime(createdAt); err != nil {
		return ListItem{}, err
	}
	if i.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return ListItem{}, err
	}
	return i, nil
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
