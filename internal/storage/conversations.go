package storage

import (
	"database/sql"
	"fmt"
)

// --- Conversations ---

func (s *Store) CreateConversation(c Conversation) error {
	now := s.now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	_, err := s.db.Exec(`INSERT INTO conversations (id, user_id, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Title, formatTime(c.CreatedAt), formatTime(c.CreatedAt))
	return err
}

// StartConversation stores a new conversation together with its first
// message. Either both are written or neither is.
func (s *Store) StartConversation(c Conversation, first Message) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	if first.CreatedAt.IsZero() {
		first.CreatedAt = c.CreatedAt
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO conversations (id, user_id, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Title, formatTime(c.CreatedAt), formatTime(first.CreatedAt)); err != nil {
		return fmt.Errorf("inserting conversation: %w", err)
	}
	if _, err := tx.Exec(`INSERT INTO messages (id, conversation_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		first.ID, c.ID, first.Role, first.Content, formatTime(first.CreatedAt)); err != nil {
		return fmt.Errorf("inserting first message: %w", err)
	}
	return tx.Commit()
}

func (s *Store) GetConversation(id string) (Conversation, error) {
	return scanConversation(s.db.QueryRow(
		`SELECT id, user_id, title, created_at, updated_at FROM conversations WHERE id = ?`, id))
}

// ListConversations returns a user's conversations, most recently active first.
func (s *Store) ListConversations(userID string) ([]Conversation, error) {
	rows, err := s.db.Query(`SELECT id, user_id, title, created_at, updated_at
		FROM conversations WHERE user_id = ? ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanConversation(row rowScanner) (Conversation, error) {
	var c Conversation
	var createdAt, updatedAt string
	err := row.Scan(&c.ID, &c.UserID, &c.Title, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return Conversation{}, ErrNotFound
	}
	if err != nil {
		return Conversation{}, err
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return Conversation{}, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Conversation{}, err
	}
	return c, nil
}

// --- Messages ---

// SaveMessage appends m to its conversation and bumps the conversation's
// updated_at. Messages are never modified afterwards.
func (s *Store) SaveMessage(m Message) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now()
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`UPDATE conversations SET updated_at = ? WHERE id = ?`, formatTime(m.CreatedAt), m.ConversationID)
	if err != nil {
		return err
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT INTO messages (id, conversation_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.ConversationID, m.Role, m.Content, formatTime(m.CreatedAt)); err != nil {
		return err
	}
	return tx.Commit()
}

// RecentMessages returns the last limit messages of a conversation in
// chronological order.
func (s *Store) RecentMessages(conversationID string, limit int) ([]Message, error) {
	rows, err := s.db.Query(`SELECT id, conversation_id, role, content, created_at FROM (
			SELECT id, conversation_id, role, content, created_at, rowid AS seq
			FROM messages WHERE conversation_id = ?
			ORDER BY created_at DESC, seq DESC LIMIT ?
		) ORDER BY created_at ASC, seq ASC`, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// ListMessages returns every message of a conversation in chronological order.
func (s *Store) ListMessages(conversationID string) ([]Message, error) {
	rows, err := s.db.Query(`SELECT id, conversation_id, role, content, created_at
		FROM messages WHERE conversation_id = ? ORDER BY created_at ASC, rowid ASC`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	var out []Message
	for rows.Next() {
		var m Message
		var createdAt string
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &createdAt); err != nil {
			return nil, err
		}
		t, err := parseTime(createdAt)
		if err != nil {
			return nil, err
		}
		m.CreatedAt = t
		out = append(out, m)
	}
	return out, rows.Err()
}
