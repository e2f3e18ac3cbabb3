package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write would violate a uniqueness rule.
var ErrConflict = errors.New("conflict")

type User struct {
	ID                  string    `json:"id"`
	Email               string    `json:"email"`
	Name                string    `json:"name"`
	PasswordHash        string    `json:"-"`
	PreferencesJSON     string    `json:"-"` // typed view lives in package profile
	OnboardingCompleted bool      `json:"onboardingCompleted"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// UserPatch carries a partial update; nil fields are left untouched.
type UserPatch struct {
	Name                *string
	PreferencesJSON     *string
	OnboardingCompleted *bool
}

type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
}

type SmartList struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	Name          string    `json:"name"`
	Type          string    `json:"type"`
	Categories    []string  `json:"categories"`
	IsShared      bool      `json:"isShared"`
	ShareCode     string    `json:"shareCode,omitempty"`
	Collaborators []string  `json:"collaborators"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// HasAccess reports whether userID owns the list or collaborates on it.
func (l SmartList) HasAccess(userID string) bool {
	if userID == "" {
		return false
	}
	if l.UserID == userID {
		return true
	}
	for _, c := range l.Collaborators {
		if c == userID {
			return true
		}
	}
	return false
}

type ListPatch struct {
	Name       *string
	Type       *string
	Categories *[]string
}

type ListItem struct {
	ID         string    `json:"id"`
	ListID     string    `json:"listId"`
	Name       string    `json:"name"`
	Category   string    `json:"category"`
	Completed  bool      `json:"completed"`
	Amount     *float64  `json:"amount,omitempty"`
	Currency   string    `json:"currency,omitempty"`
	Quantity   *float64  `json:"quantity,omitempty"`
	Unit       string    `json:"unit,omitempty"`
	Position   int       `json:"position"`
	Priority   string    `json:"priority,omitempty"`
	AssignedTo string    `json:"assignedTo,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type ItemPatch struct {
	Name       *string
	Category   *string
	Completed  *bool
	Amount     *float64
	Currency   *string
	Quantity   *float64
	Unit       *string
	Position   *int
	Priority   *string
	AssignedTo *string
}

type Reminder struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	DueDate     time.Time `json:"dueDate"`
	Category    string    `json:"category"`
	Completed   bool      `json:"completed"`
	Recurrence  string    `json:"recurrence,omitempty"` // "", daily, weekly, monthly, yearly
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type ReminderPatch struct {
	Title       *string
	Description *string
	DueDate     *time.Time
	Category    *string
	Completed   *bool
	Recurrence  *string
}

type Contact struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Company   string    `json:"company,omitempty"`
	Title     string    `json:"title,omitempty"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Website   string    `json:"website,omitempty"`
	Address   string    `json:"address,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type ContactPatch struct {
	Name    *string
	Company *string
	Title   *string
	Email   *string
	Phone   *string
	Website *string
	Address *string
	Notes   *string
}

type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}
