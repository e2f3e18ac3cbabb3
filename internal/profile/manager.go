package profile

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gabai/gabai/internal/storage"
)

// UserStore defines the storage operations the Manager needs.
// Implemented by storage.Store.
type UserStore interface {
	GetUser(id string) (storage.User, error)
	UpdateUser(id string, p storage.UserPatch) (storage.User, error)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type cacheEntry struct {
	prefs    Preferences
	cachedAt time.Time
}

// Manager provides cached, typed access to each user's preferences.
type Manager struct {
	store UserStore
	clock Clock
	ttl   time.Duration

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// NewManager creates a Manager with a 60-second cache TTL.
func NewManager(store UserStore) *Manager {
	return NewManagerWithClock(store, realClock{}, 60*time.Second)
}

// NewManagerWithClock creates a Manager with a custom clock (for testing).
func NewManagerWithClock(store UserStore, clock Clock, ttl time.Duration) *Manager {
	return &Manager{
		store: store,
		clock: clock,
		ttl:   ttl,
		cache: make(map[string]cacheEntry),
	}
}

// Get returns the user's preferences from cache or storage. Unknown users
// return storage.ErrNotFound.
func (m *Manager) Get(userID string) (Preferences, error) {
	m.mu.RLock()
	e, ok := m.cache[userID]
	m.mu.RUnlock()
	if ok && m.clock.Now().Before(e.cachedAt.Add(m.ttl)) {
		return deepCopy(e.prefs), nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock.
	if e, ok := m.cache[userID]; ok && m.clock.Now().Before(e.cachedAt.Add(m.ttl)) {
		return deepCopy(e.prefs), nil
	}

	u, err := m.store.GetUser(userID)
	if err != nil {
		return Preferences{}, fmt.Errorf("loading user %s: %w", userID, err)
	}
	p := parseStored(userID, u.PreferencesJSON)
	m.cache[userID] = cacheEntry{prefs: p, cachedAt: m.clock.Now()}
	return deepCopy(p), nil
}

// Set validates and stores preferences, replacing the previous document.
func (m *Manager) Set(userID string, p Preferences) (storage.User, error) {
	return m.save(userID, p, nil)
}

// CompleteOnboarding stores preferences and marks onboarding done.
func (m *Manager) CompleteOnboarding(userID string, p Preferences) (storage.User, error) {
	done := true
	return m.save(userID, p, &done)
}

func (m *Manager) save(userID string, p Preferences, onboarding *bool) (storage.User, error) {
	p = p.Normalize()
	if err := p.Validate(); err != nil {
		return storage.User{}, err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return storage.User{}, fmt.Errorf("marshalling preferences: %w", err)
	}
	raw := string(data)

	m.mu.Lock()
	defer m.mu.Unlock()

	u, err := m.store.UpdateUser(userID, storage.UserPatch{PreferencesJSON: &raw, OnboardingCompleted: onboarding})
	if err != nil {
		return storage.User{}, fmt.Errorf("saving preferences for %s: %w", userID, err)
	}
	delete(m.cache, userID)
	return u, nil
}

// Summary returns a compact description of the user's preferences for the
// assistant system prompt.
func (m *Manager) Summary(userID string) (string, error) {
	p, err := m.Get(userID)
	if err != nil {
		return "", err
	}
	return summarize(p), nil
}

// maxSummaryChars keeps the summary under ~300 tokens (4 chars/token).
const maxSummaryChars = 1200

func summarize(p Preferences) string {
	var parts []string

	if len(p.Dietary) > 0 {
		parts = append(parts, fmt.Sprintf("Dietary: %s.", strings.Join(p.Dietary, ", ")))
	}
	if p.Religious != "" {
		parts = append(parts, fmt.Sprintf("Religious observance: %s.", p.Religious))
	}
	if p.CommunicationStyle != "" {
		parts = append(parts, fmt.Sprintf("Prefers a %s communication style.", p.CommunicationStyle))
	}
	if len(p.Interests) > 0 {
		parts = append(parts, fmt.Sprintf("Interests: %s.", strings.Join(p.Interests, ", ")))
	}
	if p.FamilyDetails != "" {
		parts = append(parts, fmt.Sprintf("Family: %s.", strings.TrimRight(p.FamilyDetails, ".")))
	}
	if s := p.SleepSchedule; s != nil {
		switch {
		case s.Bedtime != "" && s.WakeTime != "":
			parts = append(parts, fmt.Sprintf("Sleeps %s to %s.", s.Bedtime, s.WakeTime))
		case s.Bedtime != "":
			parts = append(parts, fmt.Sprintf("Goes to bed at %s.", s.Bedtime))
		case s.WakeTime != "":
			parts = append(parts, fmt.Sprintf("Wakes up at %s.", s.WakeTime))
		}
	}

	if len(parts) == 0 {
		return "No preferences recorded yet."
	}

	summary := strings.Join(parts, " ")
	if len(summary) > maxSummaryChars {
		// Ensure we don't split a multi-byte UTF-8 character.
		end := maxSummaryChars
		for end > 0 && !utf8.RuneStart(summary[end]) {
			end--
		}
		if idx := strings.LastIndex(summary[:end], " "); idx > 0 {
			summary = summary[:idx]
		} else {
			summary = summary[:end]
		}
	}
	return summary
}

// parseStored reads the stored JSON document. Malformed documents are logged
// and treated as empty.
func parseStored(userID, raw string) Preferences {
	var p Preferences
	if strings.TrimSpace(raw) == "" {
		return p
	}
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		slog.Warn("malformed stored preferences, ignoring", "user_id", userID, "error", err)
		return Preferences{}
	}
	return p
}

func deepCopy(p Preferences) Preferences {
	cp := p
	if p.Dietary != nil {
		cp.Dietary = append([]string(nil), p.Dietary...)
	}
	if p.Interests != nil {
		cp.Interests = append([]string(nil), p.Interests...)
	}
	if p.SleepSchedule != nil {
		s := *p.SleepSchedule
		cp.SleepSchedule = &s
	}
	return cp
}
