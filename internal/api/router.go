// Package api exposes the assistant, lists, reminders, contacts and voice
// features over a JSON REST API.
package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/gabai/gabai/internal/assistant"
	"github.com/gabai/gabai/internal/auth"
	"github.com/gabai/gabai/internal/categorize"
	"github.com/gabai/gabai/internal/lists"
	"github.com/gabai/gabai/internal/metrics"
	"github.com/gabai/gabai/internal/ocr"
	"github.com/gabai/gabai/internal/profile"
	"github.com/gabai/gabai/internal/storage"
)

// TurnHandler runs one chat turn. Implemented by assistant.Handler.
type TurnHandler interface {
	HandleTurn(ctx context.Context, req assistant.TurnRequest) (assistant.TurnResult, error)
}

// ItemCategorizer is implemented by categorize.Categorizer.
type ItemCategorizer interface {
	Resolve(ctx context.Context, itemName, listType string) categorize.Result
}

// ListResolver is implemented by lists.Resolver.
type ListResolver interface {
	Resolve(ctx context.Context, userID, requestedType, itemName string) (lists.Resolution, error)
}

// CardScanner is implemented by ocr.Scanner.
type CardScanner interface {
	Scan(ctx context.Context, data []byte) (ocr.Card, error)
}

// Speech is implemented by voice.Service.
type Speech interface {
	Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error)
	Speak(ctx context.Context, text string) ([]byte, error)
}

type Deps struct {
	Store       *storage.Store
	Assistant   TurnHandler
	Categorizer ItemCategorizer
	Resolver    ListResolver
	Profiles    *profile.Manager
	Passwords   *auth.PasswordAuthenticator
	Tokens      *auth.JWTManager
	Scanner     CardScanner
	Speech      Speech
	Location    *time.Location
	// RequestTimeout bounds every request; zero disables the limit.
	RequestTimeout time.Duration
	// SecureCookies marks the session cookie Secure.
	SecureCookies bool
}

type apiServer struct {
	Deps
	items *lists.Adder
	now   func() time.Time
	newID func() string
}

// NewRouter returns the HTTP handler for the whole API.
func NewRouter(deps Deps) http.Handler {
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	s := &apiServer{Deps: deps, items: lists.NewAdder(deps.Store, deps.Categorizer), now: time.Now, newID: uuid.NewString}

	r := chi.NewRouter()
	r.Use(RequestLogger)
	r.Use(Recoverer)
	if deps.RequestTimeout > 0 {
		r.Use(middleware.Timeout(deps.RequestTimeout))
	}

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/signup", s.handleSignup)
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/logout", s.handleLogout)

		r.Get("/shared/{code}", s.handleGetShared)
		r.Post("/shared/{code}/items", s.handleAddSharedItem)
		r.Patch("/shared/{code}/items/{itemId}/toggle", s.handleToggleSharedItem)

		r.Group(func(r chi.Router) {
			r.Use(RequireAuth(deps.Tokens))

			r.Get("/auth/me", s.handleMe)

			r.Get("/users/{id}", s.handleGetUser)
			r.Patch("/users/{id}", s.handlePatchUser)
			r.Put("/users/{id}/preferences", s.handlePutPreferences)
			r.Post("/users/{id}/onboarding", s.handleOnboarding)

			r.Post("/chat", s.handleChat)
			r.Post("/categorize-item", s.handleCategorizeItem)
			r.Get("/conversations/{userId}", s.handleListConversations)
			r.Get("/conversations/{id}/messages", s.handleListMessages)

			r.Post("/smart-lists", s.handleCreateList)
			r.Get("/smart-lists/{userId}", s.handleListLists)
			r.Patch("/smart-lists/{id}", s.handlePatchList)
			r.Delete("/smart-lists/{id}", s.handleDeleteList)
			r.Get("/smart-lists/{id}/grouped", s.handleGroupedList)
			r.Post("/smart-lists/{id}/share", s.handleShareList)
			r.Delete("/smart-lists/{id}/share", s.handleUnshareList)
			r.Post("/smart-lists/{id}/collaborators", s.handleAddCollaborator)

			r.Post("/list-items", s.handleCreateItem)
			r.Patch("/list-items/{id}", s.handlePatchItem)
			r.Delete("/list-items/{id}", s.handleDeleteItem)
			r.Patch("/list-items/{id}/toggle", s.handleToggleItem)

			r.Post("/reminders", s.handleCreateReminder)
			r.Get("/reminders/{userId}", s.handleListReminders)
			r.Patch("/reminders/{id}", s.handlePatchReminder)
			r.Delete("/reminders/{id}", s.handleDeleteReminder)
			r.Patch("/reminders/{id}/toggle", s.handleToggleReminder)

			r.Get("/calendar/export/{userId}", s.handleCalendarExport)
			r.Get("/calendar/event/{reminderId}", s.handleCalendarEvent)

			r.Post("/contacts", s.handleCreateContact)
			r.Get("/contacts/{userId}", s.handleListContacts)
			r.Patch("/contacts/{id}", s.handlePatchContact)
			r.Delete("/contacts/{id}", s.handleDeleteContact)
			r.Post("/contacts/scan", s.handleScanContact)

			r.Post("/voice/transcribe", s.handleTranscribe)
			r.Post("/voice/speak", s.handleSpeak)
		})
	})

	return r
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.Ping(); err != nil {
		httpError(w, http.StatusServiceUnavailable, "api_error", "database unavailable: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requireSelf rejects access to another user's resources.
func requireSelf(r *http.Request, userID string) error {
	if UserID(r.Context()) != userID {
		return errForbidden
	}
	return nil
}
