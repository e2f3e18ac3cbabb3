// Package assistant runs a chat turn: it calls the language model with the
// user's history and preferences, stores both sides of the exchange and
// executes the actions the model proposes.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/gabai/gabai/internal/llm"
	"github.com/gabai/gabai/internal/metrics"
	"github.com/gabai/gabai/internal/storage"
)

var (
	// ErrInvalidInput marks request validation failures.
	ErrInvalidInput = errors.New("invalid input")
	// ErrForbidden is returned when a conversation belongs to another user.
	ErrForbidden = errors.New("forbidden")
	// ErrUpstream wraps language model failures.
	ErrUpstream = errors.New("upstream model error")
)

const (
	maxMessageChars  = 4000
	maxTitleChars    = 60
	maxSuggestions   = 3
	fallbackResponse = "Sorry, I didn't catch that. Could you say it again?"
)

// Chatter is the interface for chat completion.
type Chatter interface {
	Chat(ctx context.Context, req llm.ChatRequest) (string, error)
}

// ConversationStore defines the storage operations a turn needs.
// Implemented by storage.Store.
type ConversationStore interface {
	GetUser(id string) (storage.User, error)
	GetConversation(id string) (storage.Conversation, error)
	StartConversation(c storage.Conversation, first storage.Message) error
	RecentMessages(conversationID string, limit int) ([]storage.Message, error)
	SaveMessage(m storage.Message) error
}

// PreferenceSource renders a user's preferences for the system prompt.
// Implemented by profile.Manager.
type PreferenceSource interface {
	Summary(userID string) (string, error)
}

// ActionDispatcher is implemented by Dispatcher.
type ActionDispatcher interface {
	Dispatch(ctx context.Context, userID string, actions []RawAction) []Outcome
}

type TurnRequest struct {
	Message        string
	UserID         string
	ConversationID string
}

type TurnResult struct {
	UserMessage    storage.Message `json:"userMessage"`
	Message        storage.Message `json:"message"`
	ConversationID string          `json:"conversationId"`
	Suggestions    []string        `json:"suggestions"`
	Actions        []RawAction     `json:"actions"`
	Outcomes       []Outcome       `json:"outcomes"`
}

type HandlerConfig struct {
	Model        string
	Location     *time.Location
	HistoryLimit int
}

// Handler orchestrates a chat turn.
type Handler struct {
	store      ConversationStore
	llm        Chatter
	prefs      PreferenceSource
	dispatcher ActionDispatcher
	cfg        HandlerConfig
	now        func() time.Time
	newID      func() string
}

func NewHandler(store ConversationStore, client Chatter, prefs PreferenceSource, dispatcher ActionDispatcher, cfg HandlerConfig) *Handler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 10
	}
	return &Handler{
		store:      store,
		llm:        client,
		prefs:      prefs,
		dispatcher: dispatcher,
		cfg:        cfg,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// HandleTurn processes one user message. Errors before the user message is
// stored leave no conversation or message behind. A model failure after that point leaves
// the user message stored and returns an error wrapping ErrUpstream; there is
// no retry. Action failures are reported in Outcomes only.
func (h *Handler) HandleTurn(ctx context.Context, req TurnRequest) (TurnResult, error) {
	message := strings.TrimSpace(req.Message)
	if err := validateTurn(message, req.UserID); err != nil {
		metrics.ChatTurn("invalid")
		return TurnResult{}, err
	}

	if _, err := h.store.GetUser(req.UserID); err != nil {
		return TurnResult{}, fmt.Errorf("loading user %s: %w", req.UserID, err)
	}

	userMsg := storage.Message{
		ID:        h.newID(),
		Role:      storage.RoleUser,
		Content:   message,
		CreatedAt: h.now(),
	}
	conv, history, err := h.recordUserMessage(req.UserID, req.ConversationID, userMsg)
	if err != nil {
		return TurnResult{}, err
	}
	userMsg.ConversationID = conv.ID

	summary, err := h.prefs.Summary(req.UserID)
	if err != nil {
		slog.Warn("preferences unavailable for prompt", "user_id", req.UserID, "error", err)
		summary = ""
	}

	system := BuildSystemPrompt(h.now(), h.cfg.Location, summary)
	raw, err := h.llm.Chat(ctx, llm.ChatRequest{
		Model:    h.cfg.Model,
		Messages: BuildMessages(system, history, message),
		JSON:     true,
	})
	if err != nil {
		metrics.ChatTurn("llm_error")
		slog.Error("chat completion failed", "user_id", req.UserID, "conversation_id", conv.ID, "error", err)
		return TurnResult{}, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	rep := parseReply(raw)
	assistantMsg := storage.Message{
		ID:             h.newID(),
		ConversationID: conv.ID,
		Role:           storage.RoleAssistant,
		Content:        rep.Content,
		CreatedAt:      h.now(),
	}
	if err := h.store.SaveMessage(assistantMsg); err != nil {
		return TurnResult{}, fmt.Errorf("saving assistant message: %w", err)
	}

	outcomes := h.dispatcher.Dispatch(ctx, req.UserID, rep.Actions)
	metrics.ChatTurn("ok")

	return TurnResult{
		UserMessage:    userMsg,
		Message:        assistantMsg,
		ConversationID: conv.ID,
		Suggestions:    rep.Suggestions,
		Actions:        rep.Actions,
		Outcomes:       outcomes,
	}, nil
}

func validateTurn(message, userID string) error {
	var errs []error
	if message == "" {
		errs = append(errs, errors.New("message is required"))
	} else if utf8.RuneCountInString(message) > maxMessageChars {
		errs = append(errs, fmt.Errorf("message exceeds %d characters", maxMessageChars))
	}
	if strings.TrimSpace(userID) == "" {
		errs = append(errs, errors.New("userId is required"))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidInput, errors.Join(errs...))
}

// recordUserMessage stores msg and returns its conversation plus the history
// that preceded it. A new conversation, titled after the message, is created
// in the same transaction as the message, so a failure leaves nothing behind.
func (h *Handler) recordUserMessage(userID, conversationID string, msg storage.Message) (storage.Conversation, []storage.Message, error) {
	if conversationID == "" {
		conv := storage.Conversation{
			ID:     h.newID(),
			UserID: userID,
			Title:  truncateRunes(msg.Content, maxTitleChars),
		}
		msg.ConversationID = conv.ID
		if err := h.store.StartConversation(conv, msg); err != nil {
			return storage.Conversation{}, nil, fmt.Errorf("starting conversation: %w", err)
		}
		return conv, nil, nil
	}

	conv, err := h.store.GetConversation(conversationID)
	if err != nil {
		return storage.Conversation{}, nil, fmt.Errorf("loading conversation %s: %w", conversationID, err)
	}
	if conv.UserID != userID {
		return storage.Conversation{}, nil, fmt.Errorf("conversation %s: %w", conversationID, ErrForbidden)
	}
	history, err := h.store.RecentMessages(conv.ID, h.cfg.HistoryLimit)
	if err != nil {
		return storage.Conversation{}, nil, fmt.Errorf("loading history: %w", err)
	}
	msg.ConversationID = conv.ID
	if err := h.store.SaveMessage(msg); err != nil {
		return storage.Conversation{}, nil, fmt.Errorf("saving user message: %w", err)
	}
	return conv, history, nil
}

type reply struct {
	Content     string
	Suggestions []string
	Actions     []RawAction
}

// parseReply reads the model's JSON reply. Text that is not a JSON object
// becomes the content with no actions. Suggestions of the wrong shape are
// dropped without discarding the actions.
func parseReply(raw string) reply {
	text := stripFences(raw)

	var wire struct {
		Content     string          `json:"content"`
		Suggestions json.RawMessage `json:"suggestions"`
		Actions     []RawAction     `json:"actions"`
	}
	if err := json.Unmarshal([]byte(text), &wire); err != nil {
		slog.Warn("model reply is not a JSON object, using it as plain text", "error", err)
		content := strings.TrimSpace(raw)
		if content == "" {
			content = fallbackResponse
		}
		return reply{Content: content, Suggestions: []string{}, Actions: []RawAction{}}
	}

	rep := reply{Content: strings.TrimSpace(wire.Content), Suggestions: []string{}, Actions: wire.Actions}
	if rep.Content == "" {
		rep.Content = fallbackResponse
	}
	if rep.Actions == nil {
		rep.Actions = []RawAction{}
	}
	var suggestions []string
	if len(wire.Suggestions) > 0 && json.Unmarshal(wire.Suggestions, &suggestions) == nil {
		for _, s := range suggestions {
			if s = strings.TrimSpace(s); s != "" && len(rep.Suggestions) < maxSuggestions {
				rep.Suggestions = append(rep.Suggestions, s)
			}
		}
	}
	return rep
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n])) + "…"
}
