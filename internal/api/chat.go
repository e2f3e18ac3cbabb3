package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/gabai/gabai/internal/assistant"
	"github.com/gabai/gabai/internal/categorize"
	"github.com/gabai/gabai/internal/lists"
	"github.com/gabai/gabai/internal/storage"
)

type chatRequest struct {
	Message        string `json:"message"`
	UserID         string `json:"userId"`
	ConversationID string `json:"conversationId"`
}

func (s *apiServer) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.UserID == "" {
		req.UserID = UserID(r.Context())
	}
	if err := requireSelf(r, req.UserID); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.Assistant.HandleTurn(r.Context(), assistant.TurnRequest{
		Message:        req.Message,
		UserID:         req.UserID,
		ConversationID: req.ConversationID,
	})
	if errors.Is(err, assistant.ErrUpstream) {
		slog.Error("chat turn failed upstream", "user_id", req.UserID, "error", err)
		httpError(w, http.StatusInternalServerError, "api_error", "the assistant is unavailable, please try again")
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *apiServer) handleCategorizeItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ItemName string `json:"itemName"`
		ListType string `json:"listType"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	name := strings.TrimSpace(req.ItemName)
	if name == "" {
		writeError(w, r, badRequest("itemName is required"))
		return
	}
	listType := lists.NormalizeType(req.ListType)
	if listType == "" {
		listType = categorize.TypeShopping
	}

	res := s.Categorizer.Resolve(r.Context(), name, listType)
	writeJSON(w, http.StatusOK, map[string]string{"category": res.Category})
}

func (s *apiServer) handleListConversations(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if err := requireSelf(r, userID); err != nil {
		writeError(w, r, err)
		return
	}
	convs, err := s.Store.ListConversations(userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if convs == nil {
		convs = []storage.Conversation{}
	}
	writeJSON(w, http.StatusOK, convs)
}

func (s *apiServer) handleListMessages(w http.ResponseWriter, r *http.Request) {
	conv, err := s.Store.GetConversation(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := requireSelf(r, conv.UserID); err != nil {
		writeError(w, r, err)
		return
	}
	msgs, err := s.Store.ListMessages(conv.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if msgs == nil {
		msgs = []storage.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}
