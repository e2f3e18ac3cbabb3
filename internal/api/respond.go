package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gabai/gabai/internal/assistant"
	"github.com/gabai/gabai/internal/auth"
	"github.com/gabai/gabai/internal/ocr"
	"github.com/gabai/gabai/internal/profile"
	"github.com/gabai/gabai/internal/storage"
	"github.com/gabai/gabai/internal/voice"
)

const maxRequestBodySize = 1 << 20 // 1MB

var (
	errBadRequest = errors.New("bad request")
	errForbidden  = errors.New("forbidden")
)

// badRequest wraps a validation message so writeError maps it to 400.
func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}

// writeError maps domain errors to status codes. Anything unrecognized is a
// 500 and is logged with its full chain.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		httpError(w, http.StatusNotFound, "not_found", "%v", err)
	case errors.Is(err, auth.ErrEmailExists), errors.Is(err, storage.ErrConflict):
		httpError(w, http.StatusConflict, "conflict", "%v", err)
	case errors.Is(err, errBadRequest),
		errors.Is(err, assistant.ErrInvalidInput),
		errors.Is(err, profile.ErrInvalidPreferences),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrInvalidEmail),
		errors.Is(err, voice.ErrEmptyText),
		errors.Is(err, voice.ErrTextTooLong),
		errors.Is(err, ocr.ErrUnsupportedType):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	case errors.Is(err, ocr.ErrNoText), errors.Is(err, ocr.ErrNoContact):
		httpError(w, http.StatusUnprocessableEntity, "invalid_request_error", "%v", err)
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrMissingToken):
		httpError(w, http.StatusUnauthorized, "authentication_error", "%v", err)
	case errors.Is(err, errForbidden), errors.Is(err, assistant.ErrForbidden):
		httpError(w, http.StatusForbidden, "permission_error", "you do not have access to this resource")
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		httpError(w, http.StatusInternalServerError, "api_error", "internal error")
	}
}

// decodeJSON reads a size-limited JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("invalid request body: %v", err)
	}
	return nil
}
