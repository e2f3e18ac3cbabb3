package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gabai/gabai/internal/assistant"
	"github.com/gabai/gabai/internal/calendar"
	"github.com/gabai/gabai/internal/storage"
)

const defaultReminderCategory = "General"

func (s *apiServer) ownedReminder(r *http.Request, id string) (storage.Reminder, error) {
	rem, err := s.Store.GetReminder(id)
	if err != nil {
		return storage.Reminder{}, err
	}
	if err := requireSelf(r, rem.UserID); err != nil {
		return storage.Reminder{}, err
	}
	return rem, nil
}

func (s *apiServer) parseDueDate(raw string) (time.Time, error) {
	due, ok := assistant.ParseDue(raw, s.Location, s.now())
	if !ok {
		return time.Time{}, badRequest("dueDate %q is not a valid date", raw)
	}
	return due, nil
}

func (s *apiServer) handleCreateReminder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID      string `json:"userId"`
		Title       string `json:"title"`
		Description string `json:"description"`
		DueDate     string `json:"dueDate"`
		Category    string `json:"category"`
		Recurrence  string `json:"recurrence"`
	}
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
	title := strings.TrimSpace(req.Title)
	if title == "" {
		writeError(w, r, badRequest("title is required"))
		return
	}
	if strings.TrimSpace(req.DueDate) == "" {
		writeError(w, r, badRequest("dueDate is required"))
		return
	}
	due, err := s.parseDueDate(req.DueDate)
	if err != nil {
		writeError(w, r, err)
		return
	}
	recurrence := strings.ToLower(strings.TrimSpace(req.Recurrence))
	if !calendar.ValidRecurrence(recurrence) {
		writeError(w, r, badRequest("recurrence must be one of daily, weekly, monthly, yearly"))
		return
	}
	category := strings.TrimSpace(req.Category)
	if category == "" {
		category = defaultReminderCategory
	}

	rem := storage.Reminder{
		ID:          s.newID(),
		UserID:      req.UserID,
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		DueDate:     due,
		Category:    category,
		Recurrence:  recurrence,
	}
	if err := s.Store.CreateReminder(rem); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.Store.GetReminder(rem.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *apiServer) handleListReminders(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if err := requireSelf(r, userID); err != nil {
		writeError(w, r, err)
		return
	}
	rems, err := s.Store.ListReminders(userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rems == nil {
		rems = []storage.Reminder{}
	}
	writeJSON(w, http.StatusOK, rems)
}

func (s *apiServer) handlePatchReminder(w http.ResponseWriter, r *http.Request) {
	rem, err := s.ownedReminder(r, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		DueDate     *string `json:"dueDate"`
		Category    *string `json:"category"`
		Completed   *bool   `json:"completed"`
		Recurrence  *string `json:"recurrence"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	patch := storage.ReminderPatch{
		Description: req.Description,
		Category:    req.Category,
		Completed:   req.Completed,
	}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			writeError(w, r, badRequest("title must not be empty"))
			return
		}
		patch.Title = &title
	}
	if req.DueDate != nil {
		due, err := s.parseDueDate(*req.DueDate)
		if err != nil {
			writeError(w, r, err)
			return
		}
		patch.DueDate = &due
	}
	if req.Recurrence != nil {
		rec := strings.ToLower(strings.TrimSpace(*req.Recurrence))
		if !calendar.ValidRecurrence(rec) {
			writeError(w, r, badRequest("recurrence must be one of daily, weekly, monthly, yearly"))
			return
		}
		patch.Recurrence = &rec
	}

	updated, err := s.Store.UpdateReminder(rem.ID, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *apiServer) handleDeleteReminder(w http.ResponseWriter, r *http.Request) {
	rem, err := s.ownedReminder(r, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.Store.DeleteReminder(rem.ID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type toggleReminderResponse struct {
	storage.Reminder
	NextOccurrence *storage.Reminder `json:"nextOccurrence,omitempty"`
}

// handleToggleReminder flips completion. Completing a recurring reminder
// schedules its next occurrence as a new reminder.
func (s *apiServer) handleToggleReminder(w http.ResponseWriter, r *http.Request) {
	rem, err := s.ownedReminder(r, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	toggled, err := s.Store.ToggleReminder(rem.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := toggleReminderResponse{Reminder: toggled}

	if toggled.Completed && toggled.Recurrence != "" {
		due, err := calendar.NextOccurrence(toggled.DueDate.In(s.Location), toggled.Recurrence)
		if err != nil {
			writeError(w, r, err)
			return
		}
		next := storage.Reminder{
			ID:          s.newID(),
			UserID:      toggled.UserID,
			Title:       toggled.Title,
			Description: toggled.Description,
			DueDate:     due,
			Category:    toggled.Category,
			Recurrence:  toggled.Recurrence,
		}
		if err := s.Store.CreateReminder(next); err != nil {
			writeError(w, r, err)
			return
		}
		stored, err := s.Store.GetReminder(next.ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		resp.NextOccurrence = &stored
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Calendar ---

func writeICS(w http.ResponseWriter, filename, body string) {
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}

func (s *apiServer) handleCalendarExport(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if err := requireSelf(r, userID); err != nil {
		writeError(w, r, err)
		return
	}
	rems, err := s.Store.ListReminders(userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeICS(w, "gabai-reminders.ics", calendar.Export("GabAi Reminders", rems, s.now()))
}

func (s *apiServer) handleCalendarEvent(w http.ResponseWriter, r *http.Request) {
	rem, err := s.ownedReminder(r, chi.URLParam(r, "reminderId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeICS(w, "reminder-"+rem.ID+".ics", calendar.Event(rem, s.now()))
}
