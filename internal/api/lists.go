package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/gabai/gabai/internal/categorize"
	"github.com/gabai/gabai/internal/lists"
	"github.com/gabai/gabai/internal/storage"
)

const (
	maxItemNameChars = 200
	shareCodeLen     = 12
)

type listView struct {
	storage.SmartList
	Items []storage.ListItem `json:"items"`
}

func (s *apiServer) listView(l storage.SmartList) (listView, error) {
	items, err := s.Store.ListItems(l.ID)
	if err != nil {
		return listView{}, err
	}
	if items == nil {
		items = []storage.ListItem{}
	}
	if l.Categories == nil {
		l.Categories = []string{}
	}
	if l.Collaborators == nil {
		l.Collaborators = []string{}
	}
	return listView{SmartList: l, Items: items}, nil
}

// accessibleList loads a list the caller owns or collaborates on.
func (s *apiServer) accessibleList(r *http.Request, id string) (storage.SmartList, error) {
	l, err := s.Store.GetList(id)
	if err != nil {
		return storage.SmartList{}, err
	}
	if !l.HasAccess(UserID(r.Context())) {
		return storage.SmartList{}, errForbidden
	}
	return l, nil
}

// ownedList loads a list the caller owns.
func (s *apiServer) ownedList(r *http.Request, id string) (storage.SmartList, error) {
	l, err := s.Store.GetList(id)
	if err != nil {
		return storage.SmartList{}, err
	}
	if err := requireSelf(r, l.UserID); err != nil {
		return storage.SmartList{}, err
	}
	return l, nil
}

func (s *apiServer) handleCreateList(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID     string   `json:"userId"`
		Name       string   `json:"name"`
		Type       string   `json:"type"`
		Categories []string `json:"categories"`
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
	listType := lists.NormalizeType(req.Type)
	if listType == "" {
		writeError(w, r, badRequest("type is required"))
		return
	}
	tmpl := lists.TemplateFor(listType)
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = tmpl.Name
	}
	cats := req.Categories
	if len(cats) == 0 {
		cats = tmpl.Categories
	}

	l := storage.SmartList{
		ID:         s.newID(),
		UserID:     req.UserID,
		Name:       name,
		Type:       listType,
		Categories: cats,
	}
	if err := s.Store.CreateList(l); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.Store.GetList(l.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	view, err := s.listView(created)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (s *apiServer) handleListLists(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if err := requireSelf(r, userID); err != nil {
		writeError(w, r, err)
		return
	}
	ls, err := s.Store.ListListsForUser(userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]listView, 0, len(ls))
	for _, l := range ls {
		v, err := s.listView(l)
		if err != nil {
			writeError(w, r, err)
			return
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *apiServer) handlePatchList(w http.ResponseWriter, r *http.Request) {
	l, err := s.ownedList(r, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req struct {
		Name       *string   `json:"name"`
		Type       *string   `json:"type"`
		Categories *[]string `json:"categories"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	var patch storage.ListPatch
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			writeError(w, r, badRequest("name must not be empty"))
			return
		}
		patch.Name = &name
	}
	if req.Type != nil {
		t := lists.NormalizeType(*req.Type)
		if t == "" {
			writeError(w, r, badRequest("type must not be empty"))
			return
		}
		patch.Type = &t
	}
	patch.Categories = req.Categories

	updated, err := s.Store.UpdateList(l.ID, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	view, err := s.listView(updated)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *apiServer) handleDeleteList(w http.ResponseWriter, r *http.Request) {
	l, err := s.ownedList(r, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.Store.DeleteList(l.ID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *apiServer) handleGroupedList(w http.ResponseWriter, r *http.Request) {
	l, err := s.accessibleList(r, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := s.Store.ListItems(l.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"list":   l,
		"groups": lists.GroupItems(l, items),
	})
}

func (s *apiServer) handleShareList(w http.ResponseWriter, r *http.Request) {
	l, err := s.ownedList(r, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if l.IsShared {
		writeJSON(w, http.StatusOK, l)
		return
	}
	code := strings.ReplaceAll(s.newID(), "-", "")[:shareCodeLen]
	shared, err := s.Store.SetListSharing(l.ID, code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, shared)
}

func (s *apiServer) handleUnshareList(w http.ResponseWriter, r *http.Request) {
	l, err := s.ownedList(r, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	unshared, err := s.Store.SetListSharing(l.ID, "")
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, unshared)
}

func (s *apiServer) handleAddCollaborator(w http.ResponseWriter, r *http.Request) {
	l, err := s.ownedList(r, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req struct {
		UserID string `json:"userId"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.UserID == "" {
		writeError(w, r, badRequest("userId is required"))
		return
	}
	if req.UserID == l.UserID {
		writeError(w, r, badRequest("the owner cannot be a collaborator"))
		return
	}
	if _, err := s.Store.GetUser(req.UserID); err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := s.Store.AddCollaborator(l.ID, req.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// --- Items ---

type itemRequest struct {
	ListID     string   `json:"listId"`
	ListType   string   `json:"listType"`
	Name       string   `json:"name"`
	Category   string   `json:"category"`
	Quantity   *float64 `json:"quantity"`
	Unit       string   `json:"unit"`
	Amount     *float64 `json:"amount"`
	Currency   string   `json:"currency"`
	Priority   string   `json:"priority"`
	AssignedTo string   `json:"assignedTo"`
}

func (s *apiServer) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := validateItemName(req.Name); err != nil {
		writeError(w, r, err)
		return
	}

	var l storage.SmartList
	var err error
	if req.ListID != "" {
		l, err = s.accessibleList(r, req.ListID)
	} else {
		l, err = s.resolveList(r.Context(), UserID(r.Context()), req.ListType, req.Name)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	item, err := s.addItem(r.Context(), l, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// resolveList picks the target list when the client did not name one.
// Items that read like appointments go to the to-do list here; only the
// assistant turns them into reminders.
func (s *apiServer) resolveList(ctx context.Context, userID, listType, itemName string) (storage.SmartList, error) {
	res, err := s.Resolver.Resolve(ctx, userID, listType, itemName)
	if err != nil {
		return storage.SmartList{}, err
	}
	if res.RouteToReminder {
		res, err = s.Resolver.Resolve(ctx, userID, categorize.TypeTodo, itemName)
		if err != nil {
			return storage.SmartList{}, err
		}
	}
	return res.List, nil
}

func validateItemName(name string) error {
	if name == "" {
		return badRequest("name is required")
	}
	if len([]rune(name)) > maxItemNameChars {
		return badRequest("name longer than %d characters", maxItemNameChars)
	}
	return nil
}

func (s *apiServer) addItem(ctx context.Context, l storage.SmartList, req itemRequest) (storage.ListItem, error) {
	return s.items.Add(ctx, l, storage.ListItem{
		ID:         s.newID(),
		Name:       req.Name,
		Category:   strings.TrimSpace(req.Category),
		Quantity:   req.Quantity,
		Unit:       strings.TrimSpace(req.Unit),
		Amount:     req.Amount,
		Currency:   strings.TrimSpace(req.Currency),
		Priority:   strings.TrimSpace(req.Priority),
		AssignedTo: strings.TrimSpace(req.AssignedTo),
	})
}

// accessibleItem loads an item whose list the caller can access.
func (s *apiServer) accessibleItem(r *http.Request, id string) (storage.ListItem, error) {
	item, err := s.Store.GetItem(id)
	if err != nil {
		return storage.ListItem{}, err
	}
	if _, err := s.accessibleList(r, item.ListID); err != nil {
		return storage.ListItem{}, err
	}
	return item, nil
}

func (s *apiServer) handlePatchItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.accessibleItem(r, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req struct {
		Name       *string  `json:"name"`
		Category   *string  `json:"category"`
		Completed  *bool    `json:"completed"`
		Quantity   *float64 `json:"quantity"`
		Unit       *string  `json:"unit"`
		Amount     *float64 `json:"amount"`
		Currency   *string  `json:"currency"`
		Position   *int     `json:"position"`
		Priority   *string  `json:"priority"`
		AssignedTo *string  `json:"assignedTo"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if err := validateItemName(name); err != nil {
			writeError(w, r, err)
			return
		}
		req.Name = &name
	}

	updated, err := s.Store.UpdateItem(item.ID, storage.ItemPatch{
		Name:       req.Name,
		Category:   req.Category,
		Completed:  req.Completed,
		Quantity:   req.Quantity,
		Unit:       req.Unit,
		Amount:     req.Amount,
		Currency:   req.Currency,
		Position:   req.Position,
		Priority:   req.Priority,
		AssignedTo: req.AssignedTo,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *apiServer) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.accessibleItem(r, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.Store.DeleteItem(item.ID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *apiServer) handleToggleItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.accessibleItem(r, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	toggled, err := s.Store.ToggleItem(item.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toggled)
}

// --- Public shared lists ---

func (s *apiServer) handleGetShared(w http.ResponseWriter, r *http.Request) {
	l, err := s.Store.GetListByShareCode(chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	view, err := s.listView(l)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *apiServer) handleAddSharedItem(w http.ResponseWriter, r *http.Request) {
	l, err := s.Store.GetListByShareCode(chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req itemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := validateItemName(req.Name); err != nil {
		writeError(w, r, err)
		return
	}
	req.AssignedTo = ""
	item, err := s.addItem(r.Context(), l, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *apiServer) handleToggleSharedItem(w http.ResponseWriter, r *http.Request) {
	l, err := s.Store.GetListByShareCode(chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	item, err := s.Store.GetItem(chi.URLParam(r, "itemId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if item.ListID != l.ID {
		writeError(w, r, storage.ErrNotFound)
		return
	}
	toggled, err := s.Store.ToggleItem(item.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toggled)
}
