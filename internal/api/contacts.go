package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/gabai/gabai/internal/ocr"
	"github.com/gabai/gabai/internal/storage"
)

const (
	maxUploadSize = 10 << 20 // 10MB

	SourceManual       = "manual"
	SourceBusinessCard = "business_card"
)

type contactRequest struct {
	UserID  string `json:"userId"`
	Name    string `json:"name"`
	Company string `json:"company"`
	Title   string `json:"title"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Website string `json:"website"`
	Address string `json:"address"`
	Notes   string `json:"notes"`
}

func (s *apiServer) ownedContact(r *http.Request, id string) (storage.Contact, error) {
	c, err := s.Store.GetContact(id)
	if err != nil {
		return storage.Contact{}, err
	}
	if err := requireSelf(r, c.UserID); err != nil {
		return storage.Contact{}, err
	}
	return c, nil
}

func (s *apiServer) createContact(userID, source string, req contactRequest) (storage.Contact, error) {
	c := storage.Contact{
		ID:      s.newID(),
		UserID:  userID,
		Name:    strings.TrimSpace(req.Name),
		Company: strings.TrimSpace(req.Company),
		Title:   strings.TrimSpace(req.Title),
		Email:   strings.TrimSpace(req.Email),
		Phone:   strings.TrimSpace(req.Phone),
		Website: strings.TrimSpace(req.Website),
		Address: strings.TrimSpace(req.Address),
		Notes:   strings.TrimSpace(req.Notes),
		Source:  source,
	}
	if c.Name == "" && c.Company == "" {
		return storage.Contact{}, badRequest("name or company is required")
	}
	if err := s.Store.CreateContact(c); err != nil {
		return storage.Contact{}, err
	}
	return s.Store.GetContact(c.ID)
}

func (s *apiServer) handleCreateContact(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
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
	c, err := s.createContact(req.UserID, SourceManual, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *apiServer) handleListContacts(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if err := requireSelf(r, userID); err != nil {
		writeError(w, r, err)
		return
	}
	cs, err := s.Store.ListContacts(userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if cs == nil {
		cs = []storage.Contact{}
	}
	writeJSON(w, http.StatusOK, cs)
}

func (s *apiServer) handlePatchContact(w http.ResponseWriter, r *http.Request) {
	c, err := s.ownedContact(r, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req struct {
		Name    *string `json:"name"`
		Company *string `json:"company"`
		Title   *string `json:"title"`
		Email   *string `json:"email"`
		Phone   *string `json:"phone"`
		Website *string `json:"website"`
		Address *string `json:"address"`
		Notes   *string `json:"notes"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := s.Store.UpdateContact(c.ID, storage.ContactPatch{
		Name:    req.Name,
		Company: req.Company,
		Title:   req.Title,
		Email:   req.Email,
		Phone:   req.Phone,
		Website: req.Website,
		Address: req.Address,
		Notes:   req.Notes,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *apiServer) handleDeleteContact(w http.ResponseWriter, r *http.Request) {
	c, err := s.ownedContact(r, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.Store.DeleteContact(c.ID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// readUpload returns the bytes and filename of the multipart "file" field.
func readUpload(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	f, hdr, err := r.FormFile("file")
	if err != nil {
		return nil, "", badRequest("multipart field \"file\" is required: %v", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", badRequest("reading upload: %v", err)
	}
	if len(data) == 0 {
		return nil, "", badRequest("uploaded file is empty")
	}
	return data, hdr.Filename, nil
}

func (s *apiServer) handleScanContact(w http.ResponseWriter, r *http.Request) {
	data, _, err := readUpload(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	card, err := s.Scanner.Scan(r.Context(), data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.createContact(UserID(r.Context()), SourceBusinessCard, cardRequest(card))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func cardRequest(c ocr.Card) contactRequest {
	return contactRequest{
		Name:    c.Name,
		Company: c.Company,
		Title:   c.Title,
		Email:   c.Email,
		Phone:   c.Phone,
		Website: c.Website,
		Address: c.Address,
		Notes:   c.Notes,
	}
}
