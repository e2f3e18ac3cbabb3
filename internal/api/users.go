package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/gabai/gabai/internal/profile"
	"github.com/gabai/gabai/internal/storage"
)

const maxNameChars = 100

type userView struct {
	storage.User
	Preferences profile.Preferences `json:"preferences"`
}

func (s *apiServer) userView(u storage.User) (userView, error) {
	p, err := s.Profiles.Get(u.ID)
	if err != nil {
		return userView{}, err
	}
	return userView{User: u, Preferences: p}, nil
}

type credentials struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token string   `json:"token"`
	User  userView `json:"user"`
}

func (s *apiServer) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := s.Passwords.Register(req.Email, req.Name, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.startSession(w, r, u, http.StatusCreated)
}

func (s *apiServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := s.Passwords.Authenticate(req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.startSession(w, r, u, http.StatusOK)
}

func (s *apiServer) startSession(w http.ResponseWriter, r *http.Request, u storage.User, code int) {
	token, err := s.Tokens.Generate(u.ID, u.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	view, err := s.userView(u)
	if err != nil {
		writeError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.Tokens.TTL().Seconds()),
		HttpOnly: true,
		Secure:   s.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, code, sessionResponse{Token: token, User: view})
}

func (s *apiServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (s *apiServer) handleMe(w http.ResponseWriter, r *http.Request) {
	s.writeUser(w, r, UserID(r.Context()))
}

func (s *apiServer) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := requireSelf(r, id); err != nil {
		writeError(w, r, err)
		return
	}
	s.writeUser(w, r, id)
}

func (s *apiServer) writeUser(w http.ResponseWriter, r *http.Request, id string) {
	u, err := s.Store.GetUser(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	view, err := s.userView(u)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *apiServer) handlePatchUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := requireSelf(r, id); err != nil {
		writeError(w, r, err)
		return
	}
	var req struct {
		Name *string `json:"name"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	var patch storage.UserPatch
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" || len([]rune(name)) > maxNameChars {
			writeError(w, r, badRequest("name must be 1-%d characters", maxNameChars))
			return
		}
		patch.Name = &name
	}
	u, err := s.Store.UpdateUser(id, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	view, err := s.userView(u)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *apiServer) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	s.savePreferences(w, r, s.Profiles.Set)
}

func (s *apiServer) handleOnboarding(w http.ResponseWriter, r *http.Request) {
	s.savePreferences(w, r, s.Profiles.CompleteOnboarding)
}

func (s *apiServer) savePreferences(w http.ResponseWriter, r *http.Request, save func(string, profile.Preferences) (storage.User, error)) {
	id := chi.URLParam(r, "id")
	if err := requireSelf(r, id); err != nil {
		writeError(w, r, err)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, r, badRequest("reading body: %v", err))
		return
	}
	prefs, err := profile.Decode(body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	u, err := save(id, prefs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	view, err := s.userView(u)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
