package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gabai/gabai/internal/config"
)

// session is what `gabai login` persists for later commands.
type session struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

var errNoSession = errors.New("not signed in: run `gabai login` or `gabai signup` first")

func sessionFilePath(dataDir string) string {
	return filepath.Join(dataDir, "session.json")
}

func saveSession(path string, s session) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating session dir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func loadSession(path string) (session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return session{}, errNoSession
		}
		return session{}, err
	}
	var s session
	if err := json.Unmarshal(data, &s); err != nil {
		return session{}, fmt.Errorf("parsing session file: %w", err)
	}
	if s.Token == "" || s.UserID == "" {
		return session{}, errNoSession
	}
	return s, nil
}

type apiClient struct {
	baseURL     string
	token       string
	userID      string
	sessionPath string
	httpClient  *http.Client
}

// newAPIClient builds a client for the local server. requireSession makes
// it fail early when nobody is signed in.
var newAPIClient = func(requireSession bool) (*apiClient, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	c := &apiClient{
		baseURL:     "http://" + serverAddr(cfg),
		sessionPath: sessionFilePath(cfg.Storage.DataDir),
		httpClient:  &http.Client{Timeout: 90 * time.Second},
	}
	s, err := loadSession(c.sessionPath)
	switch {
	case err == nil:
		c.token, c.userID = s.Token, s.UserID
	case requireSession:
		return nil, err
	}
	return c, nil
}

func (c *apiClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshalling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("server not reachable, is `gabai start` running? (%w)", err)
	}
	return resp, nil
}

func (c *apiClient) get(ctx context.Context, path string) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *apiClient) post(ctx context.Context, path string, body any) (*http.Response, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

// authenticate posts credentials to an auth endpoint and persists the
// returned session.
func (c *apiClient) authenticate(ctx context.Context, path string, creds map[string]string) (session, error) {
	resp, err := c.post(ctx, path, creds)
	if err != nil {
		return session{}, err
	}
	var out struct {
		Token string `json:"token"`
		User  struct {
			ID    string `json:"id"`
			Email string `json:"email"`
		} `json:"user"`
	}
	if err := decodeJSON(resp, &out); err != nil {
		return session{}, err
	}
	s := session{Token: out.Token, UserID: out.User.ID, Email: out.User.Email}
	if err := saveSession(c.sessionPath, s); err != nil {
		return session{}, fmt.Errorf("saving session: %w", err)
	}
	c.token, c.userID = s.Token, s.UserID
	return s, nil
}

// decodeJSON closes the body. Error responses are unwrapped from the API's
// error envelope when possible.
func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("server returned %d (failed to read body: %w)", resp.StatusCode, err)
		}
		var env struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(body, &env) == nil && env.Error.Message != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, env.Error.Message)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
