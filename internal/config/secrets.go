package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// secretsService is the top-level key inside secrets.json.
const secretsService = "gabai"

func secretsFilePath() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "gabai", "secrets.json")
}

// fileSecrets reads secrets from a 0600 JSON file shaped
// {"gabai": {"llm.api_key": "..."}}.
type fileSecrets struct {
	path string
}

func (f fileSecrets) Get(account string) (string, error) {
	secrets, err := readSecrets(f.path)
	if err != nil {
		return "", fmt.Errorf("secrets not available: %w", err)
	}
	svc, ok := secrets[secretsService]
	if !ok {
		return "", fmt.Errorf("service %q not found", secretsService)
	}
	val, ok := svc[account]
	if !ok {
		return "", fmt.Errorf("account %q not found in service %q", account, secretsService)
	}
	return val, nil
}

func (f fileSecrets) Set(account, value string) error {
	secrets, err := readSecrets(f.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if secrets == nil {
		secrets = make(map[string]map[string]string)
	}
	if secrets[secretsService] == nil {
		secrets[secretsService] = make(map[string]string)
	}
	secrets[secretsService][account] = value

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("creating secrets dir: %w", err)
	}
	out, err := json.MarshalIndent(secrets, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, out, 0o600)
}

func readSecrets(path string) (map[string]map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var secrets map[string]map[string]string
	if err := json.Unmarshal(data, &secrets); err != nil {
		return nil, fmt.Errorf("parsing secrets file: %w", err)
	}
	return secrets, nil
}
