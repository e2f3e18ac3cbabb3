package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Backend persists non-secret settings by dotted key ("server.port").
// Values come back as raw text; applyBackend parses them per key type.
type Backend interface {
	Lookup(key string) (raw string, ok bool, err error)
	Store(key string, v any) error
	Remove(key string) error
}

func configFilePath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".", "gabai", "config.json")
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "gabai", "config.json")
}

// sectionFile keeps settings grouped by section, e.g.
//
//	{"server": {"port": 5000}, "assistant": {"timezone": "Europe/Berlin"}}
type sectionFile struct {
	path     string
	sections map[string]map[string]any
}

func newFileBackend(path string) *sectionFile {
	f := &sectionFile{path: path, sections: map[string]map[string]any{}}
	raw, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		fmt.Fprintf(os.Stderr, "[WARN] config file %s unreadable (%v), using defaults\n", path, err)
	default:
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&f.sections); err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] config file %s is not valid JSON (%v), using defaults\n", path, err)
			f.sections = map[string]map[string]any{}
		}
	}
	return f
}

func splitKey(key string) (section, name string, err error) {
	section, name, ok := strings.Cut(key, ".")
	if !ok || section == "" || name == "" {
		return "", "", fmt.Errorf("config key %q must look like section.name", key)
	}
	return section, name, nil
}

func (f *sectionFile) Lookup(key string) (string, bool, error) {
	section, name, err := splitKey(key)
	if err != nil {
		return "", false, err
	}
	v, ok := f.sections[section][name]
	if !ok || v == nil {
		return "", false, nil
	}
	switch val := v.(type) {
	case string:
		return val, true, nil
	case json.Number:
		return val.String(), true, nil
	case float64, int, bool:
		return fmt.Sprint(val), true, nil
	default:
		return "", true, fmt.Errorf("%s holds a %T, want a scalar", key, v)
	}
}

func (f *sectionFile) Store(key string, v any) error {
	section, name, err := splitKey(key)
	if err != nil {
		return err
	}
	if f.sections[section] == nil {
		f.sections[section] = map[string]any{}
	}
	f.sections[section][name] = v
	return f.flush()
}

func (f *sectionFile) Remove(key string) error {
	section, name, err := splitKey(key)
	if err != nil {
		return err
	}
	delete(f.sections[section], name)
	if len(f.sections[section]) == 0 {
		delete(f.sections, section)
	}
	return f.flush()
}

func (f *sectionFile) flush() error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	out, err := json.MarshalIndent(f.sections, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, append(out, '\n'), 0o600)
}
