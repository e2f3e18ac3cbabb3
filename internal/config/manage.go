package config

import "fmt"

// KeyInfo describes a config key for display purposes.
type KeyInfo struct {
	Key    string
	EnvVar string
	Value  string
}

// ShowAll returns all config key/value pairs from the current config.
// Secrets are listed with a masked value.
func ShowAll(cfg Config) []KeyInfo {
	var result []KeyInfo
	for _, s := range specs {
		val := fmt.Sprintf("%v", s.extract(cfg))
		if s.secret {
			val = maskSecret(val)
		}
		result = append(result, KeyInfo{
			Key:    s.key,
			EnvVar: s.env,
			Value:  val,
		})
	}
	return result
}

func maskSecret(v string) string {
	switch {
	case v == "":
		return "(unset)"
	case len(v) <= 8:
		return "********"
	default:
		return v[:4] + "…" + v[len(v)-2:]
	}
}

// SetKey writes a non-secret config key to the file backend.
func SetKey(key, value string) error {
	return setKey(newFileBackend(configFilePath()), key, value)
}

func setKey(b Backend, key, value string) error {
	s, ok := lookupSpec(key)
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}
	if s.secret {
		return fmt.Errorf("cannot set secret %q via config; use `gabai config set-secret` or environment variable %s", key, s.env)
	}
	v, err := parseValue(s, value)
	if err != nil {
		return fmt.Errorf("invalid %s value for %s: %w", s.typ, key, err)
	}
	if s.typ == kInt {
		return b.Store(key, v)
	}
	return b.Store(key, value)
}

// SetSecret stores a secret key in the secrets file.
func SetSecret(key, value string) error {
	return setSecret(fileSecrets{path: secretsFilePath()}, key, value)
}

func setSecret(f fileSecrets, key, value string) error {
	s, ok := lookupSpec(key)
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}
	if !s.secret {
		return fmt.Errorf("%q is not a secret; use `gabai config set`", key)
	}
	if value == "" {
		return fmt.Errorf("empty value for %s", key)
	}
	return f.Set(key, value)
}

// ValidKeys returns the list of valid non-secret config key names.
func ValidKeys() []string {
	var keys []string
	for _, s := range specs {
		if !s.secret {
			keys = append(keys, s.key)
		}
	}
	return keys
}

// SecretKeys returns the names of keys stored in the secrets file.
func SecretKeys() []string {
	var keys []string
	for _, s := range specs {
		if s.secret {
			keys = append(keys, s.key)
		}
	}
	return keys
}
