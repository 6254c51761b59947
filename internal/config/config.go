// Package config loads the service's configuration from a .env file
// layered under the process environment, producing the flat string map
// the rest of the service treats as its external configuration contract.
// Config loading itself is a thin collaborator: it has no opinion about
// what the keys mean, only about where values come from and in what
// order they override each other.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Map is the flat key/value configuration contract. Environment variables
// always win over a .env file entry with the same key.
type Map map[string]string

// Load reads the .env file at path (if it exists — a missing file is not
// an error) and merges it with os.Environ(), environment variables taking
// precedence, exactly as godotenv.Load behaves when called before reading
// os.Getenv.
func Load(path string) (Map, error) {
	fileVars := Map{}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			vars, err := godotenv.Read(path)
			if err != nil {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
			fileVars = vars
		}
	}

	for _, kv := range os.Environ() {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			continue
		}
		fileVars[parts[0]] = parts[1]
	}

	return fileVars, nil
}

// Get returns the raw string value for key, or def if absent/empty.
func (m Map) Get(key, def string) string {
	if v, ok := m[key]; ok && v != "" {
		return v
	}
	return def
}

// MustGet returns the raw string value for key, returning a ConfigError
// if it is absent. Several required keys (okex_ws_url, okex_heartbeat_millis,
// deribit_ws_url, deribit_heartbeat_millis, deribit_products_to_subscribe)
// fail startup this way before any worker starts, per the service's
// ConfigError handling rule.
func (m Map) MustGet(key string) (string, error) {
	v, ok := m[key]
	if !ok || v == "" {
		return "", &ConfigError{Key: key}
	}
	return v, nil
}

// Int parses key as an integer, falling back to def.
func (m Map) Int(key string, def int) (int, error) {
	v, ok := m[key]
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

// MustInt parses a required integer key.
func (m Map) MustInt(key string) (int, error) {
	v, err := m.MustGet(key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

// Millis parses key as a millisecond count and returns the equivalent
// time.Duration.
func (m Map) Millis(key string, def time.Duration) (time.Duration, error) {
	v, ok := m[key]
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return time.Duration(n) * time.Millisecond, nil
}

// MustMillis parses a required millisecond key.
func (m Map) MustMillis(key string) (time.Duration, error) {
	v, err := m.MustGet(key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return time.Duration(n) * time.Millisecond, nil
}

// CSV splits key on commas, trimming whitespace and dropping empty
// entries. Used for okex_products_to_subscribe / deribit_products_to_subscribe.
func (m Map) CSV(key string) []string {
	raw, ok := m[key]
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// MustCSV splits a required CSV key, failing startup if absent.
func (m Map) MustCSV(key string) ([]string, error) {
	if _, err := m.MustGet(key); err != nil {
		return nil, err
	}
	return m.CSV(key), nil
}

// ConfigError reports a missing required configuration key. It is
// returned before any worker starts, per the service's error taxonomy:
// configuration failures are detected at startup, not during operation.
type ConfigError struct {
	Key string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: required key %q is missing", e.Key)
}
