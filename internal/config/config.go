// Package config manages the settings file shared by the CLI and the web
// panel.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/yosuke-furukawa/json5/encoding/json5"
)

// Settings is the typed view of the settings file.
type Settings struct {
	DocumentPath    string         `json:"document_path"`
	OutputDirectory string         `json:"output_directory" validate:"required"`
	SelectedMonth   string         `json:"selected_month"`
	DateFormat      string         `json:"date_format" validate:"required"`
	TimeFormat      string         `json:"time_format" validate:"required"`
	LogEvents       bool           `json:"log_events"`
	LogDirectory    string         `json:"log_directory" validate:"required"`
	Server          ServerSettings `json:"server"`
	Schedule        Schedule       `json:"schedule"`
}

type ServerSettings struct {
	Host string `json:"host" validate:"required"`
	Port int    `json:"port" validate:"min=1,max=65535"`
}

// Schedule holds optional cron expressions for automatic stamping while the
// panel is running.
type Schedule struct {
	CheckIn  string `json:"check_in" validate:"omitempty,cron"`
	CheckOut string `json:"check_out" validate:"omitempty,cron"`
}

// DateLayout is the Go layout of the configured date format.
func (s Settings) DateLayout() string { return Layout(s.DateFormat) }

// TimeLayout is the Go layout of the configured time format.
func (s Settings) TimeLayout() string { return Layout(s.TimeFormat) }

// DataDir returns $SHEETSTAMP_HOME or ~/.local/share/sheetstamp.
func DataDir() string {
	if dir := os.Getenv("SHEETSTAMP_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".local", "share", "sheetstamp")
}

// LoadEnv reads a .env file into the environment without overriding
// variables that are already set. A missing file is not an error.
func LoadEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

// Defaults returns the default settings tree rooted at dataDir.
func Defaults(dataDir string) map[string]any {
	return map[string]any{
		"document_path":    "",
		"output_directory": filepath.Join(dataDir, "filled_docs"),
		"selected_month":   "",
		"date_format":      "%Y-%m-%d",
		"time_format":      "%H:%M:%S",
		"log_events":       true,
		"log_directory":    filepath.Join(dataDir, "logs"),
		"server": map[string]any{
			"host": "0.0.0.0",
			"port": 5000,
		},
		"schedule": map[string]any{
			"check_in":  "",
			"check_out": "",
		},
	}
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func settingsValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("cron", func(fl validator.FieldLevel) bool {
			_, err := cron.ParseStandard(fl.Field().String())
			return err == nil
		})
	})
	return validate
}

// Store is a JSON settings file with defaults merged underneath. Reads go to
// disk on every Load so separate processes see each other's changes.
type Store struct {
	path     string
	defaults map[string]any

	mu     sync.RWMutex
	values map[string]any
}

func NewStore(path, dataDir string) *Store {
	return &Store{
		path:     path,
		defaults: Defaults(dataDir),
		values:   Defaults(dataDir),
	}
}

func (s *Store) Path() string { return s.path }

// Load re-reads the settings file. A missing file leaves the defaults in
// place; the file is only created by Set.
func (s *Store) Load() error {
	values := cloneTree(s.defaults)

	data, err := os.ReadFile(s.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read settings: %w", err)
	}
	if err == nil && len(strings.TrimSpace(string(data))) > 0 {
		var file map[string]any
		if err := json5.Unmarshal(data, &file); err != nil {
			return fmt.Errorf("parse settings %s: %w", s.path, err)
		}
		mergeTree(values, file)
	}

	s.mu.Lock()
	s.values = values
	s.mu.Unlock()
	return nil
}

// Get looks up a dotted key such as "server.port".
func (s *Store) Get(key string, def any) any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value any = s.values
	for _, part := range strings.Split(key, ".") {
		m, ok := value.(map[string]any)
		if !ok {
			return def
		}
		if value, ok = m[part]; !ok {
			return def
		}
	}
	return value
}

func (s *Store) GetString(key, def string) string {
	switch v := s.Get(key, def).(type) {
	case string:
		return v
	case nil:
		return def
	default:
		return fmt.Sprint(v)
	}
}

func (s *Store) GetInt(key string, def int) int {
	switch v := s.Get(key, def).(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func (s *Store) GetBool(key string, def bool) bool {
	switch v := s.Get(key, def).(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// Set assigns a dotted key, validates the result and writes the file.
func (s *Store) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := cloneTree(s.values)
	parts := strings.Split(key, ".")
	m := next
	for _, part := range parts[:len(parts)-1] {
		child, ok := m[part].(map[string]any)
		if !ok {
			child = map[string]any{}
			m[part] = child
		}
		m = child
	}
	m[parts[len(parts)-1]] = value

	if _, err := decode(next); err != nil {
		return err
	}

	data, err := json.MarshalIndent(next, "", "    ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	s.values = next
	return nil
}

// Settings decodes and validates the current values.
func (s *Store) Settings() (Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return decode(s.values)
}

func decode(values map[string]any) (Settings, error) {
	var settings Settings
	data, err := json.Marshal(values)
	if err != nil {
		return settings, err
	}
	if err := json.Unmarshal(data, &settings); err != nil {
		return settings, fmt.Errorf("invalid settings: %w", err)
	}
	if err := settingsValidator().Struct(settings); err != nil {
		return settings, fmt.Errorf("invalid settings: %w", err)
	}
	return settings, nil
}

// mergeTree copies src over dst, descending into maps present on both sides.
func mergeTree(dst, src map[string]any) {
	for k, v := range src {
		sub, ok := v.(map[string]any)
		if existing, isMap := dst[k].(map[string]any); ok && isMap {
			mergeTree(existing, sub)
			continue
		}
		dst[k] = v
	}
}

func cloneTree(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		if m, ok := v.(map[string]any); ok {
			dst[k] = cloneTree(m)
			continue
		}
		dst[k] = v
	}
	return dst
}

// ParseValue reads a command-line value as JSON5 so numbers, booleans and
// objects keep their type; anything else is taken as a plain string.
func ParseValue(raw string) any {
	var v any
	if err := json5.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}

// SetText stores a command-line value under key. A key that holds a string
// keeps the text as typed, so "2025" stays a month label; other keys go
// through ParseValue.
func (s *Store) SetText(key, raw string) error {
	if _, ok := s.Get(key, nil).(string); ok {
		return s.Set(key, raw)
	}
	return s.Set(key, ParseValue(raw))
}

// Current reloads the file and returns the validated settings.
func (s *Store) Current() (Settings, error) {
	if err := s.Load(); err != nil {
		return Settings{}, err
	}
	return s.Settings()
}
