// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete client configuration.
type Config struct {
	Backend BackendConfig `toml:"backend" json:"backend"`
	Stream  StreamConfig  `toml:"stream" json:"stream"`
	State   StateConfig   `toml:"state" json:"state"`
	History HistoryConfig `toml:"history" json:"history"`
	UI      UIConfig      `toml:"ui" json:"ui"`
	Logging LoggingConfig `toml:"logging" json:"logging"`
}

// BackendConfig locates the webhook endpoints.
type BackendConfig struct {
	// WebhookURL receives POSTed messages. Empty means not configured.
	WebhookURL string `toml:"webhook_url" json:"webhook_url" validate:"omitempty,url"`
	// HistoryURL serves GET ?sessionId=<id>. Empty disables history.
	HistoryURL string `toml:"history_url" json:"history_url"`
	// TimeoutSecs bounds history requests and the wait for response
	// headers on sends. Streaming bodies are never cut off. 0 disables.
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs" validate:"gte=0,lte=3600"`
}

// StreamConfig tunes the response reconciler.
type StreamConfig struct {
	// Boundary selects how embedded objects are delimited: strict or naive.
	Boundary string `toml:"boundary" json:"boundary" validate:"oneof=strict naive"`
	// ReadSize is the chunk size used when reading a response stream.
	ReadSize int `toml:"read_size" json:"read_size" validate:"gte=1,lte=1048576"`
}

// StateConfig controls where conversation identifiers are persisted.
type StateConfig struct {
	Backend string `toml:"backend" json:"backend" validate:"oneof=file sqlite"`
	Dir     string `toml:"dir" json:"dir"`
	// Variant is multi (conversation list) or single (one session id).
	Variant string `toml:"variant" json:"variant" validate:"oneof=multi single"`
}

// HistoryConfig controls the fetched-history cache.
type HistoryConfig struct {
	CacheTTLSecs int `toml:"cache_ttl_secs" json:"cache_ttl_secs" validate:"gte=0"`
}

// UIConfig contains terminal UI settings.
type UIConfig struct {
	Theme string `toml:"theme" json:"theme" validate:"oneof=auto dark light"`
	// Sample seeds a fixed demonstration conversation and skips the network.
	Sample bool `toml:"sample" json:"sample"`
	// Width caps the rendered message width. 0 follows the terminal.
	Width int `toml:"width" json:"width" validate:"gte=0"`
}

// LoggingConfig controls the structured log file.
type LoggingConfig struct {
	File       string `toml:"file" json:"file"`
	Level      string `toml:"level" json:"level" validate:"oneof=debug info warn error"`
	MaxSizeMB  int    `toml:"max_size_mb" json:"max_size_mb" validate:"gte=1"`
	MaxBackups int    `toml:"max_backups" json:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `toml:"max_age_days" json:"max_age_days" validate:"gte=0"`
	// Console mirrors log entries to stderr. Ignored by the TUI.
	Console bool `toml:"console" json:"console"`
}

// Timeout returns the backend timeout as a duration.
func (b BackendConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutSecs) * time.Second
}

// CacheTTL returns the history cache lifetime as a duration.
func (h HistoryConfig) CacheTTL() time.Duration {
	return time.Duration(h.CacheTTLSecs) * time.Second
}

// Default returns the built-in configuration.
func Default() *Config {
	dir, err := ConfigDir()
	if err != nil {
		dir = ".chatn8n"
	}
	return &Config{
		Backend: BackendConfig{
			TimeoutSecs: 30,
		},
		Stream: StreamConfig{
			Boundary: "strict",
			ReadSize: 4096,
		},
		State: StateConfig{
			Backend: "file",
			Dir:     filepath.Join(dir, "state"),
			Variant: "multi",
		},
		History: HistoryConfig{
			CacheTTLSecs: 60,
		},
		UI: UIConfig{
			Theme: "auto",
		},
		Logging: LoggingConfig{
			File:       filepath.Join(dir, "logs", "chatn8n.log"),
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the client's configuration directory.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".chatn8n"), nil
}

// DefaultPath returns the default TOML config path.
func DefaultPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load builds the effective configuration: defaults, then the TOML file,
// then a .env file in the working directory, then the environment.
//
// An empty path means DefaultPath; a missing default file is not an error,
// a missing explicit file is.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	if err := LoadTOML(cfg, path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes the file at path over cfg.
func LoadTOML(cfg *Config, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file %s: %w", path, err)
	}
	return nil
}

// LoadDotEnv loads variables from a .env file into the process
// environment. Variables that are already set win. A missing file is fine.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// SaveTOML writes cfg to path with owner-only permissions.
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("failed to set config file permissions: %w", err)
	}

	fmt.Fprintln(file, "# chatn8n configuration file")
	fmt.Fprintln(file, "# Environment variables (CHAT_WEBHOOK_URL, ...) override these values.")
	fmt.Fprintln(file, "")

	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variables on top of the loaded
// values. The N8N_* and SHOW_SAMPLE_CHAT names are accepted as fallbacks.
func (c *Config) ApplyEnvOverrides() {
	if v := getEnv("CHAT_WEBHOOK_URL", "N8N_WEBHOOK_URL"); v != "" {
		c.Backend.WebhookURL = v
	}
	if v := getEnv("CHAT_HISTORY_URL", "N8N_GET_HISTORY_URL"); v != "" {
		c.Backend.HistoryURL = v
	}
	if v := getEnv("CHAT_SHOW_SAMPLE", "SHOW_SAMPLE_CHAT"); v != "" {
		c.UI.Sample = parseBool(v)
	}
	if v := getEnv("CHAT_STATE_BACKEND"); v != "" {
		c.State.Backend = strings.ToLower(v)
	}
	if v := getEnv("CHAT_STATE_DIR"); v != "" {
		c.State.Dir = v
	}
	if v := getEnv("CHAT_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
}

// getEnv returns the first non-empty variable among keys.
func getEnv(keys ...string) string {
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok && value != "" {
			return value
		}
	}
	return ""
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// SetDefaults fills zero-valued fields from Default.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Stream.Boundary == "" {
		c.Stream.Boundary = defaults.Stream.Boundary
	}
	if c.Stream.ReadSize == 0 {
		c.Stream.ReadSize = defaults.Stream.ReadSize
	}
	if c.State.Backend == "" {
		c.State.Backend = defaults.State.Backend
	}
	if c.State.Dir == "" {
		c.State.Dir = defaults.State.Dir
	}
	if c.State.Variant == "" {
		c.State.Variant = defaults.State.Variant
	}
	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = defaults.Logging.MaxSizeMB
	}

	c.State.Dir = expandHome(c.State.Dir)
	c.Logging.File = expandHome(c.Logging.File)
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError is one invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors collects every invalid field.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("toml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks field constraints and the backend URL schemes.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			errs = append(errs, ValidationError{
				Field:   fieldPath(fe.Namespace()),
				Message: describe(fe),
			})
		}
	}

	const webhookField = "backend.webhook_url"
	if !errs.has(webhookField) && !isHTTPURL(c.Backend.WebhookURL) {
		errs = append(errs, ValidationError{
			Field:   webhookField,
			Message: fmt.Sprintf("invalid URL '%s', must be http(s)://host/...", c.Backend.WebhookURL),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Warnings lists accepted settings that will not work. A bad history URL
// only disables history, so it does not fail validation.
func (c *Config) Warnings() []string {
	var warns []string
	if !isHTTPURL(c.Backend.HistoryURL) {
		warns = append(warns, fmt.Sprintf("backend.history_url: invalid URL '%s', history will stay empty", c.Backend.HistoryURL))
	}
	return warns
}

// isHTTPURL reports whether raw is empty or an absolute http(s) URL.
func isHTTPURL(raw string) bool {
	if raw == "" {
		return true
	}
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (e ValidateErrors) has(field string) bool {
	for _, v := range e {
		if v.Field == field {
			return true
		}
	}
	return false
}

// fieldPath turns "Config.backend.webhook_url" into "backend.webhook_url".
func fieldPath(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("invalid value '%v', must be one of: %s", fe.Value(),
			strings.ReplaceAll(fe.Param(), " ", ", "))
	case "url":
		return fmt.Sprintf("invalid URL '%v'", fe.Value())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	}
	return fmt.Sprintf("failed '%s' check", fe.Tag())
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get returns the value at a dotted TOML key, e.g. "backend.webhook_url".
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set parses value into the field at a dotted TOML key. It does not
// validate; call Validate before saving.
func (c *Config) Set(key, value string) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s: invalid integer value %q", key, value)
		}
		field.SetInt(int64(n))
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s: invalid boolean value %q", key, value)
		}
		field.SetBool(b)
	default:
		return fmt.Errorf("%s: cannot set %s", key, field.Type())
	}
	return nil
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	parts := strings.Split(key, ".")
	if key == "" || len(parts) == 0 {
		return reflect.Value{}, errors.New("empty key")
	}

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		field, ok := fieldByTag(v, part)
		if !ok {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("%s is a section, not a value", key)
			}
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a section", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if strings.SplitN(t.Field(i).Tag.Get("toml"), ",", 2)[0] == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// Keys lists every settable dotted key.
func Keys() []string {
	var keys []string
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		section := t.Field(i)
		prefix := section.Tag.Get("toml")
		for j := 0; j < section.Type.NumField(); j++ {
			keys = append(keys, prefix+"."+section.Type.Field(j).Tag.Get("toml"))
		}
	}
	return keys
}
