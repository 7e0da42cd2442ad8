package settings

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config keys used by the store. The store itself is string-keyed so that
// callers can get and set individual values with a default.
const (
	KeyAPIKey       = "api_key"
	KeySystemPrompt = "system_prompt"
	KeyTemperature  = "temperature"
	KeyModel        = "model"
	KeyModelHistory = "model_history"
)

// Store defines persistence operations for app settings.
type Store interface {
	Load() (Settings, error)
	Save(Settings) error
}

// ViperStore persists settings as a YAML file on disk.
type ViperStore struct {
	v    *viper.Viper
	path string
}

// DefaultPath returns the per-user settings file location.
func DefaultPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".sheetscribe", "settings.yaml")
}

// NewViperStore creates a viper-backed settings store at path.
func NewViperStore(path string) *ViperStore {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault(KeySystemPrompt, DefaultSystemPrompt)
	v.SetDefault(KeyTemperature, DefaultTemperature)
	v.SetDefault(KeyModel, DefaultModel)
	v.SetDefault(KeyModelHistory, []string{DefaultModel})

	return &ViperStore{v: v, path: path}
}

// GetString reads a single value, returning def when unset.
func (s *ViperStore) GetString(key, def string) string {
	if !s.v.IsSet(key) {
		return def
	}
	return s.v.GetString(key)
}

// SetValue stores a single value without writing to disk.
func (s *ViperStore) SetValue(key string, value any) {
	s.v.Set(key, value)
}

// Load reads settings from disk or returns defaults when the file is missing.
func (s *ViperStore) Load() (Settings, error) {
	if err := s.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return Defaults(), nil
		}
		return Settings{}, err
	}

	cfg := Settings{
		APIKey:       s.v.GetString(KeyAPIKey),
		SystemPrompt: s.v.GetString(KeySystemPrompt),
		Temperature:  s.v.GetFloat64(KeyTemperature),
		Model:        s.v.GetString(KeyModel),
		ModelHistory: s.v.GetStringSlice(KeyModelHistory),
	}
	cfg.RememberModel(cfg.Model)
	return cfg, nil
}

// Save writes settings to disk, creating parent directories as needed.
func (s *ViperStore) Save(cfg Settings) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	s.v.Set(KeyAPIKey, cfg.APIKey)
	s.v.Set(KeySystemPrompt, cfg.SystemPrompt)
	s.v.Set(KeyTemperature, cfg.Temperature)
	s.v.Set(KeyModel, cfg.Model)
	s.v.Set(KeyModelHistory, cfg.ModelHistory)

	return s.v.WriteConfigAs(s.path)
}
