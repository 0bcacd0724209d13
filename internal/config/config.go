// Package config loads bot configuration and the employee roster from
// YAML, with environment variable overrides for secrets.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all shiftbot configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	Spreadsheet SpreadsheetConfig `yaml:"spreadsheet"`
	LLM         LLMConfig         `yaml:"llm"`
	Speech      SpeechConfig      `yaml:"speech"`
	Storage     StorageConfig     `yaml:"storage"`
	Limits      LimitsConfig      `yaml:"limits"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// SpreadsheetConfig locates the schedule document and its per-month
// worksheets.
type SpreadsheetConfig struct {
	ID              string `yaml:"id"`
	CredentialsPath string `yaml:"credentials_path"`

	// MonthSheets maps "01".."12" to worksheet titles.
	MonthSheets map[string]string `yaml:"month_sheets"`

	// MonthNames maps "01".."12" to display names used in replies
	// and sheet templates.
	MonthNames map[string]string `yaml:"month_names"`
}

// LLMConfig configures the intent classifier.
type LLMConfig struct {
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Timeout  string `yaml:"timeout"`
}

// SpeechConfig configures voice transcription.
type SpeechConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	Timeout string `yaml:"timeout"`
}

// StorageConfig holds the local persistence paths.
type StorageConfig struct {
	HistoryPath  string `yaml:"history_path"`
	SnapshotPath string `yaml:"snapshot_path"`
	DatabasePath string `yaml:"database_path"`
	RosterPath   string `yaml:"roster_path"`
}

// LimitsConfig holds timing and size knobs.
type LimitsConfig struct {
	CacheTTL             string `yaml:"cache_ttl"`
	PendingTTL           string `yaml:"pending_ttl"`
	SessionCheckInterval string `yaml:"session_check_interval"`

	// Batches larger than ConfirmThreshold require confirmation.
	ConfirmThreshold int `yaml:"confirm_threshold"`
	MaxHistory       int `yaml:"max_history"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	months := map[string]string{
		"01": "January_1", "02": "February_1", "03": "March_1",
		"04": "April_1", "05": "May_1", "06": "June_1",
		"07": "July_1", "08": "August_1", "09": "September_1",
		"10": "October_1", "11": "November_1", "12": "December_1",
	}
	names := map[string]string{
		"01": "January", "02": "February", "03": "March",
		"04": "April", "05": "May", "06": "June",
		"07": "July", "08": "August", "09": "September",
		"10": "October", "11": "November", "12": "December",
	}
	return &Config{
		Name:    "shiftbot",
		Version: "1.0.0",
		Spreadsheet: SpreadsheetConfig{
			CredentialsPath: "credentials.json",
			MonthSheets:     months,
			MonthNames:      names,
		},
		LLM: LLMConfig{
			Provider: "anthropic",
			Model:    "claude-haiku-4-5",
			Timeout:  "60s",
		},
		Speech: SpeechConfig{
			Model:   "whisper-large-v3",
			Timeout: "60s",
		},
		Storage: StorageConfig{
			HistoryPath:  "data/history.json",
			SnapshotPath: "data/snapshot.json",
			DatabasePath: "data/shiftbot.db",
			RosterPath:   "employees.yaml",
		},
		Limits: LimitsConfig{
			CacheTTL:             "60s",
			PendingTTL:           "2m",
			SessionCheckInterval: "5m",
			ConfirmThreshold:     5,
			MaxHistory:           500,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the config file at path over the defaults. A missing
// file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the config as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SPREADSHEET_ID"); v != "" {
		c.Spreadsheet.ID = v
	}
	if v := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); v != "" {
		c.Spreadsheet.CredentialsPath = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" && c.LLM.Provider == "anthropic" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" && c.LLM.Provider == "gemini" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("GROQ_API_KEY"); v != "" {
		c.Speech.APIKey = v
	}
	if v := os.Getenv("SHIFTBOT_DB_PATH"); v != "" {
		c.Storage.DatabasePath = v
	}
}

// Duration parses a config duration string, falling back when empty
// or malformed.
func Duration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
