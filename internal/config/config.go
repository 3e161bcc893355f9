// Package config provides configuration management for the transcript worker.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables read by Load.
const (
	EnvConfigPath      = "PROCESSOR_CONFIG"
	EnvPodsAPIKey      = "RUNPOD_API_KEY"
	EnvLLMAPIKey       = "OPENROUTER_API_KEY"
	EnvSheetCreds      = "GOOGLE_SHEET_CREDS"
	EnvSpreadsheetURL  = "SPREADSHEET_URL"
	EnvWorksheetName   = "WORKSHEET_NAME"
	EnvSSHKeyPath      = "SSH_KEY_PATH"
	EnvLogLevel        = "LOG_LEVEL"
	defaultDotEnvFile  = ".env"
	defaultOutputGlob  = "/workspace/outputs/*.json"
	defaultPodEndpoint = "https://api.runpod.io/graphql"
)

// Configuration validation errors.
var (
	ErrMissingPodsAPIKey       = errors.New("pods.api_key is required")
	ErrMissingLLMAPIKey        = errors.New("llm.api_key is required")
	ErrMissingSheetCreds       = errors.New("sheets.credentials_path is required")
	ErrMissingSpreadsheetURL   = errors.New("sheets.spreadsheet_url is required")
	ErrMissingWorksheet        = errors.New("sheets.worksheet is required")
	ErrMissingSSHKey           = errors.New("pods.ssh.key_path is required")
	ErrMissingOutputGlob       = errors.New("pods.ssh.output_glob is required")
	ErrInvalidPodWorkers       = errors.New("pods.workers must be at least 1")
	ErrInvalidLLMWorkers       = errors.New("llm.workers must be at least 1")
	ErrInvalidRequestRate      = errors.New("llm.requests_per_second must be non-negative")
	ErrInvalidMaxAttempts      = errors.New("retry.max_attempts must be at least 1")
	ErrInvalidInitialDelay     = errors.New("retry.initial_delay_ms must be non-negative")
	ErrInvalidBackoff          = errors.New("retry.backoff_multiplier must be >= 1.0")
	ErrInvalidTimeout          = errors.New("timeout_sec values must be at least 1")
	ErrInvalidLogLevel         = errors.New("logging.level must be one of: debug, info, warn, error")
	ErrInvalidProgressInterval = errors.New("logging.progress_every must be non-negative")
)

// Config represents the complete worker configuration.
type Config struct {
	Pods    PodsConfig    `yaml:"pods"`
	LLM     LLMConfig     `yaml:"llm"`
	Sheets  SheetsConfig  `yaml:"sheets"`
	Logging LoggingConfig `yaml:"logging"`
}

// PodsConfig contains compute-pool discovery and collection settings.
type PodsConfig struct {
	APIKey   string    `yaml:"api_key"`
	Endpoint string    `yaml:"endpoint"`
	SSH      SSHConfig `yaml:"ssh"`
	Workers  int       `yaml:"workers"`
	// TimeoutSec bounds the discovery API call.
	TimeoutSec int `yaml:"timeout_sec"`
}

// SSHConfig defines how remote sessions are opened on each pod.
type SSHConfig struct {
	KeyPath           string `yaml:"key_path"`
	User              string `yaml:"user"`
	OutputGlob        string `yaml:"output_glob"`
	KnownHostsPath    string `yaml:"known_hosts"`
	DialTimeoutSec    int    `yaml:"dial_timeout_sec"`
	CommandTimeoutSec int    `yaml:"command_timeout_sec"`
}

// LLMConfig contains completion endpoint settings.
type LLMConfig struct {
	APIKey            string      `yaml:"api_key"`
	BaseURL           string      `yaml:"base_url"`
	Model             string      `yaml:"model"`
	Retry             RetryPolicy `yaml:"retry"`
	Workers           int         `yaml:"workers"`
	RequestsPerSecond float64     `yaml:"requests_per_second"`
}

// SheetsConfig contains spreadsheet sink settings.
type SheetsConfig struct {
	CredentialsPath string `yaml:"credentials_path"`
	SpreadsheetURL  string `yaml:"spreadsheet_url"`
	Worksheet       string `yaml:"worksheet"`
	LogWorksheet    string `yaml:"log_worksheet"`
	TimeoutSec      int    `yaml:"timeout_sec"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level         string `yaml:"level"`
	ProgressEvery int    `yaml:"progress_every"`
	SheetSink     bool   `yaml:"sheet_sink"`
}

// RetryPolicy defines retry behavior.
type RetryPolicy struct {
	MaxAttempts       int     `yaml:"max_attempts"`
	InitialDelayMs    int     `yaml:"initial_delay_ms"`
	MaxDelayMs        int     `yaml:"max_delay_ms"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
	TimeoutSec        int     `yaml:"timeout_sec"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Pods: PodsConfig{
			Endpoint:   defaultPodEndpoint,
			Workers:    8,
			TimeoutSec: 30,
			SSH: SSHConfig{
				KeyPath:           "~/.ssh/id_ed25519",
				User:              "root",
				OutputGlob:        defaultOutputGlob,
				DialTimeoutSec:    15,
				CommandTimeoutSec: 60,
			},
		},
		LLM: LLMConfig{
			BaseURL: "https://openrouter.ai/api/v1",
			Model:   "gpt-oss-20b",
			Workers: 1,
			Retry: RetryPolicy{
				MaxAttempts:       3,
				InitialDelayMs:    500,
				MaxDelayMs:        30000,
				BackoffMultiplier: 2.0,
				TimeoutSec:        120,
			},
		},
		Sheets: SheetsConfig{
			Worksheet:    "output",
			LogWorksheet: "log",
			TimeoutSec:   30,
		},
		Logging: LoggingConfig{
			Level:         "info",
			ProgressEvery: 25,
			SheetSink:     true,
		},
	}
}

// Load builds the configuration from defaults, an optional .env file, an
// optional YAML file named by PROCESSOR_CONFIG, and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(defaultDotEnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", defaultDotEnvFile, err)
	}

	cfg := Default()

	if path := os.Getenv(EnvConfigPath); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()
	cfg.expandPaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfig loads configuration from a YAML file on top of the defaults.
func LoadConfig(filepath string) (*Config, error) {
	cfg := Default()
	if err := cfg.mergeFile(filepath); err != nil {
		return nil, err
	}

	cfg.expandPaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// applyEnvOverrides lets the service credentials in the environment win over
// anything loaded from files.
func (c *Config) applyEnvOverrides() {
	setFromEnv(&c.Pods.APIKey, EnvPodsAPIKey)
	setFromEnv(&c.LLM.APIKey, EnvLLMAPIKey)
	setFromEnv(&c.Sheets.CredentialsPath, EnvSheetCreds)
	setFromEnv(&c.Sheets.SpreadsheetURL, EnvSpreadsheetURL)
	setFromEnv(&c.Sheets.Worksheet, EnvWorksheetName)
	setFromEnv(&c.Pods.SSH.KeyPath, EnvSSHKeyPath)
	setFromEnv(&c.Logging.Level, EnvLogLevel)
}

func setFromEnv(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func (c *Config) expandPaths() {
	c.Pods.SSH.KeyPath = ExpandHome(c.Pods.SSH.KeyPath)
	c.Pods.SSH.KnownHostsPath = ExpandHome(c.Pods.SSH.KnownHostsPath)
	c.Sheets.CredentialsPath = ExpandHome(c.Sheets.CredentialsPath)
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Pods.APIKey == "" {
		return ErrMissingPodsAPIKey
	}

	if c.LLM.APIKey == "" {
		return ErrMissingLLMAPIKey
	}

	if c.Sheets.CredentialsPath == "" {
		return ErrMissingSheetCreds
	}

	if c.Sheets.SpreadsheetURL == "" {
		return ErrMissingSpreadsheetURL
	}

	if c.Sheets.Worksheet == "" {
		return ErrMissingWorksheet
	}

	if c.Pods.SSH.KeyPath == "" {
		return ErrMissingSSHKey
	}

	if c.Pods.SSH.OutputGlob == "" {
		return ErrMissingOutputGlob
	}

	if c.Pods.Workers < 1 {
		return ErrInvalidPodWorkers
	}

	if c.LLM.Workers < 1 {
		return ErrInvalidLLMWorkers
	}

	if c.LLM.RequestsPerSecond < 0 {
		return ErrInvalidRequestRate
	}

	if err := c.LLM.Retry.Validate(); err != nil {
		return fmt.Errorf("llm.%w", err)
	}

	for name, sec := range map[string]int{
		"pods.timeout_sec":             c.Pods.TimeoutSec,
		"pods.ssh.dial_timeout_sec":    c.Pods.SSH.DialTimeoutSec,
		"pods.ssh.command_timeout_sec": c.Pods.SSH.CommandTimeoutSec,
		"sheets.timeout_sec":           c.Sheets.TimeoutSec,
	} {
		if sec < 1 {
			return fmt.Errorf("%w: %s", ErrInvalidTimeout, name)
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return ErrInvalidLogLevel
	}

	if c.Logging.ProgressEvery < 0 {
		return ErrInvalidProgressInterval
	}

	return nil
}

// Validate checks the retry policy bounds.
func (rp *RetryPolicy) Validate() error {
	if rp.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}

	if rp.InitialDelayMs < 0 {
		return ErrInvalidInitialDelay
	}

	if rp.BackoffMultiplier < 1.0 {
		return ErrInvalidBackoff
	}

	if rp.TimeoutSec < 1 {
		return ErrInvalidTimeout
	}

	return nil
}

// GetRetryDelay calculates exponential backoff delay for attempt number.
func (rp *RetryPolicy) GetRetryDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}

	delayMs := float64(rp.InitialDelayMs)
	for i := 1; i < attempt; i++ {
		delayMs *= rp.BackoffMultiplier
	}

	// Cap at max delay
	if int(delayMs) > rp.MaxDelayMs {
		delayMs = float64(rp.MaxDelayMs)
	}

	return time.Duration(int(delayMs)) * time.Millisecond
}

// GetTimeout returns the timeout duration.
func (rp *RetryPolicy) GetTimeout() time.Duration {
	return time.Duration(rp.TimeoutSec) * time.Second
}

// Seconds converts a *_sec setting into a duration.
func Seconds(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}

// SheetSinkEnabled reports whether log lines should be mirrored to the
// spreadsheet log worksheet.
func (c *Config) SheetSinkEnabled() bool {
	return c.Logging.SheetSink && c.Sheets.CredentialsPath != "" && c.Sheets.SpreadsheetURL != "" && c.Sheets.LogWorksheet != ""
}

// String returns a string representation of the config without secrets.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{PodWorkers: %d, OutputGlob: %s, Model: %s, LLMWorkers: %d, Worksheet: %s}",
		c.Pods.Workers,
		c.Pods.SSH.OutputGlob,
		c.LLM.Model,
		c.LLM.Workers,
		c.Sheets.Worksheet,
	)
}
