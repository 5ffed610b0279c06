package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const (
	DefaultModel          = "gpt-4o-mini"
	DefaultMaxTokens      = 1500
	DefaultHost           = "0.0.0.0"
	DefaultPort           = 18650
	DefaultSessionTTLMin  = 60
	DefaultSweepSchedule  = "0 */10 * * * *"
	DefaultTaxonomyTopK   = 5
	DefaultLLMTimeoutMs   = 30000
	DefaultSearchTimeout  = 10000
	DefaultTaskNamespace  = "tasks"
	DefaultOccNamespace   = "jobs"
	DefaultReferenceTasks = 15
	DefaultBufSize        = 64
)

type Config struct {
	Provider ProviderConfig `json:"provider"`
	Taxonomy TaxonomyConfig `json:"taxonomy"`
	Session  SessionConfig  `json:"session"`
	Gateway  GatewayConfig  `json:"gateway"`
	Channels ChannelsConfig `json:"channels"`
}

type ProviderConfig struct {
	APIKey    string `json:"apiKey"`
	BaseURL   string `json:"baseUrl,omitempty"`
	Model     string `json:"model,omitempty"`
	MaxTokens int    `json:"maxTokens,omitempty"`
	TimeoutMs int    `json:"timeoutMs,omitempty"`
}

type TaxonomyConfig struct {
	BaseURL       string `json:"baseUrl,omitempty"`
	APIKey        string `json:"apiKey,omitempty"`
	TaskNamespace string `json:"taskNamespace,omitempty"`
	OccNamespace  string `json:"occNamespace,omitempty"`
	TimeoutMs     int    `json:"timeoutMs,omitempty"`
}

type SessionConfig struct {
	DBPath        string `json:"dbPath,omitempty"`
	TTLMinutes    int    `json:"ttlMinutes,omitempty"`
	SweepSchedule string `json:"sweepSchedule,omitempty"`
}

type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
}

type TelegramConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token"`
	AllowFrom []string `json:"allowFrom"`
	Proxy     string   `json:"proxy,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			Model:     DefaultModel,
			MaxTokens: DefaultMaxTokens,
			TimeoutMs: DefaultLLMTimeoutMs,
		},
		Taxonomy: TaxonomyConfig{
			TaskNamespace: DefaultTaskNamespace,
			OccNamespace:  DefaultOccNamespace,
			TimeoutMs:     DefaultSearchTimeout,
		},
		Session: SessionConfig{
			DBPath:        filepath.Join(ConfigDir(), "sessions.db"),
			TTLMinutes:    DefaultSessionTTLMin,
			SweepSchedule: DefaultSweepSchedule,
		},
		Gateway: GatewayConfig{
			Host: DefaultHost,
			Port: DefaultPort,
		},
		Channels: ChannelsConfig{},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".futura")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if key := os.Getenv("FUTURA_API_KEY"); key != "" {
		cfg.Provider.APIKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = key
	}
	if url := os.Getenv("FUTURA_BASE_URL"); url != "" {
		cfg.Provider.BaseURL = url
	}
	if model := os.Getenv("FUTURA_MODEL"); model != "" {
		cfg.Provider.Model = model
	}
	if url := os.Getenv("FUTURA_TAXONOMY_URL"); url != "" {
		cfg.Taxonomy.BaseURL = url
	}
	if key := os.Getenv("FUTURA_TAXONOMY_API_KEY"); key != "" {
		cfg.Taxonomy.APIKey = key
	}
	if path := os.Getenv("FUTURA_SESSION_DB"); path != "" {
		cfg.Session.DBPath = path
	}
	if ttl := os.Getenv("FUTURA_SESSION_TTL_MIN"); ttl != "" {
		if parsed, err := strconv.Atoi(ttl); err == nil && parsed > 0 {
			cfg.Session.TTLMinutes = parsed
		}
	}
	if token := os.Getenv("FUTURA_TELEGRAM_TOKEN"); token != "" {
		cfg.Channels.Telegram.Token = token
	}
	if port := os.Getenv("FUTURA_PORT"); port != "" {
		if parsed, err := strconv.Atoi(port); err == nil && parsed > 0 {
			cfg.Gateway.Port = parsed
		}
	}

	if cfg.Provider.Model == "" {
		cfg.Provider.Model = DefaultModel
	}
	if cfg.Provider.MaxTokens <= 0 {
		cfg.Provider.MaxTokens = DefaultMaxTokens
	}
	if cfg.Provider.TimeoutMs <= 0 {
		cfg.Provider.TimeoutMs = DefaultLLMTimeoutMs
	}
	if cfg.Taxonomy.TaskNamespace == "" {
		cfg.Taxonomy.TaskNamespace = DefaultTaskNamespace
	}
	if cfg.Taxonomy.OccNamespace == "" {
		cfg.Taxonomy.OccNamespace = DefaultOccNamespace
	}
	if cfg.Taxonomy.TimeoutMs <= 0 {
		cfg.Taxonomy.TimeoutMs = DefaultSearchTimeout
	}
	if cfg.Session.DBPath == "" {
		cfg.Session.DBPath = DefaultConfig().Session.DBPath
	}
	if cfg.Session.TTLMinutes <= 0 {
		cfg.Session.TTLMinutes = DefaultSessionTTLMin
	}
	if cfg.Session.SweepSchedule == "" {
		cfg.Session.SweepSchedule = DefaultSweepSchedule
	}

	return cfg, nil
}

func SaveConfig(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(ConfigPath(), data, 0644)
}
