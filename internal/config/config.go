// Package config loads service configuration from an optional JSON file
// with environment variable overrides on top.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

type ProviderConfig struct {
	BaseURL    string `json:"base_url"`
	Model      string `json:"model"`
	APIKey     string `json:"api_key"`
	TimeoutMS  int    `json:"timeout_ms"`
	MaxRetries int    `json:"max_retries"`
}

type StorageConfig struct {
	Path string `json:"path"`
}

type HTTPConfig struct {
	Addr string `json:"addr"`
}

type AgentConfig struct {
	HistoryLimit int     `json:"history_limit"`
	TokenBudget  int     `json:"token_budget"`
	MaxTokens    int     `json:"max_tokens"`
	Temperature  float64 `json:"temperature"`
}

type Config struct {
	Provider ProviderConfig `json:"provider"`
	Storage  StorageConfig  `json:"storage"`
	HTTP     HTTPConfig     `json:"http"`
	Agent    AgentConfig    `json:"agent"`
}

type fileAgentConfig struct {
	HistoryLimit *int     `json:"history_limit"`
	TokenBudget  *int     `json:"token_budget"`
	MaxTokens    *int     `json:"max_tokens"`
	Temperature  *float64 `json:"temperature"`
}

type fileConfig struct {
	Provider *ProviderConfig  `json:"provider"`
	Storage  *StorageConfig   `json:"storage"`
	HTTP     *HTTPConfig      `json:"http"`
	Agent    *fileAgentConfig `json:"agent"`
}

func Default() Config {
	return Config{
		Provider: ProviderConfig{
			BaseURL:    "https://api.openai.com/v1",
			Model:      "gpt-4o-mini",
			TimeoutMS:  60000,
			MaxRetries: 3,
		},
		Storage: StorageConfig{
			Path: "dayflow.db",
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		Agent: AgentConfig{
			HistoryLimit: 20,
			TokenBudget:  6000,
			MaxTokens:    1024,
			Temperature:  0.7,
		},
	}
}

// Load builds the effective configuration: defaults, then the JSON file at
// path (or DAYFLOW_CONFIG_PATH) when present, then environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	resolvedPath := strings.TrimSpace(path)
	if envPath := strings.TrimSpace(os.Getenv("DAYFLOW_CONFIG_PATH")); envPath != "" {
		resolvedPath = envPath
	}
	if err := mergeFromFile(&cfg, resolvedPath); err != nil {
		return Config{}, err
	}

	if err := normalize(&cfg); err != nil {
		return Config{}, err
	}
	return applyEnv(cfg)
}

func mergeFromFile(cfg *Config, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %q: %w", path, err)
	}

	var fileCfg fileConfig
	if err := json.Unmarshal(data, &fileCfg); err != nil {
		return fmt.Errorf("parse config %q: %w", path, err)
	}
	applyFileConfig(cfg, fileCfg)
	return nil
}

func applyFileConfig(cfg *Config, fileCfg fileConfig) {
	if fileCfg.Provider != nil {
		p := fileCfg.Provider
		if strings.TrimSpace(p.BaseURL) != "" {
			cfg.Provider.BaseURL = strings.TrimSpace(p.BaseURL)
		}
		if strings.TrimSpace(p.Model) != "" {
			cfg.Provider.Model = strings.TrimSpace(p.Model)
		}
		if strings.TrimSpace(p.APIKey) != "" {
			cfg.Provider.APIKey = strings.TrimSpace(p.APIKey)
		}
		if p.TimeoutMS > 0 {
			cfg.Provider.TimeoutMS = p.TimeoutMS
		}
		if p.MaxRetries > 0 {
			cfg.Provider.MaxRetries = p.MaxRetries
		}
	}
	if fileCfg.Storage != nil && strings.TrimSpace(fileCfg.Storage.Path) != "" {
		cfg.Storage.Path = strings.TrimSpace(fileCfg.Storage.Path)
	}
	if fileCfg.HTTP != nil && strings.TrimSpace(fileCfg.HTTP.Addr) != "" {
		cfg.HTTP.Addr = strings.TrimSpace(fileCfg.HTTP.Addr)
	}
	if fileCfg.Agent != nil {
		a := fileCfg.Agent
		if a.HistoryLimit != nil {
			cfg.Agent.HistoryLimit = *a.HistoryLimit
		}
		if a.TokenBudget != nil {
			cfg.Agent.TokenBudget = *a.TokenBudget
		}
		if a.MaxTokens != nil {
			cfg.Agent.MaxTokens = *a.MaxTokens
		}
		if a.Temperature != nil {
			cfg.Agent.Temperature = *a.Temperature
		}
	}
}

func applyEnv(cfg Config) (Config, error) {
	if v := strings.TrimSpace(os.Getenv("DAYFLOW_BASE_URL")); v != "" {
		cfg.Provider.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("DAYFLOW_MODEL")); v != "" {
		cfg.Provider.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("DAYFLOW_API_KEY")); v != "" {
		cfg.Provider.APIKey = v
	} else if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" {
		cfg.Provider.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("DAYFLOW_DB_PATH")); v != "" {
		cfg.Storage.Path = v
	}
	if v := strings.TrimSpace(os.Getenv("DAYFLOW_HTTP_ADDR")); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("DAYFLOW_HISTORY_LIMIT")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid DAYFLOW_HISTORY_LIMIT: %q", v)
		}
		cfg.Agent.HistoryLimit = n
	}
	if v := strings.TrimSpace(os.Getenv("DAYFLOW_TOKEN_BUDGET")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid DAYFLOW_TOKEN_BUDGET: %q", v)
		}
		cfg.Agent.TokenBudget = n
	}

	return cfg, normalize(&cfg)
}

func normalize(cfg *Config) error {
	if cfg.Provider.TimeoutMS <= 0 {
		cfg.Provider.TimeoutMS = Default().Provider.TimeoutMS
	}
	if cfg.Provider.MaxRetries <= 0 {
		cfg.Provider.MaxRetries = Default().Provider.MaxRetries
	}
	if cfg.Agent.HistoryLimit <= 0 {
		cfg.Agent.HistoryLimit = Default().Agent.HistoryLimit
	}
	if cfg.Agent.TokenBudget <= 0 {
		cfg.Agent.TokenBudget = Default().Agent.TokenBudget
	}
	if cfg.Agent.MaxTokens < 0 {
		cfg.Agent.MaxTokens = 0
	}
	if cfg.Agent.Temperature < 0 || cfg.Agent.Temperature > 2 {
		return fmt.Errorf("temperature out of range: %v", cfg.Agent.Temperature)
	}
	if strings.TrimSpace(cfg.HTTP.Addr) == "" {
		cfg.HTTP.Addr = Default().HTTP.Addr
	}
	if strings.TrimSpace(cfg.Storage.Path) == "" {
		cfg.Storage.Path = Default().Storage.Path
	}
	return nil
}
