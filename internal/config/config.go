package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all convoke configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// HTTP server
	Server ServerConfig `yaml:"server"`

	// LLM gateway configuration
	LLM LLMConfig `yaml:"llm"`

	// Execution scheduler
	Scheduler SchedulerConfig `yaml:"scheduler"`

	// Conversation memory
	Memory MemoryConfig `yaml:"memory"`

	// Filesystem locations
	Paths PathsConfig `yaml:"paths"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ProviderConfig describes one LLM provider backend.
type ProviderConfig struct {
	Name     string `yaml:"name"`
	Kind     string `yaml:"kind"` // ollama, openai, anthropic, gemini, custom
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
}

// LLMConfig configures the provider gateway.
type LLMConfig struct {
	// Preferred provider name; empty = first configured.
	Provider  string           `yaml:"provider"`
	Providers []ProviderConfig `yaml:"providers"`

	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	TimeoutMs   int     `yaml:"timeout_ms"`

	// Fallback and health probing
	MaxFallbacks          int `yaml:"max_fallbacks"`
	HealthIntervalSeconds int `yaml:"health_interval_seconds"`
	HealthTimeoutMs       int `yaml:"health_timeout_ms"`

	// Hard upper bound applied to per-request timeouts.
	ProviderMaxTimeoutMs int `yaml:"provider_max_timeout_ms"`
}

// SchedulerConfig configures the execution monitor.
type SchedulerConfig struct {
	MaxConcurrent            int `yaml:"max_concurrent"`
	HistoryMax               int `yaml:"history_max"`
	MaxTimeoutSeconds        int `yaml:"max_timeout_seconds"`
	ResourceSampleIntervalMs int `yaml:"resource_sample_interval_ms"`
	GracePeriodMs            int `yaml:"grace_period_ms"`
	AgingThresholdSeconds    int `yaml:"aging_threshold_seconds"`

	// When true, elevated-policy submissions must carry a confirm token.
	RequireConfirmTokenForElevated bool `yaml:"require_confirm_token_for_elevated"`
}

// MemoryConfig configures conversation memory.
type MemoryConfig struct {
	MaxConversations           int `yaml:"max_conversations"`
	MaxMessagesPerConversation int `yaml:"max_messages_per_conversation"`
	ContextWindow              int `yaml:"context_window"`
}

// PathsConfig locates on-disk resources.
type PathsConfig struct {
	Personas string `yaml:"personas"`
	Channels string `yaml:"channels"`
	Scripts  string `yaml:"scripts"`
	Logs     string `yaml:"logs"`

	// Optional sqlite task-history archive. Empty disables persistence.
	Database string `yaml:"database"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
	File   string `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "convoke",
		Version: "1.0.0",

		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 3003,
		},

		LLM: LLMConfig{
			Provider: "ollama",
			Providers: []ProviderConfig{
				{Name: "ollama", Kind: "ollama", Endpoint: "http://localhost:11434", Model: "llama3.1:8b"},
			},
			Temperature:           0.1,
			MaxTokens:             2048,
			TimeoutMs:             30000,
			MaxFallbacks:          3,
			HealthIntervalSeconds: 60,
			HealthTimeoutMs:       5000,
			ProviderMaxTimeoutMs:  120000,
		},

		Scheduler: SchedulerConfig{
			MaxConcurrent:            5,
			HistoryMax:               500,
			MaxTimeoutSeconds:        3600,
			ResourceSampleIntervalMs: 250,
			GracePeriodMs:            5000,
			AgingThresholdSeconds:    120,
		},

		Memory: MemoryConfig{
			MaxConversations:           100,
			MaxMessagesPerConversation: 50,
			ContextWindow:              10,
		},

		Paths: PathsConfig{
			Personas: "personas",
			Channels: "channels",
			Scripts:  "data/scripts",
			Logs:     "logs",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from path, applies defaults for absent fields
// and environment overrides on top.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to path as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Scheduler.MaxConcurrent < 1 {
		return fmt.Errorf("scheduler.max_concurrent must be >= 1")
	}
	if c.Scheduler.MaxTimeoutSeconds < 1 {
		return fmt.Errorf("scheduler.max_timeout_seconds must be >= 1")
	}
	if c.Memory.MaxConversations < 1 || c.Memory.MaxMessagesPerConversation < 1 {
		return fmt.Errorf("memory caps must be >= 1")
	}
	seen := make(map[string]bool, len(c.LLM.Providers))
	for _, p := range c.LLM.Providers {
		if p.Name == "" {
			return fmt.Errorf("llm provider with empty name")
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate llm provider %q", p.Name)
		}
		seen[p.Name] = true
		switch p.Kind {
		case "ollama", "openai", "anthropic", "gemini", "custom":
		default:
			return fmt.Errorf("llm provider %q has unknown kind %q", p.Name, p.Kind)
		}
	}
	if c.LLM.Provider != "" && len(c.LLM.Providers) > 0 && !seen[c.LLM.Provider] {
		return fmt.Errorf("llm.provider %q not in providers list", c.LLM.Provider)
	}
	return nil
}

// applyEnvOverrides applies environment variables on top of loaded values.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CONVOKE_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("CONVOKE_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("CONVOKE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("CONVOKE_PERSONAS_DIR"); v != "" {
		c.Paths.Personas = v
	}
	if v := os.Getenv("CONVOKE_DATABASE"); v != "" {
		c.Paths.Database = v
	}

	// Per-provider API keys by conventional env var.
	for i := range c.LLM.Providers {
		p := &c.LLM.Providers[i]
		if p.APIKey != "" {
			continue
		}
		switch p.Kind {
		case "openai":
			p.APIKey = os.Getenv("OPENAI_API_KEY")
		case "anthropic":
			p.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case "gemini":
			if k := os.Getenv("GEMINI_API_KEY"); k != "" {
				p.APIKey = k
			} else {
				p.APIKey = os.Getenv("GOOGLE_API_KEY")
			}
		}
	}
	if v := os.Getenv("CONVOKE_LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
}
