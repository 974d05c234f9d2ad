package config

import (
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Name != "convoke" {
		t.Errorf("expected Name=convoke, got %s", cfg.Name)
	}
	if cfg.Scheduler.MaxConcurrent != 5 {
		t.Errorf("expected MaxConcurrent=5, got %d", cfg.Scheduler.MaxConcurrent)
	}
	if cfg.Memory.MaxMessagesPerConversation != 50 {
		t.Errorf("expected MaxMessagesPerConversation=50, got %d", cfg.Memory.MaxMessagesPerConversation)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("CONVOKE_LLM_PROVIDER", "")

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")

	cfg := DefaultConfig()
	cfg.Server.Port = 8099
	cfg.LLM.Provider = "openai"
	cfg.LLM.Providers = []ProviderConfig{
		{Name: "openai", Kind: "openai", Endpoint: "https://api.openai.com/v1", Model: "gpt-4o-mini"},
	}

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Server.Port != 8099 {
		t.Errorf("expected Port=8099, got %d", loaded.Server.Port)
	}
	if loaded.LLM.Provider != "openai" {
		t.Errorf("expected Provider=openai, got %s", loaded.LLM.Provider)
	}
}

func TestConfig_LoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load of missing file should not error: %v", err)
	}
	if cfg.Scheduler.HistoryMax != 500 {
		t.Errorf("expected default HistoryMax=500, got %d", cfg.Scheduler.HistoryMax)
	}
}

func TestConfig_EnvOverrides(t *testing.T) {
	t.Setenv("CONVOKE_PORT", "4444")
	t.Setenv("ANTHROPIC_API_KEY", "env-key")

	cfg := DefaultConfig()
	cfg.LLM.Providers = append(cfg.LLM.Providers, ProviderConfig{
		Name: "anthropic", Kind: "anthropic", Endpoint: "https://api.anthropic.com",
	})
	cfg.applyEnvOverrides()

	if cfg.Server.Port != 4444 {
		t.Errorf("expected Port=4444, got %d", cfg.Server.Port)
	}
	if cfg.LLM.Providers[1].APIKey != "env-key" {
		t.Errorf("expected anthropic APIKey from env, got %q", cfg.LLM.Providers[1].APIKey)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scheduler.MaxConcurrent = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for MaxConcurrent=0")
	}

	cfg = DefaultConfig()
	cfg.LLM.Providers = append(cfg.LLM.Providers, ProviderConfig{Name: "x", Kind: "weird"})
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for unknown provider kind")
	}

	cfg = DefaultConfig()
	cfg.LLM.Provider = "ghost"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for preferred provider not configured")
	}
}
