package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidFile(t *testing.T) {
	path := writeConfig(t, `
default_model: deepseek-reasoner
deepseek_key: test-key
temperature: 0.3
scheduler:
  max_concurrent_calls: 6
  include_optional: true
session:
  idle_timeout: 30m
cache:
  redis_addr: localhost:6379
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DefaultModel != "deepseek-reasoner" {
		t.Errorf("DefaultModel = %q, want deepseek-reasoner", cfg.DefaultModel)
	}
	if cfg.Temperature != 0.3 {
		t.Errorf("Temperature = %v, want 0.3", cfg.Temperature)
	}
	if cfg.Scheduler.MaxConcurrentCalls != 6 {
		t.Errorf("MaxConcurrentCalls = %d, want 6", cfg.Scheduler.MaxConcurrentCalls)
	}
	if !cfg.Scheduler.IncludeOptional {
		t.Error("IncludeOptional = false, want true")
	}
	if cfg.Session.IdleTimeout != 30*time.Minute {
		t.Errorf("IdleTimeout = %v, want 30m", cfg.Session.IdleTimeout)
	}
	if cfg.Cache.RedisAddr != "localhost:6379" {
		t.Errorf("RedisAddr = %q, want localhost:6379", cfg.Cache.RedisAddr)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeConfig(t, `deepseek_key: test-key`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DefaultModel != "deepseek-chat" {
		t.Errorf("DefaultModel = %q, want deepseek-chat", cfg.DefaultModel)
	}
	if cfg.Scheduler.MaxConcurrentCalls != 4 {
		t.Errorf("MaxConcurrentCalls = %d, want 4", cfg.Scheduler.MaxConcurrentCalls)
	}
	if cfg.Scheduler.ChunkSize != 3 {
		t.Errorf("ChunkSize = %d, want 3", cfg.Scheduler.ChunkSize)
	}
	if cfg.Session.IdleTimeout != time.Hour {
		t.Errorf("IdleTimeout = %v, want 1h", cfg.Session.IdleTimeout)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("Server.Addr = %q, want :8080", cfg.Server.Addr)
	}
}

func TestLoad_EnvFallback(t *testing.T) {
	t.Setenv("DEEPSEEK_API_KEY", "env-key")
	t.Setenv("REDIS_ADDR", "redis:6379")

	path := writeConfig(t, `default_model: deepseek-chat`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DeepSeekKey != "env-key" {
		t.Errorf("DeepSeekKey = %q, want env-key", cfg.DeepSeekKey)
	}
	if cfg.Cache.RedisAddr != "redis:6379" {
		t.Errorf("RedisAddr = %q, want redis:6379", cfg.Cache.RedisAddr)
	}
}

func TestLoad_FileSizeLimit(t *testing.T) {
	path := writeConfig(t, strings.Repeat("x: value\n", 200000))

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for large file")
	}
	if !strings.Contains(err.Error(), "too large") {
		t.Errorf("expected 'too large' error, got: %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate_NoKeys(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "API key") {
		t.Errorf("expected missing-key error, got: %v", err)
	}
}

func TestValidate_BadTemperature(t *testing.T) {
	cfg := Default()
	cfg.DeepSeekKey = "k"
	cfg.Temperature = 3.5

	if err := cfg.Validate(); err == nil {
		t.Error("expected error for out-of-range temperature")
	}
}
