// Package config loads application configuration from YAML with
// environment fallbacks for credentials.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// maxConfigSize guards against accidentally loading a huge file.
const maxConfigSize = 1 << 20

// Config represents the application configuration.
type Config struct {
	// API keys. Empty values fall back to the environment.
	GatewayKey   string `yaml:"gateway_key"`
	DeepSeekKey  string `yaml:"deepseek_key"`
	GeminiKey    string `yaml:"gemini_key"`
	DashScopeKey string `yaml:"dashscope_key"`

	// Model configuration
	DefaultModel string  `yaml:"default_model"`
	Temperature  float32 `yaml:"temperature"`

	// Scheduler configuration
	Scheduler SchedulerConfig `yaml:"scheduler"`

	// Session configuration
	Session SessionConfig `yaml:"session"`

	// Cache configuration
	Cache CacheConfig `yaml:"cache"`

	// Server configuration
	Server ServerConfig `yaml:"server"`
}

// SchedulerConfig tunes the staged pipeline.
type SchedulerConfig struct {
	MaxConcurrentCalls int  `yaml:"max_concurrent_calls"`
	ChunkSize          int  `yaml:"chunk_size"`
	IncludeOptional    bool `yaml:"include_optional"`
	MaxRetries         int  `yaml:"max_retries"`
}

// SessionConfig tunes session eviction.
type SessionConfig struct {
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// CacheConfig selects and tunes the cache backends.
type CacheConfig struct {
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	FileDir       string `yaml:"file_dir"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg
}

// Load reads configuration from a YAML file, applying defaults and
// environment fallbacks.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if info.Size() > maxConfigSize {
		return nil, fmt.Errorf("config file too large: %d bytes", info.Size())
	}

	data, err := os.ReadFile(path) // #nosec G304 - path supplied by the operator
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DefaultModel == "" {
		c.DefaultModel = "deepseek-chat"
	}
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	if c.Scheduler.MaxConcurrentCalls == 0 {
		c.Scheduler.MaxConcurrentCalls = 4
	}
	if c.Scheduler.ChunkSize == 0 {
		c.Scheduler.ChunkSize = 3
	}
	if c.Scheduler.MaxRetries == 0 {
		c.Scheduler.MaxRetries = 2
	}
	if c.Session.IdleTimeout == 0 {
		c.Session.IdleTimeout = time.Hour
	}
	if c.Session.SweepInterval == 0 {
		c.Session.SweepInterval = 10 * time.Minute
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
}

func (c *Config) applyEnv() {
	if c.GatewayKey == "" {
		c.GatewayKey = os.Getenv("GATEWAY_API_KEY")
	}
	if c.DeepSeekKey == "" {
		c.DeepSeekKey = os.Getenv("DEEPSEEK_API_KEY")
	}
	if c.GeminiKey == "" {
		c.GeminiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if c.DashScopeKey == "" {
		c.DashScopeKey = os.Getenv("DASHSCOPE_API_KEY")
	}
	if c.Cache.RedisAddr == "" {
		c.Cache.RedisAddr = os.Getenv("REDIS_ADDR")
	}
}

// Export pushes configured credentials into the environment so provider
// factories can pick them up.
func (c *Config) Export() {
	setenvIfSet("GATEWAY_API_KEY", c.GatewayKey)
	setenvIfSet("DEEPSEEK_API_KEY", c.DeepSeekKey)
	setenvIfSet("GOOGLE_API_KEY", c.GeminiKey)
	setenvIfSet("DASHSCOPE_API_KEY", c.DashScopeKey)
}

func setenvIfSet(key, value string) {
	if value != "" {
		_ = os.Setenv(key, value)
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.DefaultModel == "" {
		return fmt.Errorf("default_model is required")
	}
	if c.GatewayKey == "" && c.DeepSeekKey == "" && c.GeminiKey == "" && c.DashScopeKey == "" {
		return fmt.Errorf("at least one provider API key must be configured")
	}
	if c.Scheduler.MaxConcurrentCalls < 1 {
		return fmt.Errorf("max_concurrent_calls must be at least 1")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	return nil
}
