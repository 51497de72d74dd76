package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/korjavin/mise/pkg/logger"
)

// EnvPrefix is the prefix of environment variables read by Load
const EnvPrefix = "MISE_"

// Config holds all configuration for the application
type Config struct {
	Storage   StorageConfig   `koanf:"storage"`
	Ontology  OntologyConfig  `koanf:"ontology"`
	OpenAI    OpenAIConfig    `koanf:"openai"`
	Telegram  TelegramConfig  `koanf:"telegram"`
	Compiler  CompilerConfig  `koanf:"compiler"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Log       LogConfig       `koanf:"log"`
}

// StorageConfig configures the BadgerDB store
type StorageConfig struct {
	DataDir    string        `koanf:"data_dir"`
	GCInterval time.Duration `koanf:"gc_interval"`
}

// OntologyConfig points at an optional reference data file
type OntologyConfig struct {
	Path string `koanf:"path"`
}

// OpenAIConfig configures the optional LLM segmentation service
type OpenAIConfig struct {
	APIKey  string        `koanf:"api_key"`
	APIBase string        `koanf:"api_base"`
	Model   string        `koanf:"model"`
	Timeout time.Duration `koanf:"timeout"`
}

// Enabled reports whether an API key is configured
func (c OpenAIConfig) Enabled() bool { return c.APIKey != "" }

// TelegramConfig configures notifications and the chat bot
type TelegramConfig struct {
	Token  string `koanf:"token"`
	ChatID int64  `koanf:"chat_id"`
}

// CompilerConfig selects compiler strategies
type CompilerConfig struct {
	DependencyMode string `koanf:"dependency_mode"`
	ChainStrategy  string `koanf:"chain_strategy"`
	RemapIDs       bool   `koanf:"remap_ids"`
}

// SchedulerConfig configures the live runner
type SchedulerConfig struct {
	TickInterval time.Duration `koanf:"tick_interval"`
	RigidBuffer  time.Duration `koanf:"rigid_buffer"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// LogConfig configures logging
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Load loads configuration from .env, an optional YAML file and the environment.
//
// Precedence, highest first: MISE_* variables, legacy unprefixed variables
// (OPENAI_API_KEY, OPENAI_API_BASE, OPENAI_MODEL, BOT_TOKEN), the YAML file, defaults.
func Load(path string) (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Global.Warn("Error loading .env file: %v", err)
	}

	k := koanf.New(".")

	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	// MISE_SCHEDULER_TICK_INTERVAL -> scheduler.tick_interval
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyLegacyEnv(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	logger.Global.Info("Configuration loaded: %+v", cfg.Redacted())
	return &cfg, nil
}

func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

func applyLegacyEnv(cfg *Config) {
	if cfg.OpenAI.APIKey == "" {
		cfg.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.OpenAI.APIBase == "" {
		cfg.OpenAI.APIBase = os.Getenv("OPENAI_API_BASE")
	}
	if cfg.OpenAI.Model == "" {
		cfg.OpenAI.Model = os.Getenv("OPENAI_MODEL")
	}
	if cfg.Telegram.Token == "" {
		cfg.Telegram.Token = os.Getenv("BOT_TOKEN")
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "./data"
	}
	if cfg.Storage.GCInterval == 0 {
		cfg.Storage.GCInterval = 10 * time.Minute
	}
	if cfg.OpenAI.APIBase == "" {
		cfg.OpenAI.APIBase = "https://api.openai.com/v1"
	}
	if cfg.OpenAI.Model == "" {
		cfg.OpenAI.Model = "gpt-4o-mini"
	}
	if cfg.OpenAI.Timeout == 0 {
		cfg.OpenAI.Timeout = 30 * time.Second
	}
	if cfg.Compiler.DependencyMode == "" {
		cfg.Compiler.DependencyMode = "smart"
	}
	if cfg.Compiler.ChainStrategy == "" {
		cfg.Compiler.ChainStrategy = "auto"
	}
	if cfg.Scheduler.TickInterval == 0 {
		cfg.Scheduler.TickInterval = 5 * time.Second
	}
	if cfg.Scheduler.RigidBuffer == 0 {
		cfg.Scheduler.RigidBuffer = 5 * time.Minute
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
}

// Validate checks enum values and ranges
func (c *Config) Validate() error {
	switch c.Compiler.DependencyMode {
	case "smart", "sequential":
	default:
		return fmt.Errorf("compiler.dependency_mode must be smart or sequential, got %q", c.Compiler.DependencyMode)
	}
	switch c.Compiler.ChainStrategy {
	case "auto", "headers", "cluster", "narrative", "none":
	default:
		return fmt.Errorf("compiler.chain_strategy must be auto, headers, cluster, narrative or none, got %q", c.Compiler.ChainStrategy)
	}
	if c.Scheduler.TickInterval < 0 {
		return fmt.Errorf("scheduler.tick_interval must be positive")
	}
	if c.Scheduler.RigidBuffer < 0 {
		return fmt.Errorf("scheduler.rigid_buffer must not be negative")
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got %q", c.Log.Format)
	}
	return nil
}

// Redacted returns a copy safe for logging
func (c Config) Redacted() Config {
	c.OpenAI.APIKey = redact(c.OpenAI.APIKey)
	c.Telegram.Token = redact(c.Telegram.Token)
	return c
}

func redact(s string) string {
	if len(s) > 8 {
		return s[:8] + "...REDACTED..."
	}
	if s != "" {
		return "REDACTED"
	}
	return s
}
