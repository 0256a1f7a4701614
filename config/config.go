// Package config holds engine tunables and the yaml loader for them.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config carries every tunable the dialogue engine reads.
type Config struct {
	// SessionTTL is how long an idle session survives before eviction.
	SessionTTL time.Duration `yaml:"session_ttl"`
	// MaxTrampolineHops bounds node hops within a single turn.
	MaxTrampolineHops int `yaml:"max_trampoline_hops"`
	// FAQThreshold is the minimum knowledge-base confidence for a hit.
	FAQThreshold float64 `yaml:"faq_threshold"`
	// IntentThreshold is the minimum score for an intent to resolve.
	IntentThreshold float64 `yaml:"intent_threshold"`
	// OptionMatchRatio is the normalized edit-distance bound for fuzzy
	// option matching. A candidate matches when its ratio is strictly
	// below this value.
	OptionMatchRatio float64 `yaml:"option_match_ratio"`
	// HTTPTimeout applies to every outbound collaborator call.
	HTTPTimeout time.Duration `yaml:"http_timeout"`

	// KnowledgeBaseURL is the base endpoint of the FAQ service.
	KnowledgeBaseURL string `yaml:"knowledge_base_url"`
	// QuestionBankURL is the base endpoint of the dynamic question bank.
	QuestionBankURL string `yaml:"question_bank_url"`

	// RobotCode identifies the bot this process serves.
	RobotCode string `yaml:"robot_code"`
	// GraphDir holds the flow graph json files loaded at startup.
	GraphDir string `yaml:"graph_dir"`
	// NLUDataPath points at the interpreter training data json. Empty
	// runs an empty interpreter that only extracts builtin entities.
	NLUDataPath string `yaml:"nlu_data"`
	// LogLevel is a zap level name (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	Server ServerConfig `yaml:"server"`
	Redis  RedisConfig  `yaml:"redis"`
}

// ServerConfig holds the HTTP surface settings.
type ServerConfig struct {
	HTTPPort        int           `yaml:"http_port"`
	MetricsPort     int           `yaml:"metrics_port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps"`
	RateLimitBurst  int           `yaml:"rate_limit_burst"`
}

// RedisConfig configures the session snapshot store. An empty Addr
// disables persistence and sessions live in memory only.
type RedisConfig struct {
	Addr        string        `yaml:"addr"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	SnapshotTTL time.Duration `yaml:"snapshot_ttl"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() *Config {
	return &Config{
		SessionTTL:        30 * time.Minute,
		MaxTrampolineHops: 100,
		FAQThreshold:      0.6,
		IntentThreshold:   0.4,
		OptionMatchRatio:  0.5,
		HTTPTimeout:       5 * time.Second,
		RobotCode:         "robot",
		LogLevel:          "info",
		Server: ServerConfig{
			HTTPPort:        8080,
			MetricsPort:     9090,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimitRPS:    50,
			RateLimitBurst:  100,
		},
		Redis: RedisConfig{
			SnapshotTTL: 24 * time.Hour,
		},
	}
}

// Load reads a yaml config file over the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session_ttl must be positive, got %v", c.SessionTTL)
	}
	if c.MaxTrampolineHops <= 0 {
		return fmt.Errorf("max_trampoline_hops must be positive, got %d", c.MaxTrampolineHops)
	}
	if c.OptionMatchRatio <= 0 || c.OptionMatchRatio > 1 {
		return fmt.Errorf("option_match_ratio must be in (0, 1], got %v", c.OptionMatchRatio)
	}
	if c.FAQThreshold < 0 || c.FAQThreshold > 1 {
		return fmt.Errorf("faq_threshold must be in [0, 1], got %v", c.FAQThreshold)
	}
	if c.IntentThreshold < 0 || c.IntentThreshold > 1 {
		return fmt.Errorf("intent_threshold must be in [0, 1], got %v", c.IntentThreshold)
	}
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port must be in (0, 65535], got %d", c.Server.HTTPPort)
	}
	if c.Server.RateLimitRPS < 0 {
		return fmt.Errorf("server.rate_limit_rps must not be negative, got %v", c.Server.RateLimitRPS)
	}
	return nil
}
