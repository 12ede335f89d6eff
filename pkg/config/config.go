package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"dictengine/pkg/logging"
)

// Holdability names accepted in configuration.
const (
	HoldCursorsOverCommit = "hold"
	CloseCursorsAtCommit  = "close"
)

// DatabaseConfig controls the per-database context.
type DatabaseConfig struct {
	Name            string        `yaml:"name"`
	LockTimeout     time.Duration `yaml:"lock_timeout"`
	MaxTriggerDepth int           `yaml:"max_trigger_depth"`
}

// CursorConfig controls defaults negotiated when a cursor is opened.
type CursorConfig struct {
	DefaultHoldability string `yaml:"default_holdability"`
	// StatementCacheSize bounds the compiled statement cache; 0 means
	// unbounded.
	StatementCacheSize int `yaml:"statement_cache_size"`
}

// StatisticsConfig toggles runtime statistics capture.
type StatisticsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// CheckpointConfig points at the SQLite file written at commit boundaries.
// An empty path disables checkpointing.
type CheckpointConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig mirrors logging.Config in YAML form.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Output string `yaml:"output"`
	Format string `yaml:"format"`
}

// Config is the root of dictengine.yaml.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Cursor     CursorConfig     `yaml:"cursor"`
	Statistics StatisticsConfig `yaml:"statistics"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Name:            "dictdb",
			LockTimeout:     5 * time.Second,
			MaxTriggerDepth: 16,
		},
		Cursor:     CursorConfig{DefaultHoldability: HoldCursorsOverCommit, StatementCacheSize: 100},
		Statistics: StatisticsConfig{Enabled: false},
		Logging:    LoggingConfig{Level: "WARN", Format: "console"},
	}
}

// LoadConfig reads a YAML file on top of Default, then applies environment
// overrides. A .env file next to the working directory is loaded first when
// present; variables already set in the environment win over it.
func LoadConfig(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides fields from DICTENGINE_* variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("DICTENGINE_DB_NAME"); ok {
		c.Database.Name = v
	}
	if v, ok := lookup("DICTENGINE_LOCK_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("DICTENGINE_LOCK_TIMEOUT: %w", err)
		}
		c.Database.LockTimeout = d
	}
	if v, ok := lookup("DICTENGINE_MAX_TRIGGER_DEPTH"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DICTENGINE_MAX_TRIGGER_DEPTH: %w", err)
		}
		c.Database.MaxTriggerDepth = n
	}
	if v, ok := lookup("DICTENGINE_STATISTICS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("DICTENGINE_STATISTICS: %w", err)
		}
		c.Statistics.Enabled = b
	}
	if v, ok := lookup("DICTENGINE_CHECKPOINT_PATH"); ok {
		c.Checkpoint.Path = v
	}
	if v, ok := lookup("DICTENGINE_LOG_LEVEL"); ok {
		c.Logging.Level = v
	}
	return nil
}

func (c *Config) normalize() {
	c.Cursor.DefaultHoldability = strings.ToLower(strings.TrimSpace(c.Cursor.DefaultHoldability))
	if c.Cursor.DefaultHoldability == "" {
		c.Cursor.DefaultHoldability = HoldCursorsOverCommit
	}
	c.Logging.Level = strings.ToUpper(strings.TrimSpace(c.Logging.Level))
}

// Validate rejects settings the engine cannot honor.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.Name) == "" {
		return fmt.Errorf("database.name must not be empty")
	}
	if c.Database.LockTimeout < 0 {
		return fmt.Errorf("database.lock_timeout must not be negative, got %s", c.Database.LockTimeout)
	}
	if c.Database.MaxTriggerDepth < 1 {
		return fmt.Errorf("database.max_trigger_depth must be at least 1, got %d", c.Database.MaxTriggerDepth)
	}
	if c.Cursor.StatementCacheSize < 0 {
		return fmt.Errorf("cursor.statement_cache_size must not be negative, got %d", c.Cursor.StatementCacheSize)
	}
	switch c.Cursor.DefaultHoldability {
	case HoldCursorsOverCommit, CloseCursorsAtCommit:
	default:
		return fmt.Errorf("cursor.default_holdability must be %q or %q, got %q",
			HoldCursorsOverCommit, CloseCursorsAtCommit, c.Cursor.DefaultHoldability)
	}
	return nil
}

// HoldCursors reports whether cursors survive commit by default.
func (c *Config) HoldCursors() bool {
	return c.Cursor.DefaultHoldability == HoldCursorsOverCommit
}

// LoggingConfig converts the YAML section into the logger's config.
func (c *Config) LoggingConfig() logging.Config {
	return logging.Config{
		Level:      logging.LogLevel(c.Logging.Level),
		OutputPath: c.Logging.Output,
		Format:     c.Logging.Format,
	}
}
