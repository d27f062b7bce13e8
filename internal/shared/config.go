package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Log       LogConfig       `toml:"log"`
	Engine    EngineConfig    `toml:"engine"`
	Matcher   MatcherConfig   `toml:"matcher"`
	Database  DatabaseConfig  `toml:"database"`
	Server    ServerConfig    `toml:"server"`
	Goodreads GoodreadsConfig `toml:"goodreads"`
	Targets   []TargetConfig  `toml:"targets"`
}

// LogConfig controls the log level and the TUI log file.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// EngineConfig holds orchestrator and retry settings.
type EngineConfig struct {
	Concurrency         int           `toml:"concurrency"`
	RunTimeout          time.Duration `toml:"run_timeout"`
	MaxAttempts         int           `toml:"max_attempts"`
	BaseDelay           time.Duration `toml:"base_delay"`
	MaxDelay            time.Duration `toml:"max_delay"`
	RateLimitMultiplier float64       `toml:"rate_limit_multiplier"`
	Jitter              float64       `toml:"jitter"`
	Grace               time.Duration `toml:"grace"`
}

// MatcherConfig holds the similarity threshold and format preference.
type MatcherConfig struct {
	Threshold      float64  `toml:"threshold"`
	FormatPriority []string `toml:"format_priority"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// GoodreadsConfig describes where shelves are imported from.
type GoodreadsConfig struct {
	UserID   string `toml:"user_id"`
	Shelf    string `toml:"shelf"`
	BaseURL  string `toml:"base_url"`
	MaxPages int    `toml:"max_pages"`
}

// TargetConfig is one library system as written in the config file.
type TargetConfig struct {
	ID           string        `toml:"id"`
	Name         string        `toml:"name"`
	Family       string        `toml:"family"`
	Key          string        `toml:"key"`
	BaseURL      string        `toml:"base_url"`
	RateLimit    int           `toml:"rate_limit"`
	RateInterval time.Duration `toml:"rate_interval"`
	Timeout      time.Duration `toml:"timeout"`

	// proxy family only
	TokenURL        string   `toml:"token_url"`
	ClientID        string   `toml:"client_id"`
	ClientSecretEnv string   `toml:"client_secret_env"`
	Scopes          []string `toml:"scopes"`
}

// ClientSecret reads the secret named by ClientSecretEnv from the environment.
func (t TargetConfig) ClientSecret() string {
	if t.ClientSecretEnv == "" {
		return ""
	}
	return os.Getenv(t.ClientSecretEnv)
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Fields missing from the file keep the embedded defaults, except targets: a file that lists any
// [[targets]] replaces the default set.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	config.Targets = nil
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if len(config.Targets) == 0 {
		config.Targets = DefaultConfig().Targets
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadEnv loads KEY=value pairs from the given dotenv files (".env" when none are given).
// Missing files are ignored; variables already set in the environment win.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}

	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides config values from environment variables.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("LIBBYREADS_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("GOODREADS_USER_ID"); v != "" {
		c.Goodreads.UserID = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LIBBYREADS_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: LIBBYREADS_CONCURRENCY=%q", ErrInvalidConfig, v)
		}
		c.Engine.Concurrency = n
	}
	if v := os.Getenv("LIBBYREADS_RUN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: LIBBYREADS_RUN_TIMEOUT=%q", ErrInvalidConfig, v)
		}
		c.Engine.RunTimeout = d
	}
	return nil
}

// Validate reports the first problem found in c, wrapped with [ErrInvalidConfig].
func (c *Config) Validate() error {
	if c.Engine.Concurrency <= 0 {
		return fmt.Errorf("%w: engine.concurrency must be positive", ErrInvalidConfig)
	}
	if c.Engine.RunTimeout < 0 {
		return fmt.Errorf("%w: engine.run_timeout must not be negative", ErrInvalidConfig)
	}
	if c.Engine.MaxAttempts <= 0 {
		return fmt.Errorf("%w: engine.max_attempts must be positive", ErrInvalidConfig)
	}
	if c.Engine.BaseDelay < 0 || c.Engine.MaxDelay < c.Engine.BaseDelay {
		return fmt.Errorf("%w: engine.base_delay must be between 0 and engine.max_delay", ErrInvalidConfig)
	}
	if c.Engine.Jitter < 0 || c.Engine.Jitter >= 1 {
		return fmt.Errorf("%w: engine.jitter must be in [0, 1)", ErrInvalidConfig)
	}
	if c.Matcher.Threshold <= 0 || c.Matcher.Threshold > 1 {
		return fmt.Errorf("%w: matcher.threshold must be in (0, 1]", ErrInvalidConfig)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}

	if len(c.Targets) == 0 {
		return fmt.Errorf("%w: at least one [[targets]] entry is required", ErrInvalidConfig)
	}

	seen := make(map[string]bool, len(c.Targets))
	for i, t := range c.Targets {
		switch {
		case t.ID == "":
			return fmt.Errorf("%w: targets[%d] has no id", ErrInvalidConfig, i)
		case seen[t.ID]:
			return fmt.Errorf("%w: duplicate target id %q", ErrInvalidConfig, t.ID)
		case t.Family == "":
			return fmt.Errorf("%w: target %q has no family", ErrInvalidConfig, t.ID)
		case t.BaseURL == "":
			return fmt.Errorf("%w: target %q has no base_url", ErrInvalidConfig, t.ID)
		case t.RateLimit <= 0 || t.RateInterval <= 0:
			return fmt.Errorf("%w: target %q needs a positive rate_limit and rate_interval", ErrInvalidConfig, t.ID)
		case t.Timeout <= 0:
			return fmt.Errorf("%w: target %q needs a positive timeout", ErrInvalidConfig, t.ID)
		}
		seen[t.ID] = true
	}

	return nil
}

// Target returns the target with the given id.
func (c *Config) Target(id string) (TargetConfig, bool) {
	for _, t := range c.Targets {
		if t.ID == id {
			return t, true
		}
	}
	return TargetConfig{}, false
}
