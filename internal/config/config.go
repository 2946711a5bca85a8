// /internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Config is the process configuration, read from the environment (and a
// .env file when present).
type Config struct {
	DiscordToken      string        `env:"DISCORD_TOKEN"`
	CommandPrefix     string        `env:"COMMAND_PREFIX" envDefault:"!"`
	DataDir           string        `env:"DATA_DIR" envDefault:"data"`
	HistoryPath       string        `env:"HISTORY_PATH"`
	Owners            []string      `env:"OWNERS" envSeparator:","`
	InvitePermissions int64         `env:"INVITE_PERMISSIONS" envDefault:"0"`
	BlacklistedGuilds []string      `env:"GUILD_BLACKLIST" envSeparator:","`
	EventTimeout      time.Duration `env:"EVENT_TIMEOUT" envDefault:"30s"`
	LogLevel          string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFile           string        `env:"LOG_FILE"`
	LogPretty         bool          `env:"LOG_PRETTY" envDefault:"true"`
	MetricsAddr       string        `env:"METRICS_ADDR"`
	ComponentsFile    string        `env:"COMPONENTS_FILE" envDefault:"components.yaml"`

	components map[string]yaml.Node
}

// Load reads .env, the environment and the components file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, falling back to system environment variables")
	}
	return load(env.Options{})
}

// FromEnv builds a Config from the given variables only. The process
// environment and .env are ignored.
func FromEnv(vars map[string]string) (*Config, error) {
	return load(env.Options{Environment: vars})
}

func load(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if utf8.RuneCountInString(cfg.CommandPrefix) != 1 {
		return nil, fmt.Errorf("config: COMMAND_PREFIX must be a single character, got %q", cfg.CommandPrefix)
	}
	if cfg.HistoryPath == "" {
		cfg.HistoryPath = filepath.Join(cfg.DataDir, "history")
	}
	if err := cfg.loadComponents(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Prefix returns the command prefix character.
func (c *Config) Prefix() rune {
	r, _ := utf8.DecodeRuneInString(c.CommandPrefix)
	return r
}

// RequireToken fails when no bot token is configured.
func (c *Config) RequireToken() error {
	if c.DiscordToken == "" {
		return errors.New("config: DISCORD_TOKEN is not set")
	}
	return nil
}

// Component decodes the section of the components file named name into
// dst. It reports false, leaving dst untouched, when there is no section.
func (c *Config) Component(name string, dst any) (bool, error) {
	node, ok := c.components[name]
	if !ok {
		return false, nil
	}
	if err := node.Decode(dst); err != nil {
		return false, fmt.Errorf("config: component %s: %w", name, err)
	}
	return true, nil
}

func (c *Config) loadComponents() error {
	if c.ComponentsFile == "" {
		return nil
	}
	data, err := os.ReadFile(c.ComponentsFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, &c.components); err != nil {
		return fmt.Errorf("config: parsing %s: %w", c.ComponentsFile, err)
	}
	return nil
}
