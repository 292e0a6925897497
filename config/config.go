// Package config handles configuration loading and saving.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/linanwx/nagowidget/logger"
	"github.com/linanwx/nagowidget/visibility"
	"github.com/linanwx/nagowidget/widget"
)

const (
	configFileName = "config.yaml"
	configDirName  = ".nagowidget"
)

var configDirOverride string

// SetConfigDir overrides the config directory for the current process.
// Empty value clears the override.
func SetConfigDir(dir string) {
	configDirOverride = strings.TrimSpace(dir)
}

// Config is the root configuration structure.
type Config struct {
	Backend  BackendConfig   `json:"backend" yaml:"backend"`
	Widget   WidgetConfig    `json:"widget" yaml:"widget"`
	Channels *ChannelsConfig `json:"channels" yaml:"channels"`
	Logging  LoggingConfig   `json:"logging,omitempty" yaml:"logging,omitempty"`
}

// BackendConfig points at the chat backend.
type BackendConfig struct {
	URL            string        `json:"url" yaml:"url"`                                           // defaults to http://127.0.0.1:8000
	PollInterval   time.Duration `json:"pollInterval,omitempty" yaml:"pollInterval,omitempty"`     // defaults to 30s
	RequestTimeout time.Duration `json:"requestTimeout,omitempty" yaml:"requestTimeout,omitempty"` // defaults to 30s
}

// WidgetConfig holds per-session presentation defaults.
type WidgetConfig struct {
	UserIDPrefix     string `json:"userIdPrefix,omitempty" yaml:"userIdPrefix,omitempty"`
	Position         string `json:"position,omitempty" yaml:"position,omitempty"` // bottom-right, bottom-left
	AutoOpen         bool   `json:"autoOpen,omitempty" yaml:"autoOpen,omitempty"`
	InitialPanel     string `json:"initialPanel,omitempty" yaml:"initialPanel,omitempty"` // closed, minimized, open
	MaxMessageLength int    `json:"maxMessageLength,omitempty" yaml:"maxMessageLength,omitempty"`
	Greeting         string `json:"greeting,omitempty" yaml:"greeting,omitempty"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Enabled *bool  `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Level   string `json:"level,omitempty" yaml:"level,omitempty"`   // debug, info, warn, error
	Format  string `json:"format,omitempty" yaml:"format,omitempty"` // text, json
	Stdout  bool   `json:"stdout,omitempty" yaml:"stdout,omitempty"` // log to stderr
	File    string `json:"file,omitempty" yaml:"file,omitempty"`     // log file path
}

// ChannelsConfig contains channel configurations.
type ChannelsConfig struct {
	Telegram *TelegramChannelConfig `json:"telegram" yaml:"telegram"`
}

// TelegramChannelConfig contains Telegram bot configuration.
type TelegramChannelConfig struct {
	Token      string        `json:"token" yaml:"token"`                               // Bot token from BotFather
	AllowedIDs []int64       `json:"allowedIds" yaml:"allowedIds"`                     // Allowed user/chat IDs
	SessionTTL time.Duration `json:"sessionTTL,omitempty" yaml:"sessionTTL,omitempty"` // Idle bridged sessions are disposed after this
}

// ConfigDir returns the configuration directory.
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, configDirName), nil
}

// ConfigPath returns the configuration file path.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// Load reads the config file. A missing file yields the defaults.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config file, creating the directory if needed.
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate checks enumerated fields.
func (c *Config) Validate() error {
	if _, err := visibility.ParsePosition(c.Widget.Position); err != nil {
		return fmt.Errorf("widget.position: %w", err)
	}
	if _, err := visibility.ParsePanel(c.Widget.InitialPanel); err != nil {
		return fmt.Errorf("widget.initialPanel: %w", err)
	}
	if c.Widget.MaxMessageLength < 0 {
		return fmt.Errorf("widget.maxMessageLength must not be negative")
	}
	return nil
}

// WidgetOptions maps the config onto session options. An empty userID lets
// the session generate one.
func (c *Config) WidgetOptions(userID string) widget.Options {
	return widget.Options{
		BaseURL:          c.Backend.URL,
		UserID:           userID,
		UserIDPrefix:     c.Widget.UserIDPrefix,
		Position:         visibility.Position(c.Widget.Position),
		AutoOpen:         c.Widget.AutoOpen,
		InitialPanel:     visibility.Panel(c.Widget.InitialPanel),
		PollInterval:     c.Backend.PollInterval,
		RequestTimeout:   c.Backend.RequestTimeout,
		MaxMessageLength: c.Widget.MaxMessageLength,
		Greeting:         c.Widget.Greeting,
	}
}

// LoggerConfig maps the logging section onto logger settings.
func (c *Config) LoggerConfig() logger.Config {
	enabled := true
	if c.Logging.Enabled != nil {
		enabled = *c.Logging.Enabled
	}
	return logger.Config{
		Enabled: enabled,
		Level:   c.Logging.Level,
		Format:  c.Logging.Format,
		Stdout:  c.Logging.Stdout,
		File:    c.Logging.File,
	}
}

// GetTelegramToken returns the bot token. TELEGRAM_BOT_TOKEN wins over the
// file.
func (c *Config) GetTelegramToken() string {
	if token := strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN")); token != "" {
		return token
	}
	if c.Channels == nil || c.Channels.Telegram == nil {
		return ""
	}
	return strings.TrimSpace(c.Channels.Telegram.Token)
}

// GetTelegramAllowedIDs returns the allow list; empty allows everyone.
func (c *Config) GetTelegramAllowedIDs() []int64 {
	if c.Channels == nil || c.Channels.Telegram == nil {
		return nil
	}
	return c.Channels.Telegram.AllowedIDs
}

// GetTelegramSessionTTL returns the idle timeout for bridged sessions.
func (c *Config) GetTelegramSessionTTL() time.Duration {
	if c.Channels == nil || c.Channels.Telegram == nil || c.Channels.Telegram.SessionTTL <= 0 {
		return defaultSessionTTL
	}
	return c.Channels.Telegram.SessionTTL
}
