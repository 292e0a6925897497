package config

import (
	"time"

	"github.com/linanwx/nagowidget/backend"
	"github.com/linanwx/nagowidget/exchange"
	"github.com/linanwx/nagowidget/monitor"
	"github.com/linanwx/nagowidget/visibility"
	"github.com/linanwx/nagowidget/widget"
)

const (
	defaultGreeting   = "👋 Hello! I'm your AI Assistant. How can I help you today?"
	defaultSessionTTL = 30 * time.Minute
)

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			URL:            backend.DefaultBaseURL,
			PollInterval:   monitor.DefaultInterval,
			RequestTimeout: backend.DefaultTimeout,
		},
		Widget: WidgetConfig{
			UserIDPrefix:     widget.DefaultUserIDPrefix,
			Position:         string(visibility.BottomRight),
			AutoOpen:         true,
			MaxMessageLength: exchange.DefaultMaxLength,
			Greeting:         defaultGreeting,
		},
		Channels: &ChannelsConfig{
			Telegram: &TelegramChannelConfig{
				Token:      "",
				AllowedIDs: []int64{},
				SessionTTL: defaultSessionTTL,
			},
		},
		Logging: defaultLoggingConfig(),
	}
}

func defaultLoggingConfig() LoggingConfig {
	enabled := true
	return LoggingConfig{
		Enabled: &enabled,
		Level:   "info",
		Format:  "text",
		Stdout:  true,
		File:    "logs/nagowidget.log",
	}
}

func (c *Config) applyDefaults() {
	if c.Backend.URL == "" {
		c.Backend.URL = backend.DefaultBaseURL
	}
	if c.Backend.PollInterval <= 0 {
		c.Backend.PollInterval = monitor.DefaultInterval
	}
	if c.Backend.RequestTimeout <= 0 {
		c.Backend.RequestTimeout = backend.DefaultTimeout
	}

	if c.Widget.UserIDPrefix == "" {
		c.Widget.UserIDPrefix = widget.DefaultUserIDPrefix
	}
	if c.Widget.Position == "" {
		c.Widget.Position = string(visibility.BottomRight)
	}
	if c.Widget.MaxMessageLength == 0 {
		c.Widget.MaxMessageLength = exchange.DefaultMaxLength
	}

	if c.Channels == nil {
		c.Channels = &ChannelsConfig{}
	}
	if c.Channels.Telegram == nil {
		c.Channels.Telegram = &TelegramChannelConfig{}
	}
	if c.Channels.Telegram.AllowedIDs == nil {
		c.Channels.Telegram.AllowedIDs = []int64{}
	}
	if c.Channels.Telegram.SessionTTL <= 0 {
		c.Channels.Telegram.SessionTTL = defaultSessionTTL
	}

	def := defaultLoggingConfig()
	if c.Logging == (LoggingConfig{}) {
		c.Logging = def
		return
	}

	hasAny := c.Logging.Level != "" || c.Logging.File != "" || c.Logging.Stdout
	if c.Logging.Enabled == nil && hasAny {
		enabled := true
		c.Logging.Enabled = &enabled
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = def.Format
	}
	if !c.Logging.Stdout && c.Logging.File == "" {
		c.Logging.Stdout = def.Stdout
	}
	if c.Logging.Enabled == nil {
		c.Logging.Enabled = def.Enabled
	}
}
