package widget

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/linanwx/nagowidget/backend"
	"github.com/linanwx/nagowidget/exchange"
	"github.com/linanwx/nagowidget/monitor"
	"github.com/linanwx/nagowidget/visibility"
)

const DefaultUserIDPrefix = "widget_user_"

// Options is the whole configuration surface of a Session. There is no
// file or environment lookup; hosts pass everything here.
type Options struct {
	// BaseURL of the chat backend. Default http://127.0.0.1:8000.
	BaseURL string
	// UserID is used verbatim when set. Otherwise one is generated from
	// UserIDPrefix and stays fixed for the session's lifetime.
	UserID       string
	UserIDPrefix string

	Position     visibility.Position
	AutoOpen     bool
	InitialPanel visibility.Panel

	PollInterval     time.Duration
	RequestTimeout   time.Duration
	MaxMessageLength int

	// Greeting, when set, is the first assistant message of the transcript.
	Greeting string

	HTTPClient *http.Client
}

// withDefaults validates o and fills zero values.
func (o Options) withDefaults() (Options, error) {
	if o.BaseURL == "" {
		o.BaseURL = backend.DefaultBaseURL
	}
	if o.UserIDPrefix == "" {
		o.UserIDPrefix = DefaultUserIDPrefix
	}
	if o.UserID == "" {
		o.UserID = NewUserID(o.UserIDPrefix)
	}

	pos, err := visibility.ParsePosition(string(o.Position))
	if err != nil {
		return o, fmt.Errorf("widget: %w", err)
	}
	o.Position = pos
	panel, err := visibility.ParsePanel(string(o.InitialPanel))
	if err != nil {
		return o, fmt.Errorf("widget: %w", err)
	}
	o.InitialPanel = panel

	if o.PollInterval <= 0 {
		o.PollInterval = monitor.DefaultInterval
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = backend.DefaultTimeout
	}
	if o.MaxMessageLength <= 0 {
		o.MaxMessageLength = exchange.DefaultMaxLength
	}
	return o, nil
}

// NewUserID returns prefix followed by a random token.
func NewUserID(prefix string) string {
	return prefix + uuid.NewString()
}
