// Package channel provides the host surfaces a chat session is shown on.
package channel

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/linanwx/nagowidget/logger"
	"github.com/linanwx/nagowidget/transcript"
	"github.com/linanwx/nagowidget/widget"
)

// Action is a user request that is not chat text.
type Action string

const (
	ActionToggle   Action = "toggle"
	ActionOpen     Action = "open"
	ActionMinimize Action = "minimize"
	ActionClose    Action = "close"
	ActionDismiss  Action = "dismiss"
	ActionHealth   Action = "health"
	ActionClear    Action = "clear"
	ActionHelp     Action = "help"
	ActionStart    Action = "start"
)

// IsPanel reports whether the action drives panel visibility.
func (a Action) IsPanel() bool {
	switch a {
	case ActionToggle, ActionOpen, ActionMinimize, ActionClose:
		return true
	}
	return false
}

// Message represents an incoming message from a channel.
type Message struct {
	ID        string            // Unique message ID
	ChannelID string            // Channel identifier (e.g., "telegram:123456")
	UserID    string            // User identifier
	Username  string            // Human-readable username
	Text      string            // Message text; empty when Action is set
	Action    Action            // Non-chat request
	ReplyTo   string            // ID of message being replied to (if any)
	Metadata  map[string]string // Channel-specific metadata
}

// ResponseKind tells a channel how to present a Response.
type ResponseKind string

const (
	// KindMessage carries one transcript entry.
	KindMessage ResponseKind = "message"
	// KindState carries a session snapshot after a state change.
	KindState ResponseKind = "state"
	// KindNotice carries host text: command output or a rejection reason.
	KindNotice ResponseKind = "notice"
)

// Response represents a response to send back.
type Response struct {
	Kind     ResponseKind
	Text     string
	ReplyTo  string            // Chat to reply to, channel specific
	Sender   transcript.Sender // KindMessage only
	Failed   bool              // KindMessage only
	Time     time.Time         // KindMessage only
	State    *widget.View      // KindState only
	Metadata map[string]string // Channel-specific options
}

// Channel is the interface for messaging channels.
type Channel interface {
	// Name returns the channel name (e.g., "telegram", "cli").
	Name() string

	// Start begins listening for messages.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the channel.
	Stop() error

	// Send delivers a response.
	Send(ctx context.Context, resp *Response) error

	// Messages returns a channel for receiving incoming messages.
	Messages() <-chan *Message
}

// Manager manages multiple channels as a pure registry.
type Manager struct {
	channels map[string]Channel
}

// NewManager creates a new channel manager.
func NewManager() *Manager {
	return &Manager{
		channels: make(map[string]Channel),
	}
}

// Register adds a channel to the manager and logs it. Nil is silently ignored.
func (m *Manager) Register(ch Channel) {
	if ch == nil {
		return
	}
	m.channels[ch.Name()] = ch
	logger.Info("channel registered", "channel", ch.Name())
}

// Get returns a channel by name.
func (m *Manager) Get(name string) (Channel, bool) {
	ch, ok := m.channels[name]
	return ch, ok
}

// Len returns the number of registered channels.
func (m *Manager) Len() int { return len(m.channels) }

// SendTo sends a response to a named channel.
func (m *Manager) SendTo(ctx context.Context, channelName string, resp *Response) error {
	ch, ok := m.channels[channelName]
	if !ok {
		return fmt.Errorf("channel not found: %s", channelName)
	}
	return ch.Send(ctx, resp)
}

// StartAll starts all registered channels. Network channels start before
// the terminal one so their connection logs land before the TUI takes over.
func (m *Manager) StartAll(ctx context.Context) error {
	for _, name := range m.names() {
		if name == "cli" {
			continue
		}
		if err := m.channels[name].Start(ctx); err != nil {
			return fmt.Errorf("start %s channel: %w", name, err)
		}
	}
	if cliCh, ok := m.channels["cli"]; ok {
		if err := cliCh.Start(ctx); err != nil {
			return fmt.Errorf("start cli channel: %w", err)
		}
	}
	return nil
}

// StopAll stops all registered channels, returning the first error.
func (m *Manager) StopAll() error {
	var first error
	for _, name := range m.names() {
		if err := m.channels[name].Stop(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Each iterates over all registered channels in name order.
func (m *Manager) Each(fn func(Channel)) {
	for _, name := range m.names() {
		fn(m.channels[name])
	}
}

func (m *Manager) names() []string {
	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
