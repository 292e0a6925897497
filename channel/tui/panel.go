// Package tui provides a terminal user interface for the CLI channel.
package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Panel is a composable TUI region with its own state, update logic, and view.
// The root App model orchestrates panels without knowing their internals.
type Panel interface {
	Update(tea.Msg) (Panel, tea.Cmd)
	View() string
	SetSize(width, height int)
}

// LogLineMsg carries a single log line from the logger writer.
type LogLineMsg struct{ Line string }

// ChatMsg carries one transcript entry to display in the conversation panel.
type ChatMsg struct {
	Text   string
	IsUser bool
	Failed bool
	Time   time.Time
}

// NoticeMsg carries host text such as command output. Notices are shown in
// the conversation panel but are not part of the transcript.
type NoticeMsg struct{ Text string }

// StatusMsg carries the session state rendered by the status bar and the
// collapsed badge.
type StatusMsg struct {
	Online      bool
	Checking    bool
	Pending     bool
	Open        bool
	Closed      bool
	Left        bool
	UnreadCount int
	Notice      string
	CanSend     bool
	MaxLength   int
}

// InputSubmitMsg is emitted when the user presses Enter in the input panel.
type InputSubmitMsg struct{ Text string }

// Input is what the App hands to the channel: either chat text or a named
// action such as "toggle".
type Input struct {
	Text   string
	Action string
}
