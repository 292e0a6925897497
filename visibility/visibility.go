// Package visibility drives the panel state and the unread indicator.
//
// The controller knows nothing about the network: it reacts to user actions
// and to assistant messages appended to the transcript.
package visibility

import (
	"fmt"
	"strings"
	"sync"

	"github.com/linanwx/nagowidget/bus"
	"github.com/linanwx/nagowidget/logger"
	"github.com/linanwx/nagowidget/transcript"
)

// Panel is the visible state of the conversation panel.
type Panel string

const (
	PanelClosed    Panel = "closed"
	PanelMinimized Panel = "minimized"
	PanelOpen      Panel = "open"
)

// Action is a user panel action.
type Action string

const (
	ActionToggle   Action = "toggle"
	ActionMinimize Action = "minimize"
	ActionClose    Action = "close"
	ActionOpen     Action = "open"
)

// Position is where hosts place the collapsed toggle.
type Position string

const (
	BottomRight Position = "bottom-right"
	BottomLeft  Position = "bottom-left"
)

// ParsePanel accepts a panel name; empty means no preference.
func ParsePanel(s string) (Panel, error) {
	switch p := Panel(strings.ToLower(strings.TrimSpace(s))); p {
	case "", PanelClosed, PanelMinimized, PanelOpen:
		return p, nil
	default:
		return "", fmt.Errorf("unknown panel state %q", s)
	}
}

// ParsePosition accepts a position name; empty means BottomRight.
func ParsePosition(s string) (Position, error) {
	switch p := Position(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return BottomRight, nil
	case BottomRight, BottomLeft:
		return p, nil
	default:
		return "", fmt.Errorf("unknown position %q", s)
	}
}

// Next returns the state after applying action to state. The table is total;
// unknown actions leave the state unchanged.
func Next(state Panel, action Action) Panel {
	switch action {
	case ActionToggle:
		if state == PanelOpen {
			return PanelMinimized
		}
		return PanelOpen
	case ActionMinimize:
		if state == PanelOpen {
			return PanelMinimized
		}
		return state
	case ActionClose:
		return PanelClosed
	case ActionOpen:
		return PanelOpen
	default:
		return state
	}
}

// Config configures a Controller.
type Config struct {
	// Initial wins over AutoOpen when set.
	Initial  Panel
	AutoOpen bool
	Position Position
	Bus      *bus.Bus
	Source   string
}

// Change is the payload of panel.changed and unread.changed events.
type Change struct {
	From   Panel
	To     Panel
	Unread bool
	Count  int
}

// Controller holds panel and unread state. It is safe for concurrent use.
type Controller struct {
	position Position
	bus      *bus.Bus
	source   string

	mu     sync.Mutex
	panel  Panel
	unread int
}

// New creates a controller in its configured initial state.
func New(cfg Config) *Controller {
	initial := cfg.Initial
	if initial == "" {
		initial = PanelMinimized
		if cfg.AutoOpen {
			initial = PanelOpen
		}
	}
	pos := cfg.Position
	if pos == "" {
		pos = BottomRight
	}
	source := cfg.Source
	if source == "" {
		source = "visibility"
	}
	return &Controller{position: pos, bus: cfg.Bus, source: source, panel: initial}
}

// Panel returns the current panel state.
func (c *Controller) Panel() Panel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.panel
}

// Position returns the configured position.
func (c *Controller) Position() Position { return c.position }

// Unread reports whether the unread indicator is set and how many assistant
// messages arrived while the panel was not open.
func (c *Controller) Unread() (bool, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unread > 0, c.unread
}

func (c *Controller) Toggle() Panel   { return c.Apply(ActionToggle) }
func (c *Controller) Minimize() Panel { return c.Apply(ActionMinimize) }
func (c *Controller) Close() Panel    { return c.Apply(ActionClose) }
func (c *Controller) Open() Panel     { return c.Apply(ActionOpen) }

// Apply performs action and returns the new state. Entering PanelOpen clears
// the unread indicator and requests input focus.
func (c *Controller) Apply(action Action) Panel {
	c.mu.Lock()
	prev := c.panel
	next := Next(prev, action)
	c.panel = next
	cleared := false
	if next == PanelOpen && prev != PanelOpen && c.unread > 0 {
		c.unread = 0
		cleared = true
	}
	c.mu.Unlock()

	if prev == next {
		return next
	}
	logger.Debug("panel transition", "action", action, "from", prev, "to", next)

	c.emit(bus.EventPanelChanged, Change{From: prev, To: next})
	if cleared {
		c.emit(bus.EventUnreadChanged, Change{From: prev, To: next})
	}
	if next == PanelOpen {
		c.emit(bus.EventFocusRequested, nil)
	}
	return next
}

// Observe is a transcript.AppendFunc: assistant messages arriving while the
// panel is not open raise the unread indicator.
func (c *Controller) Observe(msg transcript.Message) {
	if !msg.IsAssistant() {
		return
	}
	c.mu.Lock()
	if c.panel == PanelOpen {
		c.mu.Unlock()
		return
	}
	c.unread++
	ch := Change{From: c.panel, To: c.panel, Unread: true, Count: c.unread}
	c.mu.Unlock()

	c.emit(bus.EventUnreadChanged, ch)
}

func (c *Controller) emit(t bus.EventType, data any) {
	if c.bus != nil {
		c.bus.Emit(t, c.source, data)
	}
}
