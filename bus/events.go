// Package bus provides the in-process event bus a session uses to notify
// hosts and sibling controllers.
package bus

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event.
type EventType string

const (
	// EventMessageAppended carries a transcript.Message.
	EventMessageAppended EventType = "message.appended"
	// EventConnectivityChanged carries a monitor.Change.
	EventConnectivityChanged EventType = "connectivity.changed"
	// EventExchangeStarted and EventExchangeFinished carry an exchange.Status.
	EventExchangeStarted  EventType = "exchange.started"
	EventExchangeFinished EventType = "exchange.finished"
	// EventPanelChanged carries a visibility.Change.
	EventPanelChanged EventType = "panel.changed"
	// EventUnreadChanged carries a visibility.Change.
	EventUnreadChanged EventType = "unread.changed"
	// EventFocusRequested has no payload; the input surface should take focus.
	EventFocusRequested EventType = "focus.requested"
	// EventNoticeChanged carries a notice.Notice.
	EventNoticeChanged EventType = "notice.changed"
)

// Event represents a bus event.
type Event struct {
	ID        string
	Type      EventType
	Source    string
	Timestamp time.Time
	Data      any
}

// NewEvent creates a new event.
func NewEvent(eventType EventType, source string, data any) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now(),
		Data:      data,
	}
}
