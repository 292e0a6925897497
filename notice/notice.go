// Package notice holds the single user-facing error reason of a session.
//
// Connectivity notices persist until the next successful probe; exchange
// notices persist until the user dismisses them or connectivity changes.
package notice

import "sync"

// Kind tells hosts how a notice should be surfaced.
type Kind string

const (
	KindNone         Kind = ""
	KindConnectivity Kind = "connectivity"
	KindExchange     Kind = "exchange"
)

// Default notice texts.
const (
	TextCannotConnect = "Cannot connect to AI Assistant API"
	TextSendFailed    = "Failed to send message. Please try again."
)

// Notice is the current error reason, if any.
type Notice struct {
	Kind Kind   `json:"kind,omitempty"`
	Text string `json:"text,omitempty"`
}

// Empty reports whether no notice is set.
func (n Notice) Empty() bool { return n.Kind == KindNone }

// ChangeFunc receives the notice after every effective change.
type ChangeFunc func(Notice)

// Board stores one notice at a time. It is safe for concurrent use.
type Board struct {
	mu       sync.Mutex
	current  Notice
	onChange ChangeFunc
}

// NewBoard creates an empty board. onChange may be nil.
func NewBoard(onChange ChangeFunc) *Board {
	return &Board{onChange: onChange}
}

// Set replaces the current notice.
func (b *Board) Set(kind Kind, text string) {
	b.update(func(Notice) Notice { return Notice{Kind: kind, Text: text} })
}

// Clear removes any notice.
func (b *Board) Clear() {
	b.update(func(Notice) Notice { return Notice{} })
}

// Dismiss removes the current notice only if it is of the given kind.
// Connectivity notices are not user-dismissible, so hosts call
// Dismiss(KindExchange).
func (b *Board) Dismiss(kind Kind) bool {
	dismissed := false
	b.update(func(cur Notice) Notice {
		if cur.Kind != kind {
			return cur
		}
		dismissed = true
		return Notice{}
	})
	return dismissed
}

// Current returns the current notice.
func (b *Board) Current() Notice {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

func (b *Board) update(fn func(Notice) Notice) {
	b.mu.Lock()
	next := fn(b.current)
	changed := next != b.current
	b.current = next
	cb := b.onChange
	b.mu.Unlock()

	if changed && cb != nil {
		cb(next)
	}
}
