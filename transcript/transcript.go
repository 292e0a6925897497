// Package transcript holds the ordered log of messages exchanged in a session.
package transcript

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sender identifies who produced a message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Status records whether a message is a real exchange result.
type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

// Message is a single transcript entry. Messages are immutable once appended.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	Status    Status    `json:"status"`
}

// IsAssistant reports whether the message came from the assistant.
func (m Message) IsAssistant() bool { return m.Sender == SenderAssistant }

// Failed reports whether the message is a failure placeholder.
func (m Message) Failed() bool { return m.Status == StatusFailed }

// AppendFunc is called after every append, in append order. It must not
// append to the same transcript.
type AppendFunc func(Message)

// Transcript is an append-only, chronologically ordered message log.
// It is safe for concurrent use.
type Transcript struct {
	order    sync.Mutex // serializes append+notify so hooks observe append order
	mu       sync.RWMutex
	messages []Message
	onAppend []AppendFunc
	now      func() time.Time
}

// New creates an empty transcript.
func New() *Transcript {
	return &Transcript{now: time.Now}
}

// OnAppend registers fn to be called for each appended message.
func (t *Transcript) OnAppend(fn AppendFunc) {
	if fn == nil {
		return
	}
	t.mu.Lock()
	t.onAppend = append(t.onAppend, fn)
	t.mu.Unlock()
}

// Append adds a message and returns the stored copy.
func (t *Transcript) Append(sender Sender, text string, status Status) Message {
	msg := Message{
		ID:     uuid.NewString(),
		Text:   text,
		Sender: sender,
		Status: status,
	}

	t.order.Lock()
	defer t.order.Unlock()

	t.mu.Lock()
	msg.Timestamp = t.now()
	t.messages = append(t.messages, msg)
	hooks := append([]AppendFunc(nil), t.onAppend...)
	t.mu.Unlock()

	for _, fn := range hooks {
		fn(msg)
	}
	return msg
}

// AppendUser appends a user/ok message.
func (t *Transcript) AppendUser(text string) Message {
	return t.Append(SenderUser, text, StatusOK)
}

// AppendAssistant appends an assistant/ok message.
func (t *Transcript) AppendAssistant(text string) Message {
	return t.Append(SenderAssistant, text, StatusOK)
}

// AppendFailure appends an assistant/failed placeholder.
func (t *Transcript) AppendFailure(text string) Message {
	return t.Append(SenderAssistant, text, StatusFailed)
}

// Messages returns a copy of all messages in append order.
func (t *Transcript) Messages() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// Last returns the most recent message, if any.
func (t *Transcript) Last() (Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.messages) == 0 {
		return Message{}, false
	}
	return t.messages[len(t.messages)-1], true
}
