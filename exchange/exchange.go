// Package exchange sends user text to the backend and records the outcome in
// the transcript, allowing at most one exchange in flight.
package exchange

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/linanwx/nagowidget/bus"
	"github.com/linanwx/nagowidget/logger"
	"github.com/linanwx/nagowidget/notice"
	"github.com/linanwx/nagowidget/transcript"
)

const (
	DefaultMaxLength = 500
	DefaultTimeout   = 30 * time.Second

	// ApologyText replaces the assistant reply when an exchange fails.
	ApologyText = "Sorry, I encountered an error. Please try again."
)

// Rejection reasons. A rejected Send leaves the transcript untouched.
var (
	ErrEmptyText       = errors.New("exchange: message is empty")
	ErrTextTooLong     = errors.New("exchange: message is too long")
	ErrNotConnected    = errors.New("exchange: backend not connected")
	ErrExchangePending = errors.New("exchange: another message is pending")
	ErrClosed          = errors.New("exchange: closed")
)

// Chatter performs the chat request.
type Chatter interface {
	Chat(ctx context.Context, userID, text string) (string, error)
}

// Connectivity reports whether sending is currently allowed.
type Connectivity interface {
	Connected() bool
}

// Config configures a Controller. Notices and Bus are optional.
type Config struct {
	UserID    string
	MaxLength int
	Timeout   time.Duration
	Notices   *notice.Board
	Bus       *bus.Bus
	Source    string
}

// Status is the payload of exchange.started and exchange.finished events.
type Status struct {
	Pending bool
	Text    string
	Reply   transcript.Message // zero on exchange.started
	Err     error
}

// Result is delivered once per accepted Send.
type Result struct {
	Reply transcript.Message
	Err   error
	// Discarded is set when the controller was closed before the reply
	// arrived; nothing was appended.
	Discarded bool
}

// Controller is the message exchange state machine.
type Controller struct {
	chat    Chatter
	conn    Connectivity
	tr      *transcript.Transcript
	userID  string
	maxLen  int
	timeout time.Duration
	notices *notice.Board
	bus     *bus.Bus
	source  string

	// appendMu orders transcript appends against Close. Append hooks may
	// block on the bus, whose handlers read state under mu, so mu is never
	// held across an append.
	appendMu sync.Mutex
	mu       sync.Mutex
	pending  bool
	closed   bool
	wg       sync.WaitGroup
}

// New creates a controller that appends to t.
func New(chat Chatter, conn Connectivity, t *transcript.Transcript, cfg Config) *Controller {
	maxLen := cfg.MaxLength
	if maxLen <= 0 {
		maxLen = DefaultMaxLength
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	source := cfg.Source
	if source == "" {
		source = "exchange"
	}
	return &Controller{
		chat:    chat,
		conn:    conn,
		tr:      t,
		userID:  cfg.UserID,
		maxLen:  maxLen,
		timeout: timeout,
		notices: cfg.Notices,
		bus:     cfg.Bus,
		source:  source,
	}
}

// MaxLength returns the accepted message length in characters.
func (c *Controller) MaxLength() int { return c.maxLen }

// Pending reports whether an exchange is outstanding.
func (c *Controller) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Check returns the reason Send would reject text, or nil.
func (c *Controller) Check(text string) error {
	if _, err := c.validate(text); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acceptLocked()
}

// CanSend reports whether a non-empty message would currently be accepted.
func (c *Controller) CanSend() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acceptLocked() == nil
}

// Send trims text, echoes it into the transcript and starts the request.
// The returned channel yields exactly one Result and is then closed.
func (c *Controller) Send(text string) (<-chan Result, error) {
	trimmed, err := c.validate(text)
	if err != nil {
		return nil, err
	}

	c.appendMu.Lock()
	c.mu.Lock()
	if err := c.acceptLocked(); err != nil {
		c.mu.Unlock()
		c.appendMu.Unlock()
		logger.Debug("send rejected", "reason", err)
		return nil, err
	}
	c.pending = true
	c.wg.Add(1)
	c.mu.Unlock()
	c.tr.AppendUser(trimmed)
	c.appendMu.Unlock()

	c.emit(bus.EventExchangeStarted, Status{Pending: true, Text: trimmed})
	logger.Debug("exchange started", "user", c.userID, "chars", utf8.RuneCountInString(trimmed))

	out := make(chan Result, 1)
	go c.run(trimmed, out)
	return out, nil
}

// Close discards any late reply and rejects further sends. A request in
// flight is left to finish so the backend still records it. It is
// idempotent.
func (c *Controller) Close() {
	c.appendMu.Lock()
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.appendMu.Unlock()
}

// Wait blocks until every accepted exchange has resolved or been discarded.
func (c *Controller) Wait() {
	c.wg.Wait()
}

func (c *Controller) validate(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", ErrEmptyText
	}
	if utf8.RuneCountInString(trimmed) > c.maxLen {
		return "", ErrTextTooLong
	}
	return trimmed, nil
}

// Must be called with mu held.
func (c *Controller) acceptLocked() error {
	switch {
	case c.closed:
		return ErrClosed
	case c.pending:
		return ErrExchangePending
	case c.conn == nil || !c.conn.Connected():
		return ErrNotConnected
	}
	return nil
}

func (c *Controller) run(text string, out chan<- Result) {
	defer c.wg.Done()
	defer close(out)

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	reply, err := c.chat.Chat(ctx, c.userID, text)
	cancel()

	c.appendMu.Lock()
	c.mu.Lock()
	if c.closed {
		c.pending = false
		c.mu.Unlock()
		c.appendMu.Unlock()
		logger.Debug("late exchange result discarded", "user", c.userID)
		out <- Result{Err: err, Discarded: true}
		return
	}
	c.mu.Unlock()
	var msg transcript.Message
	if err != nil {
		msg = c.tr.AppendFailure(ApologyText)
	} else {
		msg = c.tr.AppendAssistant(reply)
	}
	c.mu.Lock()
	c.pending = false
	c.mu.Unlock()
	c.appendMu.Unlock()

	if err != nil {
		logger.Warn("exchange failed", "user", c.userID, "err", err)
		if c.notices != nil {
			c.notices.Set(notice.KindExchange, notice.TextSendFailed)
		}
	} else {
		logger.Debug("exchange finished", "user", c.userID)
	}

	c.emit(bus.EventExchangeFinished, Status{Text: text, Reply: msg, Err: err})
	out <- Result{Reply: msg, Err: err}
}

func (c *Controller) emit(t bus.EventType, s Status) {
	if c.bus != nil {
		c.bus.Emit(t, c.source, s)
	}
}
