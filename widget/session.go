// Package widget is the composition root of a chat client session.
//
// A Session binds one backend base URL and one user identifier to a
// transcript, a connection monitor, a message exchange controller and a
// panel visibility controller. Sessions are independent; any number can
// coexist in one process.
//
//	s, err := widget.Open(widget.Options{BaseURL: "http://127.0.0.1:8000"})
//	if err != nil {
//		return err
//	}
//	defer s.Dispose()
//	s.Subscribe(bus.EventMessageAppended, render)
package widget

import (
	"context"
	"errors"
	"sync"

	"github.com/linanwx/nagowidget/backend"
	"github.com/linanwx/nagowidget/bus"
	"github.com/linanwx/nagowidget/exchange"
	"github.com/linanwx/nagowidget/logger"
	"github.com/linanwx/nagowidget/monitor"
	"github.com/linanwx/nagowidget/notice"
	"github.com/linanwx/nagowidget/transcript"
	"github.com/linanwx/nagowidget/visibility"
)

var ErrDisposed = errors.New("widget: session disposed")

// Session is a single chat client instance.
type Session struct {
	opts   Options
	client *backend.Client

	bus        *bus.Bus
	transcript *transcript.Transcript
	notices    *notice.Board
	monitor    *monitor.Monitor
	exchange   *exchange.Controller
	visibility *visibility.Controller

	mu       sync.Mutex
	disposed bool
}

// View is a point-in-time snapshot for rendering.
type View struct {
	UserID       string
	Messages     []transcript.Message
	Connectivity monitor.State
	Pending      bool
	Panel        visibility.Panel
	Position     visibility.Position
	Unread       bool
	UnreadCount  int
	Notice       notice.Notice
	CanSend      bool
	MaxLength    int
	Disposed     bool
}

// New builds a session without starting the monitor.
func New(opts Options) (*Session, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}

	s := &Session{opts: opts}
	s.client = backend.NewClient(backend.Config{
		BaseURL:    opts.BaseURL,
		Timeout:    opts.RequestTimeout,
		HTTPClient: opts.HTTPClient,
	})
	s.bus = bus.NewBus(256)
	s.notices = notice.NewBoard(func(n notice.Notice) {
		s.bus.Emit(bus.EventNoticeChanged, opts.UserID, n)
	})
	s.transcript = transcript.New()
	if opts.Greeting != "" {
		s.transcript.AppendAssistant(opts.Greeting)
	}

	s.visibility = visibility.New(visibility.Config{
		Initial:  opts.InitialPanel,
		AutoOpen: opts.AutoOpen,
		Position: opts.Position,
		Bus:      s.bus,
		Source:   opts.UserID,
	})
	s.transcript.OnAppend(func(m transcript.Message) {
		s.bus.Emit(bus.EventMessageAppended, opts.UserID, m)
	})
	s.transcript.OnAppend(s.visibility.Observe)

	s.monitor = monitor.New(s.client, monitor.Config{
		Interval: opts.PollInterval,
		Notices:  s.notices,
		Bus:      s.bus,
		Source:   opts.UserID,
	})
	s.exchange = exchange.New(s.client, s.monitor, s.transcript, exchange.Config{
		UserID:    opts.UserID,
		MaxLength: opts.MaxMessageLength,
		Timeout:   opts.RequestTimeout,
		Notices:   s.notices,
		Bus:       s.bus,
		Source:    opts.UserID,
	})

	logger.Debug("session created", "user", opts.UserID, "baseURL", s.client.BaseURL())
	return s, nil
}

// Open builds a session and starts monitoring.
func Open(opts Options) (*Session, error) {
	s, err := New(opts)
	if err != nil {
		return nil, err
	}
	if err := s.Start(); err != nil {
		s.Dispose()
		return nil, err
	}
	return s, nil
}

// Start begins connectivity monitoring: one probe now, then one per
// PollInterval.
func (s *Session) Start() error {
	if s.isDisposed() {
		return ErrDisposed
	}
	return s.monitor.Start(s.opts.PollInterval)
}

// Dispose stops monitoring, discards late replies and releases the event
// bus. Requests in flight are not cancelled and Dispose does not wait for
// them. It is safe to call more than once. It must not be called from a bus
// handler of the same session.
func (s *Session) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	s.mu.Unlock()

	s.monitor.Close()
	s.exchange.Close()
	s.bus.Close()
	logger.Debug("session disposed", "user", s.opts.UserID)
}

func (s *Session) isDisposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}

// UserID returns the session's stable user identifier.
func (s *Session) UserID() string { return s.opts.UserID }

// BaseURL returns the backend base URL.
func (s *Session) BaseURL() string { return s.client.BaseURL() }

// Options returns the effective options.
func (s *Session) Options() Options { return s.opts }

// Send submits text. Rejections leave the transcript unchanged and return
// one of the exchange.Err* values; an accepted send returns a channel that
// yields the outcome once.
func (s *Session) Send(text string) (<-chan exchange.Result, error) {
	if s.isDisposed() {
		return nil, ErrDisposed
	}
	return s.exchange.Send(text)
}

// CheckSend returns the reason Send would reject text, or nil.
func (s *Session) CheckSend(text string) error {
	if s.isDisposed() {
		return ErrDisposed
	}
	return s.exchange.Check(text)
}

// Apply performs a panel action and returns the new panel state.
func (s *Session) Apply(action visibility.Action) visibility.Panel {
	return s.visibility.Apply(action)
}

func (s *Session) Toggle() visibility.Panel    { return s.visibility.Toggle() }
func (s *Session) Minimize() visibility.Panel  { return s.visibility.Minimize() }
func (s *Session) Close() visibility.Panel     { return s.visibility.Close() }
func (s *Session) OpenPanel() visibility.Panel { return s.visibility.Open() }

// DismissNotice clears an exchange notice. Connectivity notices stay until
// the backend is reachable again.
func (s *Session) DismissNotice() bool {
	return s.notices.Dismiss(notice.KindExchange)
}

// Probe runs one health check outside the schedule.
func (s *Session) Probe(ctx context.Context) (monitor.State, error) {
	if s.isDisposed() {
		return monitor.StateUnknown, ErrDisposed
	}
	return s.monitor.Probe(ctx)
}

// WaitConnectivity blocks until the monitor has settled on connected or
// disconnected, or ctx ends.
func (s *Session) WaitConnectivity(ctx context.Context) (monitor.State, error) {
	if s.isDisposed() {
		return monitor.StateUnknown, ErrDisposed
	}
	if st := s.monitor.State(); st != monitor.StateUnknown {
		return st, nil
	}

	settled := make(chan monitor.State, 1)
	id := s.bus.Subscribe(bus.EventConnectivityChanged, func(e *bus.Event) {
		if c, ok := e.Data.(monitor.Change); ok && c.To != monitor.StateUnknown {
			select {
			case settled <- c.To:
			default:
			}
		}
	})
	defer s.bus.Unsubscribe(id)

	// The first probe may have landed before the subscription.
	if st := s.monitor.State(); st != monitor.StateUnknown {
		return st, nil
	}
	select {
	case st := <-settled:
		return st, nil
	case <-ctx.Done():
		return monitor.StateUnknown, ctx.Err()
	}
}

// Health returns the backend health details without touching session state.
func (s *Session) Health(ctx context.Context) (*backend.HealthInfo, error) {
	return s.client.Health(ctx)
}

// Monitor returns a snapshot of the connection monitor.
func (s *Session) Monitor() monitor.Snapshot { return s.monitor.Snapshot() }

// RemoteHistory returns the backend's record of this user's conversation.
// The local transcript is not modified.
func (s *Session) RemoteHistory(ctx context.Context) ([]backend.HistoryEntry, error) {
	if s.isDisposed() {
		return nil, ErrDisposed
	}
	return s.client.History(ctx, s.opts.UserID)
}

// ClearRemoteHistory deletes the backend's record of this user's
// conversation. The local transcript is not modified.
func (s *Session) ClearRemoteHistory(ctx context.Context) (string, error) {
	if s.isDisposed() {
		return "", ErrDisposed
	}
	return s.client.ClearHistory(ctx, s.opts.UserID)
}

// Messages returns the transcript in append order.
func (s *Session) Messages() []transcript.Message { return s.transcript.Messages() }

// Subscribe registers h for events of type t and returns the subscription id.
func (s *Session) Subscribe(t bus.EventType, h bus.Handler) string {
	return s.bus.Subscribe(t, h)
}

// SubscribeAll registers h for every event.
func (s *Session) SubscribeAll(h bus.Handler) string {
	return s.bus.SubscribeAll(h)
}

// Unsubscribe removes a subscription.
func (s *Session) Unsubscribe(id string) { s.bus.Unsubscribe(id) }

// Snapshot returns the current view.
func (s *Session) Snapshot() View {
	unread, count := s.visibility.Unread()
	disposed := s.isDisposed()
	return View{
		UserID:       s.opts.UserID,
		Messages:     s.transcript.Messages(),
		Connectivity: s.monitor.State(),
		Pending:      s.exchange.Pending(),
		Panel:        s.visibility.Panel(),
		Position:     s.visibility.Position(),
		Unread:       unread,
		UnreadCount:  count,
		Notice:       s.notices.Current(),
		CanSend:      !disposed && s.exchange.CanSend(),
		MaxLength:    s.exchange.MaxLength(),
		Disposed:     disposed,
	}
}
