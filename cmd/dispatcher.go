package cmd

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/linanwx/nagowidget/bus"
	"github.com/linanwx/nagowidget/channel"
	"github.com/linanwx/nagowidget/config"
	"github.com/linanwx/nagowidget/exchange"
	"github.com/linanwx/nagowidget/internal/health"
	"github.com/linanwx/nagowidget/logger"
	"github.com/linanwx/nagowidget/notice"
	"github.com/linanwx/nagowidget/transcript"
	"github.com/linanwx/nagowidget/visibility"
	"github.com/linanwx/nagowidget/widget"
)

const (
	defaultConnectWait   = 5 * time.Second
	defaultSweepInterval = 5 * time.Minute
	sendTimeout          = 15 * time.Second
	commandTimeout       = 30 * time.Second

	textPending     = "Please wait for the previous reply."
	textSessionGone = "This chat session has ended."
	textCleared     = "🗑️ Your chat history has been cleared!"
	textClearFailed = "❌ Failed to clear history. Please try again."
	textNoSession   = "❌ Could not start a chat session. Please try again later."

	helpText = `Commands:
/help - show this help
/health - check the AI Assistant API
/clear - clear your chat history on the server
/toggle, /open, /minimize, /close - change the chat panel
/dismiss - hide the current error notice`

	welcomeText = "👋 Welcome! Send me a message and I'll pass it to the AI Assistant.\n\n" + helpText
)

var errDispatcherClosed = errors.New("dispatcher closed")

// route is one chat session bound to the channel that feeds it.
type route struct {
	key       string
	channel   channel.Channel
	replyTo   string
	session   *widget.Session
	subID     string
	ephemeral bool

	mu         sync.Mutex
	lastActive time.Time
}

func (r *route) touch(now time.Time) {
	r.mu.Lock()
	r.lastActive = now
	r.mu.Unlock()
}

func (r *route) idleSince() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastActive
}

// Dispatcher maps channel conversations onto chat sessions. The terminal
// has one long-lived session; each Telegram user gets an ephemeral one that
// is disposed after SessionTTL of inactivity.
type Dispatcher struct {
	channels *channel.Manager
	cfg      *config.Config
	log      logger.Component

	ttl           time.Duration
	connectWait   time.Duration
	sweepInterval time.Duration
	now           func() time.Time

	mu     sync.Mutex
	routes map[string]*route
	closed bool
	sched  gocron.Scheduler
}

// NewDispatcher creates a new dispatcher.
func NewDispatcher(channels *channel.Manager, cfg *config.Config) *Dispatcher {
	return &Dispatcher{
		channels:      channels,
		cfg:           cfg,
		log:           logger.For("dispatcher"),
		ttl:           cfg.GetTelegramSessionTTL(),
		connectWait:   defaultConnectWait,
		sweepInterval: defaultSweepInterval,
		now:           time.Now,
		routes:        make(map[string]*route),
	}
}

// Run starts a goroutine for each channel that reads messages and hands
// them to sessions. Blocks until ctx is cancelled, then disposes every
// session.
func (d *Dispatcher) Run(ctx context.Context) {
	if err := d.startSweeper(); err != nil {
		d.log.Warn("idle sweeper not started", "err", err)
	}

	// The terminal shows its greeting and connectivity before any input.
	if ch, ok := d.channels.Get("cli"); ok {
		if _, err := d.routeFor(ctx, ch, &channel.Message{ChannelID: "cli:local"}); err != nil {
			d.log.Error("cli session failed", "err", err)
		}
	}

	d.channels.Each(func(ch channel.Channel) {
		go d.processChannel(ctx, ch)
	})
	<-ctx.Done()
	d.shutdown()
}

func (d *Dispatcher) processChannel(ctx context.Context, ch channel.Channel) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch.Messages():
			if !ok {
				return
			}
			d.dispatch(ctx, ch, msg)
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, ch channel.Channel, msg *channel.Message) {
	d.log.Debug("dispatching message",
		"channel", ch.Name(),
		"channelID", msg.ChannelID,
		"user", msg.Username,
		"action", msg.Action,
		"text", truncate(msg.Text, 50),
	)

	r, err := d.routeFor(ctx, ch, msg)
	if err != nil {
		if !errors.Is(err, errDispatcherClosed) {
			d.log.Error("session unavailable", "channelID", msg.ChannelID, "err", err)
			d.reply(ctx, ch, replyTarget(msg), textNoSession)
		}
		return
	}
	r.touch(d.now())

	if msg.Action != "" {
		d.handleAction(ctx, r, msg)
		return
	}
	d.handleText(ctx, r, msg.Text)
}

func (d *Dispatcher) handleText(ctx context.Context, r *route, text string) {
	_, err := r.session.Send(text)
	switch {
	case err == nil:
		// Echo, reply and state changes arrive through the session bus.
	case errors.Is(err, exchange.ErrEmptyText):
	case errors.Is(err, exchange.ErrNotConnected):
		d.reply(ctx, r.channel, r.replyTo, notice.TextCannotConnect)
	case errors.Is(err, exchange.ErrExchangePending):
		d.reply(ctx, r.channel, r.replyTo, textPending)
	case errors.Is(err, exchange.ErrTextTooLong):
		d.reply(ctx, r.channel, r.replyTo,
			fmt.Sprintf("Message is too long (max %d characters).", r.session.Snapshot().MaxLength))
	default:
		d.reply(ctx, r.channel, r.replyTo, textSessionGone)
	}
}

func (d *Dispatcher) handleAction(ctx context.Context, r *route, msg *channel.Message) {
	// Keyboard shortcuts already show their effect in the panel.
	quiet := msg.Metadata["shortcut"] == "true"

	switch a := msg.Action; {
	case a.IsPanel():
		p := r.session.Apply(visibility.Action(a))
		if !quiet {
			d.reply(ctx, r.channel, r.replyTo, fmt.Sprintf("Chat panel is %s.", p))
		}
	case a == channel.ActionDismiss:
		dismissed := r.session.DismissNotice()
		if !quiet {
			if dismissed {
				d.reply(ctx, r.channel, r.replyTo, "Notice dismissed.")
			} else {
				d.reply(ctx, r.channel, r.replyTo, "Nothing to dismiss.")
			}
		}
	case a == channel.ActionHealth:
		d.reply(ctx, r.channel, r.replyTo, d.healthSummary(ctx, r.session))
	case a == channel.ActionClear:
		cctx, cancel := context.WithTimeout(ctx, commandTimeout)
		defer cancel()
		if _, err := r.session.ClearRemoteHistory(cctx); err != nil {
			d.log.Warn("clear history failed", "user", r.session.UserID(), "err", err)
			d.reply(ctx, r.channel, r.replyTo, textClearFailed)
			return
		}
		d.reply(ctx, r.channel, r.replyTo, textCleared)
	case a == channel.ActionStart:
		d.reply(ctx, r.channel, r.replyTo, welcomeText)
	default:
		d.reply(ctx, r.channel, r.replyTo, helpText)
	}
}

func (d *Dispatcher) healthSummary(ctx context.Context, s *widget.Session) string {
	cctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	// Refresh the monitor so the panel agrees with the report.
	_, _ = s.Probe(cctx)
	snap := health.Collect(cctx, health.Options{BaseURL: s.BaseURL(), Prober: s})
	return health.Summary(snap)
}

// routeFor returns the session for msg, creating it on first contact.
func (d *Dispatcher) routeFor(ctx context.Context, ch channel.Channel, msg *channel.Message) (*route, error) {
	key, userID, ephemeral := d.routeKey(msg)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, errDispatcherClosed
	}
	if r, ok := d.routes[key]; ok {
		d.mu.Unlock()
		return r, nil
	}

	opts := d.cfg.WidgetOptions(userID)
	if ephemeral {
		// Chat apps have no collapsed panel to badge.
		opts.InitialPanel = visibility.PanelOpen
	}
	s, err := widget.New(opts)
	if err != nil {
		d.mu.Unlock()
		return nil, fmt.Errorf("create session: %w", err)
	}

	r := &route{
		key:        key,
		channel:    ch,
		replyTo:    replyTarget(msg),
		session:    s,
		ephemeral:  ephemeral,
		lastActive: d.now(),
	}
	r.subID = s.SubscribeAll(func(e *bus.Event) { d.forward(r, e) })
	d.routes[key] = r
	d.mu.Unlock()

	for _, m := range s.Messages() {
		d.sendMessage(r, m)
	}
	d.sendState(r)

	if err := s.Start(); err != nil {
		d.remove(key)
		return nil, fmt.Errorf("start session: %w", err)
	}
	d.log.Info("session opened", "route", key, "user", s.UserID())

	// Text sent before the first probe settles would be rejected.
	wctx, cancel := context.WithTimeout(ctx, d.connectWait)
	defer cancel()
	if _, err := s.WaitConnectivity(wctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		d.log.Debug("connectivity wait ended", "route", key, "err", err)
	}
	return r, nil
}

// routeKey returns the session key, the backend user id and whether the
// session may be swept when idle.
func (d *Dispatcher) routeKey(msg *channel.Message) (key, userID string, ephemeral bool) {
	switch {
	case msg == nil, strings.HasPrefix(msg.ChannelID, "cli:"):
		return "cli", "", false
	case strings.HasPrefix(msg.ChannelID, "telegram:"):
		id := strings.TrimSpace(msg.UserID)
		if id == "" || id == "0" {
			id = strings.TrimPrefix(msg.ChannelID, "telegram:")
		}
		return "telegram:" + id, "telegram_" + id, true
	}
	key = msg.ChannelID
	if msg.UserID != "" {
		key = msg.ChannelID + ":" + msg.UserID
	}
	return key, "", true
}

func replyTarget(msg *channel.Message) string {
	if msg == nil {
		return ""
	}
	if chatID := strings.TrimSpace(msg.Metadata["chat_id"]); chatID != "" {
		return chatID
	}
	return strings.TrimSpace(msg.ReplyTo)
}

// forward runs on the session bus goroutine.
func (d *Dispatcher) forward(r *route, e *bus.Event) {
	if e.Type == bus.EventMessageAppended {
		if m, ok := e.Data.(transcript.Message); ok {
			d.sendMessage(r, m)
		}
		return
	}
	d.sendState(r)
}

func (d *Dispatcher) sendMessage(r *route, m transcript.Message) {
	d.send(r, &channel.Response{
		Kind:    channel.KindMessage,
		Text:    m.Text,
		ReplyTo: r.replyTo,
		Sender:  m.Sender,
		Failed:  m.Failed(),
		Time:    m.Timestamp,
	})
}

func (d *Dispatcher) sendState(r *route) {
	v := r.session.Snapshot()
	v.Messages = nil
	d.send(r, &channel.Response{Kind: channel.KindState, ReplyTo: r.replyTo, State: &v})
}

func (d *Dispatcher) send(r *route, resp *channel.Response) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	if err := r.channel.Send(ctx, resp); err != nil {
		d.log.Warn("channel send failed", "channel", r.channel.Name(), "route", r.key, "err", err)
	}
}

func (d *Dispatcher) reply(ctx context.Context, ch channel.Channel, replyTo, text string) {
	if err := ch.Send(ctx, &channel.Response{Kind: channel.KindNotice, Text: text, ReplyTo: replyTo}); err != nil {
		d.log.Warn("channel reply failed", "channel", ch.Name(), "err", err)
	}
}

func (d *Dispatcher) startSweeper() error {
	s, err := gocron.NewScheduler(
		gocron.WithLogger(d.log.Scheduler()),
		gocron.WithStopTimeout(2*time.Second),
	)
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	if _, err := s.NewJob(
		gocron.DurationJob(d.sweepInterval),
		gocron.NewTask(func() { d.sweep() }),
		gocron.WithName("idle-session-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		_ = s.Shutdown()
		return fmt.Errorf("schedule sweep: %w", err)
	}
	s.Start()

	d.mu.Lock()
	d.sched = s
	d.mu.Unlock()
	return nil
}

// sweep disposes ephemeral sessions idle for longer than the TTL. A session
// waiting on a reply is never swept.
func (d *Dispatcher) sweep() int {
	cutoff := d.now().Add(-d.ttl)

	d.mu.Lock()
	var stale []*route
	for key, r := range d.routes {
		if !r.ephemeral || r.idleSince().After(cutoff) || r.session.Snapshot().Pending {
			continue
		}
		stale = append(stale, r)
		delete(d.routes, key)
	}
	d.mu.Unlock()

	for _, r := range stale {
		d.dispose(r)
		d.log.Info("idle session disposed", "route", r.key)
	}
	return len(stale)
}

func (d *Dispatcher) remove(key string) {
	d.mu.Lock()
	r, ok := d.routes[key]
	delete(d.routes, key)
	d.mu.Unlock()
	if ok {
		d.dispose(r)
	}
}

func (d *Dispatcher) dispose(r *route) {
	r.session.Unsubscribe(r.subID)
	r.session.Dispose()
}

func (d *Dispatcher) shutdown() {
	d.mu.Lock()
	d.closed = true
	routes := d.routes
	d.routes = make(map[string]*route)
	sched := d.sched
	d.sched = nil
	d.mu.Unlock()

	if sched != nil {
		if err := sched.Shutdown(); err != nil && !errors.Is(err, gocron.ErrStopJobsTimedOut) {
			d.log.Warn("sweeper shutdown failed", "err", err)
		}
	}
	for _, r := range routes {
		d.dispose(r)
	}
	d.log.Info("sessions disposed", "count", len(routes))
}

// Sessions reports every live session for health output.
func (d *Dispatcher) Sessions() []health.SessionInfo {
	d.mu.Lock()
	routes := make([]*route, 0, len(d.routes))
	for _, r := range d.routes {
		routes = append(routes, r)
	}
	d.mu.Unlock()

	sort.Slice(routes, func(i, j int) bool { return routes[i].key < routes[j].key })
	now := d.now()
	out := make([]health.SessionInfo, 0, len(routes))
	for _, r := range routes {
		v := r.session.Snapshot()
		out = append(out, health.SessionInfo{
			Route:        r.key,
			UserID:       v.UserID,
			Connectivity: string(v.Connectivity),
			Panel:        string(v.Panel),
			Messages:     len(v.Messages),
			Pending:      v.Pending,
			IdleFor:      now.Sub(r.idleSince()).Round(time.Second).String(),
		})
	}
	return out
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
