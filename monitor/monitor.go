// Package monitor tracks backend reachability with a periodic health probe.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/linanwx/nagowidget/backend"
	"github.com/linanwx/nagowidget/bus"
	"github.com/linanwx/nagowidget/logger"
	"github.com/linanwx/nagowidget/notice"
)

// State is the connectivity signal.
type State string

const (
	StateUnknown      State = "unknown"
	StateConnected    State = "connected"
	StateDisconnected State = "disconnected"
)

const (
	DefaultInterval = 30 * time.Second

	// Stop waits this long for a probe in flight. Past it the probe
	// finishes in the background and its result is discarded.
	stopTimeout = 100 * time.Millisecond
)

var ErrClosed = errors.New("monitor: closed")

// Prober performs a single health check.
type Prober interface {
	Health(ctx context.Context) (*backend.HealthInfo, error)
}

// Change describes a connectivity transition.
type Change struct {
	From State
	To   State
	Err  error
	Info *backend.HealthInfo // nil when the probe failed before a response
}

// Config configures a Monitor. Notices and Bus are optional.
type Config struct {
	Interval time.Duration
	Notices  *notice.Board
	Bus      *bus.Bus
	Source   string
}

// Monitor owns the connectivity state. Scheduled probes run on a gocron
// scheduler that is created by Start and shut down by Stop.
type Monitor struct {
	prober   Prober
	interval time.Duration
	notices  *notice.Board
	bus      *bus.Bus
	source   string
	log      logger.Component

	mu        sync.Mutex
	state     State
	lastErr   error
	lastInfo  *backend.HealthInfo
	lastProbe time.Time
	probes    int64

	sched  gocron.Scheduler
	gen    uint64
	closed bool
}

// New creates a monitor in StateUnknown. No probe runs until Probe or Start.
func New(prober Prober, cfg Config) *Monitor {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	source := cfg.Source
	if source == "" {
		source = "monitor"
	}
	return &Monitor{
		prober:   prober,
		interval: interval,
		notices:  cfg.Notices,
		bus:      cfg.Bus,
		source:   source,
		log:      logger.For("monitor"),
		state:    StateUnknown,
	}
}

// State returns the current connectivity state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connected reports whether the last probe succeeded.
func (m *Monitor) Connected() bool {
	return m.State() == StateConnected
}

// Snapshot is a read-only view of the monitor.
type Snapshot struct {
	State     State
	LastErr   error
	LastInfo  *backend.HealthInfo
	LastProbe time.Time
	Probes    int64
	Running   bool
	Interval  time.Duration
}

// Snapshot returns the monitor's current view.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		State:     m.state,
		LastErr:   m.lastErr,
		LastInfo:  m.lastInfo,
		LastProbe: m.lastProbe,
		Probes:    m.probes,
		Running:   m.sched != nil,
		Interval:  m.interval,
	}
}

// Probe runs one health check and records its outcome. Failures are never
// retried here; the next scheduled tick is the retry. The returned error is
// the probe failure, if any.
func (m *Monitor) Probe(ctx context.Context) (State, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return StateUnknown, ErrClosed
	}
	m.mu.Unlock()

	info, err := m.prober.Health(ctx)
	return m.record(0, false, info, err), err
}

// Start probes immediately and then every interval until Stop. A running
// schedule is replaced. A non-positive interval keeps the configured one.
func (m *Monitor) Start(interval time.Duration) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if interval > 0 {
		m.interval = interval
	}
	old := m.detachLocked()
	m.gen++
	gen := m.gen
	every := m.interval
	m.mu.Unlock()

	shutdown(old)

	sched, err := gocron.NewScheduler(
		gocron.WithLogger(m.log.Scheduler()),
		gocron.WithStopTimeout(stopTimeout),
	)
	if err != nil {
		return fmt.Errorf("monitor: create scheduler: %w", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(func() { m.tick(gen) }),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("health-probe"),
	)
	if err != nil {
		_ = sched.Shutdown()
		return fmt.Errorf("monitor: schedule probe: %w", err)
	}

	m.mu.Lock()
	if m.closed || m.gen != gen {
		// Stopped or restarted while the scheduler was being built.
		m.mu.Unlock()
		_ = sched.Shutdown()
		return nil
	}
	m.sched = sched
	m.mu.Unlock()

	sched.Start()
	m.log.Debug("monitoring started", "interval", every)
	return nil
}

// Stop cancels future probes. A probe already in flight runs to completion
// and its result is discarded. Once Stop returns no further probe fires. It is idempotent.
func (m *Monitor) Stop() {
	m.mu.Lock()
	old := m.detachLocked()
	m.gen++
	m.mu.Unlock()

	if old.sched != nil {
		shutdown(old)
		m.log.Debug("monitoring stopped")
	}
}

// Close stops monitoring and discards every later probe result.
func (m *Monitor) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.Stop()
}

type schedule struct {
	sched gocron.Scheduler
}

// Must be called with mu held.
func (m *Monitor) detachLocked() schedule {
	old := schedule{sched: m.sched}
	m.sched = nil
	return old
}

func shutdown(s schedule) {
	if s.sched == nil {
		return
	}
	if err := s.sched.Shutdown(); err != nil && !errors.Is(err, gocron.ErrStopJobsTimedOut) {
		logger.Warn("monitor scheduler shutdown failed", "err", err)
	}
}

func (m *Monitor) tick(gen uint64) {
	m.mu.Lock()
	stale := m.closed || gen != m.gen
	m.mu.Unlock()
	if stale {
		return
	}
	info, err := m.prober.Health(context.Background())
	m.record(gen, true, info, err)
}

// record applies a probe outcome. Scheduled results from a stopped or
// replaced schedule are discarded, as is everything after Close.
func (m *Monitor) record(gen uint64, scheduled bool, info *backend.HealthInfo, err error) State {
	next := StateConnected
	if err != nil {
		next = StateDisconnected
	}

	m.mu.Lock()
	if m.closed || (scheduled && gen != m.gen) {
		cur := m.state
		m.mu.Unlock()
		m.log.Debug("probe result discarded", "state", next)
		return cur
	}
	prev := m.state
	m.state = next
	m.lastErr = err
	m.lastInfo = info
	m.lastProbe = time.Now()
	m.probes++
	m.mu.Unlock()

	if err != nil {
		m.log.Debug("probe failed", "err", err)
	} else {
		m.log.Debug("probe succeeded")
	}

	if prev != next {
		m.log.Info("connectivity changed", "from", prev, "to", next)
		if m.notices != nil {
			m.notices.Clear()
		}
		if m.bus != nil {
			m.bus.Emit(bus.EventConnectivityChanged, m.source, Change{From: prev, To: next, Err: err, Info: info})
		}
	}
	if next == StateDisconnected && m.notices != nil {
		m.notices.Set(notice.KindConnectivity, notice.TextCannotConnect)
	}
	return next
}
