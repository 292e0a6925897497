package bus

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/linanwx/nagowidget/logger"
)

// Handler is a function that handles events.
type Handler func(event *Event)

// Subscription represents a subscription to events.
type Subscription struct {
	ID        string
	EventType EventType // empty matches every type
	Handler   Handler
	seq       int64
}

// Bus delivers events to subscribers in publish order, one at a time, on a
// single dispatch goroutine.
type Bus struct {
	mu            sync.RWMutex
	subscriptions map[string]*Subscription
	subCounter    int64

	eventChan chan *Event
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewBus creates a new event bus.
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 256
	}

	b := &Bus{
		subscriptions: make(map[string]*Subscription),
		eventChan:     make(chan *Event, bufferSize),
		done:          make(chan struct{}),
	}

	b.wg.Add(1)
	go b.processEvents()

	return b
}

// Subscribe registers a handler for a specific event type.
func (b *Bus) Subscribe(eventType EventType, handler Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subCounter++
	id := uuid.NewString()

	b.subscriptions[id] = &Subscription{
		ID:        id,
		EventType: eventType,
		Handler:   handler,
		seq:       b.subCounter,
	}

	logger.Debug("subscription added", "id", id, "eventType", eventType)
	return id
}

// SubscribeAll registers a handler for every event type.
func (b *Bus) SubscribeAll(handler Handler) string {
	return b.Subscribe("", handler)
}

// Unsubscribe removes a subscription. Unknown ids are ignored.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	delete(b.subscriptions, id)
	b.mu.Unlock()
}

// Publish queues an event for delivery. When the buffer is full it blocks
// until the dispatcher catches up or the bus is closed, so it must not be
// called while holding a lock that a handler takes. Events published after
// Close are dropped.
func (b *Bus) Publish(event *Event) {
	if event == nil {
		return
	}
	select {
	case <-b.done:
		logger.Debug("bus closed, event dropped", "type", event.Type)
		return
	default:
	}

	select {
	case b.eventChan <- event:
	case <-b.done:
		logger.Debug("bus closed, event dropped", "type", event.Type)
	}
}

// Emit builds and publishes an event.
func (b *Bus) Emit(eventType EventType, source string, data any) {
	b.Publish(NewEvent(eventType, source, data))
}

// Close delivers queued events, then stops the dispatch goroutine.
// It is safe to call more than once.
func (b *Bus) Close() {
	b.closeOnce.Do(func() { close(b.done) })
	b.wg.Wait()
}

func (b *Bus) processEvents() {
	defer b.wg.Done()

	for {
		select {
		case event := <-b.eventChan:
			b.dispatch(event)
		case <-b.done:
			for {
				select {
				case event := <-b.eventChan:
					b.dispatch(event)
				default:
					return
				}
			}
		}
	}
}

// dispatch runs matching handlers in subscription order.
func (b *Bus) dispatch(event *Event) {
	b.mu.RLock()
	subs := make([]*Subscription, 0, len(b.subscriptions))
	for _, sub := range b.subscriptions {
		if sub.EventType == "" || sub.EventType == event.Type {
			subs = append(subs, sub)
		}
	}
	b.mu.RUnlock()

	sort.Slice(subs, func(i, j int) bool { return subs[i].seq < subs[j].seq })

	for _, sub := range subs {
		b.invoke(sub, event)
	}
}

func (b *Bus) invoke(sub *Subscription, event *Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("handler panic", "subscription", sub.ID, "type", event.Type, "panic", r)
		}
	}()
	sub.Handler(event)
}
