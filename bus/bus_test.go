package bus

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []*Event
}

func (r *recorder) handle(e *Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func TestDeliversInPublishOrder(t *testing.T) {
	b := NewBus(0)
	rec := &recorder{}
	b.SubscribeAll(rec.handle)

	b.Emit(EventMessageAppended, "test", "a")
	b.Emit(EventExchangeStarted, "test", nil)
	b.Emit(EventExchangeFinished, "test", nil)
	b.Close()

	assert.Equal(t, []EventType{EventMessageAppended, EventExchangeStarted, EventExchangeFinished}, rec.types())
}

func TestSubscribeFiltersByType(t *testing.T) {
	b := NewBus(8)
	rec := &recorder{}
	b.Subscribe(EventPanelChanged, rec.handle)

	b.Emit(EventMessageAppended, "test", nil)
	b.Emit(EventPanelChanged, "test", "open")
	b.Close()

	require.Len(t, rec.events, 1)
	assert.Equal(t, "open", rec.events[0].Data)
	assert.Equal(t, "test", rec.events[0].Source)
	_, err := uuid.Parse(rec.events[0].ID)
	assert.NoError(t, err, "event ids are UUIDs")
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := NewBus(8)
	rec := &recorder{}
	id := b.SubscribeAll(rec.handle)
	other := b.Subscribe(EventFocusRequested, func(*Event) {})
	assert.NotEqual(t, id, other)
	_, err := uuid.Parse(id)
	assert.NoError(t, err)
	b.Unsubscribe(id)
	b.Unsubscribe(other)
	b.Unsubscribe("unknown")

	b.Emit(EventFocusRequested, "test", nil)
	b.Close()

	assert.Empty(t, rec.types())
}

func TestHandlerPanicDoesNotStopDispatch(t *testing.T) {
	b := NewBus(8)
	rec := &recorder{}
	b.SubscribeAll(func(*Event) { panic("boom") })
	b.SubscribeAll(rec.handle)

	b.Emit(EventNoticeChanged, "test", nil)
	b.Emit(EventNoticeChanged, "test", nil)
	b.Close()

	assert.Len(t, rec.types(), 2)
}

func TestPublishAfterCloseIsDropped(t *testing.T) {
	b := NewBus(8)
	rec := &recorder{}
	b.SubscribeAll(rec.handle)
	b.Close()
	b.Close()

	b.Emit(EventMessageAppended, "test", nil)
	b.Publish(nil)

	assert.Empty(t, rec.types())
}

func TestPublishWaitsForFullBuffer(t *testing.T) {
	b := NewBus(2)
	gate := make(chan struct{})
	var once sync.Once
	var mu sync.Mutex
	var got []int
	b.SubscribeAll(func(e *Event) {
		once.Do(func() { <-gate })
		mu.Lock()
		got = append(got, e.Data.(int))
		mu.Unlock()
	})

	const n = 20
	published := make(chan struct{})
	go func() {
		for i := 0; i < n; i++ {
			b.Emit(EventMessageAppended, "test", i)
		}
		close(published)
	}()

	select {
	case <-published:
		t.Fatal("publisher did not wait for the stalled handler")
	case <-time.After(50 * time.Millisecond):
	}
	close(gate)
	<-published
	b.Close()

	want := make([]int, n)
	for i := range want {
		want[i] = i
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, want, got, "nothing is dropped")
}
