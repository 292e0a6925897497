package exchange

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linanwx/nagowidget/backend"
	"github.com/linanwx/nagowidget/bus"
	"github.com/linanwx/nagowidget/internal/fakebackend"
	"github.com/linanwx/nagowidget/notice"
	"github.com/linanwx/nagowidget/transcript"
)

type fixedConn struct{ up atomic.Bool }

func (c *fixedConn) Connected() bool { return c.up.Load() }

func connected() *fixedConn {
	c := &fixedConn{}
	c.up.Store(true)
	return c
}

// gatedChat blocks every call until release is closed.
type gatedChat struct {
	release chan struct{}
	calls   atomic.Int32
	reply   string
	err     error
}

func (g *gatedChat) Chat(ctx context.Context, _, _ string) (string, error) {
	g.calls.Add(1)
	select {
	case <-g.release:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return g.reply, g.err
}

func newController(t *testing.T, chat Chatter, conn Connectivity, cfg Config) (*Controller, *transcript.Transcript) {
	t.Helper()
	tr := transcript.New()
	c := New(chat, conn, tr, cfg)
	t.Cleanup(c.Close)
	return c, tr
}

func TestSuccessfulExchange(t *testing.T) {
	srv := fakebackend.New()
	defer srv.Close()
	srv.ReplyWith("Hi")

	client := backend.NewClient(backend.Config{BaseURL: srv.URL})
	c, tr := newController(t, client, connected(), Config{UserID: "u1"})

	assert.False(t, c.Pending())
	res, err := c.Send("Hello")
	require.NoError(t, err)

	r := <-res
	require.NoError(t, r.Err)
	assert.False(t, c.Pending())

	msgs := tr.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, transcript.SenderUser, msgs[0].Sender)
	assert.Equal(t, "Hello", msgs[0].Text)
	assert.Equal(t, transcript.SenderAssistant, msgs[1].Sender)
	assert.Equal(t, "Hi", msgs[1].Text)
	assert.Equal(t, transcript.StatusOK, msgs[1].Status)
	assert.Equal(t, msgs[1], r.Reply)
	assert.Equal(t, []fakebackend.ChatRequest{{Message: "Hello", UserID: "u1"}}, srv.Chats())
}

func TestServerErrorAppendsApology(t *testing.T) {
	srv := fakebackend.New()
	defer srv.Close()
	srv.SetChat(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusInternalServerError) })

	board := notice.NewBoard(nil)
	client := backend.NewClient(backend.Config{BaseURL: srv.URL})
	c, tr := newController(t, client, connected(), Config{UserID: "u1", Notices: board})

	res, err := c.Send("Hello")
	require.NoError(t, err)
	r := <-res
	require.Error(t, r.Err)
	assert.True(t, backend.IsType(r.Err, backend.ErrTypeStatus))

	msgs := tr.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Hello", msgs[0].Text)
	assert.Equal(t, transcript.StatusOK, msgs[0].Status, "user message is never marked failed")
	assert.Equal(t, ApologyText, msgs[1].Text)
	assert.Equal(t, transcript.StatusFailed, msgs[1].Status)
	assert.Equal(t, notice.Notice{Kind: notice.KindExchange, Text: notice.TextSendFailed}, board.Current())
	assert.False(t, c.Pending())
}

func TestRejectionsLeaveTranscriptUnchanged(t *testing.T) {
	down := &fixedConn{}
	tests := []struct {
		name string
		conn Connectivity
		text string
		want error
	}{
		{name: "empty", conn: connected(), text: "", want: ErrEmptyText},
		{name: "whitespace", conn: connected(), text: " \t\n ", want: ErrEmptyText},
		{name: "too long", conn: connected(), text: strings.Repeat("a", 11), want: ErrTextTooLong},
		{name: "disconnected", conn: down, text: "hi", want: ErrNotConnected},
		{name: "no connectivity source", conn: nil, text: "hi", want: ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chat := &gatedChat{release: make(chan struct{})}
			c, tr := newController(t, chat, tt.conn, Config{MaxLength: 10})

			res, err := c.Send(tt.text)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, res)
			assert.Zero(t, tr.Len())
			assert.Zero(t, chat.calls.Load())
			assert.ErrorIs(t, c.Check(tt.text), tt.want)
		})
	}
}

func TestLengthCountsCharacters(t *testing.T) {
	chat := &gatedChat{release: make(chan struct{}), reply: "ok"}
	close(chat.release)
	c, tr := newController(t, chat, connected(), Config{MaxLength: 3})

	// Four characters, eight bytes.
	assert.ErrorIs(t, c.Check("éééé"), ErrTextTooLong)
	res, err := c.Send("éééé")
	assert.ErrorIs(t, err, ErrTextTooLong)
	assert.Nil(t, res)
	assert.Zero(t, tr.Len())
	assert.Zero(t, chat.calls.Load())

	// Three characters, five bytes, surrounding space trimmed.
	res, err = c.Send("  héé  ")
	require.NoError(t, err)
	<-res
	require.Equal(t, 2, tr.Len())
	assert.Equal(t, "héé", tr.Messages()[0].Text)
}

func TestSecondSendWhilePendingIsRejected(t *testing.T) {
	chat := &gatedChat{release: make(chan struct{}), reply: "first"}
	c, tr := newController(t, chat, connected(), Config{})

	res, err := c.Send("one")
	require.NoError(t, err)
	assert.True(t, c.Pending())
	assert.False(t, c.CanSend())

	_, err = c.Send("two")
	assert.ErrorIs(t, err, ErrExchangePending)
	assert.Equal(t, 1, tr.Len())

	close(chat.release)
	<-res
	assert.False(t, c.Pending())
	assert.True(t, c.CanSend())

	msgs := tr.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "one", msgs[0].Text)
	assert.Equal(t, "first", msgs[1].Text)
}

func TestLateReplyAfterCloseIsDiscarded(t *testing.T) {
	chat := &gatedChat{release: make(chan struct{}), reply: "late"}
	c, tr := newController(t, chat, connected(), Config{})

	res, err := c.Send("hello")
	require.NoError(t, err)
	c.Close()
	c.Close()

	select {
	case <-res:
		t.Fatal("close must not abort the request in flight")
	case <-time.After(30 * time.Millisecond):
	}
	close(chat.release)

	r := <-res
	assert.True(t, r.Discarded)
	assert.NoError(t, r.Err, "the request ran to completion")
	assert.Equal(t, int32(1), chat.calls.Load())
	assert.Equal(t, 1, tr.Len(), "only the echo remains")
	c.Wait()

	_, err = c.Send("again")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestTimeoutIsAFailure(t *testing.T) {
	chat := &gatedChat{release: make(chan struct{})}
	c, tr := newController(t, chat, connected(), Config{Timeout: 20 * time.Millisecond})

	res, err := c.Send("hello")
	require.NoError(t, err)
	r := <-res
	assert.ErrorIs(t, r.Err, context.DeadlineExceeded)
	last, ok := tr.Last()
	require.True(t, ok)
	assert.True(t, last.Failed())
}

func TestEventsAreOrdered(t *testing.T) {
	b := bus.NewBus(16)
	var mu sync.Mutex
	var seen []bus.EventType
	b.SubscribeAll(func(e *bus.Event) {
		mu.Lock()
		seen = append(seen, e.Type)
		mu.Unlock()
	})

	chat := &gatedChat{release: make(chan struct{}), reply: "Hi"}
	close(chat.release)
	c, _ := newController(t, chat, connected(), Config{Bus: b})

	res, err := c.Send("Hello")
	require.NoError(t, err)
	<-res
	b.Close()

	assert.Equal(t, []bus.EventType{bus.EventExchangeStarted, bus.EventExchangeFinished}, seen)
}

func TestConcurrentSendsAcceptExactlyOne(t *testing.T) {
	chat := &gatedChat{release: make(chan struct{}), reply: "ok"}
	c, tr := newController(t, chat, connected(), Config{})

	var accepted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Send("hi"); err == nil {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, accepted.Load())
	assert.Equal(t, 1, tr.Len())

	close(chat.release)
	c.Wait()
	assert.Equal(t, 2, tr.Len())
}

func TestStalledBusHandlerCanReadState(t *testing.T) {
	b := bus.NewBus(1)
	chat := &gatedChat{release: make(chan struct{}), reply: "Hi"}
	close(chat.release)
	c, tr := newController(t, chat, connected(), Config{})
	tr.OnAppend(func(m transcript.Message) { b.Emit(bus.EventMessageAppended, "test", m) })

	gate := make(chan struct{})
	var once sync.Once
	var reads atomic.Int32
	b.SubscribeAll(func(*bus.Event) {
		once.Do(func() { <-gate })
		c.Pending()
		c.CanSend()
		reads.Add(1)
	})

	// One event held by the stalled handler, one filling the buffer.
	b.Emit(bus.EventNoticeChanged, "test", nil)
	b.Emit(bus.EventNoticeChanged, "test", nil)

	results := make(chan (<-chan Result), 1)
	go func() {
		res, err := c.Send("Hello")
		assert.NoError(t, err)
		results <- res
	}()
	time.Sleep(20 * time.Millisecond)
	close(gate)

	select {
	case res := <-results:
		r := <-res
		require.NoError(t, r.Err)
	case <-time.After(2 * time.Second):
		t.Fatal("send deadlocked against a bus handler")
	}
	b.Close()
	assert.Equal(t, 2, tr.Len())
	assert.EqualValues(t, 4, reads.Load())
}
