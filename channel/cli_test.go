package channel

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linanwx/nagowidget/monitor"
	"github.com/linanwx/nagowidget/notice"
	"github.com/linanwx/nagowidget/transcript"
	"github.com/linanwx/nagowidget/widget"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func receive(t *testing.T, ch Channel) *Message {
	t.Helper()
	select {
	case msg := <-ch.Messages():
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message from channel")
		return nil
	}
}

func TestPlainCLIRoundTrip(t *testing.T) {
	in, w := io.Pipe()
	out := &syncBuffer{}
	ch := NewCLIChannel(CLIConfig{In: in, Out: out})
	require.IsType(t, &plainCLIChannel{}, ch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, ch.Start(ctx))

	go func() { _, _ = io.WriteString(w, "Hello\n") }()
	msg := receive(t, ch)
	assert.Equal(t, "Hello", msg.Text)
	assert.Empty(t, msg.Action)
	assert.Equal(t, cliChannelID, msg.ChannelID)

	// the user echo does not release the prompt; the reply does
	require.NoError(t, ch.Send(ctx, &Response{Kind: KindMessage, Sender: transcript.SenderUser, Text: "Hello"}))
	require.NoError(t, ch.Send(ctx, &Response{Kind: KindMessage, Sender: transcript.SenderAssistant, Text: "Hi there"}))

	go func() { _, _ = io.WriteString(w, "/toggle\n") }()
	msg = receive(t, ch)
	assert.Equal(t, ActionToggle, msg.Action)
	assert.Empty(t, msg.Text)
	require.NoError(t, ch.Send(ctx, &Response{Kind: KindNotice, Text: "Panel is now open."}))

	go func() { _, _ = io.WriteString(w, "exit\n") }()
	assert.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte("Goodbye!"))
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, ch.Stop())
	require.NoError(t, ch.Stop())

	text := out.String()
	assert.Contains(t, text, "assistant> Hi there")
	assert.NotContains(t, text, "assistant> Hello")
	assert.Contains(t, text, "Panel is now open.")
}

func TestPlainCLIStateChanges(t *testing.T) {
	out := &syncBuffer{}
	ch := newPlainCLIChannel(CLIConfig{Prompt: "> ", In: &bytes.Buffer{}, Out: out})
	ctx := context.Background()

	offline := &widget.View{
		Connectivity: monitor.StateDisconnected,
		Notice:       notice.Notice{Kind: notice.KindConnectivity, Text: notice.TextCannotConnect},
	}
	require.NoError(t, ch.Send(ctx, &Response{Kind: KindState, State: offline}))
	require.NoError(t, ch.Send(ctx, &Response{Kind: KindState, State: offline}))
	require.NoError(t, ch.Send(ctx, &Response{Kind: KindState, State: &widget.View{Connectivity: monitor.StateConnected}}))
	require.NoError(t, ch.Send(ctx, &Response{Kind: KindMessage, Sender: transcript.SenderAssistant, Failed: true, Text: "Sorry"}))

	text := out.String()
	assert.Equal(t, 1, bytes.Count([]byte(text), []byte(notice.TextCannotConnect)))
	assert.Contains(t, text, "["+string(monitor.StateDisconnected)+"]")
	assert.Contains(t, text, "["+string(monitor.StateConnected)+"]")
	assert.Contains(t, text, "⚠ Sorry")
}
