package cmd

import (
	"bytes"
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linanwx/nagowidget/config"
	"github.com/linanwx/nagowidget/internal/fakebackend"
	"github.com/linanwx/nagowidget/notice"
)

// setupAsk saves a config pointing at srv and returns the buffer runAsk
// writes to.
func setupAsk(t *testing.T, srv *fakebackend.Server, message string) *bytes.Buffer {
	t.Helper()
	config.SetConfigDir(t.TempDir())
	t.Cleanup(func() { config.SetConfigDir("") })
	require.NoError(t, testConfig(srv.URL).Save())

	prevMessage, prevUser, prevTimeout := askMessage, askUser, askTimeout
	askMessage, askUser, askTimeout = message, "", 5*time.Second
	t.Cleanup(func() { askMessage, askUser, askTimeout = prevMessage, prevUser, prevTimeout })

	var out bytes.Buffer
	askCmd.SetOut(&out)
	askCmd.SetContext(context.Background())
	t.Cleanup(func() { askCmd.SetOut(nil) })
	return &out
}

func TestAskPrintsReplyText(t *testing.T) {
	srv := fakebackend.New()
	t.Cleanup(srv.Close)
	srv.ReplyWith("Hi")
	out := setupAsk(t, srv, "Hello")

	require.NoError(t, runAsk(askCmd, nil))
	assert.Equal(t, "Hi\n", out.String())

	chats := srv.Chats()
	require.Len(t, chats, 1)
	assert.Equal(t, "Hello", chats[0].Message)
}

func TestAskFailsOnBackendError(t *testing.T) {
	srv := fakebackend.New()
	t.Cleanup(srv.Close)
	srv.SetChat(func(w http.ResponseWriter, _ *http.Request) {
		fakebackend.WriteJSON(w, http.StatusInternalServerError, map[string]string{"detail": "boom"})
	})
	out := setupAsk(t, srv, "Hello")

	err := runAsk(askCmd, nil)
	require.Error(t, err)
	assert.ErrorContains(t, err, notice.TextSendFailed)
	assert.Empty(t, out.String())
}

func TestAskFailsWhenBackendUnreachable(t *testing.T) {
	srv := fakebackend.New()
	t.Cleanup(srv.Close)
	srv.SetHealthStatus(http.StatusServiceUnavailable)
	out := setupAsk(t, srv, "Hello")

	err := runAsk(askCmd, nil)
	require.Error(t, err)
	assert.ErrorContains(t, err, notice.TextCannotConnect)
	assert.Empty(t, srv.Chats())
	assert.Empty(t, out.String())
}
