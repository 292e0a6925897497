package channel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"sync"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linanwx/nagowidget/notice"
	"github.com/linanwx/nagowidget/transcript"
	"github.com/linanwx/nagowidget/widget"
)

type botCall struct {
	Method string
	ChatID string
	Text   string
}

type fakeBotAPI struct {
	*httptest.Server
	mu    sync.Mutex
	calls []botCall
}

func newFakeBotAPI(t *testing.T) *fakeBotAPI {
	t.Helper()
	f := &fakeBotAPI{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := path.Base(r.URL.Path)
		f.mu.Lock()
		f.calls = append(f.calls, botCall{
			Method: method,
			ChatID: r.FormValue("chat_id"),
			Text:   r.FormValue("text"),
		})
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch method {
		case "sendMessage":
			_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"}}}`))
		default:
			_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
		}
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeBotAPI) Calls() []botCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]botCall(nil), f.calls...)
}

func (f *fakeBotAPI) methods() []string {
	var out []string
	for _, c := range f.Calls() {
		out = append(out, c.Method)
	}
	return out
}

func newTestTelegram(t *testing.T, allowed ...int64) (*TelegramChannel, *fakeBotAPI) {
	t.Helper()
	api := newFakeBotAPI(t)
	tc := newTelegramChannel("123:abc", allowed)
	b, err := bot.New(tc.token, bot.WithServerURL(api.URL), bot.WithSkipGetMe())
	require.NoError(t, err)
	tc.b = b
	return tc, api
}

func TestTelegramSendSkipsUserEcho(t *testing.T) {
	tc, api := newTestTelegram(t)
	ctx := context.Background()

	require.NoError(t, tc.Send(ctx, &Response{Kind: KindMessage, ReplyTo: "42", Sender: transcript.SenderUser, Text: "Hello"}))
	require.NoError(t, tc.Send(ctx, &Response{Kind: KindMessage, ReplyTo: "42", Sender: transcript.SenderAssistant, Text: "Hi"}))

	calls := api.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "sendMessage", calls[0].Method)
	assert.Equal(t, "42", calls[0].ChatID)
	assert.Equal(t, "Hi", calls[0].Text)
}

func TestTelegramSendSplitsLongReplies(t *testing.T) {
	tc, api := newTestTelegram(t)

	long := strings.Repeat("a", TelegramMaxMessageLength) + " tail"
	require.NoError(t, tc.Send(context.Background(), &Response{Kind: KindMessage, ReplyTo: "42", Text: long}))

	calls := api.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "tail", calls[1].Text)
}

func TestTelegramSendState(t *testing.T) {
	tc, api := newTestTelegram(t)
	ctx := context.Background()
	cannot := notice.Notice{Kind: notice.KindConnectivity, Text: notice.TextCannotConnect}

	require.NoError(t, tc.Send(ctx, &Response{Kind: KindState, ReplyTo: "42", State: &widget.View{Pending: true}}))
	require.NoError(t, tc.Send(ctx, &Response{Kind: KindState, ReplyTo: "42", State: &widget.View{Notice: cannot}}))
	// unchanged notice is not repeated
	require.NoError(t, tc.Send(ctx, &Response{Kind: KindState, ReplyTo: "42", State: &widget.View{Notice: cannot}}))

	assert.Equal(t, []string{"sendChatAction", "sendMessage"}, api.methods())
	assert.Contains(t, api.Calls()[1].Text, notice.TextCannotConnect)
}

func TestTelegramSendRejectsBadChatID(t *testing.T) {
	tc, _ := newTestTelegram(t)
	err := tc.Send(context.Background(), &Response{Kind: KindNotice, ReplyTo: "nope", Text: "x"})
	require.Error(t, err)
}

func TestTelegramHandleUpdate(t *testing.T) {
	tc, api := newTestTelegram(t, 7)
	ctx := context.Background()

	update := func(fromID int64, text string) *models.Update {
		return &models.Update{Message: &models.Message{
			ID:   10,
			Text: text,
			Chat: models.Chat{ID: 42, Type: models.ChatTypePrivate},
			From: &models.User{ID: fromID, FirstName: "Ada", Username: "ada"},
		}}
	}

	tc.handleUpdate(ctx, tc.b, update(99, "intruder"))
	assert.Empty(t, tc.messages)

	tc.handleUpdate(ctx, tc.b, update(7, "Hello"))
	tc.handleUpdate(ctx, tc.b, update(7, "/health@assistant_bot"))
	require.Len(t, tc.messages, 2)

	msg := <-tc.messages
	assert.Equal(t, "telegram:42", msg.ChannelID)
	assert.Equal(t, "7", msg.UserID)
	assert.Equal(t, "Hello", msg.Text)
	assert.Equal(t, "42", msg.Metadata["chat_id"])
	assert.Equal(t, "Ada", msg.Metadata["first_name"])

	cmd := <-tc.messages
	assert.Equal(t, ActionHealth, cmd.Action)
	assert.Empty(t, cmd.Text)

	assert.Equal(t, []string{"setMessageReaction", "setMessageReaction"}, api.methods())
}

func TestTelegramHandleUpdateMediaOnly(t *testing.T) {
	tc, api := newTestTelegram(t)
	tc.handleUpdate(context.Background(), tc.b, &models.Update{Message: &models.Message{
		ID:      11,
		Chat:    models.Chat{ID: 42},
		Sticker: &models.Sticker{Emoji: "🙂"},
	}})

	assert.Empty(t, tc.messages)
	calls := api.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, telegramTextOnly, calls[0].Text)
}
