package channel

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/linanwx/nagowidget/config"
	"github.com/linanwx/nagowidget/logger"
	"github.com/linanwx/nagowidget/transcript"
)

const (
	telegramMessageBufferSize = 100
	TelegramMaxMessageLength  = 4096
)

// TelegramChannel implements the Channel interface for Telegram. Each chat
// gets its own session; the chat has no panel, so only messages, notices
// and the typing indicator are delivered.
type TelegramChannel struct {
	token      string
	allowedIDs map[int64]bool // Allowed user/chat IDs (nil = allow all)
	messages   chan *Message
	botOpts    []bot.Option

	b         *bot.Bot
	cancel    context.CancelFunc
	startDone chan struct{}
	stopOnce  sync.Once

	mu         sync.Mutex
	lastNotice map[int64]string
}

// NewTelegramChannel creates a new Telegram channel from config.
// Returns nil if no token is configured.
func NewTelegramChannel(cfg *config.Config) Channel {
	token := cfg.GetTelegramToken()
	if token == "" {
		logger.Warn("Telegram token not configured, skipping Telegram channel")
		return nil
	}
	return newTelegramChannel(token, cfg.GetTelegramAllowedIDs())
}

func newTelegramChannel(token string, allowed []int64, opts ...bot.Option) *TelegramChannel {
	allowedIDs := make(map[int64]bool)
	for _, id := range allowed {
		allowedIDs[id] = true
	}
	return &TelegramChannel{
		token:      token,
		allowedIDs: allowedIDs,
		messages:   make(chan *Message, telegramMessageBufferSize),
		botOpts:    opts,
		lastNotice: make(map[int64]string),
	}
}

// Name returns the channel name.
func (t *TelegramChannel) Name() string {
	return "telegram"
}

// Start begins polling for updates.
func (t *TelegramChannel) Start(ctx context.Context) error {
	opts := append([]bot.Option{
		bot.WithDefaultHandler(t.handleUpdate),
	}, t.botOpts...)

	b, err := bot.New(t.token, opts...)
	if err != nil {
		return fmt.Errorf("telegram bot creation failed: %w", err)
	}
	t.b = b

	me, err := b.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("telegram connection failed: %w", err)
	}
	logger.Info("telegram bot connected", "username", me.Username)

	startCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.startDone = make(chan struct{})

	go func() {
		defer close(t.startDone)
		t.b.Start(startCtx)
	}()

	logger.Info("telegram channel started")
	return nil
}

// Stop gracefully shuts down the channel.
func (t *TelegramChannel) Stop() error {
	t.stopOnce.Do(func() {
		if t.cancel != nil {
			t.cancel()
			<-t.startDone
		}
		close(t.messages)
		logger.Info("telegram channel stopped")
	})
	return nil
}

// Send delivers a response to the chat named by resp.ReplyTo. User echoes
// are skipped since Telegram already shows what the user typed.
func (t *TelegramChannel) Send(ctx context.Context, resp *Response) error {
	if t.b == nil {
		return fmt.Errorf("telegram bot not started")
	}

	chatID, err := strconv.ParseInt(resp.ReplyTo, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat ID: %w", err)
	}

	switch resp.Kind {
	case KindMessage:
		if resp.Sender == transcript.SenderUser {
			return nil
		}
		text := resp.Text
		if resp.Failed {
			text = "⚠️ " + text
		}
		return t.sendText(ctx, chatID, text)
	case KindNotice:
		return t.sendText(ctx, chatID, resp.Text)
	case KindState:
		return t.sendState(ctx, chatID, resp)
	}
	return nil
}

func (t *TelegramChannel) sendState(ctx context.Context, chatID int64, resp *Response) error {
	if resp.State == nil {
		return nil
	}

	if resp.State.Pending {
		if _, err := t.b.SendChatAction(ctx, &bot.SendChatActionParams{
			ChatID: chatID,
			Action: models.ChatActionTyping,
		}); err != nil {
			logger.Warn("telegram chat action failed", "chatID", chatID, "err", err)
		}
	}

	text := resp.State.Notice.Text
	t.mu.Lock()
	changed := t.lastNotice[chatID] != text
	t.lastNotice[chatID] = text
	t.mu.Unlock()

	if changed && text != "" {
		return t.sendText(ctx, chatID, "⚠️ "+text)
	}
	return nil
}

func (t *TelegramChannel) sendText(ctx context.Context, chatID int64, text string) error {
	for _, chunk := range SplitMessage(text, TelegramMaxMessageLength) {
		if _, err := t.b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   chunk,
		}); err != nil {
			return fmt.Errorf("telegram send error: %w", err)
		}
	}
	return nil
}

// Messages returns the incoming message channel.
func (t *TelegramChannel) Messages() <-chan *Message {
	return t.messages
}
