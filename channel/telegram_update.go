package channel

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/linanwx/nagowidget/logger"
)

const telegramTextOnly = "I can only read text messages."

// handleUpdate is the default handler for incoming Telegram updates.
func (t *TelegramChannel) handleUpdate(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	msg := update.Message
	chat := msg.Chat
	from := msg.From

	fromID := int64(0)
	username := ""
	firstName := ""
	if from != nil {
		fromID = from.ID
		username = from.Username
		firstName = from.FirstName
	}

	if !t.allowed(chat.ID, fromID) {
		logger.Warn("telegram message from unauthorized user",
			"userID", fromID,
			"chatID", chat.ID,
			"username", username,
		)
		return
	}

	if msg.Text == "" {
		if hasMedia(msg) {
			_, _ = b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chat.ID, Text: telegramTextOnly})
		}
		return
	}

	// React with eyes emoji to acknowledge receipt (fire-and-forget)
	_, _ = b.SetMessageReaction(ctx, &bot.SetMessageReactionParams{
		ChatID:    chat.ID,
		MessageID: msg.ID,
		Reaction: []models.ReactionType{
			{
				Type: models.ReactionTypeTypeEmoji,
				ReactionTypeEmoji: &models.ReactionTypeEmoji{
					Type:  models.ReactionTypeTypeEmoji,
					Emoji: "\U0001F440",
				},
			},
		},
	})

	channelMsg := &Message{
		ID:        strconv.Itoa(msg.ID),
		ChannelID: fmt.Sprintf("telegram:%d", chat.ID),
		UserID:    strconv.FormatInt(fromID, 10),
		Username:  username,
		Text:      msg.Text,
		Metadata: map[string]string{
			"chat_id":    strconv.FormatInt(chat.ID, 10),
			"first_name": firstName,
		},
	}
	if action, ok := ParseCommand(msg.Text); ok {
		channelMsg.Action = action
		channelMsg.Text = ""
	}
	if msg.ReplyToMessage != nil {
		channelMsg.ReplyTo = strconv.Itoa(msg.ReplyToMessage.ID)
	}

	select {
	case t.messages <- channelMsg:
	default:
		logger.Warn("telegram message buffer full, dropping message")
	}
}

func (t *TelegramChannel) allowed(chatID, fromID int64) bool {
	if len(t.allowedIDs) == 0 {
		return true
	}
	return t.allowedIDs[chatID] || t.allowedIDs[fromID]
}

func hasMedia(msg *models.Message) bool {
	return len(msg.Photo) > 0 || msg.Animation != nil || msg.Document != nil ||
		msg.Voice != nil || msg.Video != nil || msg.VideoNote != nil ||
		msg.Audio != nil || msg.Sticker != nil
}
