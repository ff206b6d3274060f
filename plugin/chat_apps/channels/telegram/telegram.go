// Package telegram implements the Telegram Bot channel.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf16"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/hrygo/captain/plugin/chat_apps"
	"github.com/hrygo/captain/plugin/chat_apps/channels"
)

const (
	DefaultPollTimeout = 10 // seconds a getUpdates call may hang
	MaxMessageLength   = 4096

	maxPollBackoff = 30 * time.Second
)

// TelegramConfig holds configuration for the Telegram channel.
type TelegramConfig struct {
	BotToken string

	// APIEndpoint overrides tgbotapi.APIEndpoint, e.g. for a local Bot API server.
	APIEndpoint string

	// PollTimeout is the long-poll timeout in seconds.
	PollTimeout int
}

// TelegramChannel implements ChatChannel for Telegram Bot API.
type TelegramChannel struct {
	bot         *tgbotapi.BotAPI
	config      *TelegramConfig
	pollTimeout int
}

// NewTelegramChannel creates a new Telegram channel. It verifies the token
// with getMe.
func NewTelegramChannel(config *TelegramConfig) (*TelegramChannel, error) {
	if config == nil || config.BotToken == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}

	endpoint := config.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	pollTimeout := config.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = DefaultPollTimeout
	}

	client := &http.Client{
		// Must outlive a long poll.
		Timeout: time.Duration(pollTimeout)*time.Second + 15*time.Second,
	}

	bot, err := tgbotapi.NewBotAPIWithClient(config.BotToken, endpoint, client)
	if err != nil {
		return nil, channels.ErrUnauthorized.Wrap(err)
	}

	slog.Info("telegram: authorized", "bot", bot.Self.UserName)

	return &TelegramChannel{
		bot:         bot,
		config:      config,
		pollTimeout: pollTimeout,
	}, nil
}

// Name returns the platform name.
func (t *TelegramChannel) Name() chat_apps.Platform {
	return chat_apps.PlatformTelegram
}

// BotName returns the bot's username.
func (t *TelegramChannel) BotName() string {
	return t.bot.Self.UserName
}

// Updates long-polls getUpdates and streams parsed messages. Poll errors are
// logged and retried with exponential backoff until ctx is done.
//
// GetUpdates does not take a context, so after ctx is canceled the channel
// closes only once the in-flight poll returns. That can take up to the poll
// timeout plus 15s of client slack.
func (t *TelegramChannel) Updates(ctx context.Context) <-chan *chat_apps.IncomingMessage {
	out := make(chan *chat_apps.IncomingMessage)

	go func() {
		defer close(out)

		offset := 0
		backoff := time.Second
		for ctx.Err() == nil {
			updates, err := t.bot.GetUpdates(tgbotapi.UpdateConfig{
				Offset:         offset,
				Timeout:        t.pollTimeout,
				AllowedUpdates: []string{"message"},
			})
			if err != nil {
				slog.Warn("telegram: failed to get updates, retrying",
					"error", channels.ErrPollFailed.Wrap(err),
					"backoff", backoff,
				)
				select {
				case <-ctx.Done():
					return
				case <-time.After(backoff):
				}
				backoff = min(backoff*2, maxPollBackoff)
				continue
			}
			backoff = time.Second

			for _, update := range updates {
				if update.UpdateID >= offset {
					offset = update.UpdateID + 1
				}
				msg, err := ParseUpdate(update)
				if err != nil {
					slog.Debug("telegram: skipping update", "update_id", update.UpdateID, "error", err)
					continue
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

// ParseUpdate converts a Telegram update into an IncomingMessage.
// Updates without a user-authored message yield ErrInvalidPayload.
func ParseUpdate(update tgbotapi.Update) (*chat_apps.IncomingMessage, error) {
	tgMsg := update.Message
	if tgMsg == nil || tgMsg.From == nil || tgMsg.Chat == nil {
		return nil, channels.ErrInvalidPayload
	}

	msg := &chat_apps.IncomingMessage{
		Platform:  chat_apps.PlatformTelegram,
		SenderID:  tgMsg.From.ID,
		ChatID:    tgMsg.Chat.ID,
		MessageID: tgMsg.MessageID,
		Content:   tgMsg.Text,
		Username:  tgMsg.From.UserName,
		Timestamp: tgMsg.Time(),
	}

	switch {
	case tgMsg.Text != "":
		msg.Type = chat_apps.MessageTypeText
		if tgMsg.IsCommand() {
			msg.Command = tgMsg.Command()
		}
	case len(tgMsg.Photo) > 0:
		msg.Type = chat_apps.MessageTypePhoto
	case tgMsg.Voice != nil, tgMsg.Audio != nil:
		msg.Type = chat_apps.MessageTypeAudio
	case tgMsg.Video != nil:
		msg.Type = chat_apps.MessageTypeVideo
	case tgMsg.Document != nil:
		msg.Type = chat_apps.MessageTypeDocument
	default:
		msg.Type = chat_apps.MessageTypeOther
	}

	return msg, nil
}

// SendMessage sends a text message to Telegram and returns its message ID.
func (t *TelegramChannel) SendMessage(ctx context.Context, msg *chat_apps.OutgoingMessage) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	slog.Debug("telegram: sending message",
		"chat_id", msg.ChatID,
		"reply_to", msg.ReplyToMessageID,
	)

	tgMsg := tgbotapi.NewMessage(msg.ChatID, clip(msg.Content))
	tgMsg.ReplyToMessageID = msg.ReplyToMessageID
	if msg.ParseMode != "" {
		tgMsg.ParseMode = msg.ParseMode
	}

	sent, err := t.bot.Send(tgMsg)
	if err != nil {
		slog.Error("telegram: failed to send message", "chat_id", msg.ChatID, "error", err)
		return 0, channels.ErrSendFailed.Wrap(err)
	}
	return sent.MessageID, nil
}

// EditMessage replaces the text of an earlier message.
func (t *TelegramChannel) EditMessage(ctx context.Context, chatID int64, messageID int, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := t.bot.Request(tgbotapi.NewEditMessageText(chatID, messageID, clip(text)))
	if err != nil {
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) {
			slog.Error("telegram: edit rejected", "chat_id", chatID, "message_id", messageID, "code", apiErr.Code, "error", apiErr.Message)
		}
		return channels.ErrEditFailed.Wrap(err)
	}
	return nil
}

// Close closes the Telegram channel.
func (t *TelegramChannel) Close() error {
	return nil
}

// clip keeps text within the Bot API message limit, which Telegram counts
// in UTF-16 code units.
func clip(text string) string {
	units := 0
	for i, r := range text {
		n := utf16.RuneLen(r)
		if n < 0 {
			n = 1
		}
		if units+n > MaxMessageLength {
			return text[:i]
		}
		units += n
	}
	return text
}

// Ensure TelegramChannel implements ChatChannel
var _ channels.ChatChannel = (*TelegramChannel)(nil)
