package telegram

import (
	"context"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// DeleteWebhook removes any webhook so getUpdates polling works, optionally
// discarding updates that queued up while the relay was down.
func (t *TelegramChannel) DeleteWebhook(ctx context.Context, dropPendingUpdates bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := t.bot.Request(tgbotapi.DeleteWebhookConfig{
		DropPendingUpdates: dropPendingUpdates,
	})
	if err != nil {
		return err
	}
	slog.Info("telegram: webhook removed", "drop_pending_updates", dropPendingUpdates)
	return nil
}
