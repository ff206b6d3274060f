package main

import (
	"context"
	"log/slog"
	"os/signal"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/captain/internal/profile"
	"github.com/hrygo/captain/internal/version"
	"github.com/hrygo/captain/plugin/chat_apps/channels/telegram"
	"github.com/hrygo/captain/plugin/chat_apps/metrics"
	"github.com/hrygo/captain/plugin/chat_apps/relay"
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run the Telegram relay in front of the analysis service",
	RunE: func(cmd *cobra.Command, _ []string) error {
		allowed, err := profile.ParseAllowedUsers(viper.GetString("allowed-users"))
		if err != nil {
			return err
		}
		instanceProfile := &profile.Profile{
			Mode:           viper.GetString("mode"),
			LogLevel:       viper.GetString("log-level"),
			TelegramToken:  viper.GetString("telegram-token"),
			AnalyzeURL:     viper.GetString("analyze-url"),
			AllowedUsers:   allowed,
			MaxReplyLength: viper.GetInt("max-reply-length"),
			AnalyzeTimeout: viper.GetDuration("analyze-timeout"),
			RateLimit:      viper.GetInt("rate-limit"),
			Version:        version.GetCurrentVersion(viper.GetString("mode")),
		}
		if err := instanceProfile.ValidateRelay(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), terminationSignals...)
		defer stop()

		channel, err := telegram.NewTelegramChannel(&telegram.TelegramConfig{
			BotToken:    instanceProfile.TelegramToken,
			APIEndpoint: viper.GetString("telegram-api-endpoint"),
		})
		if err != nil {
			return errors.Wrap(err, "failed to connect to Telegram")
		}
		defer channel.Close()

		// Tasks sent while the relay was down are stale by now.
		if err := channel.DeleteWebhook(ctx, true); err != nil {
			return errors.Wrap(err, "failed to drop pending updates")
		}

		r := relay.New(channel, relay.NewAnalysisClient(instanceProfile.AnalyzeURL, instanceProfile.AnalyzeTimeout), relay.Config{
			AllowedUsers:   instanceProfile.AllowedUsers,
			MaxReplyLength: instanceProfile.MaxReplyLength,
			RateLimit:      instanceProfile.RateLimit,
		}, metrics.NewRegistry())

		slog.Info("captain relay starting",
			"version", instanceProfile.Version,
			"bot", channel.BotName(),
			"analyze_url", instanceProfile.AnalyzeURL,
		)
		if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		slog.Info("captain relay stopped properly")
		return nil
	},
}

func init() {
	relayCmd.Flags().String("telegram-token", "", "Telegram bot token")
	relayCmd.Flags().String("telegram-api-endpoint", "", "Bot API endpoint override, e.g. a local Bot API server")
	relayCmd.Flags().String("analyze-url", "http://localhost:5000/analyze", "URL of the analysis service endpoint")
	relayCmd.Flags().String("allowed-users", "", "comma separated Telegram user IDs allowed to send tasks")
	relayCmd.Flags().Int("max-reply-length", relay.DefaultMaxReplyLength, "maximum result length shown in chat, in characters")
	relayCmd.Flags().Duration("analyze-timeout", relay.DefaultAnalyzeTimeout, "timeout for one analysis request")
	relayCmd.Flags().Int("rate-limit", relay.DefaultRateLimit, "tasks per minute per user, 0 disables limiting")

	bindFlags(relayCmd, "telegram-token", "telegram-api-endpoint", "analyze-url", "allowed-users",
		"max-reply-length", "analyze-timeout", "rate-limit")
	bindEnvWithFallback("telegram-token", "CAPTAIN_TELEGRAM_TOKEN", "TELEGRAM_TOKEN")
	bindEnvWithFallback("allowed-users", "CAPTAIN_ALLOWED_USERS", "ALLOWED_USERS")
	bindEnvWithFallback("analyze-url", "CAPTAIN_API_URL", "CAPTAIN_ANALYZE_URL")
}
