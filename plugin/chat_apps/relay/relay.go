// Package relay forwards chat messages from authorized operators to the
// analysis service and edits the answer back into the conversation.
package relay

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hrygo/captain/plugin/chat_apps"
	"github.com/hrygo/captain/plugin/chat_apps/channels"
	"github.com/hrygo/captain/plugin/chat_apps/metrics"
)

// User-facing texts.
const (
	DeniedMessage      = "⛔ Access denied"
	PlaceholderMessage = "⏳ Analyzing... (30-60 seconds)"
	ResultPrefix       = "✅ Result:\n\n"
	ErrorPrefix        = "❌ Error: "
	SlowDownMessage    = "🐢 Too many requests, please wait a minute before sending another task."
	GreetingMessage    = "🚀 *CaptainAgent is ready!*\n\n" +
		"Send me a task and the analysis team will work on it, for example:\n\n" +
		"`Analyze Bitcoin for today`\n\n" +
		"/stats shows relay statistics."
)

const (
	DefaultMaxReplyLength = 4000
	DefaultRateLimit      = 6
	DefaultMaxInFlight    = 8
)

// Config tunes a Relay. Zero values fall back to the defaults above, except
// RateLimit where zero disables limiting.
type Config struct {
	AllowedUsers   []int64
	MaxReplyLength int
	RateLimit      int // tasks per minute per sender
	MaxInFlight    int // concurrently handled messages
}

// Relay moves tasks between a chat channel and the analysis service.
type Relay struct {
	channel  channels.ChatChannel
	analyzer Analyzer
	allow    AllowList
	stats    *metrics.Registry

	maxReplyLength int
	rateLimit      int
	maxInFlight    int

	mu       sync.Mutex
	limiters map[int64]*rate.Limiter
}

// New creates a relay. stats may be nil, in which case a private registry
// is used.
func New(channel channels.ChatChannel, analyzer Analyzer, cfg Config, stats *metrics.Registry) *Relay {
	if stats == nil {
		stats = metrics.NewRegistry()
	}
	r := &Relay{
		channel:        channel,
		analyzer:       analyzer,
		allow:          NewAllowList(cfg.AllowedUsers),
		stats:          stats,
		maxReplyLength: cfg.MaxReplyLength,
		rateLimit:      cfg.RateLimit,
		maxInFlight:    cfg.MaxInFlight,
		limiters:       make(map[int64]*rate.Limiter),
	}
	if r.maxReplyLength <= 0 {
		r.maxReplyLength = DefaultMaxReplyLength
	}
	if r.maxInFlight <= 0 {
		r.maxInFlight = DefaultMaxInFlight
	}
	return r
}

// Run consumes channel updates until ctx is cancelled and the update stream
// closes. Messages already being handled are allowed to finish.
func (r *Relay) Run(ctx context.Context) error {
	slog.Info("relay started",
		"channel", r.channel.Name(),
		"allowed_users", r.allow.Len(),
		"max_in_flight", r.maxInFlight,
	)

	// Handlers outlive ctx so a shutdown does not leave placeholders unedited.
	handlerCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(r.maxInFlight)
	for msg := range r.channel.Updates(ctx) {
		g.Go(func() error {
			r.Handle(handlerCtx, msg)
			return nil
		})
	}
	err := g.Wait()

	slog.Info("relay stopped", "channel", r.channel.Name())
	return err
}

// Handle processes one inbound message.
func (r *Relay) Handle(ctx context.Context, msg *chat_apps.IncomingMessage) {
	if msg == nil || msg.Type != chat_apps.MessageTypeText || strings.TrimSpace(msg.Content) == "" {
		return
	}
	platform := string(msg.Platform)
	r.stats.RecordEvent(platform, metrics.EventMessageReceived, 0, "")

	logger := slog.With("chat_id", msg.ChatID, "sender_id", msg.SenderID, "message_id", msg.MessageID)

	if !r.allow.Allows(msg.SenderID) {
		logger.Warn("relay: access denied", "username", msg.Username)
		r.stats.RecordEvent(platform, metrics.EventAccessDenied, 0, "")
		r.reply(ctx, msg, DeniedMessage, "")
		return
	}

	if msg.IsCommand() {
		switch msg.Command {
		case "start", "help":
			r.reply(ctx, msg, GreetingMessage, "Markdown")
			return
		case "stats":
			r.reply(ctx, msg, r.stats.GetMetrics(platform).Format(), "")
			return
		}
	}

	if !r.allowRate(msg.SenderID) {
		logger.Info("relay: rate limited")
		r.stats.RecordEvent(platform, metrics.EventRateLimited, 0, "")
		r.reply(ctx, msg, SlowDownMessage, "")
		return
	}

	placeholderID, err := r.channel.SendMessage(ctx, &chat_apps.OutgoingMessage{
		ChatID:           msg.ChatID,
		Content:          PlaceholderMessage,
		ReplyToMessageID: msg.MessageID,
	})
	if err != nil {
		logger.Error("relay: failed to send placeholder", "error", err)
		r.stats.RecordEvent(platform, metrics.EventReplyError, 0, "placeholder not sent")
		return
	}

	start := time.Now()
	result, err := r.analyzer.Analyze(ctx, msg.Content)
	elapsed := time.Since(start)

	var text string
	if err != nil {
		category := userMessage(err)
		logger.Error("relay: analysis failed", "error", err, "duration_ms", elapsed.Milliseconds())
		r.stats.RecordEvent(platform, metrics.EventAnalysisError, elapsed, category)
		text = ErrorPrefix + category
	} else {
		logger.Info("relay: analysis complete", "duration_ms", elapsed.Milliseconds(), "result_length", len(result))
		r.stats.RecordEvent(platform, metrics.EventAnalysisComplete, elapsed, "")
		text = ResultPrefix + Truncate(result, r.maxReplyLength)
	}

	if err := r.channel.EditMessage(ctx, msg.ChatID, placeholderID, text); err != nil {
		logger.Error("relay: failed to edit placeholder, sending a new message", "error", err)
		r.stats.RecordEvent(platform, metrics.EventReplyError, 0, "placeholder not edited")
		r.reply(ctx, msg, text, "")
	}
}

func (r *Relay) reply(ctx context.Context, msg *chat_apps.IncomingMessage, text, parseMode string) {
	_, err := r.channel.SendMessage(ctx, &chat_apps.OutgoingMessage{
		ChatID:           msg.ChatID,
		Content:          text,
		ReplyToMessageID: msg.MessageID,
		ParseMode:        parseMode,
	})
	if err != nil {
		slog.Error("relay: failed to send reply", "chat_id", msg.ChatID, "error", err)
		r.stats.RecordEvent(string(msg.Platform), metrics.EventReplyError, 0, "reply not sent")
	}
}

func (r *Relay) allowRate(senderID int64) bool {
	if r.rateLimit <= 0 {
		return true
	}
	r.mu.Lock()
	limiter, ok := r.limiters[senderID]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(r.rateLimit)), r.rateLimit)
		r.limiters[senderID] = limiter
	}
	r.mu.Unlock()
	return limiter.Allow()
}

func userMessage(err error) string {
	var analysisErr *AnalysisError
	if errors.As(err, &analysisErr) {
		return analysisErr.UserMessage()
	}
	return "unexpected error"
}

// Truncate returns at most limit runes of s.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
