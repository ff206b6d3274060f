// Package channels provides the ChatChannel interface for chat platform integrations.
package channels

import (
	"context"

	"github.com/hrygo/captain/plugin/chat_apps"
)

// ChatChannel defines the interface for a chat platform integration.
type ChatChannel interface {
	// Name returns the platform name (e.g., "telegram").
	Name() chat_apps.Platform

	// Updates streams inbound messages until ctx is done, then closes the channel.
	Updates(ctx context.Context) <-chan *chat_apps.IncomingMessage

	// SendMessage sends a single message and returns its platform message ID.
	SendMessage(ctx context.Context, msg *chat_apps.OutgoingMessage) (int, error)

	// EditMessage replaces the text of a message sent earlier.
	EditMessage(ctx context.Context, chatID int64, messageID int, text string) error

	// Close closes any open connections and releases resources.
	Close() error
}

// Errors
var (
	ErrInvalidPayload = &ChannelError{Code: "INVALID_PAYLOAD", Message: "could not parse update payload"}
	ErrUnauthorized   = &ChannelError{Code: "UNAUTHORIZED", Message: "bot token rejected by platform"}
	ErrSendFailed     = &ChannelError{Code: "SEND_FAILED", Message: "failed to deliver message"}
	ErrEditFailed     = &ChannelError{Code: "EDIT_FAILED", Message: "failed to edit message"}
	ErrPollFailed     = &ChannelError{Code: "POLL_FAILED", Message: "failed to fetch updates"}
)

// ChannelError represents an error in channel operations.
type ChannelError struct {
	Code    string
	Message string
	Err     error
}

func (e *ChannelError) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Code + ": " + e.Message
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

// Is matches channel errors by code, so wrapped sentinels work with errors.Is.
func (e *ChannelError) Is(target error) bool {
	t, ok := target.(*ChannelError)
	return ok && t.Code == e.Code
}

// Wrap returns a copy of the sentinel carrying cause.
func (e *ChannelError) Wrap(cause error) *ChannelError {
	return &ChannelError{Code: e.Code, Message: e.Message, Err: cause}
}
