// Package chat_apps provides chat platform integration for the captain relay.
// Supported platforms: Telegram.
package chat_apps

import "time"

// MessageType represents the type of message.
type MessageType int

const (
	MessageTypeText MessageType = iota
	MessageTypePhoto
	MessageTypeAudio
	MessageTypeVideo
	MessageTypeDocument
	MessageTypeOther
)

// String returns the string representation of MessageType.
func (m MessageType) String() string {
	switch m {
	case MessageTypeText:
		return "text"
	case MessageTypePhoto:
		return "photo"
	case MessageTypeAudio:
		return "audio"
	case MessageTypeVideo:
		return "video"
	case MessageTypeDocument:
		return "document"
	default:
		return "unknown"
	}
}

// Platform represents a supported chat platform.
type Platform string

const (
	PlatformTelegram Platform = "telegram"
)

// IncomingMessage represents a message from a chat platform.
type IncomingMessage struct {
	Platform  Platform    // Source platform
	SenderID  int64       // Platform user ID of the author
	ChatID    int64       // Conversation the message arrived in
	MessageID int         // Platform message ID, used for replies
	Type      MessageType // Message type
	Content   string      // Text content
	Command   string      // Bot command without the slash, empty for plain text
	Username  string
	Timestamp time.Time
}

// IsCommand reports whether the message is a bot command.
func (m *IncomingMessage) IsCommand() bool {
	return m.Command != ""
}

// OutgoingMessage represents a message to send to a chat platform.
type OutgoingMessage struct {
	ChatID           int64  // Destination chat ID
	Content          string // Text content
	ReplyToMessageID int    // Optional message to reply to
	ParseMode        string // Markdown/HTML parsing mode (optional)
}
