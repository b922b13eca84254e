package bus

import "github.com/nextlevelbuilder/chefbot/internal/sessions"

// InboundMessage represents a message received from a chat channel.
type InboundMessage struct {
	Channel    string            `json:"channel"`              // transport name, e.g. "discord"
	MessageID  string            `json:"message_id"`
	SenderID   string            `json:"sender_id"`
	SenderName string            `json:"sender_name,omitempty"`
	Mention    string            `json:"mention,omitempty"`    // platform mention markup, e.g. "<@123>"
	ChatID     string            `json:"chat_id"`              // origin channel/thread ID
	GuildID    string            `json:"guild_id,omitempty"`   // empty for DMs
	Content    string            `json:"content"`
	Roles      []string          `json:"roles,omitempty"`      // sender's role names in the guild
	Mentions   []string          `json:"mentions,omitempty"`   // user IDs mentioned in the message
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Scope returns the conversation scope the message belongs to.
func (m InboundMessage) Scope() sessions.Scope {
	return sessions.NewScope(m.Channel, m.GuildID, m.ChatID)
}

// IsDirect reports whether the message arrived outside a guild.
func (m InboundMessage) IsDirect() bool { return m.GuildID == "" }

// OutboundMessage represents a message to be sent to a channel.
type OutboundMessage struct {
	Channel  string            `json:"channel"`
	ChatID   string            `json:"chat_id"`
	Content  string            `json:"content"`
	ReplyTo  string            `json:"reply_to,omitempty"` // message ID to reply to
	Metadata map[string]string `json:"metadata,omitempty"` // channel-specific metadata
}
