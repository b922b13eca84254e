// Package channels provides the channel abstraction layer between chat
// platforms and the command dispatcher.
//
// A channel turns platform events into bus.InboundMessage values for an
// InboundHandler and delivers bus.OutboundMessage values back.
package channels

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/nextlevelbuilder/chefbot/internal/bus"
)

// DMPolicy controls how DMs from unknown senders are handled.
type DMPolicy string

const (
	DMPolicyAllowlist DMPolicy = "allowlist" // Only whitelisted senders
	DMPolicyOpen      DMPolicy = "open"      // Accept all
	DMPolicyDisabled  DMPolicy = "disabled"  // Reject all DMs
)

// InboundHandler receives every accepted inbound message. Channels call it
// from their own event goroutine.
type InboundHandler func(ctx context.Context, msg bus.InboundMessage)

// Channel defines the interface that all channel implementations must satisfy.
type Channel interface {
	// Name returns the channel identifier (e.g. "discord").
	Name() string

	// Start begins listening for messages. Should be non-blocking after setup.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the channel.
	Stop(ctx context.Context) error

	// Send delivers an outbound message to the channel.
	Send(ctx context.Context, msg bus.OutboundMessage) error

	// IsRunning returns whether the channel is actively processing messages.
	IsRunning() bool

	// IsAllowed checks if a sender is permitted by the channel's allowlist.
	IsAllowed(senderID string) bool
}

// TypingChannel is implemented by channels that can show a typing indicator.
type TypingChannel interface {
	Channel
	StartTyping(chatID string) (stop func())
}

// BaseChannel provides shared functionality for all channel implementations.
// Channel implementations should embed this struct.
type BaseChannel struct {
	name      string
	handler   InboundHandler
	running   atomic.Bool
	allowList []string
}

// NewBaseChannel creates a new BaseChannel with the given parameters.
func NewBaseChannel(name string, handler InboundHandler, allowList []string) *BaseChannel {
	return &BaseChannel{
		name:      name,
		handler:   handler,
		allowList: allowList,
	}
}

// Name returns the channel name.
func (c *BaseChannel) Name() string { return c.name }

// IsRunning returns whether the channel is running.
func (c *BaseChannel) IsRunning() bool { return c.running.Load() }

// SetRunning updates the running state.
func (c *BaseChannel) SetRunning(running bool) { c.running.Store(running) }

// HasAllowList returns true if an allowlist is configured (non-empty).
func (c *BaseChannel) HasAllowList() bool { return len(c.allowList) > 0 }

// IsAllowed checks if a sender is permitted by the allowlist.
// Entries may be a user ID or "@username"; senderID may be the compound
// form "123456|username". Empty allowlist means all senders are allowed.
func (c *BaseChannel) IsAllowed(senderID string) bool {
	if len(c.allowList) == 0 {
		return true
	}

	idPart, userPart, _ := strings.Cut(senderID, "|")

	for _, allowed := range c.allowList {
		trimmed := strings.TrimPrefix(allowed, "@")
		if senderID == allowed || idPart == trimmed || (userPart != "" && userPart == trimmed) {
			return true
		}
	}
	return false
}

// CheckDMPolicy evaluates the DM policy for a sender.
// Returns true if the message should be accepted.
func (c *BaseChannel) CheckDMPolicy(policy DMPolicy, senderID string) bool {
	switch policy {
	case DMPolicyDisabled:
		return false
	case DMPolicyAllowlist:
		return c.IsAllowed(senderID)
	default: // open
		return true
	}
}

// HandleMessage stamps the channel name on msg and hands it to the
// inbound handler if the sender passes the allowlist.
func (c *BaseChannel) HandleMessage(ctx context.Context, msg bus.InboundMessage) bool {
	if !c.IsAllowed(msg.SenderID) || c.handler == nil {
		return false
	}
	msg.Channel = c.name
	c.handler(ctx, msg)
	return true
}

// Truncate shortens a string to maxLen runes, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
