package channels

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/nextlevelbuilder/chefbot/internal/bus"
)

// Manager manages all registered channels, handling their lifecycle
// and routing outbound messages to the correct channel.
type Manager struct {
	channels map[string]Channel
	mu       sync.RWMutex
}

// NewManager creates a new channel manager.
// Channels are registered externally via RegisterChannel.
func NewManager() *Manager {
	return &Manager{channels: make(map[string]Channel)}
}

// RegisterChannel adds a channel to the manager.
func (m *Manager) RegisterChannel(channel Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[channel.Name()] = channel
}

// GetChannel returns a channel by name.
func (m *Manager) GetChannel(name string) (Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	channel, ok := m.channels[name]
	return channel, ok
}

// GetEnabledChannels returns the names of all registered channels, sorted.
func (m *Manager) GetEnabledChannels() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StartAll starts every registered channel. The first failure is returned
// after already-started channels are stopped again.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.channels) == 0 {
		slog.Warn("no channels enabled")
		return nil
	}

	var started []Channel
	for name, channel := range m.channels {
		slog.Info("starting channel", "channel", name)
		if err := channel.Start(ctx); err != nil {
			for _, ch := range started {
				_ = ch.Stop(ctx)
			}
			return fmt.Errorf("start channel %s: %w", name, err)
		}
		started = append(started, channel)
	}

	slog.Info("all channels started")
	return nil
}

// StopAll gracefully stops all channels.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	slog.Info("stopping all channels")
	for name, channel := range m.channels {
		slog.Info("stopping channel", "channel", name)
		if err := channel.Stop(ctx); err != nil {
			slog.Error("error stopping channel", "channel", name, "error", err)
		}
	}
	return nil
}

// Send routes msg to the channel named by msg.Channel.
func (m *Manager) Send(ctx context.Context, msg bus.OutboundMessage) error {
	channel, ok := m.GetChannel(msg.Channel)
	if !ok {
		return fmt.Errorf("channel %s not found", msg.Channel)
	}
	return channel.Send(ctx, msg)
}

// StartTyping shows a typing indicator on the named channel if it supports
// one. The returned func is never nil.
func (m *Manager) StartTyping(channelName, chatID string) func() {
	channel, ok := m.GetChannel(channelName)
	if !ok {
		return func() {}
	}
	tc, ok := channel.(TypingChannel)
	if !ok {
		return func() {}
	}
	return tc.StartTyping(chatID)
}
