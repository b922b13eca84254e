package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/nextlevelbuilder/chefbot/internal/delivery"
	"github.com/nextlevelbuilder/chefbot/internal/store"
)

// threadArchiveMinutes is the auto-archive duration for created threads.
const threadArchiveMinutes = 1440

// threadAPI is the subset of *discordgo.Session the binder uses.
type threadAPI interface {
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	GuildThreadsActive(guildID string, options ...discordgo.RequestOption) (*discordgo.ThreadsList, error)
	ThreadStart(channelID, name string, typ discordgo.ChannelType, archiveDuration int, options ...discordgo.RequestOption) (*discordgo.Channel, error)
}

// Binder picks the channel answers are delivered to. Guild text channels
// get one shared, named thread each; DMs and threads are used as they are.
type Binder struct {
	api        threadAPI
	state      *discordgo.State // optional cache, consulted before the API
	threadName string
	bindings   store.BindingStore // optional
}

// NewBinder creates a binder. state and bindings may be nil.
func NewBinder(api threadAPI, state *discordgo.State, threadName string, bindings store.BindingStore) *Binder {
	return &Binder{api: api, state: state, threadName: threadName, bindings: bindings}
}

// Bind returns the delivery channel ID for a surface.
func (b *Binder) Bind(ctx context.Context, s delivery.Surface) (string, error) {
	if s.GuildID == "" {
		return s.ChatID, nil
	}

	origin, err := b.channel(s.ChatID)
	if err != nil {
		return "", fmt.Errorf("look up channel %s: %w", s.ChatID, err)
	}
	if origin.IsThread() || origin.Type == discordgo.ChannelTypeDM || origin.Type == discordgo.ChannelTypeGroupDM {
		return origin.ID, nil
	}

	if id, ok := b.cached(ctx, s.ChatID); ok {
		return id, nil
	}

	if thread := b.findActive(s.GuildID, s.ChatID); thread != nil {
		b.remember(ctx, s.ChatID, thread.ID)
		return thread.ID, nil
	}

	thread, err := b.api.ThreadStart(s.ChatID, b.threadName, discordgo.ChannelTypeGuildPublicThread, threadArchiveMinutes)
	if err != nil {
		return "", fmt.Errorf("create thread %q in %s: %w", b.threadName, s.ChatID, err)
	}
	slog.Info("discord: created shared thread", "channel_id", s.ChatID, "thread_id", thread.ID, "name", b.threadName)
	b.remember(ctx, s.ChatID, thread.ID)
	return thread.ID, nil
}

// cached returns a stored binding if the thread still exists and is open.
func (b *Binder) cached(ctx context.Context, surfaceID string) (string, bool) {
	if b.bindings == nil {
		return "", false
	}
	id, err := b.bindings.GetBinding(ctx, surfaceID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.Warn("discord: binding lookup failed", "channel_id", surfaceID, "error", err)
		}
		return "", false
	}
	if ch, err := b.channel(id); err == nil && b.usable(ch, surfaceID) {
		return id, true
	}
	slog.Debug("discord: dropping stale binding", "channel_id", surfaceID, "thread_id", id)
	if err := b.bindings.DeleteBinding(ctx, surfaceID); err != nil {
		slog.Warn("discord: binding delete failed", "channel_id", surfaceID, "error", err)
	}
	return "", false
}

func (b *Binder) remember(ctx context.Context, surfaceID, threadID string) {
	if b.bindings == nil {
		return
	}
	if err := b.bindings.PutBinding(ctx, surfaceID, threadID); err != nil {
		slog.Warn("discord: binding save failed", "channel_id", surfaceID, "error", err)
	}
}

// findActive looks for the shared thread among the guild's active threads,
// first in the state cache and then through the API.
func (b *Binder) findActive(guildID, parentID string) *discordgo.Channel {
	if b.state != nil {
		if g, err := b.state.Guild(guildID); err == nil {
			b.state.RLock()
			found := b.pick(g.Threads, parentID)
			b.state.RUnlock()
			if found != nil {
				return found
			}
		}
	}

	list, err := b.api.GuildThreadsActive(guildID)
	if err != nil {
		slog.Warn("discord: list active threads failed", "guild_id", guildID, "error", err)
		return nil
	}
	return b.pick(list.Threads, parentID)
}

func (b *Binder) pick(threads []*discordgo.Channel, parentID string) *discordgo.Channel {
	for _, t := range threads {
		if b.usable(t, parentID) {
			return t
		}
	}
	return nil
}

func (b *Binder) usable(ch *discordgo.Channel, parentID string) bool {
	if ch == nil || !ch.IsThread() || ch.ParentID != parentID || ch.Name != b.threadName {
		return false
	}
	return ch.ThreadMetadata == nil || !ch.ThreadMetadata.Archived
}

func (b *Binder) channel(id string) (*discordgo.Channel, error) {
	if b.state != nil {
		if ch, err := b.state.Channel(id); err == nil {
			return ch, nil
		}
	}
	return b.api.Channel(id)
}

var _ delivery.Binder = (*Binder)(nil)
