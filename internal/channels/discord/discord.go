// Package discord connects the bot to Discord through the gateway and
// REST API, and implements the thread binder and guild role operations.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/nextlevelbuilder/chefbot/internal/bus"
	"github.com/nextlevelbuilder/chefbot/internal/channels"
	"github.com/nextlevelbuilder/chefbot/internal/channels/typing"
	"github.com/nextlevelbuilder/chefbot/internal/chunk"
	"github.com/nextlevelbuilder/chefbot/internal/config"
	"github.com/nextlevelbuilder/chefbot/internal/sessions"
)

const (
	// Discord typing expires after 10s, so keepalive every 9s.
	typingKeepalive = 9 * time.Second
	// typingTTL bounds an indicator to the agent's own run timeout.
	typingTTL = 10 * time.Minute
)

// WelcomeText is DMed to members joining a guild.
const WelcomeText = "Welcome to the server, %s!"

// Channel connects to Discord via the Bot API using gateway events.
type Channel struct {
	*channels.BaseChannel
	session     *discordgo.Session
	api         guildAPI
	config      config.DiscordConfig
	botUserID   string // populated on start
	typingCtrls sync.Map // channelID string → *typing.Controller
}

// New creates a new Discord channel from config. Accepted messages are
// passed to handler.
func New(cfg config.DiscordConfig, handler channels.InboundHandler) (*Channel, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent |
		discordgo.IntentsGuildMembers

	return &Channel{
		BaseChannel: channels.NewBaseChannel(sessions.PlatformDiscord, handler, cfg.AllowFrom),
		session:     session,
		api:         session,
		config:      cfg,
	}, nil
}

// Session exposes the underlying session, e.g. to build a Binder.
func (c *Channel) Session() *discordgo.Session { return c.session }

// Start opens the Discord gateway connection and begins receiving events.
func (c *Channel) Start(_ context.Context) error {
	slog.Info("starting discord bot")

	c.session.AddHandler(c.handleMessage)
	c.session.AddHandler(c.handleMemberJoin)

	if err := c.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}

	user, err := c.session.User("@me")
	if err != nil {
		c.session.Close()
		return fmt.Errorf("fetch discord bot identity: %w", err)
	}
	c.botUserID = user.ID

	c.SetRunning(true)
	slog.Info("discord bot connected", "username", user.Username, "id", user.ID)
	return nil
}

// Stop closes the Discord gateway connection.
func (c *Channel) Stop(_ context.Context) error {
	slog.Info("stopping discord bot")
	c.SetRunning(false)
	c.typingCtrls.Range(func(key, val any) bool {
		val.(*typing.Controller).Stop()
		c.typingCtrls.Delete(key)
		return true
	})
	return c.session.Close()
}

// Send delivers an outbound message to a Discord channel. Content over the
// message limit is split on line boundaries.
func (c *Channel) Send(_ context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("discord bot not running")
	}

	channelID := msg.ChatID
	if channelID == "" {
		return fmt.Errorf("empty chat ID for discord send")
	}
	if msg.Content == "" {
		return fmt.Errorf("empty content for discord send")
	}

	c.stopTyping(channelID)

	parts := []string{msg.Content}
	if chunk.Len(msg.Content) > chunk.DefaultMaxLength {
		parts = chunk.Split(msg.Content, chunk.DefaultMaxLength)
	}
	for i, part := range parts {
		var err error
		if i == 0 && msg.ReplyTo != "" {
			_, err = c.session.ChannelMessageSendReply(channelID, part, &discordgo.MessageReference{
				MessageID: msg.ReplyTo,
				ChannelID: channelID,
			})
		} else {
			_, err = c.session.ChannelMessageSend(channelID, part)
		}
		if err != nil {
			return fmt.Errorf("send discord message: %w", err)
		}
	}
	return nil
}

// StartTyping shows the typing indicator in chatID until the returned func
// is called or the next message is sent there.
func (c *Channel) StartTyping(chatID string) func() {
	ctrl := typing.New(typing.Options{
		MaxDuration:       typingTTL,
		KeepaliveInterval: typingKeepalive,
		StartFn: func() error {
			return c.session.ChannelTyping(chatID)
		},
	})
	if prev, ok := c.typingCtrls.Swap(chatID, ctrl); ok {
		prev.(*typing.Controller).Stop()
	}
	ctrl.Start()
	return func() {
		ctrl.Stop()
		c.typingCtrls.CompareAndDelete(chatID, ctrl)
	}
}

func (c *Channel) stopTyping(chatID string) {
	if ctrl, ok := c.typingCtrls.LoadAndDelete(chatID); ok {
		ctrl.(*typing.Controller).Stop()
	}
}

// handleMessage processes incoming Discord messages.
func (c *Channel) handleMessage(_ *discordgo.Session, m *discordgo.MessageCreate) {
	defer recoverHandler("message_create")

	if m.Author == nil || m.Author.ID == c.botUserID || m.Author.Bot {
		return
	}

	senderID := m.Author.ID
	isDM := m.GuildID == ""

	if isDM && !c.CheckDMPolicy(channels.DMPolicy(c.config.DMPolicy), senderID) {
		slog.Debug("discord DM rejected by policy", "sender_id", senderID)
		return
	}

	for _, att := range m.Attachments {
		slog.Info("discord attachment received",
			"message_id", m.ID,
			"sender_id", senderID,
			"filename", att.Filename,
			"content_type", att.ContentType,
			"size", att.Size,
			"url", att.URL,
		)
	}

	mentions := make([]string, 0, len(m.Mentions))
	for _, u := range m.Mentions {
		mentions = append(mentions, u.ID)
	}

	var roles []string
	if !isDM && m.Member != nil {
		roles = c.roleNames(m.GuildID, m.Member.Roles)
	}

	slog.Debug("discord message received",
		"sender_id", senderID,
		"channel_id", m.ChannelID,
		"is_dm", isDM,
		"preview", channels.Truncate(m.Content, 50),
	)

	c.HandleMessage(context.Background(), bus.InboundMessage{
		MessageID:  m.ID,
		SenderID:   senderID,
		SenderName: resolveDisplayName(m),
		Mention:    m.Author.Mention(),
		ChatID:     m.ChannelID,
		GuildID:    m.GuildID,
		Content:    m.Content,
		Roles:      roles,
		Mentions:   mentions,
		Metadata: map[string]string{
			"username": m.Author.Username,
		},
	})
}

// handleMemberJoin DMs a welcome to new guild members.
func (c *Channel) handleMemberJoin(_ *discordgo.Session, m *discordgo.GuildMemberAdd) {
	defer recoverHandler("guild_member_add")

	if m.Member == nil || m.User == nil || m.User.Bot {
		return
	}
	if err := c.SendDM(context.Background(), m.User.ID, fmt.Sprintf(WelcomeText, m.User.Username)); err != nil {
		slog.Warn("discord welcome DM failed", "user_id", m.User.ID, "guild_id", m.GuildID, "error", err)
		return
	}
	slog.Info("discord welcome DM sent", "user_id", m.User.ID, "guild_id", m.GuildID)
}

// recoverHandler keeps a panicking event handler from taking the process down.
func recoverHandler(event string) {
	if r := recover(); r != nil {
		slog.Error("discord handler panic", "event", event, "panic", r, "stack", string(debug.Stack()))
	}
}

// resolveDisplayName returns the best available display name for a Discord message author.
// Priority: server nickname > global display name > username.
func resolveDisplayName(m *discordgo.MessageCreate) string {
	if m.Member != nil && m.Member.Nick != "" {
		return m.Member.Nick
	}
	if m.Author.GlobalName != "" {
		return m.Author.GlobalName
	}
	return m.Author.Username
}
