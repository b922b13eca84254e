// Package sessions builds conversation scope keys.
//
// A scope key names the logical conversation that maps onto one remote
// agent thread:
//
//	Guild: {PLATFORM}_GUILD:{guildId}
//	DM:    {PLATFORM}_DM:{channelId}
//
// Examples:
//
//	DISCORD_GUILD:1187003339436490752
//	DISCORD_DM:1201158731290075166
//
// Guild keys keep the format earlier deployments used when deriving thread
// ids, so existing remote threads are picked up unchanged.
package sessions

import (
	"fmt"
	"strings"
)

// PeerKind distinguishes DM from guild conversations.
type PeerKind string

const (
	PeerDirect PeerKind = "direct"
	PeerGuild  PeerKind = "guild"
)

// PlatformDiscord is the only chat platform wired today.
const PlatformDiscord = "discord"

// Scope identifies the conversation a request belongs to.
type Scope struct {
	Platform  string
	GuildID   string // empty for direct messages
	ChannelID string // origin channel; used as the key for DMs
}

// NewScope builds a scope from a message's guild and channel.
func NewScope(platform, guildID, channelID string) Scope {
	return Scope{Platform: platform, GuildID: guildID, ChannelID: channelID}
}

// Kind reports whether the scope is a guild or a DM.
func (s Scope) Kind() PeerKind {
	if s.GuildID == "" {
		return PeerDirect
	}
	return PeerGuild
}

// Key returns the canonical scope key.
func (s Scope) Key() string {
	if s.Kind() == PeerGuild {
		return BuildGuildKey(s.Platform, s.GuildID)
	}
	return BuildDirectKey(s.Platform, s.ChannelID)
}

// BuildGuildKey builds the scope key shared by every channel in a guild.
//
//	{PLATFORM}_GUILD:{guildID}
func BuildGuildKey(platform, guildID string) string {
	return fmt.Sprintf("%s_GUILD:%s", strings.ToUpper(platform), guildID)
}

// BuildDirectKey builds the scope key for a direct-message channel.
//
//	{PLATFORM}_DM:{channelID}
func BuildDirectKey(platform, channelID string) string {
	return fmt.Sprintf("%s_DM:%s", strings.ToUpper(platform), channelID)
}

// ParseKey splits a scope key into its platform, kind and id.
// Returns ok=false if the key is not in the expected format.
func ParseKey(key string) (platform string, kind PeerKind, id string, ok bool) {
	prefix, id, found := strings.Cut(key, ":")
	if !found || id == "" {
		return "", "", "", false
	}
	switch {
	case strings.HasSuffix(prefix, "_GUILD"):
		return strings.ToLower(strings.TrimSuffix(prefix, "_GUILD")), PeerGuild, id, true
	case strings.HasSuffix(prefix, "_DM"):
		return strings.ToLower(strings.TrimSuffix(prefix, "_DM")), PeerDirect, id, true
	}
	return "", "", "", false
}
