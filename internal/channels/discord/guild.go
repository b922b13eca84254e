package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"github.com/nextlevelbuilder/chefbot/internal/commands"
)

// guildAPI is the subset of *discordgo.Session used for role and DM operations.
type guildAPI interface {
	GuildRoles(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Role, error)
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// RoleID finds a guild role by exact name.
func (c *Channel) RoleID(_ context.Context, guildID, name string) (string, error) {
	if guildID == "" {
		return "", commands.ErrRoleNotFound
	}
	roles, err := c.guildRoles(guildID)
	if err != nil {
		return "", err
	}
	for _, r := range roles {
		if r.Name == name {
			return r.ID, nil
		}
	}
	return "", fmt.Errorf("%w: %s", commands.ErrRoleNotFound, name)
}

// AddRole gives userID the role.
func (c *Channel) AddRole(_ context.Context, guildID, userID, roleID string) error {
	if err := c.api.GuildMemberRoleAdd(guildID, userID, roleID); err != nil {
		return fmt.Errorf("add role %s to %s: %w", roleID, userID, mapRESTError(err))
	}
	return nil
}

// RemoveRole takes the role away from userID.
func (c *Channel) RemoveRole(_ context.Context, guildID, userID, roleID string) error {
	if err := c.api.GuildMemberRoleRemove(guildID, userID, roleID); err != nil {
		return fmt.Errorf("remove role %s from %s: %w", roleID, userID, mapRESTError(err))
	}
	return nil
}

// SendDM opens (or reuses) the DM channel with userID and sends text.
func (c *Channel) SendDM(_ context.Context, userID, text string) error {
	dm, err := c.api.UserChannelCreate(userID)
	if err != nil {
		return fmt.Errorf("open DM with %s: %w", userID, mapRESTError(err))
	}
	if _, err := c.api.ChannelMessageSend(dm.ID, text); err != nil {
		return fmt.Errorf("send DM to %s: %w", userID, mapRESTError(err))
	}
	return nil
}

// roleNames maps a member's role IDs to names. Unknown IDs are skipped.
func (c *Channel) roleNames(guildID string, ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	roles, err := c.guildRoles(guildID)
	if err != nil {
		return nil
	}
	byID := make(map[string]string, len(roles))
	for _, r := range roles {
		byID[r.ID] = r.Name
	}
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if name, ok := byID[id]; ok {
			names = append(names, name)
		}
	}
	return names
}

// guildRoles reads roles from the state cache, falling back to the API.
func (c *Channel) guildRoles(guildID string) ([]*discordgo.Role, error) {
	if c.session != nil && c.session.State != nil {
		if g, err := c.session.State.Guild(guildID); err == nil {
			c.session.State.RLock()
			roles := append([]*discordgo.Role(nil), g.Roles...)
			c.session.State.RUnlock()
			if len(roles) > 0 {
				return roles, nil
			}
		}
	}
	roles, err := c.api.GuildRoles(guildID)
	if err != nil {
		return nil, fmt.Errorf("list roles of guild %s: %w", guildID, mapRESTError(err))
	}
	return roles, nil
}

// mapRESTError marks permission failures with commands.ErrForbidden.
func mapRESTError(err error) error {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: %w", commands.ErrForbidden, err)
	}
	return err
}

var _ commands.Guild = (*Channel)(nil)
