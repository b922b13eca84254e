package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nextlevelbuilder/chefbot/internal/bus"
	"github.com/nextlevelbuilder/chefbot/internal/delivery"
)

// Guild performs the role and DM operations commands need. The Discord
// channel implements it.
type Guild interface {
	// RoleID looks a role up by name; ErrRoleNotFound if absent.
	RoleID(ctx context.Context, guildID, name string) (string, error)
	// AddRole returns ErrForbidden when the bot may not manage the role.
	AddRole(ctx context.Context, guildID, userID, roleID string) error
	RemoveRole(ctx context.Context, guildID, userID, roleID string) error
	SendDM(ctx context.Context, userID, text string) error
}

// Asker relays a question to the agent.
type Asker interface {
	HandleQuestion(ctx context.Context, req delivery.Request) delivery.Report
}

// Reply texts.
const (
	msgInvalidRole     = "The role '%s' is not a valid role to assign."
	msgMissingRole     = "The role '%s' does not exist on this server."
	msgNoPermission    = "I do not have the necessary permissions to assign that role."
	msgAssigned        = "Successfully assigned the role '%s' to %s."
	msgAssignDenied    = "You don't have a permission to assign roles"
	msgNoLongerRole    = "%s is no longer a %s!"
	msgRoleMissing     = "Role doesn't exist"
	msgYouSaid         = "You said %s"
	msgReply           = "This is a reply"
	msgAddRecipeStub   = "You will be able to add recipe in the future"
	msgAddRecipeDenied = "You don't have permission to use add recipe"
)

type builtins struct {
	d     *Dispatcher
	asker Asker
	guild Guild
}

// RegisterBuiltins installs the bot's command table on d.
func RegisterBuiltins(d *Dispatcher, asker Asker, guild Guild) {
	b := &builtins{d: d, asker: asker, guild: guild}
	p := d.prefix

	d.Register(Command{
		Name:    "recipe",
		Handler: b.recipe,
		Usage:   delivery.UsageHint,
	})
	d.Register(Command{
		Name:         "assign",
		Handler:      b.assign,
		RequiredRole: RoleHeadChef,
		Usage:        fmt.Sprintf("Usage: `%sassign <role> <@user>`", p),
		OnDenied:     msgAssignDenied,
	})
	d.Register(Command{
		Name:    "remove",
		Handler: b.remove,
		Usage:   fmt.Sprintf("Usage: `%sremove`", p),
	})
	d.Register(Command{
		Name:    "dm",
		Handler: b.dm,
		Usage:   fmt.Sprintf("Usage: `%sdm <text>`", p),
	})
	d.Register(Command{
		Name:    "reply",
		Handler: b.reply,
	})
	d.Register(Command{
		Name:         "add_recipe",
		Handler:      b.addRecipe,
		RequiredRole: RoleHeadChef,
		OnDenied:     msgAddRecipeDenied,
	})
}

func (b *builtins) recipe(ctx context.Context, inv Invocation) error {
	msg := inv.Msg
	b.asker.HandleQuestion(ctx, delivery.Request{
		Scope: msg.Scope(),
		Surface: delivery.Surface{
			Channel:   msg.Channel,
			ChatID:    msg.ChatID,
			GuildID:   msg.GuildID,
			MessageID: msg.MessageID,
		},
		Question: inv.Args,
		UserID:   msg.SenderID,
	})
	return nil
}

func (b *builtins) assign(ctx context.Context, inv Invocation) error {
	fields := strings.Fields(inv.Args)
	if len(fields) == 0 {
		return ErrUsage
	}
	target := ""
	if len(fields) > 1 {
		target = ParseMention(fields[1])
	}
	if target == "" && len(inv.Msg.Mentions) > 0 {
		target = inv.Msg.Mentions[0]
	}
	if target == "" {
		return ErrUsage
	}

	roleName, err := LookupAssignable(fields[0])
	if errors.Is(err, ErrUnknownRole) {
		b.d.reply(ctx, inv.Msg, fmt.Sprintf(msgInvalidRole, fields[0]))
		return nil
	}

	roleID, err := b.guild.RoleID(ctx, inv.Msg.GuildID, roleName)
	if errors.Is(err, ErrRoleNotFound) {
		b.d.reply(ctx, inv.Msg, fmt.Sprintf(msgMissingRole, roleName))
		return nil
	}
	if err != nil {
		return err
	}

	if err := b.guild.AddRole(ctx, inv.Msg.GuildID, target, roleID); err != nil {
		if errors.Is(err, ErrForbidden) {
			b.d.reply(ctx, inv.Msg, msgNoPermission)
			return nil
		}
		return err
	}
	b.d.reply(ctx, inv.Msg, fmt.Sprintf(msgAssigned, roleName, Mention(target)))
	return nil
}

func (b *builtins) remove(ctx context.Context, inv Invocation) error {
	msg := inv.Msg
	roleID, err := b.guild.RoleID(ctx, msg.GuildID, RoleTrainee)
	if errors.Is(err, ErrRoleNotFound) {
		b.d.reply(ctx, msg, msgRoleMissing)
		return nil
	}
	if err != nil {
		return err
	}
	if err := b.guild.RemoveRole(ctx, msg.GuildID, msg.SenderID, roleID); err != nil {
		return err
	}
	b.d.reply(ctx, msg, fmt.Sprintf(msgNoLongerRole, senderMention(msg), RoleTrainee))
	return nil
}

func (b *builtins) dm(ctx context.Context, inv Invocation) error {
	if inv.Args == "" {
		return ErrUsage
	}
	return b.guild.SendDM(ctx, inv.Msg.SenderID, fmt.Sprintf(msgYouSaid, inv.Args))
}

func (b *builtins) reply(ctx context.Context, inv Invocation) error {
	b.d.send(ctx, bus.OutboundMessage{
		Channel: inv.Msg.Channel,
		ChatID:  inv.Msg.ChatID,
		Content: msgReply,
		ReplyTo: inv.Msg.MessageID,
	})
	return nil
}

func (b *builtins) addRecipe(ctx context.Context, inv Invocation) error {
	b.d.reply(ctx, inv.Msg, msgAddRecipeStub)
	return nil
}

// Mention renders a user mention.
func Mention(userID string) string { return "<@" + userID + ">" }

// ParseMention extracts the user ID from "<@123>" or "<@!123>". It returns
// "" for anything else.
func ParseMention(s string) string {
	if !strings.HasPrefix(s, "<@") || !strings.HasSuffix(s, ">") {
		return ""
	}
	id := strings.TrimPrefix(strings.TrimSuffix(s[2:], ">"), "!")
	if id == "" {
		return ""
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return id
}

func senderMention(msg bus.InboundMessage) string {
	if msg.Mention != "" {
		return msg.Mention
	}
	return Mention(msg.SenderID)
}
