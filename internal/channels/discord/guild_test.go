package discord

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/nextlevelbuilder/chefbot/internal/channels"
	"github.com/nextlevelbuilder/chefbot/internal/commands"
)

type fakeGuildAPI struct {
	roles   []*discordgo.Role
	addErr  error
	added   [][3]string
	removed [][3]string
	sent    map[string][]string
}

func (f *fakeGuildAPI) GuildRoles(string, ...discordgo.RequestOption) ([]*discordgo.Role, error) {
	return f.roles, nil
}

func (f *fakeGuildAPI) GuildMemberRoleAdd(g, u, r string, _ ...discordgo.RequestOption) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.added = append(f.added, [3]string{g, u, r})
	return nil
}

func (f *fakeGuildAPI) GuildMemberRoleRemove(g, u, r string, _ ...discordgo.RequestOption) error {
	f.removed = append(f.removed, [3]string{g, u, r})
	return nil
}

func (f *fakeGuildAPI) UserChannelCreate(id string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	return &discordgo.Channel{ID: "dm-" + id, Type: discordgo.ChannelTypeDM}, nil
}

func (f *fakeGuildAPI) ChannelMessageSend(ch, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.sent == nil {
		f.sent = map[string][]string{}
	}
	f.sent[ch] = append(f.sent[ch], content)
	return &discordgo.Message{ChannelID: ch, Content: content}, nil
}

func newTestChannel(api *fakeGuildAPI) *Channel {
	return &Channel{
		BaseChannel: channels.NewBaseChannel("discord", nil, nil),
		api:         api,
	}
}

func TestRoleID(t *testing.T) {
	api := &fakeGuildAPI{roles: []*discordgo.Role{
		{ID: "1", Name: "Head Chef"},
		{ID: "2", Name: "Trainee"},
	}}
	c := newTestChannel(api)

	id, err := c.RoleID(context.Background(), "g", "Trainee")
	if err != nil || id != "2" {
		t.Fatalf("RoleID = %q, %v", id, err)
	}
	if _, err := c.RoleID(context.Background(), "g", "trainee"); !errors.Is(err, commands.ErrRoleNotFound) {
		t.Errorf("role names must match exactly, got %v", err)
	}
	if _, err := c.RoleID(context.Background(), "", "Trainee"); !errors.Is(err, commands.ErrRoleNotFound) {
		t.Errorf("DM lookup = %v, want ErrRoleNotFound", err)
	}
}

func TestRoleNames(t *testing.T) {
	api := &fakeGuildAPI{roles: []*discordgo.Role{{ID: "1", Name: "Head Chef"}, {ID: "2", Name: "Chef"}}}
	c := newTestChannel(api)

	got := c.roleNames("g", []string{"2", "99"})
	if len(got) != 1 || got[0] != "Chef" {
		t.Errorf("roleNames = %v", got)
	}
}

func TestAddRoleForbidden(t *testing.T) {
	api := &fakeGuildAPI{addErr: &discordgo.RESTError{
		Response: &http.Response{StatusCode: http.StatusForbidden},
	}}
	c := newTestChannel(api)

	err := c.AddRole(context.Background(), "g", "u", "r")
	if !errors.Is(err, commands.ErrForbidden) {
		t.Fatalf("AddRole = %v, want ErrForbidden", err)
	}

	api.addErr = &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusInternalServerError}}
	if err := c.AddRole(context.Background(), "g", "u", "r"); err == nil || errors.Is(err, commands.ErrForbidden) {
		t.Errorf("AddRole = %v, want plain error", err)
	}
}

func TestSendDM(t *testing.T) {
	api := &fakeGuildAPI{}
	c := newTestChannel(api)

	if err := c.SendDM(context.Background(), "42", "Welcome to the server, ana!"); err != nil {
		t.Fatalf("SendDM: %v", err)
	}
	if got := api.sent["dm-42"]; len(got) != 1 || got[0] != "Welcome to the server, ana!" {
		t.Errorf("sent = %v", api.sent)
	}
}
