package commands

import (
	"context"
	"errors"
	"testing"

	"github.com/nextlevelbuilder/chefbot/internal/bus"
	"github.com/nextlevelbuilder/chefbot/internal/delivery"
)

type recordingSender struct {
	sent []bus.OutboundMessage
}

func (s *recordingSender) Send(_ context.Context, msg bus.OutboundMessage) error {
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) texts() []string {
	out := make([]string, len(s.sent))
	for i, m := range s.sent {
		out[i] = m.Content
	}
	return out
}

type guildOp struct {
	op, guildID, userID, roleID string
}

type fakeGuild struct {
	roles  map[string]string // name → id
	addErr error
	ops    []guildOp
	dms    map[string][]string
}

func newFakeGuild() *fakeGuild {
	return &fakeGuild{
		roles: map[string]string{RoleHeadChef: "r-head", RoleChef: "r-chef", RoleTrainee: "r-trainee"},
		dms:   map[string][]string{},
	}
}

func (g *fakeGuild) RoleID(_ context.Context, _, name string) (string, error) {
	id, ok := g.roles[name]
	if !ok {
		return "", ErrRoleNotFound
	}
	return id, nil
}

func (g *fakeGuild) AddRole(_ context.Context, guildID, userID, roleID string) error {
	if g.addErr != nil {
		return g.addErr
	}
	g.ops = append(g.ops, guildOp{"add", guildID, userID, roleID})
	return nil
}

func (g *fakeGuild) RemoveRole(_ context.Context, guildID, userID, roleID string) error {
	g.ops = append(g.ops, guildOp{"remove", guildID, userID, roleID})
	return nil
}

func (g *fakeGuild) SendDM(_ context.Context, userID, text string) error {
	g.dms[userID] = append(g.dms[userID], text)
	return nil
}

type fakeAsker struct {
	reqs []delivery.Request
}

func (a *fakeAsker) HandleQuestion(_ context.Context, req delivery.Request) delivery.Report {
	a.reqs = append(a.reqs, req)
	return delivery.Report{Outcome: delivery.OutcomeDelivered}
}

type countingRecorder map[string]int

func (c countingRecorder) ObserveCommand(command, result string) { c[command+"/"+result]++ }

type fixture struct {
	sender  *recordingSender
	guild   *fakeGuild
	asker   *fakeAsker
	metrics countingRecorder
	d       *Dispatcher
}

func newFixture(opts ...Option) *fixture {
	f := &fixture{
		sender:  &recordingSender{},
		guild:   newFakeGuild(),
		asker:   &fakeAsker{},
		metrics: countingRecorder{},
	}
	f.d = NewDispatcher("!", f.sender, append([]Option{WithMetrics(f.metrics)}, opts...)...)
	RegisterBuiltins(f.d, f.asker, f.guild)
	return f
}

func guildMessage(content string, roles ...string) bus.InboundMessage {
	return bus.InboundMessage{
		Channel:   "discord",
		MessageID: "m-1",
		SenderID:  "100",
		Mention:   "<@100>",
		ChatID:    "chan-1",
		GuildID:   "g-1",
		Content:   content,
		Roles:     roles,
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		content    string
		name, args string
		ok         bool
	}{
		{"!recipe what is a roux?", "recipe", "what is a roux?", true},
		{"!recipe", "recipe", "", true},
		{"!recipe\n  multi\nline ", "recipe", "multi\nline", true},
		{"hello !recipe", "", "", false},
		{"!", "", "", false},
		{"! recipe", "", "", false},
	}
	for _, tt := range tests {
		name, args, ok := Parse("!", tt.content)
		if name != tt.name || args != tt.args || ok != tt.ok {
			t.Errorf("Parse(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.content, name, args, ok, tt.name, tt.args, tt.ok)
		}
	}
}

func TestDispatchIgnoresNonCommands(t *testing.T) {
	f := newFixture()
	for _, c := range []string{"just chatting", "!unknown thing", ""} {
		if f.d.Dispatch(context.Background(), guildMessage(c)) {
			t.Errorf("Dispatch(%q) handled, want ignored", c)
		}
	}
	if len(f.sender.sent) != 0 {
		t.Errorf("unexpected replies: %v", f.sender.texts())
	}
}

func TestAssignWithoutRoleIsDenied(t *testing.T) {
	f := newFixture()

	handled := f.d.Dispatch(context.Background(), guildMessage("!assign TRAINEE <@200>", RoleChef))

	if !handled {
		t.Fatal("command not handled")
	}
	if got := f.sender.texts(); len(got) != 1 || got[0] != "You don't have a permission to assign roles" {
		t.Errorf("replies = %q", got)
	}
	if len(f.guild.ops) != 0 {
		t.Errorf("guild was modified: %+v", f.guild.ops)
	}
	if f.metrics["assign/denied"] != 1 {
		t.Errorf("metrics = %v", f.metrics)
	}
}

func TestAddRecipeRoleGate(t *testing.T) {
	f := newFixture()
	f.d.Dispatch(context.Background(), guildMessage("!add_recipe"))
	f.d.Dispatch(context.Background(), guildMessage("!add_recipe", RoleHeadChef))

	want := []string{"You don't have permission to use add recipe", "You will be able to add recipe in the future"}
	got := f.sender.texts()
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("replies = %q, want %q", got, want)
	}
}

func TestAssign(t *testing.T) {
	tests := []struct {
		name    string
		content string
		setup   func(*fakeGuild)
		reply   string
		ops     int
	}{
		{
			name:    "success",
			content: "!assign chef <@!200>",
			reply:   "Successfully assigned the role 'Chef' to <@200>.",
			ops:     1,
		},
		{
			name:    "invalid key",
			content: "!assign SOUS_CHEF <@200>",
			reply:   "The role 'SOUS_CHEF' is not a valid role to assign.",
		},
		{
			name:    "role missing on server",
			content: "!assign TRAINEE <@200>",
			setup:   func(g *fakeGuild) { delete(g.roles, RoleTrainee) },
			reply:   "The role 'Trainee' does not exist on this server.",
		},
		{
			name:    "bot lacks permission",
			content: "!assign HEAD_CHEF <@200>",
			setup:   func(g *fakeGuild) { g.addErr = ErrForbidden },
			reply:   "I do not have the necessary permissions to assign that role.",
		},
		{
			name:    "other failure",
			content: "!assign CHEF <@200>",
			setup:   func(g *fakeGuild) { g.addErr = errors.New("HTTP 500") },
			reply:   "An error occurred: HTTP 500",
		},
		{
			name:    "missing target",
			content: "!assign CHEF",
			reply:   "Usage: `!assign <role> <@user>`",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			if tt.setup != nil {
				tt.setup(f.guild)
			}
			f.d.Dispatch(context.Background(), guildMessage(tt.content, RoleHeadChef))

			if got := f.sender.texts(); len(got) != 1 || got[0] != tt.reply {
				t.Errorf("replies = %q, want [%q]", got, tt.reply)
			}
			if len(f.guild.ops) != tt.ops {
				t.Errorf("guild ops = %+v, want %d", f.guild.ops, tt.ops)
			}
			if tt.ops == 1 && f.guild.ops[0] != (guildOp{"add", "g-1", "200", "r-chef"}) {
				t.Errorf("op = %+v", f.guild.ops[0])
			}
		})
	}
}

func TestAssignUsesMentionList(t *testing.T) {
	f := newFixture()
	msg := guildMessage("!assign TRAINEE", RoleHeadChef)
	msg.Mentions = []string{"300"}
	f.d.Dispatch(context.Background(), msg)

	if len(f.guild.ops) != 1 || f.guild.ops[0].userID != "300" {
		t.Errorf("ops = %+v", f.guild.ops)
	}
}

func TestRemove(t *testing.T) {
	f := newFixture()
	f.d.Dispatch(context.Background(), guildMessage("!remove"))
	if got := f.sender.texts(); len(got) != 1 || got[0] != "<@100> is no longer a Trainee!" {
		t.Errorf("replies = %q", got)
	}
	if len(f.guild.ops) != 1 || f.guild.ops[0] != (guildOp{"remove", "g-1", "100", "r-trainee"}) {
		t.Errorf("ops = %+v", f.guild.ops)
	}

	f = newFixture()
	delete(f.guild.roles, RoleTrainee)
	f.d.Dispatch(context.Background(), guildMessage("!remove"))
	if got := f.sender.texts(); len(got) != 1 || got[0] != "Role doesn't exist" {
		t.Errorf("replies = %q", got)
	}
}

func TestDMAndReply(t *testing.T) {
	f := newFixture()
	f.d.Dispatch(context.Background(), guildMessage("!dm hello there"))
	f.d.Dispatch(context.Background(), guildMessage("!reply"))

	if got := f.guild.dms["100"]; len(got) != 1 || got[0] != "You said hello there" {
		t.Errorf("dms = %q", got)
	}
	if len(f.sender.sent) != 1 {
		t.Fatalf("sent = %+v", f.sender.sent)
	}
	if r := f.sender.sent[0]; r.Content != "This is a reply" || r.ReplyTo != "m-1" {
		t.Errorf("reply = %+v", r)
	}
}

func TestRecipeDelegatesToPipeline(t *testing.T) {
	f := newFixture()
	f.d.Dispatch(context.Background(), guildMessage("!recipe  how long to boil an egg? "))

	if len(f.asker.reqs) != 1 {
		t.Fatalf("asker got %d requests", len(f.asker.reqs))
	}
	req := f.asker.reqs[0]
	if req.Question != "how long to boil an egg?" || req.UserID != "100" {
		t.Errorf("request = %+v", req)
	}
	if req.Scope.Key() != "DISCORD_GUILD:g-1" {
		t.Errorf("scope = %q", req.Scope.Key())
	}
	if req.Surface.ChatID != "chan-1" || req.Surface.MessageID != "m-1" {
		t.Errorf("surface = %+v", req.Surface)
	}
}

func TestRateLimitDropsExcessCommands(t *testing.T) {
	f := newFixture(WithRateLimiter(NewRateLimiter(2)))
	for i := 0; i < 4; i++ {
		if !f.d.Dispatch(context.Background(), guildMessage("!reply")) {
			t.Fatal("command not handled")
		}
	}
	if len(f.sender.sent) != 2 {
		t.Errorf("sent %d replies, want 2", len(f.sender.sent))
	}
	if f.metrics["reply/limited"] != 2 {
		t.Errorf("metrics = %v", f.metrics)
	}
}

func TestParseMention(t *testing.T) {
	for in, want := range map[string]string{
		"<@123>":  "123",
		"<@!123>": "123",
		"<@&123>": "",
		"@bob":    "",
		"<@>":     "",
	} {
		if got := ParseMention(in); got != want {
			t.Errorf("ParseMention(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLookupAssignable(t *testing.T) {
	tests := []struct {
		key     string
		want    string
		wantErr error
	}{
		{key: "HEAD_CHEF", want: RoleHeadChef},
		{key: "chef", want: RoleChef},
		{key: "Trainee", want: RoleTrainee},
		{key: "sous_chef", wantErr: ErrUnknownRole},
		{key: "", wantErr: ErrUnknownRole},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := LookupAssignable(tt.key)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("role = %q, want %q", got, tt.want)
			}
		})
	}
}
