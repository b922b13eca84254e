package channels

import (
	"context"
	"testing"

	"github.com/nextlevelbuilder/chefbot/internal/bus"
)

func TestIsAllowed(t *testing.T) {
	tests := []struct {
		name   string
		allow  []string
		sender string
		want   bool
	}{
		{"empty allows all", nil, "1", true},
		{"id match", []string{"1"}, "1", true},
		{"id miss", []string{"1"}, "2", false},
		{"compound sender", []string{"1"}, "1|alice", true},
		{"username entry", []string{"@alice"}, "9|alice", true},
		{"username miss", []string{"@alice"}, "9|bob", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewBaseChannel("discord", nil, tt.allow)
			if got := c.IsAllowed(tt.sender); got != tt.want {
				t.Errorf("IsAllowed(%q) = %v, want %v", tt.sender, got, tt.want)
			}
		})
	}
}

func TestHandleMessage(t *testing.T) {
	var got []bus.InboundMessage
	c := NewBaseChannel("discord", func(_ context.Context, msg bus.InboundMessage) {
		got = append(got, msg)
	}, []string{"1"})

	if !c.HandleMessage(context.Background(), bus.InboundMessage{SenderID: "1", Content: "!recipe soup"}) {
		t.Error("allowed sender was dropped")
	}
	if c.HandleMessage(context.Background(), bus.InboundMessage{SenderID: "2"}) {
		t.Error("blocked sender was handled")
	}
	if len(got) != 1 || got[0].Channel != "discord" {
		t.Errorf("handled = %+v", got)
	}
}

func TestCheckDMPolicy(t *testing.T) {
	c := NewBaseChannel("discord", nil, []string{"1"})
	if !c.CheckDMPolicy(DMPolicyOpen, "2") || !c.CheckDMPolicy("", "2") {
		t.Error("open policy should accept")
	}
	if c.CheckDMPolicy(DMPolicyAllowlist, "2") || !c.CheckDMPolicy(DMPolicyAllowlist, "1") {
		t.Error("allowlist policy mismatch")
	}
	if c.CheckDMPolicy(DMPolicyDisabled, "1") {
		t.Error("disabled policy should reject")
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("héllo wörld", 5); got != "héllo..." {
		t.Errorf("Truncate = %q", got)
	}
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("Truncate = %q", got)
	}
}
