// Package commands parses prefixed chat commands, checks the caller's role
// and rate budget, and runs the registered handler.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode"

	"github.com/nextlevelbuilder/chefbot/internal/bus"
	"github.com/nextlevelbuilder/chefbot/internal/delivery"
)

// DefaultDenied is used when a role-gated command has no OnDenied text.
const DefaultDenied = "You don't have permission to use this command."

// Invocation is one parsed command.
type Invocation struct {
	Name string
	Args string // text after the command name, trimmed
	Msg  bus.InboundMessage
}

// Handler runs a command. Returning ErrUsage makes the dispatcher reply
// with the command's Usage text; any other error is reported to the caller.
type Handler func(ctx context.Context, inv Invocation) error

// Command is one entry in the registration table.
type Command struct {
	Name         string
	Handler      Handler
	RequiredRole string // empty means public
	Usage        string
	OnDenied     string
}

// Recorder counts dispatched commands.
type Recorder interface {
	ObserveCommand(command, result string)
}

// Dispatcher routes prefixed messages to registered commands.
type Dispatcher struct {
	prefix   string
	commands map[string]Command
	sender   delivery.Sender
	limiter  *RateLimiter
	metrics  Recorder
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithRateLimiter limits commands per sender.
func WithRateLimiter(l *RateLimiter) Option {
	return func(d *Dispatcher) { d.limiter = l }
}

// WithMetrics records command results.
func WithMetrics(r Recorder) Option {
	return func(d *Dispatcher) { d.metrics = r }
}

// NewDispatcher creates a dispatcher that replies through sender.
func NewDispatcher(prefix string, sender delivery.Sender, opts ...Option) *Dispatcher {
	if prefix == "" {
		prefix = "!"
	}
	d := &Dispatcher{
		prefix:   prefix,
		commands: make(map[string]Command),
		sender:   sender,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register adds cmd to the table, replacing any command of the same name.
func (d *Dispatcher) Register(cmd Command) {
	d.commands[cmd.Name] = cmd
}

// Commands returns the registered command names, sorted.
func (d *Dispatcher) Commands() []string {
	names := make([]string, 0, len(d.commands))
	for name := range d.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Parse splits "<prefix><name> <args>". ok is false when content does not
// start with the prefix or names nothing.
func Parse(prefix, content string) (name, args string, ok bool) {
	rest, found := strings.CutPrefix(content, prefix)
	if !found {
		return "", "", false
	}
	end := strings.IndexFunc(rest, unicode.IsSpace)
	if end < 0 {
		end = len(rest)
	}
	name = rest[:end]
	if name == "" {
		return "", "", false
	}
	return name, strings.TrimSpace(rest[end:]), true
}

// Dispatch handles msg if it is a registered command and reports whether
// it was one. Unknown commands and plain chat are ignored.
func (d *Dispatcher) Dispatch(ctx context.Context, msg bus.InboundMessage) bool {
	name, args, ok := Parse(d.prefix, msg.Content)
	if !ok {
		return false
	}
	cmd, ok := d.commands[name]
	if !ok {
		slog.Debug("commands: unknown command", "command", name, "sender_id", msg.SenderID)
		return false
	}

	if !d.limiter.Allow(msg.SenderID) {
		slog.Warn("commands: rate limited", "command", name, "sender_id", msg.SenderID)
		d.observe(name, "limited")
		return true
	}

	if err := authorize(cmd, msg); err != nil {
		slog.Info("commands: denied", "command", name, "sender_id", msg.SenderID, "required_role", cmd.RequiredRole)
		denied := cmd.OnDenied
		if denied == "" {
			denied = DefaultDenied
		}
		d.reply(ctx, msg, denied)
		d.observe(name, "denied")
		return true
	}

	err := cmd.Handler(ctx, Invocation{Name: name, Args: args, Msg: msg})
	switch {
	case err == nil:
		d.observe(name, "ok")
	case errors.Is(err, ErrUsage) && cmd.Usage != "":
		d.reply(ctx, msg, cmd.Usage)
		d.observe(name, "usage")
	default:
		slog.Error("commands: handler failed", "command", name, "sender_id", msg.SenderID, "error", err)
		d.reply(ctx, msg, fmt.Sprintf("An error occurred: %v", err))
		d.observe(name, "error")
	}
	return true
}

func authorize(cmd Command, msg bus.InboundMessage) error {
	if cmd.RequiredRole == "" || HasRole(msg.Roles, cmd.RequiredRole) {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnauthorized, cmd.RequiredRole)
}

func (d *Dispatcher) reply(ctx context.Context, msg bus.InboundMessage, text string) {
	d.send(ctx, bus.OutboundMessage{Channel: msg.Channel, ChatID: msg.ChatID, Content: text})
}

func (d *Dispatcher) send(ctx context.Context, out bus.OutboundMessage) {
	if err := d.sender.Send(ctx, out); err != nil {
		slog.Warn("commands: reply failed", "chat_id", out.ChatID, "error", err)
	}
}

func (d *Dispatcher) observe(command, result string) {
	if d.metrics != nil {
		d.metrics.ObserveCommand(command, result)
	}
}
