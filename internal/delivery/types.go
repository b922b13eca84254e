package delivery

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/chefbot/internal/bus"
	"github.com/nextlevelbuilder/chefbot/internal/langgraph"
	"github.com/nextlevelbuilder/chefbot/internal/sessions"
)

// Outcome is the terminal state of one question.
type Outcome string

const (
	OutcomeDelivered        Outcome = "delivered"
	OutcomeDeliveredPartial Outcome = "delivered-partial"
	OutcomeRejectedEmpty    Outcome = "rejected-empty"
	OutcomeResolutionFailed Outcome = "resolution-failed"
	OutcomeAgentFailed      Outcome = "agent-failed"
)

// User-facing texts.
const (
	UsageHint         = "Please provide a question. Usage: `!recipe <your question>`"
	ResolutionFailure = "Sorry, something went wrong while preparing this conversation. Please try again."
	AgentFailure      = "Sorry, I couldn't get an answer right now. Please try again later."
)

var (
	// ErrAgent wraps failures of the remote agent call.
	ErrAgent = errors.New("agent run failed")
	// ErrNoMessages is returned when the agent answers with an empty message list.
	ErrNoMessages = errors.New("agent returned no messages")
	// ErrEmptyAnswer is returned when the last message has no text.
	ErrEmptyAnswer = errors.New("agent returned an empty answer")
)

// Surface is the chat location a question was asked in.
type Surface struct {
	Channel   string // transport name
	ChatID    string // channel or thread ID
	GuildID   string // empty for DMs
	MessageID string // the invoking message
}

// Request is one question to relay.
type Request struct {
	Scope    sessions.Scope
	Surface  Surface
	Question string
	UserID   string
}

// Report describes how a request ended.
type Report struct {
	Outcome   Outcome
	ThreadID  uuid.UUID
	ChannelID string // delivery channel actually used
	Chunks    int    // chunk sends attempted
	Failed    int    // chunk sends that failed
	Err       error
}

// Sender delivers one message to a chat channel.
type Sender interface {
	Send(ctx context.Context, msg bus.OutboundMessage) error
}

// Typer is optionally implemented by a Sender that can show a typing
// indicator. The returned func stops it.
type Typer interface {
	StartTyping(channel, chatID string) (stop func())
}

// Binder picks the delivery channel for a surface.
type Binder interface {
	Bind(ctx context.Context, surface Surface) (string, error)
}

// Resolver maps a scope key onto an existing remote thread.
type Resolver interface {
	Resolve(ctx context.Context, scopeKey string) (uuid.UUID, error)
}

// Forgetter is optionally implemented by a Resolver whose cache must be
// dropped when the agent reports a thread missing.
type Forgetter interface {
	Forget(ctx context.Context, threadID uuid.UUID)
}

// Agent runs a question on a remote thread and waits for the final state.
type Agent interface {
	RunWait(ctx context.Context, threadID uuid.UUID, question, userID string) (*langgraph.RunResult, error)
}

// Recorder receives pipeline measurements. A nil Recorder is allowed.
type Recorder interface {
	ObserveOutcome(outcome string)
	ObserveAgentCall(d time.Duration, err error)
	ObserveChunk(ok bool)
}
