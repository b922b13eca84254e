// Package delivery relays a question to the remote agent and delivers the
// answer back to chat, chunked and paced to respect transport limits.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/chefbot/internal/bus"
	"github.com/nextlevelbuilder/chefbot/internal/chunk"
	"github.com/nextlevelbuilder/chefbot/internal/langgraph"
)

const (
	// DefaultPacing is the pause between consecutive chunk sends.
	DefaultPacing = time.Second

	tracerName = "github.com/nextlevelbuilder/chefbot/internal/delivery"
)

// Config tunes delivery.
type Config struct {
	MaxMessageLength int           // per-message limit in runes (default 2000)
	Pacing           time.Duration // pause between chunks (default 1s)
}

// Deps are the collaborators a Pipeline drives.
type Deps struct {
	Sender   Sender
	Binder   Binder
	Resolver Resolver
	Agent    Agent
	Metrics  Recorder // optional
}

// Pipeline handles one question at a time per call; calls for different
// requests may run concurrently.
type Pipeline struct {
	deps   Deps
	cfg    Config
	tracer trace.Tracer
	sleep  func(time.Duration)
}

// New creates a Pipeline. Zero Config fields fall back to the Discord
// message limit and a one second pacing.
func New(deps Deps, cfg Config) *Pipeline {
	if cfg.MaxMessageLength <= 0 {
		cfg.MaxMessageLength = chunk.DefaultMaxLength
	}
	if cfg.Pacing <= 0 {
		cfg.Pacing = DefaultPacing
	}
	return &Pipeline{
		deps:   deps,
		cfg:    cfg,
		tracer: otel.Tracer(tracerName),
		sleep:  time.Sleep,
	}
}

// HandleQuestion runs validate → resolve → invoke → extract → deliver.
// It never panics on collaborator errors; the returned Report carries the
// terminal outcome and, for failures, the cause.
func (p *Pipeline) HandleQuestion(ctx context.Context, req Request) Report {
	scopeKey := req.Scope.Key()
	ctx, span := p.tracer.Start(ctx, "delivery.HandleQuestion",
		trace.WithAttributes(
			attribute.String("chefbot.scope", scopeKey),
			attribute.String("chefbot.user_id", req.UserID),
		))
	defer span.End()

	rep := p.handle(ctx, req, scopeKey)

	span.SetAttributes(
		attribute.String("chefbot.outcome", string(rep.Outcome)),
		attribute.Int("chefbot.chunks", rep.Chunks),
		attribute.Int("chefbot.chunks_failed", rep.Failed),
	)
	if rep.Err != nil {
		span.RecordError(rep.Err)
		span.SetStatus(codes.Error, string(rep.Outcome))
	}
	if p.deps.Metrics != nil {
		p.deps.Metrics.ObserveOutcome(string(rep.Outcome))
	}

	logArgs := []any{
		"scope", scopeKey,
		"outcome", rep.Outcome,
		"channel_id", rep.ChannelID,
		"chunks", rep.Chunks,
		"failed", rep.Failed,
	}
	if rep.ThreadID != uuid.Nil {
		logArgs = append(logArgs, "thread_id", rep.ThreadID)
	}
	switch rep.Outcome {
	case OutcomeDelivered, OutcomeRejectedEmpty:
		slog.Info("delivery: request finished", logArgs...)
	default:
		slog.Warn("delivery: request finished", append(logArgs, "error", rep.Err)...)
	}
	return rep
}

func (p *Pipeline) handle(ctx context.Context, req Request, scopeKey string) Report {
	// Validate. Trimming only decides emptiness; the agent gets the text as asked.
	if strings.TrimSpace(req.Question) == "" {
		channelID, err := p.deps.Binder.Bind(ctx, req.Surface)
		if err != nil {
			slog.Warn("delivery: bind failed, replying in place", "chat_id", req.Surface.ChatID, "error", err)
			channelID = req.Surface.ChatID
		}
		p.notify(ctx, req.Surface.Channel, channelID, UsageHint)
		return Report{Outcome: OutcomeRejectedEmpty, ChannelID: channelID}
	}

	// Resolve.
	channelID, threadID, err := p.resolve(ctx, req, scopeKey)
	if err != nil {
		if channelID == "" {
			channelID = req.Surface.ChatID
		}
		p.notify(ctx, req.Surface.Channel, channelID, ResolutionFailure)
		return Report{Outcome: OutcomeResolutionFailed, ChannelID: channelID, Err: err}
	}
	rep := Report{ThreadID: threadID, ChannelID: channelID}

	// Once the agent call is issued the request runs to completion.
	runCtx := context.WithoutCancel(ctx)

	// Invoke + extract.
	answer, err := p.invoke(runCtx, req, channelID, threadID)
	if err != nil {
		p.notify(runCtx, req.Surface.Channel, channelID, AgentFailure)
		rep.Outcome = OutcomeAgentFailed
		rep.Err = err
		return rep
	}

	// Deliver.
	rep.Chunks, rep.Failed, rep.Err = p.deliver(runCtx, req.Surface.Channel, channelID, answer)
	rep.Outcome = OutcomeDelivered
	if rep.Failed > 0 {
		rep.Outcome = OutcomeDeliveredPartial
	}
	return rep
}

func (p *Pipeline) resolve(ctx context.Context, req Request, scopeKey string) (string, uuid.UUID, error) {
	ctx, span := p.tracer.Start(ctx, "delivery.resolve")
	defer span.End()

	channelID, err := p.deps.Binder.Bind(ctx, req.Surface)
	if err != nil {
		span.RecordError(err)
		return "", uuid.Nil, fmt.Errorf("bind delivery channel: %w", err)
	}

	threadID, err := p.deps.Resolver.Resolve(ctx, scopeKey)
	if err != nil {
		span.RecordError(err)
		return channelID, uuid.Nil, err
	}
	span.SetAttributes(attribute.String("chefbot.thread_id", threadID.String()))
	return channelID, threadID, nil
}

func (p *Pipeline) invoke(ctx context.Context, req Request, channelID string, threadID uuid.UUID) (string, error) {
	ctx, span := p.tracer.Start(ctx, "delivery.invoke",
		trace.WithAttributes(attribute.String("chefbot.thread_id", threadID.String())))
	defer span.End()

	if typer, ok := p.deps.Sender.(Typer); ok {
		stop := typer.StartTyping(req.Surface.Channel, channelID)
		defer stop()
	}

	start := time.Now()
	res, err := p.deps.Agent.RunWait(ctx, threadID, req.Question, req.UserID)
	if p.deps.Metrics != nil {
		p.deps.Metrics.ObserveAgentCall(time.Since(start), err)
	}
	if err != nil {
		if errors.Is(err, langgraph.ErrNotFound) {
			// The thread vanished server-side; re-check it next time.
			if f, ok := p.deps.Resolver.(Forgetter); ok {
				f.Forget(ctx, threadID)
			}
		}
		span.RecordError(err)
		slog.Warn("delivery: agent run failed",
			"thread_id", threadID,
			"retryable", langgraph.IsRetryable(err),
			"error", err,
		)
		return "", fmt.Errorf("%w: %w", ErrAgent, err)
	}

	answer, err := lastMessage(res)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("%w: %w", ErrAgent, err)
	}
	span.SetAttributes(attribute.Int("chefbot.answer_len", chunk.Len(answer)))
	return answer, nil
}

// lastMessage takes the final message of the run's state as the answer.
func lastMessage(res *langgraph.RunResult) (string, error) {
	if res == nil || len(res.Messages) == 0 {
		return "", ErrNoMessages
	}
	answer := string(res.Messages[len(res.Messages)-1].Content)
	if strings.TrimSpace(answer) == "" {
		return "", ErrEmptyAnswer
	}
	return answer, nil
}

// deliver sends answer in one message when it fits, otherwise in paced
// line-preserving chunks. A failed chunk does not stop the rest.
func (p *Pipeline) deliver(ctx context.Context, transport, channelID, answer string) (attempted, failed int, err error) {
	ctx, span := p.tracer.Start(ctx, "delivery.deliver")
	defer span.End()

	chunks := []string{answer}
	if chunk.Len(answer) > p.cfg.MaxMessageLength {
		chunks = chunk.Split(answer, p.cfg.MaxMessageLength)
	}

	var errs []error
	for i, c := range chunks {
		if i > 0 {
			p.sleep(p.cfg.Pacing)
		}
		attempted++
		sendErr := p.deps.Sender.Send(ctx, bus.OutboundMessage{
			Channel: transport,
			ChatID:  channelID,
			Content: c,
		})
		if p.deps.Metrics != nil {
			p.deps.Metrics.ObserveChunk(sendErr == nil)
		}
		if sendErr != nil {
			failed++
			errs = append(errs, fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), sendErr))
			slog.Warn("delivery: chunk send failed",
				"channel_id", channelID,
				"chunk", i+1,
				"of", len(chunks),
				"error", sendErr,
			)
			continue
		}
		slog.Debug("delivery: chunk sent", "channel_id", channelID, "chunk", i+1, "of", len(chunks), "len", chunk.Len(c))
	}

	span.SetAttributes(attribute.Int("chefbot.chunks", attempted), attribute.Int("chefbot.chunks_failed", failed))
	return attempted, failed, errors.Join(errs...)
}

// notify sends a short status message. Failures are only logged.
func (p *Pipeline) notify(ctx context.Context, transport, channelID, text string) {
	err := p.deps.Sender.Send(ctx, bus.OutboundMessage{
		Channel: transport,
		ChatID:  channelID,
		Content: text,
	})
	if err != nil {
		slog.Warn("delivery: notice send failed", "channel_id", channelID, "error", err)
	}
}
