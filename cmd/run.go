package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/chefbot/internal/bus"
	"github.com/nextlevelbuilder/chefbot/internal/channels"
	"github.com/nextlevelbuilder/chefbot/internal/channels/discord"
	"github.com/nextlevelbuilder/chefbot/internal/commands"
	"github.com/nextlevelbuilder/chefbot/internal/config"
	"github.com/nextlevelbuilder/chefbot/internal/delivery"
	"github.com/nextlevelbuilder/chefbot/internal/langgraph"
	"github.com/nextlevelbuilder/chefbot/internal/metrics"
	"github.com/nextlevelbuilder/chefbot/internal/store"
	"github.com/nextlevelbuilder/chefbot/internal/store/pg"
	"github.com/nextlevelbuilder/chefbot/internal/store/sqlite"
	"github.com/nextlevelbuilder/chefbot/internal/threads"
	"github.com/nextlevelbuilder/chefbot/internal/tracing"
)

const shutdownTimeout = 10 * time.Second

// A run reporting a missing thread must reach the resolver's caches.
var _ delivery.Forgetter = (*threads.Resolver)(nil)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the Discord bot (default command)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd.Context())
		},
	}
}

func runBot(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return err
	}

	closeLog, err := setupLogging(cfg.Log.File)
	if err != nil {
		return err
	}
	defer closeLog()

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		return err
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		Endpoint:       cfg.Telemetry.Endpoint,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: Version,
		Insecure:       cfg.Telemetry.Insecure,
		Headers:        cfg.Telemetry.Headers,
	})
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}

	stores, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if stores.Close != nil {
			if err := stores.Close(); err != nil {
				slog.Warn("store close failed", "error", err)
			}
		}
	}()

	client := newAgentClient(cfg)
	resolver := threads.NewResolver(client, threads.WithThreadStore(stores.Threads))
	recorder := metrics.NewPrometheusRecorder()
	channelMgr := channels.NewManager()

	// The dispatcher is built after the channel it replies through, so the
	// inbound handler closes over the variable.
	var dispatcher *commands.Dispatcher
	dc, err := discord.New(cfg.Discord, func(ctx context.Context, msg bus.InboundMessage) {
		dispatcher.Dispatch(ctx, msg)
	})
	if err != nil {
		return err
	}
	channelMgr.RegisterChannel(dc)

	binder := discord.NewBinder(dc.Session(), dc.Session().State, cfg.Discord.SharedThreadName, stores.Bindings)
	pipeline := delivery.New(delivery.Deps{
		Sender:   channelMgr,
		Binder:   binder,
		Resolver: resolver,
		Agent:    client,
		Metrics:  recorder,
	}, delivery.Config{
		MaxMessageLength: cfg.Delivery.MaxMessageLength,
		Pacing:           cfg.Delivery.Pacing(),
	})

	dispatcher = commands.NewDispatcher(cfg.Discord.CommandPrefix, channelMgr,
		commands.WithRateLimiter(commands.NewRateLimiter(cfg.Commands.RateLimitPerMinute)),
		commands.WithMetrics(recorder),
	)
	commands.RegisterBuiltins(dispatcher, pipeline, dc)

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Listen != "" {
		g.Go(func() error { return recorder.Serve(gctx, cfg.Metrics.Listen) })
	}

	if err := channelMgr.StartAll(gctx); err != nil {
		stop()
		_ = g.Wait()
		return err
	}

	slog.Info("chefbot started",
		"version", Version,
		"config_hash", cfg.Hash(),
		"agent_url", cfg.Agent.URL,
		"assistant_id", client.AssistantID(),
		"channels", channelMgr.GetEnabledChannels(),
		"commands", dispatcher.Commands(),
		"store", storeKind(cfg),
	)

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("graceful shutdown initiated")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = channelMgr.StopAll(shutdownCtx)
		if err := shutdownTracing(shutdownCtx); err != nil {
			slog.Warn("tracing shutdown failed", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("chefbot stopped with error", "error", err)
		return err
	}
	slog.Info("chefbot stopped")
	return nil
}

func newAgentClient(cfg *config.Config) *langgraph.Client {
	opts := []langgraph.Option{langgraph.WithTimeout(cfg.Agent.Timeout())}
	if cfg.Agent.APIKey != "" {
		opts = append(opts, langgraph.WithAPIKey(cfg.Agent.APIKey))
	}
	return langgraph.NewClient(cfg.Agent.URL, cfg.Agent.AssistantID, opts...)
}

func openStores(cfg *config.Config) (*store.Stores, error) {
	if cfg.Store.PostgresDSN != "" {
		return pg.NewPGStores(cfg.Store.PostgresDSN)
	}
	if cfg.Store.Path == "" {
		return store.NewMemoryStores(), nil
	}
	stores, err := sqlite.NewStores(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", cfg.Store.Path, err)
	}
	return stores, nil
}

func storeKind(cfg *config.Config) string {
	if cfg.Store.PostgresDSN != "" {
		return "postgres"
	}
	if cfg.Store.Path == "" {
		return "memory"
	}
	return "sqlite"
}

// logToStderr is used by short-lived subcommands that print results on stdout.
func logToStderr() {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
