// Package metrics exposes Prometheus counters for the relay and its commands.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chefbot"

// PrometheusRecorder records delivery and command metrics into its own
// registry.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	requestsTotal *prometheus.CounterVec
	agentCalls    *prometheus.CounterVec
	agentDuration prometheus.Histogram
	chunksTotal   *prometheus.CounterVec
	commandsTotal *prometheus.CounterVec
}

// NewPrometheusRecorder creates a recorder backed by a fresh registry that
// also carries the Go runtime and process collectors.
func NewPrometheusRecorder() *PrometheusRecorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &PrometheusRecorder{
		registry: reg,
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "questions_total",
				Help:      "Questions handled, by terminal outcome",
			},
			[]string{"outcome"},
		),
		agentCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "agent_calls_total",
				Help:      "Agent run calls by status",
			},
			[]string{"status"},
		),
		agentDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "agent_call_duration_seconds",
				Help:      "Duration of blocking agent runs in seconds",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
			},
		),
		chunksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chunks_sent_total",
				Help:      "Answer chunks sent to chat, by status",
			},
			[]string{"status"},
		),
		commandsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_total",
				Help:      "Chat commands dispatched, by command and result",
			},
			[]string{"command", "result"},
		),
	}
}

// ObserveOutcome counts a finished question.
func (p *PrometheusRecorder) ObserveOutcome(outcome string) {
	p.requestsTotal.WithLabelValues(outcome).Inc()
}

// ObserveAgentCall records one agent run.
func (p *PrometheusRecorder) ObserveAgentCall(d time.Duration, err error) {
	p.agentCalls.WithLabelValues(status(err == nil)).Inc()
	p.agentDuration.Observe(d.Seconds())
}

// ObserveChunk counts one chunk send attempt.
func (p *PrometheusRecorder) ObserveChunk(ok bool) {
	p.chunksTotal.WithLabelValues(status(ok)).Inc()
}

// ObserveCommand counts one dispatched command. result is one of "ok",
// "denied", "limited", "error".
func (p *PrometheusRecorder) ObserveCommand(command, result string) {
	p.commandsTotal.WithLabelValues(command, result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (p *PrometheusRecorder) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", p.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("metrics server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func status(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}
