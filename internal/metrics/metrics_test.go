package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCounts(t *testing.T) {
	r := NewPrometheusRecorder()

	r.ObserveOutcome("delivered")
	r.ObserveOutcome("delivered")
	r.ObserveOutcome("agent-failed")
	r.ObserveChunk(true)
	r.ObserveChunk(false)
	r.ObserveAgentCall(2*time.Second, nil)
	r.ObserveAgentCall(time.Second, errors.New("boom"))
	r.ObserveCommand("recipe", "ok")

	if got := testutil.ToFloat64(r.requestsTotal.WithLabelValues("delivered")); got != 2 {
		t.Errorf("delivered = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.requestsTotal.WithLabelValues("agent-failed")); got != 1 {
		t.Errorf("agent-failed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.chunksTotal.WithLabelValues("error")); got != 1 {
		t.Errorf("failed chunks = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.agentCalls.WithLabelValues("error")); got != 1 {
		t.Errorf("failed agent calls = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.commandsTotal.WithLabelValues("recipe", "ok")); got != 1 {
		t.Errorf("recipe commands = %v, want 1", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := NewPrometheusRecorder()
	r.ObserveOutcome("rejected-empty")

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if !strings.Contains(string(body), `chefbot_questions_total{outcome="rejected-empty"} 1`) {
		t.Errorf("exposition missing question counter:\n%s", body)
	}
}
