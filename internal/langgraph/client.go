// Package langgraph is a minimal client for the LangGraph API: thread
// lookup/creation and blocking runs.
package langgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultTimeout bounds a single HTTP call, including a blocking run.
	DefaultTimeout = 10 * time.Minute

	// maxErrorBody caps how much of an error response is kept.
	maxErrorBody = 4 << 10
)

// Client talks to one LangGraph deployment.
type Client struct {
	apiBase     string
	apiKey      string
	assistantID string
	client      *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sets the X-Api-Key header sent with every request.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithTimeout overrides the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.client.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// NewClient creates a client for the deployment at apiBase running the
// given assistant (graph id or assistant UUID).
func NewClient(apiBase, assistantID string, opts ...Option) *Client {
	c := &Client{
		apiBase:     strings.TrimRight(apiBase, "/"),
		assistantID: assistantID,
		client:      &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AssistantID returns the assistant runs are started against.
func (c *Client) AssistantID() string { return c.assistantID }

// GetThread fetches a thread by id. A missing thread yields an error
// matching ErrNotFound.
func (c *Client) GetThread(ctx context.Context, threadID uuid.UUID) (*Thread, error) {
	var t Thread
	if err := c.do(ctx, http.MethodGet, "/threads/"+threadID.String(), nil, &t); err != nil {
		return nil, fmt.Errorf("get thread %s: %w", threadID, err)
	}
	return &t, nil
}

// CreateThread creates a thread with a caller-chosen id. Creating an id that
// already exists is a no-op server-side (if_exists=do_nothing); older
// servers answer 409, which matches ErrConflict.
func (c *Client) CreateThread(ctx context.Context, threadID uuid.UUID, metadata map[string]any) (*Thread, error) {
	req := createThreadRequest{
		ThreadID: threadID,
		IfExists: "do_nothing",
		Metadata: metadata,
	}
	var t Thread
	if err := c.do(ctx, http.MethodPost, "/threads", req, &t); err != nil {
		return nil, fmt.Errorf("create thread %s: %w", threadID, err)
	}
	return &t, nil
}

// RunWait starts a run on the thread and blocks until the graph finishes,
// returning its final state. userID is passed to the graph as
// config.configurable.user_id.
func (c *Client) RunWait(ctx context.Context, threadID uuid.UUID, question, userID string) (*RunResult, error) {
	req := runWaitRequest{
		AssistantID: c.assistantID,
		Input:       map[string]any{"question": question},
		Config: runConfig{
			Configurable: map[string]any{"user_id": userID},
		},
	}

	var res RunResult
	path := "/threads/" + threadID.String() + "/runs/wait"
	if err := c.do(ctx, http.MethodPost, path, req, &res); err != nil {
		return nil, fmt.Errorf("run thread %s: %w", threadID, err)
	}
	if res.Error != nil {
		return nil, fmt.Errorf("run thread %s: %s: %s", threadID, res.Error.Error, res.Error.Message)
	}
	if len(res.Messages) == 0 && res.Generation != nil {
		res.Messages = []Message{*res.Generation}
	}
	return &res, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.apiBase+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		httpReq.Header.Set("X-Api-Key", c.apiKey)
	}

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	slog.Debug("langgraph: response",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
