package langgraph

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Thread is a server-side conversation thread.
type Thread struct {
	ThreadID  uuid.UUID      `json:"thread_id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Status    string         `json:"status,omitempty"` // "idle", "busy", "interrupted", "error"
}

// Message is one entry of a graph's message state.
type Message struct {
	ID      string  `json:"id,omitempty"`
	Type    string  `json:"type,omitempty"` // "human", "ai", "tool", "system"
	Content Content `json:"content"`
}

// Content holds message text. The API sends either a plain string or a list
// of typed parts; only "text" parts are kept.
type Content string

func (c *Content) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = Content(s)
		return nil
	}
	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	var b strings.Builder
	for _, p := range parts {
		if p.Type == "" || p.Type == "text" {
			b.WriteString(p.Text)
		}
	}
	*c = Content(b.String())
	return nil
}

// RunResult is the final state returned by a blocking run.
type RunResult struct {
	Messages []Message `json:"messages"`
	// Generation is set by graphs that expose a single answer field instead
	// of a message list.
	Generation *Message `json:"generation,omitempty"`
	// Error is populated when the run failed server-side but the API still
	// answered 200.
	Error *RunError `json:"__error__,omitempty"`
}

// RunError describes a failed run.
type RunError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type createThreadRequest struct {
	ThreadID uuid.UUID      `json:"thread_id"`
	IfExists string         `json:"if_exists,omitempty"` // "raise" (server default) or "do_nothing"
	Metadata map[string]any `json:"metadata,omitempty"`
}

type runWaitRequest struct {
	AssistantID string         `json:"assistant_id"`
	Input       map[string]any `json:"input"`
	Config      runConfig      `json:"config"`
}

type runConfig struct {
	Configurable map[string]any `json:"configurable"`
}
