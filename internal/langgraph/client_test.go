package langgraph

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

var testThreadID = uuid.MustParse("6ba7b810-9dad-51d1-80b4-00c04fd430c8")

func TestGetThread_Found(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.URL.Path != "/threads/"+testThreadID.String() {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("X-Api-Key"); got != "secret" {
			t.Errorf("X-Api-Key = %q, want %q", got, "secret")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"thread_id":"` + testThreadID.String() + `","status":"idle","created_at":"2024-09-01T10:00:00Z","updated_at":"2024-09-01T10:00:00Z"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "agent", WithAPIKey("secret"))
	th, err := c.GetThread(context.Background(), testThreadID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if th.ThreadID != testThreadID || th.Status != "idle" {
		t.Errorf("unexpected thread: %+v", th)
	}
	if c.AssistantID() != "agent" {
		t.Errorf("AssistantID = %q", c.AssistantID())
	}
}

func TestGetThread_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"Thread not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "agent").GetThread(context.Background(), testThreadID)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if IsRetryable(err) {
		t.Error("not-found should not be retryable")
	}
}

func TestGetThread_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "agent").GetThread(context.Background(), testThreadID)
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("502 must not match ErrNotFound")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected *APIError with 502, got %v", err)
	}
	if !IsRetryable(err) {
		t.Error("502 should be retryable")
	}
}

func TestCreateThread_SendsDeterministicID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/threads" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var body createThreadRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
			return
		}
		if body.ThreadID != testThreadID {
			t.Errorf("thread_id = %s, want %s", body.ThreadID, testThreadID)
		}
		if body.IfExists != "do_nothing" {
			t.Errorf("if_exists = %q", body.IfExists)
		}
		if body.Metadata["scope"] != "DISCORD_GUILD:1" {
			t.Errorf("metadata = %v", body.Metadata)
		}
		json.NewEncoder(w).Encode(Thread{ThreadID: body.ThreadID})
	}))
	defer srv.Close()

	th, err := NewClient(srv.URL, "agent").CreateThread(context.Background(), testThreadID, map[string]any{"scope": "DISCORD_GUILD:1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if th.ThreadID != testThreadID {
		t.Errorf("thread id = %s", th.ThreadID)
	}
}

func TestCreateThread_Conflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "exists", http.StatusConflict)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "agent").CreateThread(context.Background(), testThreadID, nil)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestRunWait(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/threads/"+testThreadID.String()+"/runs/wait" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var body runWaitRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
			return
		}
		if body.AssistantID != "recipe_agent" {
			t.Errorf("assistant_id = %q", body.AssistantID)
		}
		if body.Input["question"] != "What's a good soup?" {
			t.Errorf("input = %v", body.Input)
		}
		if body.Config.Configurable["user_id"] != "u-1" {
			t.Errorf("configurable = %v", body.Config.Configurable)
		}
		w.Write([]byte(`{"messages":[
			{"type":"human","content":"What's a good soup?"},
			{"type":"ai","content":[{"type":"text","text":"Try "},{"type":"tool_use","text":"x"},{"type":"text","text":"minestrone."}]}
		]}`))
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL, "recipe_agent").RunWait(context.Background(), testThreadID, "What's a good soup?", "u-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(res.Messages))
	}
	if got := string(res.Messages[1].Content); got != "Try minestrone." {
		t.Errorf("last content = %q", got)
	}
}

func TestRunWait_GenerationFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"generation":{"type":"ai","content":"Gazpacho."}}`))
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL, "agent").RunWait(context.Background(), testThreadID, "q", "u")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Messages) != 1 || res.Messages[0].Content != "Gazpacho." {
		t.Errorf("unexpected messages: %+v", res.Messages)
	}
}

func TestRunWait_RunError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"__error__":{"error":"ValueError","message":"bad state"}}`))
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL, "agent").RunWait(context.Background(), testThreadID, "q", "u"); err == nil {
		t.Fatal("expected error for failed run")
	}
}
