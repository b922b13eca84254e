package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// FlexibleStringSlice accepts both ["str"] and [123] in JSON.
// Discord snowflakes are often pasted as bare numbers, so numbers are
// decoded without going through float64.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	var raw []interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case json.Number:
			result = append(result, val.String())
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

// Config is the root configuration for chefbot.
type Config struct {
	Discord   DiscordConfig   `json:"discord"`
	Agent     AgentConfig     `json:"agent"`
	Delivery  DeliveryConfig  `json:"delivery"`
	Commands  CommandsConfig  `json:"commands"`
	Store     StoreConfig     `json:"store"`
	Metrics   MetricsConfig   `json:"metrics,omitempty"`
	Telemetry TelemetryConfig `json:"telemetry,omitempty"`
	Log       LogConfig       `json:"log,omitempty"`
	mu        sync.RWMutex
}

// AgentConfig points at the LangGraph deployment.
type AgentConfig struct {
	URL            string `json:"url"`
	AssistantID    string `json:"assistant_id"`
	APIKey         string `json:"api_key,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"` // blocking run timeout (default 600)
}

// Timeout returns the agent HTTP timeout.
func (a AgentConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// DeliveryConfig tunes how answers are chunked and paced.
type DeliveryConfig struct {
	MaxMessageLength int `json:"max_message_length,omitempty"` // default 2000
	PacingMS         int `json:"pacing_ms,omitempty"`          // default 1000
}

// Pacing returns the delay between chunk sends.
func (d DeliveryConfig) Pacing() time.Duration {
	return time.Duration(d.PacingMS) * time.Millisecond
}

// CommandsConfig tunes the command dispatcher.
type CommandsConfig struct {
	RateLimitPerMinute int `json:"rate_limit_per_minute,omitempty"` // per user; 0 disables
}

// StoreConfig selects binding/thread persistence.
type StoreConfig struct {
	Path        string `json:"path,omitempty"`         // sqlite file; empty keeps state in memory
	PostgresDSN string `json:"postgres_dsn,omitempty"` // takes precedence over path when set
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Listen string `json:"listen,omitempty"` // e.g. ":9090"; empty disables
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Endpoint    string `json:"endpoint,omitempty"` // OTLP/HTTP collector; empty disables
	ServiceName string `json:"service_name,omitempty"`
	Insecure    bool   `json:"insecure,omitempty"`
	Headers     string `json:"headers,omitempty"` // "k1=v1,k2=v2"
}

// LogConfig configures the optional log file.
type LogConfig struct {
	File string `json:"file,omitempty"`
}
