package config

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/titanous/json5"
)

// DefaultPath is used when neither --config nor $CHEFBOT_CONFIG is set.
const DefaultPath = "config.json"

// ErrMissing is wrapped by Validate for each absent required field.
var ErrMissing = errors.New("missing required config")

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Discord: DiscordConfig{
			CommandPrefix:    "!",
			SharedThreadName: "Recipe Bot Convo",
			DMPolicy:         "open",
		},
		Agent: AgentConfig{
			AssistantID:    "agent",
			TimeoutSeconds: 600,
		},
		Delivery: DeliveryConfig{
			MaxMessageLength: 2000,
			PacingMS:         1000,
		},
		Commands: CommandsConfig{
			RateLimitPerMinute: 10,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "chefbot",
		},
	}
}

// ResolvePath picks the config file: the flag value, then $CHEFBOT_CONFIG,
// then DefaultPath.
func ResolvePath(flag string) string {
	if flag != "" {
		return flag
	}
	if v := os.Getenv("CHEFBOT_CONFIG"); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads an optional .env, then the JSON5 config file, then overlays
// env vars. A missing config file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read .env: %w", err)
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json5.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				*dst = n
			}
		}
	}

	// Discord
	envStr("DISCORD_TOKEN", &c.Discord.Token)
	envStr("CHEFBOT_COMMAND_PREFIX", &c.Discord.CommandPrefix)
	envStr("CHEFBOT_SHARED_THREAD", &c.Discord.SharedThreadName)

	// Agent
	envStr("ASSISTANT_URL", &c.Agent.URL)
	envStr("ASSISTANT_ID", &c.Agent.AssistantID)
	envStr("LANGSMITH_API_KEY", &c.Agent.APIKey)
	envStr("CHEFBOT_AGENT_API_KEY", &c.Agent.APIKey)
	envInt("CHEFBOT_AGENT_TIMEOUT", &c.Agent.TimeoutSeconds)

	// Delivery
	envInt("CHEFBOT_PACING_MS", &c.Delivery.PacingMS)

	// Store, metrics, log
	envStr("CHEFBOT_STORE_PATH", &c.Store.Path)
	envStr("CHEFBOT_POSTGRES_DSN", &c.Store.PostgresDSN)
	envStr("CHEFBOT_METRICS_LISTEN", &c.Metrics.Listen)
	envStr("CHEFBOT_LOG_FILE", &c.Log.File)

	// Telemetry
	envStr("CHEFBOT_TELEMETRY_ENDPOINT", &c.Telemetry.Endpoint)
	envStr("CHEFBOT_TELEMETRY_SERVICE_NAME", &c.Telemetry.ServiceName)
	envStr("CHEFBOT_TELEMETRY_HEADERS", &c.Telemetry.Headers)
	if v := os.Getenv("CHEFBOT_TELEMETRY_INSECURE"); v != "" {
		c.Telemetry.Insecure = v == "true" || v == "1"
	}
}

// applyDefaults restores defaults for values a file explicitly zeroed.
func (c *Config) applyDefaults() {
	d := Default()
	if c.Discord.CommandPrefix == "" {
		c.Discord.CommandPrefix = d.Discord.CommandPrefix
	}
	if c.Discord.SharedThreadName == "" {
		c.Discord.SharedThreadName = d.Discord.SharedThreadName
	}
	if c.Agent.AssistantID == "" {
		c.Agent.AssistantID = d.Agent.AssistantID
	}
	if c.Agent.TimeoutSeconds <= 0 {
		c.Agent.TimeoutSeconds = d.Agent.TimeoutSeconds
	}
	if c.Delivery.MaxMessageLength <= 0 {
		c.Delivery.MaxMessageLength = d.Delivery.MaxMessageLength
	}
	if c.Delivery.PacingMS <= 0 {
		c.Delivery.PacingMS = d.Delivery.PacingMS
	}
	c.Agent.URL = strings.TrimRight(c.Agent.URL, "/")
}

// ValidateAgent checks the fields needed to talk to the agent service.
func (c *Config) ValidateAgent() error {
	if c.Agent.URL == "" {
		return fmt.Errorf("%w: agent.url (ASSISTANT_URL)", ErrMissing)
	}
	return nil
}

// Validate checks everything the bot needs to run.
func (c *Config) Validate() error {
	if err := c.ValidateAgent(); err != nil {
		return err
	}
	if c.Discord.Token == "" {
		return fmt.Errorf("%w: discord.token (DISCORD_TOKEN)", ErrMissing)
	}
	return nil
}

// Hash returns a short SHA-256 of the config, handy in startup logs.
func (c *Config) Hash() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, _ := json.Marshal(c)
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:8])
}

const secretMask = "***"

// MaskedCopy returns a copy of the config with secret fields masked.
func (c *Config) MaskedCopy() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := json.Marshal(c)
	if err != nil {
		return &Config{}
	}
	cp := Default()
	if err := json.Unmarshal(data, cp); err != nil {
		return &Config{}
	}

	maskNonEmpty(&cp.Discord.Token)
	maskNonEmpty(&cp.Agent.APIKey)
	maskNonEmpty(&cp.Store.PostgresDSN)
	maskNonEmpty(&cp.Telemetry.Headers)
	return cp
}

func maskNonEmpty(s *string) {
	if *s != "" {
		*s = secretMask
	}
}
