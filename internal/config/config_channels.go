package config

// DiscordConfig configures the Discord transport.
type DiscordConfig struct {
	Token            string              `json:"token"`
	CommandPrefix    string              `json:"command_prefix,omitempty"`     // default "!"
	SharedThreadName string              `json:"shared_thread_name,omitempty"` // default "Recipe Bot Convo"
	AllowFrom        FlexibleStringSlice `json:"allow_from"`                   // user IDs; empty allows everyone
	DMPolicy         string              `json:"dm_policy,omitempty"`          // "open" (default), "allowlist", "disabled"
}
