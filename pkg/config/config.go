// Package config provides unified configuration for the famulus engine.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (FAMULUS_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. ${env:NAME} placeholder expansion
//  6. Validation
//
// Placeholder expansion is an explicit resolution pass: every component
// downstream of Load consumes fully-resolved values and never touches the
// process environment itself.
package config

import "time"

// BackendKind identifies the adapter family that serves a profile.
// The set is closed; Validate rejects anything else.
type BackendKind string

const (
	BackendOpenAI    BackendKind = "openai"
	BackendAnthropic BackendKind = "anthropic"
	BackendOllama    BackendKind = "ollama"
	BackendGemini    BackendKind = "gemini"
	BackendAzure     BackendKind = "azure"
	BackendCustom    BackendKind = "custom"
)

// KnownBackends lists every valid BackendKind value.
var KnownBackends = []BackendKind{
	BackendOpenAI, BackendAnthropic, BackendOllama,
	BackendGemini, BackendAzure, BackendCustom,
}

// Config holds all configuration for the famulus engine.
type Config struct {
	// Default names the profile used when none is selected explicitly.
	Default string `yaml:"default"`

	// Profiles maps profile name to backend configuration.
	Profiles map[string]*Profile `yaml:"profiles"`

	// ToolServers maps server name to its launch configuration.
	ToolServers map[string]*ToolServerConfig `yaml:"tool_servers"`

	Engine  EngineConfig  `yaml:"engine"`
	Storage StorageConfig `yaml:"storage"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// Profile is one named backend configuration. Immutable once loaded;
// a reload replaces the whole Registry, never a single profile.
type Profile struct {
	// Name is filled from the profiles map key during Load.
	Name string `yaml:"-"`

	Backend    BackendKind `yaml:"backend"`
	APIKey     string      `yaml:"api_key"`
	APIKeyFile string      `yaml:"api_key_file"` // _file variant for api_key
	Model      string      `yaml:"model"`
	Endpoint   string      `yaml:"endpoint"`

	Temperature *float64 `yaml:"temperature"`
	MaxTokens   *int     `yaml:"max_tokens"`
}

// ToolServerConfig describes how to launch one tool server subprocess.
// Command, Args, and Env values may contain ${env:NAME} placeholders;
// Load resolves them against the process environment and fails on any
// name that is not set.
type ToolServerConfig struct {
	// Name is filled from the tool_servers map key during Load.
	Name string `yaml:"-"`

	Command  string            `yaml:"command"`
	Args     []string          `yaml:"args"`
	Env      map[string]string `yaml:"env"`
	Disabled bool              `yaml:"disabled"`
}

// EngineConfig holds orchestrator bounds.
type EngineConfig struct {
	// MaxToolRounds bounds the tool-call rounds within one turn
	// (default: 8). Exceeding it fails the turn.
	MaxToolRounds int `yaml:"max_tool_rounds"`

	// ToolCallTimeout bounds a single tool invocation (default: 30s).
	ToolCallTimeout time.Duration `yaml:"tool_call_timeout"`

	// ServerStartTimeout bounds spawn plus handshake plus discovery for
	// one tool server (default: 15s).
	ServerStartTimeout time.Duration `yaml:"server_start_timeout"`

	// SystemPrompt, when set, is prepended to every new conversation.
	SystemPrompt string `yaml:"system_prompt"`
}

// StorageConfig holds conversation persistence settings.
type StorageConfig struct {
	Type     string         `yaml:"type"` // "memory" or "postgres", default: "memory"
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"` // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`
	MigrateOnStart bool   `yaml:"migrate_on_start"`
}

// MetricsConfig holds the optional Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"` // default: ":9090"
	Path    string `yaml:"path"` // default: "/metrics"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Engine: EngineConfig{
			MaxToolRounds:      8,
			ToolCallTimeout:    30 * time.Second,
			ServerStartTimeout: 15 * time.Second,
		},
		Storage: StorageConfig{
			Type: "memory",
			Postgres: PostgresConfig{
				MaxConns: 25,
			},
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
			Path: "/metrics",
		},
	}
}
