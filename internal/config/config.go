// Package config is sessionforge's configuration layer: a JSON5-tolerant
// config file overlaid with environment variables, grounded on the
// teacher's Default()+Load(path)+applyEnvOverrides() shape in
// internal/config/config.go and config_load.go (vanducng-goclaw), scoped
// down from a multi-channel agent gateway config to the fields spec.md §6
// enumerates.
package config

import "sync"

// Config is the root configuration for sessionforge.
type Config struct {
	ClaudeDir         string           `json:"claude_dir,omitempty"`
	VSCodeStoragePath string           `json:"vscode_storage_path,omitempty"`
	Compression       CompressionConfig `json:"compression"`
	Provider          ProviderConfig   `json:"provider"`
	Gateway           GatewayConfig    `json:"gateway"`

	mu sync.RWMutex
}

// CompressionConfig controls the C8 compression engine (spec.md §6).
type CompressionConfig struct {
	Concurrency        int `json:"concurrency,omitempty"`
	TimeoutInitialMs   int `json:"timeout_initial_ms,omitempty"`
	TimeoutIncrementMs int `json:"timeout_increment_ms,omitempty"`
	MaxAttempts        int `json:"max_attempts,omitempty"`
	MinTokens          int `json:"min_tokens,omitempty"`
	ThinkingThreshold  int `json:"thinking_threshold,omitempty"`
	TargetHeavyPercent int `json:"target_heavy_percent,omitempty"`
	TargetStandardPercent int `json:"target_standard_percent,omitempty"`
}

// ProviderKind selects which LLM capability backs the compression engine
// (spec.md §6: LLM_PROVIDER).
type ProviderKind string

const (
	ProviderOpenRouter ProviderKind = "openrouter"
	ProviderCCCLI       ProviderKind = "cc-cli"
)

// ProviderConfig configures the external LLM collaborator the compression
// engine calls through (spec.md §4.2).
type ProviderConfig struct {
	Kind              ProviderKind `json:"kind,omitempty"`
	OpenRouterAPIKey  string       `json:"-"` // env OPENROUTER_API_KEY only, never persisted
	OpenRouterBaseURL string       `json:"openrouter_base_url,omitempty"`
	SmallModel        string       `json:"small_model,omitempty"`
	LargeModel        string       `json:"large_model,omitempty"`
	ClaudeCLIPath     string       `json:"claude_cli_path,omitempty"`
}

// GatewayConfig configures the HTTP API surface (§6).
type GatewayConfig struct {
	Host string `json:"host,omitempty"`
	Port int    `json:"port,omitempty"`
}

// ReplaceFrom copies all data fields from src into c, preserving c's
// mutex (grounded on the teacher's Config.ReplaceFrom, used when a
// running server reloads config without swapping the *Config pointer
// every caller holds).
func (c *Config) ReplaceFrom(src *Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ClaudeDir = src.ClaudeDir
	c.VSCodeStoragePath = src.VSCodeStoragePath
	c.Compression = src.Compression
	c.Provider = src.Provider
	c.Gateway = src.Gateway
}
