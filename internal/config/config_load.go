package config

import (
	"fmt"
	"os"

	"github.com/titanous/json5"

	"github.com/nextlevelbuilder/sessionforge/internal/pathcodec"
)

// Default returns a Config with sensible defaults (spec.md §6's
// enumerated defaults).
func Default() *Config {
	return &Config{
		ClaudeDir:         pathcodec.DefaultClaudeBase(),
		VSCodeStoragePath: "",
		Compression: CompressionConfig{
			Concurrency:           10,
			TimeoutInitialMs:      5000,
			TimeoutIncrementMs:    2500,
			MaxAttempts:           4,
			MinTokens:             20,
			ThinkingThreshold:     1000,
			TargetHeavyPercent:    10,
			TargetStandardPercent: 35,
		},
		Provider: ProviderConfig{
			Kind:              ProviderOpenRouter,
			OpenRouterBaseURL: "https://openrouter.ai/api/v1",
			SmallModel:        "anthropic/claude-3-5-haiku",
			LargeModel:        "anthropic/claude-sonnet-4-5",
			ClaudeCLIPath:     "claude",
		},
		Gateway: GatewayConfig{
			Host: "127.0.0.1",
			Port: 7890,
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars. A missing
// file is not an error -- Default() plus env overrides is a valid config
// for a fresh install (grounded on the teacher's Load, which treats
// os.IsNotExist the same way).
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if err := json5.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays environment variables onto the config. Env
// vars take precedence over file values (spec.md §6).
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	envStr("CLAUDE_DIR", &c.ClaudeDir)
	envStr("VSCODE_STORAGE_PATH", &c.VSCodeStoragePath)
	envStr("OPENROUTER_API_KEY", &c.Provider.OpenRouterAPIKey)

	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		c.Provider.Kind = ProviderKind(v)
	}
}

// VSCodeStorageBases returns the directories discovery should search for
// Copilot workspaces: the configured override if set, otherwise the
// platform defaults (spec.md §6).
func (c *Config) VSCodeStorageBases() []string {
	if c.VSCodeStoragePath != "" {
		return []string{c.VSCodeStoragePath}
	}
	return pathcodec.DefaultVSCodeStorageBases()
}
