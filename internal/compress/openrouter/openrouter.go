// Package openrouter implements compress.Capability over an
// OpenAI-compatible chat completions endpoint (OpenRouter by default).
//
// Grounded on the teacher's internal/providers/openai.go: same
// apiBase/apiKey/http.Client shape, same "/chat/completions" POST with a
// bearer token, same json.Decoder response parse. Stripped of streaming,
// tool calling, and multi-provider dispatch, since the compression
// engine needs exactly one blocking call per task (spec.md §4.2) and
// already owns its own retry/timeout policy at the task level.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nextlevelbuilder/sessionforge/internal/session"
)

// Provider calls an OpenAI-compatible chat completions endpoint to
// compress one message's text at a time.
type Provider struct {
	apiKey       string
	apiBase      string
	smallModel   string
	largeModel   string
	client       *http.Client
}

// New builds a Provider. smallModel answers tasks under the
// thinking-threshold; largeModel answers the rest (spec.md §4.2,
// useLargeModel).
func New(apiKey, apiBase, smallModel, largeModel string) *Provider {
	if apiBase == "" {
		apiBase = "https://openrouter.ai/api/v1"
	}
	return &Provider{
		apiKey:     apiKey,
		apiBase:    strings.TrimRight(apiBase, "/"),
		smallModel: smallModel,
		largeModel: largeModel,
		client:     &http.Client{Timeout: 120 * time.Second},
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Compress implements compress.Capability.
func (p *Provider) Compress(ctx context.Context, text string, level session.CompressionLevel, useLargeModel bool) (string, error) {
	model := p.smallModel
	if useLargeModel {
		model = p.largeModel
	}

	body := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPromptFor(level)},
			{Role: "user", Content: text},
		},
	}

	respBody, err := p.doRequest(ctx, body)
	if err != nil {
		return "", err
	}
	defer respBody.Close()

	var resp chatResponse
	if err := json.NewDecoder(respBody).Decode(&resp); err != nil {
		return "", fmt.Errorf("openrouter: decode response: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("openrouter: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openrouter: empty choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (p *Provider) doRequest(ctx context.Context, body chatRequest) (io.ReadCloser, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("openrouter: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiBase+"/chat/completions", bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("openrouter: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openrouter: request failed: %w", err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("openrouter: status %d: %s", resp.StatusCode, string(data))
	}
	return resp.Body, nil
}

// systemPromptFor returns the instruction that targets the level's
// retained-length fraction (spec.md glossary: compress ~35%, heavy-compress
// ~10%).
func systemPromptFor(level session.CompressionLevel) string {
	switch level {
	case session.LevelHeavyCompress:
		return "Rewrite the following conversational message, keeping only the essential meaning in about 10% of its original length. Preserve facts, decisions, and code identifiers. Reply with the rewritten text only."
	default:
		return "Rewrite the following conversational message, keeping its essential meaning in about 35% of its original length. Preserve facts, decisions, and code identifiers. Reply with the rewritten text only."
	}
}
