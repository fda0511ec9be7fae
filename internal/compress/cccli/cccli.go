// Package cccli implements compress.Capability by shelling out to the
// Claude CLI binary, reusing the host's existing authentication instead
// of an API key (LLM_PROVIDER=cc-cli, spec.md §6).
//
// Grounded on other_examples' ClaudeBinProvider
// (3f8292b5_SamSaffron-term-llm__internal-llm-claude_bin.go.go): prompt
// delivered via stdin (avoiding "argument list too long" on large tool
// results), stdout scanned line-by-line for the JSON result message
// (--output-format json), stderr drained in the background, --print
// flag. Stripped of session
// resume and MCP tool wiring, since a compression call is a single
// stateless turn.
package cccli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/nextlevelbuilder/sessionforge/internal/session"
)

// Provider shells out to `claude --print` once per Compress call.
type Provider struct {
	binPath string
	model   string // "sonnet", "haiku", "opus"; empty uses the CLI default
}

// New builds a Provider. binPath defaults to "claude" (resolved via PATH).
func New(binPath, model string) *Provider {
	if binPath == "" {
		binPath = "claude"
	}
	return &Provider{binPath: binPath, model: model}
}

type resultMessage struct {
	Type   string `json:"type"`
	Result string `json:"result"`
	IsErr  bool   `json:"is_error"`
}

// Compress implements compress.Capability.
func (p *Provider) Compress(ctx context.Context, text string, level session.CompressionLevel, useLargeModel bool) (string, error) {
	args := []string{
		"--print",
		"--output-format", "json",
		"--system-prompt", systemPromptFor(level),
	}
	model := p.model
	if model == "" && useLargeModel {
		model = "opus"
	}
	if model != "" {
		args = append(args, "--model", model)
	}

	cmd := exec.CommandContext(ctx, p.binPath, args...)
	cmd.Stdin = strings.NewReader(text)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("cccli: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", fmt.Errorf("cccli: stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("cccli: start: %w", err)
	}

	var stderrBuf bytes.Buffer
	go func() {
		s := bufio.NewScanner(stderr)
		for s.Scan() {
			stderrBuf.WriteString(s.Text())
			stderrBuf.WriteByte('\n')
		}
	}()

	var out resultMessage
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		var msg resultMessage
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			continue
		}
		if msg.Type == "result" {
			out = msg
		}
	}

	if err := cmd.Wait(); err != nil {
		return "", fmt.Errorf("cccli: claude exited: %w: %s", err, stderrBuf.String())
	}
	if out.IsErr {
		return "", fmt.Errorf("cccli: claude reported error: %s", out.Result)
	}
	if strings.TrimSpace(out.Result) == "" {
		return "", fmt.Errorf("cccli: empty result")
	}
	return strings.TrimSpace(out.Result), nil
}

func systemPromptFor(level session.CompressionLevel) string {
	switch level {
	case session.LevelHeavyCompress:
		return "Rewrite the user's message, keeping only the essential meaning in about 10% of its original length. Preserve facts, decisions, and code identifiers. Reply with the rewritten text only, no preamble."
	default:
		return "Rewrite the user's message, keeping its essential meaning in about 35% of its original length. Preserve facts, decisions, and code identifiers. Reply with the rewritten text only, no preamble."
	}
}
