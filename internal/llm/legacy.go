package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/daydemir/gass/internal/utils"
)

// LegacyCLI runs the Claude CLI synchronously with single JSON output
// and acceptEdits permissions. It is the fallback when the streaming
// agent fails.
type LegacyCLI struct {
	BinaryPath string
}

// NewLegacyCLI creates a new LegacyCLI agent
func NewLegacyCLI(binaryPath string) *LegacyCLI {
	if binaryPath == "" {
		binaryPath = "claude"
	}
	return &LegacyCLI{BinaryPath: utils.ResolveBinaryPath(binaryPath)}
}

func (l *LegacyCLI) Name() string {
	return "claude-cli"
}

// legacyOutput is the --output-format json envelope.
type legacyOutput struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype"`
	Result  string `json:"result"`
	IsError bool   `json:"is_error"`
}

// Invoke runs the prompt and returns the whole output as one piece.
func (l *LegacyCLI) Invoke(ctx context.Context, prompt string, opts InvokeOptions) (*Result, error) {
	cmd := exec.CommandContext(ctx, l.BinaryPath, l.buildArgs(prompt, opts)...)
	cmd.Dir = opts.WorkDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if strings.Contains(err.Error(), "executable file not found") {
			return nil, utils.AgentNotFoundError(l.BinaryPath)
		}
		return nil, fmt.Errorf("claude cli failed: %w%s", err, stderrSuffix(stderr.String()))
	}

	text := parseLegacyOutput(stdout.Bytes())
	if opts.OnText != nil {
		opts.OnText(text)
	}
	return OneShot(text), nil
}

func (l *LegacyCLI) buildArgs(prompt string, opts InvokeOptions) []string {
	tools := opts.AllowedTools
	if len(tools) == 0 {
		tools = DefaultAllowedTools
	}
	args := []string{"-p", prompt, "--output-format", "json", "--allowedTools", strings.Join(tools, ","), "--permission-mode", "acceptEdits"}
	if opts.Model != "" {
		args = append(args, "--model", opts.Model)
	}
	return args
}

// parseLegacyOutput extracts the result field of the JSON envelope, or
// returns the raw output when it is not an envelope.
func parseLegacyOutput(data []byte) string {
	var out legacyOutput
	if err := json.Unmarshal(bytes.TrimSpace(data), &out); err != nil || out.Type == "" {
		return string(data)
	}
	return out.Result
}
