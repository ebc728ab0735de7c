package llm

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/daydemir/gass/internal/utils"
)

// Claude runs the Claude Code CLI in stream-json mode and returns the
// streamed text as a chunked Result.
type Claude struct {
	BinaryPath string
	Model      string
}

// NewClaude creates a new Claude agent.
func NewClaude(binaryPath, model string) *Claude {
	if binaryPath == "" {
		binaryPath = "claude"
	}
	return &Claude{BinaryPath: utils.ResolveBinaryPath(binaryPath), Model: model}
}

func (c *Claude) Name() string {
	return "claude"
}

// Invoke runs one prompt and collects the streamed assistant text.
func (c *Claude) Invoke(ctx context.Context, prompt string, opts InvokeOptions) (*Result, error) {
	if opts.Preset != "" && opts.Preset != PresetClaudeCode {
		return nil, fmt.Errorf("claude: unsupported preset %q", opts.Preset)
	}
	cmd := exec.CommandContext(ctx, c.BinaryPath, c.buildArgs(prompt, opts)...)
	cmd.Dir = opts.WorkDir
	var stderr strings.Builder
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		if strings.Contains(err.Error(), "executable file not found") {
			return nil, utils.AgentNotFoundError(c.BinaryPath)
		}
		return nil, fmt.Errorf("failed to start claude: %w", err)
	}

	reader := &cmdReader{ReadCloser: stdout, cmd: cmd}
	res, parseErr := CollectStream(reader, opts.OnText)
	if err := reader.Close(); err != nil {
		return nil, fmt.Errorf("claude exited: %w%s", err, stderrSuffix(stderr.String()))
	}
	if parseErr != nil {
		return nil, fmt.Errorf("failed to read claude output: %w", parseErr)
	}
	if res.IsError {
		return nil, fmt.Errorf("claude reported an error: %s", truncateText(res.Text(), 200))
	}
	return res.Result, nil
}

func (c *Claude) buildArgs(prompt string, opts InvokeOptions) []string {
	args := []string{"--dangerously-skip-permissions"}

	model := opts.Model
	if model == "" {
		model = c.Model
	}
	if model != "" {
		args = append(args, "--model", model)
	}

	args = append(args, "-p", prompt)

	sources := opts.SettingSources
	if len(sources) == 0 {
		sources = DefaultSettingSources
	}
	args = append(args, "--setting-sources", strings.Join(sources, ","))

	if len(opts.AllowedTools) > 0 {
		args = append(args, "--allowedTools", strings.Join(opts.AllowedTools, ","))
	}

	return append(args, "--output-format", "stream-json", "--verbose")
}

// cmdReader wraps an io.ReadCloser and waits for the command on close
type cmdReader struct {
	io.ReadCloser
	cmd *exec.Cmd
}

func (r *cmdReader) Close() error {
	closeErr := r.ReadCloser.Close()
	waitErr := r.cmd.Wait()
	if waitErr != nil {
		return waitErr
	}
	return closeErr
}

func stderrSuffix(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return ": " + truncateText(s, 300)
}
