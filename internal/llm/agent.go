// Package llm is the boundary to the external coding agent.
package llm

import (
	"context"
	"encoding/json"
	"strings"
)

// Agent runs a prompt through an external agent.
type Agent interface {
	// Name returns the agent name used in logs and errors.
	Name() string

	// Invoke runs prompt to completion and returns its output.
	Invoke(ctx context.Context, prompt string, opts InvokeOptions) (*Result, error)
}

// InvokeOptions configures one invocation.
type InvokeOptions struct {
	// Preset names the system prompt profile, e.g. "claude_code".
	Preset string
	// SettingSources lists the settings scopes the agent may load,
	// e.g. user, project and local.
	SettingSources []string
	AllowedTools   []string
	Model          string
	WorkDir        string

	// OnText, when set, receives each text chunk as it arrives.
	OnText func(text string)
}

// PresetClaudeCode is the Claude Code system prompt, the CLI default.
const PresetClaudeCode = "claude_code"

// DefaultSettingSources are the settings scopes loaded when none are given.
var DefaultSettingSources = []string{"user", "project", "local"}

// DefaultAllowedTools are the tools granted to the legacy CLI agent.
var DefaultAllowedTools = []string{"Write", "Read", "Bash", "Task", "Edit", "Glob", "Grep"}

// Result is an agent response. It arrives either as one piece or as an
// ordered sequence of chunks; Text hides the difference.
type Result struct {
	chunks   []string
	streamed bool

	Usage TokenStats
}

// OneShot wraps a single response.
func OneShot(text string) *Result {
	return &Result{chunks: []string{text}}
}

// Chunked wraps a response delivered in pieces.
func Chunked(chunks ...string) *Result {
	return &Result{chunks: chunks, streamed: true}
}

// Append adds a chunk. Strings are kept verbatim; any other value is
// JSON-encoded.
func (r *Result) Append(v any) {
	r.streamed = true
	switch c := v.(type) {
	case string:
		r.chunks = append(r.chunks, c)
	case []byte:
		r.chunks = append(r.chunks, string(c))
	default:
		data, err := json.Marshal(c)
		if err != nil {
			return
		}
		r.chunks = append(r.chunks, string(data))
	}
}

// Streamed reports whether the response arrived in chunks.
func (r *Result) Streamed() bool {
	return r.streamed
}

// Chunks returns the pieces in arrival order.
func (r *Result) Chunks() []string {
	return r.chunks
}

// Text concatenates every chunk in arrival order.
func (r *Result) Text() string {
	if r == nil {
		return ""
	}
	return strings.Join(r.chunks, "")
}

// TokenStats tracks token usage reported by the agent.
type TokenStats struct {
	InputTokens     int
	OutputTokens    int
	TotalTokens     int
	CacheReadTokens int
}

// AgentFunc adapts a function to the Agent interface.
type AgentFunc func(ctx context.Context, prompt string, opts InvokeOptions) (*Result, error)

func (f AgentFunc) Name() string {
	return "func"
}

func (f AgentFunc) Invoke(ctx context.Context, prompt string, opts InvokeOptions) (*Result, error) {
	return f(ctx, prompt, opts)
}
