package utils

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/daydemir/gass/internal/errors"
)

// AgentBinaryEnv, when set, takes precedence over the configured binary.
const AgentBinaryEnv = "GASS_AGENT_BINARY"

// ErrAgentNotFound is wrapped by every agent lookup failure.
var ErrAgentNotFound = errors.New("claude not found")

// installDirs are the Claude Code install locations tried after PATH.
func installDirs(home string) []string {
	dirs := []string{"/usr/local/bin", "/opt/homebrew/bin"}
	if home != "" {
		dirs = append([]string{filepath.Join(home, ".claude", "local"), filepath.Join(home, ".local", "bin")}, dirs...)
	}
	return dirs
}

// ResolveBinaryPath maps a configured binary to a path without checking
// that it exists. Order: the AgentBinaryEnv override, an absolute path,
// PATH lookup, "~/" expansion, then the usual install locations. When
// nothing matches, binary is returned unchanged.
func ResolveBinaryPath(binary string) string {
	if env := strings.TrimSpace(os.Getenv(AgentBinaryEnv)); env != "" {
		binary = env
	}
	if binary == "" {
		binary = "claude"
	}
	if filepath.IsAbs(binary) {
		return binary
	}
	if path, err := exec.LookPath(binary); err == nil {
		return path
	}

	home, _ := os.UserHomeDir()
	if rest, ok := strings.CutPrefix(binary, "~/"); ok && home != "" {
		return filepath.Join(home, rest)
	}
	if strings.ContainsRune(binary, filepath.Separator) {
		return binary
	}
	for _, dir := range installDirs(home) {
		candidate := filepath.Join(dir, binary)
		if FileExists(candidate) {
			return candidate
		}
	}
	return binary
}

// FindAgentBinary resolves binary and fails with setup instructions when
// no file exists at the resolved path.
func FindAgentBinary(binary string) (string, error) {
	path := ResolveBinaryPath(binary)
	if !FileExists(path) {
		return "", AgentNotFoundError(path)
	}
	return path, nil
}

// AgentNotFoundError explains how to make the agent binary reachable.
func AgentNotFoundError(tried string) error {
	return fmt.Errorf(`%w (tried %q)

Install Claude Code, then either put it on your PATH:
  export PATH="$HOME/.claude/local:$PATH"

or set the full path in .gass/config.yaml:
  agent:
    binary: /path/to/claude

or for a single run:
  %s=/path/to/claude gass run`, ErrAgentNotFound, tried, AgentBinaryEnv)
}
