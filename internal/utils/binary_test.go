package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/daydemir/gass/internal/errors"
)

func writeExecutable(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}
}

func TestResolveBinaryPath(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "claude-test")
	writeExecutable(t, bin)

	t.Setenv(AgentBinaryEnv, "")
	t.Setenv("PATH", dir)

	tests := []struct {
		name   string
		binary string
		want   string
	}{
		{name: "absolute", binary: "/opt/agent/claude", want: "/opt/agent/claude"},
		{name: "on PATH", binary: "claude-test", want: bin},
		{name: "relative with separator", binary: "bin/claude-missing", want: "bin/claude-missing"},
		{name: "unknown name", binary: "no-such-agent-binary", want: "no-such-agent-binary"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveBinaryPath(tt.binary); got != tt.want {
				t.Errorf("ResolveBinaryPath(%q) = %q, want %q", tt.binary, got, tt.want)
			}
		})
	}
}

func TestResolveBinaryPathEnvOverride(t *testing.T) {
	t.Setenv(AgentBinaryEnv, "/custom/claude")
	if got := ResolveBinaryPath("claude"); got != "/custom/claude" {
		t.Errorf("ResolveBinaryPath() = %q, want env override", got)
	}
}

func TestFindAgentBinary(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "claude")
	writeExecutable(t, bin)
	t.Setenv(AgentBinaryEnv, "")

	got, err := FindAgentBinary(bin)
	if err != nil || got != bin {
		t.Errorf("FindAgentBinary(%q) = (%q, %v)", bin, got, err)
	}

	_, err = FindAgentBinary(filepath.Join(dir, "missing"))
	if !errors.Is(err, ErrAgentNotFound) {
		t.Errorf("FindAgentBinary(missing) error = %v, want ErrAgentNotFound", err)
	}
}
