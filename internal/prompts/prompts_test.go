package prompts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daydemir/gass/internal/types"
)

type breakdownData struct {
	ID           types.PhaseID
	Title        string
	Description  string
	Duration     types.Duration
	Priority     types.Priority
	Dependencies []types.PhaseID
	Errors       string
}

func TestNames(t *testing.T) {
	assert.ElementsMatch(t, []string{Breakdown, Task, Validate}, Names())
}

func TestRenderBreakdown(t *testing.T) {
	out, err := Render("", Breakdown, breakdownData{
		ID:           "2.1",
		Title:        "Auth",
		Description:  "Login and sessions",
		Dependencies: []types.PhaseID{"1", "1.2"},
	})
	require.NoError(t, err)

	assert.Contains(t, out, "PHASE ID: 2.1")
	assert.Contains(t, out, "DURATION: Unknown")
	assert.Contains(t, out, "PRIORITY: medium")
	assert.Contains(t, out, "DEPENDENCIES: 1, 1.2")
	assert.NotContains(t, out, "previous attempt")

	out, err = Render("", Breakdown, breakdownData{
		ID:       "3",
		Duration: types.ParseDuration("60-120"),
		Priority: types.NamedPriority("high"),
		Errors:   "- title: field is required",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "DURATION: 60-120")
	assert.Contains(t, out, "PRIORITY: high")
	assert.Contains(t, out, "DEPENDENCIES: None")
	assert.Contains(t, out, "- title: field is required")
}

func TestRenderWorkspaceOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "prompts"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prompts", "validate.md"), []byte("check {{.ID}}"), 0644))

	out, err := Render(dir, Validate, map[string]string{"ID": "4.2"})
	require.NoError(t, err)
	assert.Equal(t, "check 4.2", out)

	out, err = Render(dir, Task, map[string]any{"ID": "4.2", "Title": "x"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Using the project structure"))
}

func TestGetUnknown(t *testing.T) {
	_, err := Get("nope")
	assert.Error(t, err)
}
