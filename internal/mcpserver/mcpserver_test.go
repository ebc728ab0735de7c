package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daydemir/gass/internal/cascade"
	"github.com/daydemir/gass/internal/resolver"
	"github.com/daydemir/gass/internal/state"
	"github.com/daydemir/gass/internal/types"
)

func newTestStore(t *testing.T) *state.PlanStore {
	t.Helper()
	store := state.NewPlanStore(t.TempDir())
	require.NoError(t, store.SaveIndex(&types.Index{Phases: []types.ChildSummary{
		{ID: "1", Title: "Setup", Status: types.StatusPending},
		{ID: "2", Title: "Build", Status: types.StatusPending},
	}}))
	require.NoError(t, store.Save(&types.PhaseNode{ID: "1", Title: "Setup", Status: types.StatusPending, Phases: []types.ChildSummary{
		{ID: "1.1", Title: "Init repo", Description: "create repository", Status: types.StatusPending},
		{ID: "1.2", Title: "CI", Description: "configure pipeline", Status: types.StatusPending, Dependencies: []types.PhaseID{"1.1"}},
	}}))
	return store
}

// makeReq builds a mcp.CallToolRequest with the given arguments.
func makeReq(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

// resultText extracts the text content from a tool result.
func resultText(r *mcp.CallToolResult) string {
	if r == nil || len(r.Content) == 0 {
		return ""
	}
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestReadyTasksTool(t *testing.T) {
	store := newTestStore(t)
	tool := NewReadyTasksTool(store, 5)
	assert.Equal(t, "ready_tasks", tool.Definition().Name)

	res, err := tool.Handle(context.Background(), makeReq(nil))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(res))

	var tasks []resolver.Task
	require.NoError(t, json.Unmarshal([]byte(resultText(res)), &tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, types.PhaseID("1.1"), tasks[0].ID)
	assert.Equal(t, types.PhaseID("1"), tasks[0].ParentID)
}

func TestReadyTasksToolUnknownScope(t *testing.T) {
	tool := NewReadyTasksTool(newTestStore(t), 5)
	res, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{"phase": "9"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestSetStatusToolCascades(t *testing.T) {
	store := newTestStore(t)
	tool := NewSetStatusTool(cascade.New(store, nil))

	for _, id := range []string{"1.1", "1.2"} {
		res, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{"id": id, "status": "completed"}))
		require.NoError(t, err)
		require.False(t, res.IsError, resultText(res))
	}

	doc, err := store.Load("1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, doc.Status)
}

func TestSetStatusToolRejectsBadInput(t *testing.T) {
	tool := NewSetStatusTool(cascade.New(newTestStore(t), nil))

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"missing id", map[string]interface{}{"status": "completed"}},
		{"bad status", map[string]interface{}{"id": "1.1", "status": "done"}},
		{"unknown id", map[string]interface{}{"id": "7.7", "status": "completed"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tool.Handle(context.Background(), makeReq(tt.args))
			require.NoError(t, err)
			assert.True(t, res.IsError)
		})
	}
}

func TestPlanStatusTool(t *testing.T) {
	tool := NewPlanStatusTool(newTestStore(t))

	res, err := tool.Handle(context.Background(), makeReq(nil))
	require.NoError(t, err)
	var roots []phaseView
	require.NoError(t, json.Unmarshal([]byte(resultText(res)), &roots))
	require.Len(t, roots, 2)
	assert.Equal(t, types.PhaseID("1"), roots[0].ID)

	res, err = tool.Handle(context.Background(), makeReq(map[string]interface{}{"id": "1"}))
	require.NoError(t, err)
	var one phaseView
	require.NoError(t, json.Unmarshal([]byte(resultText(res)), &one))
	assert.Len(t, one.Children, 2)

	res, err = tool.Handle(context.Background(), makeReq(map[string]interface{}{"id": "42"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestCheckPlanTool(t *testing.T) {
	store := newTestStore(t)
	doc, err := store.Load("1")
	require.NoError(t, err)
	doc.Phases[0].Status = types.StatusCompleted
	doc.Phases[1].Status = types.StatusCompleted
	require.NoError(t, store.Save(doc))

	res, err := NewCheckPlanTool(store).Handle(context.Background(), makeReq(nil))
	require.NoError(t, err)

	var report cascade.Report
	require.NoError(t, json.Unmarshal([]byte(resultText(res)), &report))
	require.NotEmpty(t, report.Issues)
	assert.Equal(t, cascade.IssueShouldBeCompleted, report.Issues[0].Kind)
}

func TestToolNames(t *testing.T) {
	store := newTestStore(t)
	require.NotNil(t, New(store, Options{}))

	names := []string{
		NewReadyTasksTool(store, 0).Definition().Name,
		NewSetStatusTool(cascade.New(store, nil)).Definition().Name,
		NewPlanStatusTool(store).Definition().Name,
		NewCheckPlanTool(store).Definition().Name,
	}
	assert.Equal(t, []string{"ready_tasks", "set_phase_status", "plan_status", "check_plan"}, names)
}
