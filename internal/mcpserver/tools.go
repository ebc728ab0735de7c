package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/daydemir/gass/internal/cascade"
	"github.com/daydemir/gass/internal/resolver"
	"github.com/daydemir/gass/internal/state"
	"github.com/daydemir/gass/internal/types"
)

// jsonResult renders v as an indented JSON text result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// intArg extracts an integer argument, returning defaultVal if the key
// is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// ─── ready_tasks ────────────────────────────────────────────────────────────

// ReadyTasksTool lists the tasks ready to execute.
type ReadyTasksTool struct {
	store        *state.PlanStore
	defaultLimit int
}

// NewReadyTasksTool creates a ReadyTasksTool.
func NewReadyTasksTool(store *state.PlanStore, defaultLimit int) *ReadyTasksTool {
	return &ReadyTasksTool{store: store, defaultLimit: defaultLimit}
}

// Definition returns the MCP tool definition for ready_tasks.
func (t *ReadyTasksTool) Definition() mcp.Tool {
	return mcp.NewTool("ready_tasks",
		mcp.WithDescription(
			"List pending leaf tasks whose dependencies are all completed, "+
				"highest priority first, with parent and ancestor context.",
		),
		mcp.WithString("phase",
			mcp.Description("Only consider the sub-phases of this phase id"),
		),
		mcp.WithString("filter",
			mcp.Description("Case-insensitive text matched against task id and description"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of tasks to return; 0 returns all"),
		),
	)
}

// Handle processes the ready_tasks tool call.
func (t *ReadyTasksTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tasks, err := resolver.Load(t.store, resolver.Options{
		Scope:  types.PhaseID(strings.TrimSpace(req.GetString("phase", ""))),
		Filter: req.GetString("filter", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to resolve tasks: %v", err)), nil
	}
	if limit := intArg(req, "limit", t.defaultLimit); limit > 0 && len(tasks) > limit {
		tasks = tasks[:limit]
	}
	if tasks == nil {
		tasks = []resolver.Task{}
	}
	return jsonResult(tasks)
}

// ─── set_phase_status ───────────────────────────────────────────────────────

// SetStatusTool changes the status of a phase with full cascade.
type SetStatusTool struct {
	cascader *cascade.Cascader
}

// NewSetStatusTool creates a SetStatusTool.
func NewSetStatusTool(cascader *cascade.Cascader) *SetStatusTool {
	return &SetStatusTool{cascader: cascader}
}

// Definition returns the MCP tool definition for set_phase_status.
func (t *SetStatusTool) Definition() mcp.Tool {
	return mcp.NewTool("set_phase_status",
		mcp.WithDescription(
			"Set the status of a phase. The status is forced onto every descendant, "+
				"and completing the last open child completes its ancestors.",
		),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Phase id, e.g. 2.1.3"),
		),
		mcp.WithString("status",
			mcp.Required(),
			mcp.Description("New status"),
			mcp.Enum("pending", "in-progress", "completed"),
		),
	)
}

type statusChange struct {
	ID          types.PhaseID `json:"id"`
	From        types.Status  `json:"from"`
	To          types.Status  `json:"to"`
	Auto        bool          `json:"auto,omitempty"`
	SummaryOnly bool          `json:"summary_only,omitempty"`
}

// Handle processes the set_phase_status tool call.
func (t *SetStatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := strings.TrimSpace(req.GetString("id", ""))
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}
	status, err := types.ParseStatus(req.GetString("status", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := t.cascader.SetStatus(types.PhaseID(id), status)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to set status: %v", err)), nil
	}
	changes := make([]statusChange, 0, len(res.Changes))
	for _, c := range res.Changes {
		changes = append(changes, statusChange{ID: c.ID, From: c.From, To: c.To, Auto: c.Auto, SummaryOnly: c.SummaryOnly})
	}
	return jsonResult(map[string]any{
		"id":             id,
		"status":         status,
		"changes":        changes,
		"auto_completed": res.AutoCompleted(),
	})
}

// ─── plan_status ────────────────────────────────────────────────────────────

// PlanStatusTool reports the status of the top-level phases.
type PlanStatusTool struct {
	store *state.PlanStore
}

// NewPlanStatusTool creates a PlanStatusTool.
func NewPlanStatusTool(store *state.PlanStore) *PlanStatusTool {
	return &PlanStatusTool{store: store}
}

// Definition returns the MCP tool definition for plan_status.
func (t *PlanStatusTool) Definition() mcp.Tool {
	return mcp.NewTool("plan_status",
		mcp.WithDescription(
			"Show each phase with its resolved status and its immediate sub-phases. "+
				"Without an id, lists the top-level phases.",
		),
		mcp.WithString("id",
			mcp.Description("Phase id to inspect"),
		),
	)
}

type phaseView struct {
	ID       types.PhaseID `json:"id"`
	Title    string        `json:"title"`
	Status   types.Status  `json:"status"`
	Children []phaseView   `json:"children,omitempty"`
}

// Handle processes the plan_status tool call.
func (t *PlanStatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tree, err := state.BuildTree(t.store)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load plan: %v", err)), nil
	}

	view := func(n *state.Node, depth int) phaseView {
		v := phaseView{ID: n.ID, Title: n.Title(), Status: n.Status()}
		if depth > 0 {
			for _, c := range tree.Children(n.ID) {
				v.Children = append(v.Children, phaseView{ID: c.ID, Title: c.Title(), Status: c.Status()})
			}
		}
		return v
	}

	if id := strings.TrimSpace(req.GetString("id", "")); id != "" {
		n, ok := tree.Get(types.PhaseID(id))
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("phase %s not found", id)), nil
		}
		return jsonResult(view(n, 1))
	}

	roots := tree.Roots()
	out := make([]phaseView, 0, len(roots))
	for _, n := range roots {
		out = append(out, view(n, 0))
	}
	return jsonResult(out)
}

// ─── check_plan ─────────────────────────────────────────────────────────────

// CheckPlanTool reports completion progress and status inconsistencies.
type CheckPlanTool struct {
	store *state.PlanStore
}

// NewCheckPlanTool creates a CheckPlanTool.
func NewCheckPlanTool(store *state.PlanStore) *CheckPlanTool {
	return &CheckPlanTool{store: store}
}

// Definition returns the MCP tool definition for check_plan.
func (t *CheckPlanTool) Definition() mcp.Tool {
	return mcp.NewTool("check_plan",
		mcp.WithDescription(
			"Report leaf completion per decomposed phase and any parent whose status "+
				"disagrees with its children. Read-only.",
		),
		mcp.WithString("phase",
			mcp.Description("Only check this phase and its descendants"),
		),
	)
}

// Handle processes the check_plan tool call.
func (t *CheckPlanTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tree, err := state.BuildTree(t.store)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load plan: %v", err)), nil
	}
	report := cascade.Check(tree, types.PhaseID(strings.TrimSpace(req.GetString("phase", ""))))
	return jsonResult(report)
}
