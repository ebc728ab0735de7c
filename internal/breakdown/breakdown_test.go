package breakdown

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daydemir/gass/internal/errors"
	"github.com/daydemir/gass/internal/llm"
	"github.com/daydemir/gass/internal/state"
	"github.com/daydemir/gass/internal/types"
)

type generatorFunc func(ctx context.Context, req Request) (*types.PhaseNode, error)

func (f generatorFunc) Generate(ctx context.Context, req Request) (*types.PhaseNode, error) {
	return f(ctx, req)
}

func boolPtr(b bool) *bool { return &b }

// decompose returns a valid two-child decomposition of req.
func decompose(req Request) *types.PhaseNode {
	return &types.PhaseNode{
		ID:                req.ID,
		Title:             req.Title,
		Description:       "generated " + string(req.ID),
		BreakdownComplete: boolPtr(true),
		Phases: []types.ChildSummary{
			{ID: req.ID + ".1", Title: "first", Duration: types.ParseDuration("15-30")},
			{ID: req.ID + ".2", Title: "second", Duration: types.ParseDuration("20")},
		},
	}
}

func planStore(t *testing.T, phases ...types.ChildSummary) *state.PlanStore {
	t.Helper()
	store := state.NewPlanStore(t.TempDir())
	require.NoError(t, store.SaveIndex(&types.Index{Title: "plan", Phases: phases}))
	return store
}

func TestNeedsBreakdown(t *testing.T) {
	big := types.ChildSummary{ID: "1", Duration: types.ParseDuration("960-1440")}
	small := types.ChildSummary{ID: "1", Duration: types.ParseDuration("20")}
	leafDoc := &types.PhaseNode{ID: "1", Title: "x"}
	decomposed := &types.PhaseNode{ID: "1", Title: "x", BreakdownComplete: boolPtr(true), Phases: []types.ChildSummary{{ID: "1.1"}}}

	tests := []struct {
		name      string
		phase     types.ChildSummary
		doc       *types.PhaseNode
		failed    bool
		threshold int
		want      bool
	}{
		{name: "no document", phase: small, threshold: 30, want: true},
		{name: "explicitly incomplete", phase: small, doc: &types.PhaseNode{ID: "1", BreakdownComplete: boolPtr(false)}, threshold: 30, want: true},
		{name: "range over audit threshold", phase: big, doc: leafDoc, threshold: 60, want: true},
		{name: "range over loop threshold", phase: types.ChildSummary{ID: "1", Duration: types.ParseDuration("20-45")}, doc: leafDoc, threshold: 30, want: true},
		{name: "within threshold", phase: small, doc: leafDoc, threshold: 30, want: false},
		{name: "previously failed", phase: small, doc: leafDoc, failed: true, threshold: 30, want: true},
		{name: "oversized despite existing decomposition", phase: big, doc: decomposed, threshold: 60, want: true},
		{name: "decomposed within threshold", phase: small, doc: decomposed, threshold: 30, want: false},
		{name: "absent flag is not incomplete", phase: small, doc: &types.PhaseNode{ID: "1"}, threshold: 30, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NeedsBreakdown(tt.phase, tt.doc, tt.failed, tt.threshold))
		})
	}
}

func TestLoopConvergesAndClearsCheckpoint(t *testing.T) {
	store := planStore(t,
		types.ChildSummary{ID: "1", Title: "Setup", Duration: types.ParseDuration("90")},
		types.ChildSummary{ID: "2", Title: "Build", Duration: types.ParseDuration("10")},
	)
	require.NoError(t, store.Save(&types.PhaseNode{ID: "2", Title: "Build", Status: types.StatusInProgress}))

	out := t.TempDir()
	checkpoints := NewFileCheckpointStore(t.TempDir())
	var outcomes sync.Map
	gen := generatorFunc(func(ctx context.Context, req Request) (*types.PhaseNode, error) {
		return decompose(req), nil
	})

	loop := NewLoop(store, checkpoints, gen, Config{OutputDir: out, OnPhase: func(id types.PhaseID, o Outcome, err error) {
		outcomes.Store(id, o)
	}}, nil)
	report, err := loop.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Iteration)
	assert.False(t, report.CapHit)
	assert.Equal(t, []string{"1", "2"}, report.Completed)
	assert.Equal(t, []types.PhaseID{"1"}, report.Generated)

	o, _ := outcomes.Load(types.PhaseID("1"))
	assert.Equal(t, OutcomeGenerated, o)
	o, _ = outcomes.Load(types.PhaseID("2"))
	assert.Equal(t, OutcomeSkipped, o)

	doc, err := store.Load("1")
	require.NoError(t, err)
	assert.Len(t, doc.Phases, 2)
	assert.Equal(t, types.StatusPending, doc.Status)

	_, err = os.Stat(checkpoints.Path())
	assert.True(t, os.IsNotExist(err), "checkpoint cleared after convergence")

	backups, err := filepath.Glob(filepath.Join(out, "1-setup-*.json"))
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}

func TestLoopIterationCap(t *testing.T) {
	store := planStore(t,
		types.ChildSummary{ID: "1", Title: "One"},
		types.ChildSummary{ID: "2", Title: "Two"},
		types.ChildSummary{ID: "3", Title: "Three"},
	)
	checkpoints := &MemoryCheckpointStore{}
	attempts := 0
	gen := generatorFunc(func(ctx context.Context, req Request) (*types.PhaseNode, error) {
		if req.ID == "2" {
			attempts++
			return nil, errors.NewAgentError("stub", fmt.Errorf("unavailable"))
		}
		return decompose(req), nil
	})

	report, err := NewLoop(store, checkpoints, gen, Config{MaxIterations: 2}, nil).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrIterationCapExceeded))
	assert.True(t, errors.IsFatal(err))

	var capErr *errors.IterationCapError
	require.True(t, errors.As(err, &capErr))
	assert.Equal(t, 2, capErr.Max)

	assert.True(t, report.CapHit)
	assert.Equal(t, 2, report.Iteration)
	assert.Equal(t, []string{"1", "3"}, report.Completed)
	assert.Equal(t, []string{"2"}, report.Failed)
	assert.Equal(t, 2, attempts)

	cp, err := checkpoints.Load()
	require.NoError(t, err)
	require.NotNil(t, cp, "checkpoint kept after hitting the cap")
	assert.Equal(t, []string{"1", "3"}, cp.Completed)
	assert.Equal(t, 2, cp.Iteration)
}

func TestLoopResumesFromCheckpoint(t *testing.T) {
	store := planStore(t,
		types.ChildSummary{ID: "1", Title: "One"},
		types.ChildSummary{ID: "2", Title: "Two"},
	)
	cp := NewCheckpoint()
	cp.MarkCompleted("1")
	cp.Iteration = 4
	checkpoints := &MemoryCheckpointStore{}
	require.NoError(t, checkpoints.Save(cp))

	var seen []types.PhaseID
	gen := generatorFunc(func(ctx context.Context, req Request) (*types.PhaseNode, error) {
		seen = append(seen, req.ID)
		return decompose(req), nil
	})

	report, err := NewLoop(store, checkpoints, gen, Config{}, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []types.PhaseID{"2"}, seen)
	assert.Equal(t, 5, report.Iteration)
	assert.Equal(t, cp.OperationID, report.OperationID)
}

func TestLoopRetryCarriesSchemaErrors(t *testing.T) {
	store := planStore(t, types.ChildSummary{ID: "1", Title: "One"})

	var requests []Request
	gen := generatorFunc(func(ctx context.Context, req Request) (*types.PhaseNode, error) {
		requests = append(requests, req)
		if len(requests) == 1 {
			return ParseGenerated(req.ID, `{"id":"1","title":"One","phases":[]}`)
		}
		return decompose(req), nil
	})

	report, err := NewLoop(store, &MemoryCheckpointStore{}, gen, Config{}, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Iteration)
	require.Len(t, requests, 2)
	assert.Empty(t, requests[0].Errors)
	assert.Contains(t, requests[1].Errors, "description")
	assert.Contains(t, requests[1].Errors, "phases")
}

func TestLoopDeepMode(t *testing.T) {
	store := planStore(t, types.ChildSummary{ID: "1", Title: "One"})
	gen := generatorFunc(func(ctx context.Context, req Request) (*types.PhaseNode, error) {
		node := decompose(req)
		if req.ID == "1" {
			node.Phases[1].Duration = types.ParseDuration("45-120")
		}
		return node, nil
	})

	report, err := NewLoop(store, &MemoryCheckpointStore{}, gen, Config{Deep: true}, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []types.PhaseID{"1", "1.2"}, report.Generated)
	assert.True(t, store.Exists("1.2"))
	assert.False(t, store.Exists("1.1"))
}

func TestLoopInvalidIndexIsFatal(t *testing.T) {
	store := state.NewPlanStore(t.TempDir())
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), state.IndexFileName), []byte(`{"title":"x"}`), 0644))

	_, err := NewLoop(store, &MemoryCheckpointStore{}, nil, Config{}, nil).Run(context.Background())
	assert.True(t, errors.IsFatal(err))
}

func TestLoopCancelled(t *testing.T) {
	store := planStore(t, types.ChildSummary{ID: "1", Title: "One"}, types.ChildSummary{ID: "2", Title: "Two"})
	ctx, cancel := context.WithCancel(context.Background())
	gen := generatorFunc(func(ctx context.Context, req Request) (*types.PhaseNode, error) {
		cancel()
		return decompose(req), nil
	})
	checkpoints := &MemoryCheckpointStore{}

	_, err := NewLoop(store, checkpoints, gen, Config{}, nil).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	cp, _ := checkpoints.Load()
	require.NotNil(t, cp)
	assert.Equal(t, []string{"1"}, cp.Completed)
}

func TestFileCheckpointStore(t *testing.T) {
	s := NewFileCheckpointStore(t.TempDir())

	cp, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, cp, "missing file is a fresh start")

	cp = NewCheckpoint()
	cp.MarkFailed("2.10")
	cp.MarkCompleted("2.9")
	cp.MarkCompleted("10")
	cp.MarkCompleted("2.10")
	require.NoError(t, s.Save(cp))

	loaded, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"2.9", "2.10", "10"}, loaded.Completed)
	assert.Empty(t, loaded.Failed)
	assert.Equal(t, CheckpointVersion, loaded.Version)

	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"completedPhases":["1"],"currentIteration":3}`), 0644))
	loaded, err = s.Load()
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Iteration)
	assert.Equal(t, []string{}, loaded.Failed)

	require.NoError(t, s.Clear())
	require.NoError(t, s.Clear())
}

func TestParseGenerated(t *testing.T) {
	text := "Here is the plan:\n```json\n" + `{
  "title": "Auth",
  "description": "login",
  "breakdown_complete": true,
  "phases": [{"id": "2.1", "title": "Form", "priority": 1}],
  "execution_plan": {"parallel_groups": [], "critical_path": ["2.1"], "milestones": []}
}` + "\n```"

	node, err := ParseGenerated("2", text)
	require.NoError(t, err)
	assert.Equal(t, types.PhaseID("2"), node.ID)
	assert.Equal(t, 1, node.Phases[0].Priority.Rank())

	_, err = ParseGenerated("2", `{"id":"2","title":"x","description":"y","phases":[{"id":"3.1","title":"z"}]}`)
	assert.True(t, errors.Is(err, errors.ErrSchemaInvalid))

	_, err = ParseGenerated("2", "no json at all")
	assert.True(t, errors.Is(err, errors.ErrSchemaInvalid))
}

func TestAgentGenerator(t *testing.T) {
	var prompt string
	agent := llm.AgentFunc(func(ctx context.Context, p string, opts llm.InvokeOptions) (*llm.Result, error) {
		prompt = p
		return llm.Chunked("```json\n", `{"title":"T","description":"D","phases":[{"id":"4.1","title":"a"}]}`, "\n```"), nil
	})

	node, err := (&AgentGenerator{Agent: agent}).Generate(context.Background(), Request{ID: "4", Title: "Deploy", Errors: "- title: missing"})
	require.NoError(t, err)
	assert.Equal(t, types.PhaseID("4"), node.ID)
	assert.Contains(t, prompt, "PHASE ID: 4")
	assert.Contains(t, prompt, "- title: missing")

	failing := llm.AgentFunc(func(ctx context.Context, p string, opts llm.InvokeOptions) (*llm.Result, error) {
		return nil, fmt.Errorf("down")
	})
	_, err = (&AgentGenerator{Agent: failing}).Generate(context.Background(), Request{ID: "4"})
	assert.True(t, errors.Is(err, errors.ErrAgent))
}

func TestAudit(t *testing.T) {
	tree := state.NewTree([]*types.PhaseNode{
		{ID: "1", Title: "Root", Phases: []types.ChildSummary{
			{ID: "1.1", Title: "ok", Duration: types.ParseDuration("30-60")},
			{ID: "1.2", Title: "huge", Duration: types.ParseDuration("960-1440")},
			{ID: "1.3", Title: "decomposed", Duration: types.ParseDuration("600")},
		}},
		{ID: "1.3", Title: "decomposed", Phases: []types.ChildSummary{
			{ID: "1.3.1", Title: "edge", Duration: types.ParseDuration("50-61")},
		}},
	}, nil)

	findings := Audit(tree, AuditThreshold)
	require.Len(t, findings, 2)
	assert.Equal(t, types.PhaseID("1.2"), findings[0].ID)
	assert.Equal(t, 1200.0, findings[0].Estimate)
	assert.Equal(t, types.PhaseID("1.3.1"), findings[1].ID)
}
