package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daydemir/gass/internal/cascade"
	"github.com/daydemir/gass/internal/errors"
	"github.com/daydemir/gass/internal/state"
	"github.com/daydemir/gass/internal/types"
)

func leaf(id types.PhaseID, p types.Priority, deps ...types.PhaseID) types.ChildSummary {
	return types.ChildSummary{
		ID:           id,
		Title:        "task " + string(id),
		Description:  "implement " + string(id),
		Status:       types.StatusPending,
		Priority:     p,
		Dependencies: deps,
	}
}

func taskIDs(tasks []Task) []types.PhaseID {
	out := make([]types.PhaseID, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func TestReadyLeavesPriorityOrder(t *testing.T) {
	tree := state.NewTree([]*types.PhaseNode{
		{ID: "1", Title: "Root", Phases: []types.ChildSummary{
			leaf("1.1", types.NamedPriority("high")),
			leaf("1.2", types.NumericPriority(5)),
			leaf("1.3", types.NamedPriority("low")),
			leaf("1.4", types.NamedPriority("medium")),
			leaf("1.10", types.NamedPriority("urgent")),
			leaf("1.9", types.Priority{}),
		}},
	}, nil)

	tasks, err := ReadyLeaves(tree, Options{})
	require.NoError(t, err)
	assert.Equal(t, []types.PhaseID{"1.1", "1.4", "1.3", "1.2", "1.9", "1.10"}, taskIDs(tasks))
	assert.Equal(t, []int{1, 2, 3, 5, 999, 999}, []int{tasks[0].Rank, tasks[1].Rank, tasks[2].Rank, tasks[3].Rank, tasks[4].Rank, tasks[5].Rank})
}

func TestReadyLeavesDependencyGating(t *testing.T) {
	tree := state.NewTree([]*types.PhaseNode{
		{ID: "2", Title: "Build", Status: types.StatusInProgress},
		{ID: "4", Title: "Ship", Phases: []types.ChildSummary{
			leaf("4.1", types.Priority{}, "2"),
			leaf("4.2", types.Priority{}, "99"),
			leaf("4.3", types.Priority{}, "1"),
			leaf("4.4", types.Priority{}),
		}},
	}, []types.ChildSummary{
		{ID: "1", Title: "Setup", Status: types.StatusCompleted},
		{ID: "2", Title: "Build", Status: types.StatusPending},
	})

	tasks, err := ReadyLeaves(tree, Options{})
	require.NoError(t, err)
	assert.Equal(t, []types.PhaseID{"4.3", "4.4"}, taskIDs(tasks))
}

func TestReadyLeavesSkipsDecomposedAndNonPending(t *testing.T) {
	tree := state.NewTree([]*types.PhaseNode{
		{ID: "1", Title: "Root", Phases: []types.ChildSummary{
			leaf("1.1", types.Priority{}),
			{ID: "1.2", Title: "done", Status: types.StatusCompleted},
			{ID: "1.3", Title: "running", Status: types.StatusInProgress},
		}},
		{ID: "1.1", Title: "Decomposed", Phases: []types.ChildSummary{
			leaf("1.1.1", types.Priority{}),
		}},
	}, nil)

	tasks, err := ReadyLeaves(tree, Options{})
	require.NoError(t, err)
	assert.Equal(t, []types.PhaseID{"1.1.1"}, taskIDs(tasks))

	task := tasks[0]
	assert.Equal(t, types.PhaseID("1.1"), task.ParentID)
	require.Len(t, task.Ancestors, 2)
	assert.Equal(t, types.PhaseID("1"), task.Ancestors[0].ID)
	assert.Equal(t, types.PhaseID("1.1"), task.Ancestors[1].ID)
}

func TestReadyLeavesScopeFilterExclude(t *testing.T) {
	tree := state.NewTree([]*types.PhaseNode{
		{ID: "1", Title: "Root", Phases: []types.ChildSummary{
			{ID: "1.1", Title: "Login", Description: "Build the LOGIN form", Status: types.StatusPending},
			{ID: "1.2", Title: "Logout", Description: "logout button", Status: types.StatusPending},
		}},
		{ID: "2", Title: "Other", Phases: []types.ChildSummary{
			{ID: "2.1", Title: "Docs", Description: "write docs", Status: types.StatusPending},
		}},
	}, nil)

	tests := []struct {
		name string
		opts Options
		want []types.PhaseID
	}{
		{name: "scope", opts: Options{Scope: "2"}, want: []types.PhaseID{"2.1"}},
		{name: "filter description case-insensitive", opts: Options{Filter: "login"}, want: []types.PhaseID{"1.1"}},
		{name: "filter id substring", opts: Options{Filter: "2."}, want: []types.PhaseID{"2.1"}},
		{name: "exclude claimed", opts: Options{Exclude: map[types.PhaseID]bool{"1.1": true}}, want: []types.PhaseID{"1.2", "2.1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks, err := ReadyLeaves(tree, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, taskIDs(tasks))
		})
	}

	_, err := ReadyLeaves(tree, Options{Scope: "7"})
	assert.True(t, errors.IsNotFound(err))
}

func TestReadyLeavesAfterDependencyCompletes(t *testing.T) {
	store := state.NewPlanStore(t.TempDir())
	require.NoError(t, store.Save(&types.PhaseNode{ID: "2", Title: "Build", Status: types.StatusInProgress, Phases: []types.ChildSummary{
		{ID: "2.1", Title: "Only", Status: types.StatusPending},
	}}))
	require.NoError(t, store.Save(&types.PhaseNode{ID: "3", Title: "Ship", Status: types.StatusPending, Phases: []types.ChildSummary{
		leaf("3.1", types.Priority{}, "2"),
	}}))

	tasks, err := Load(store, Options{Scope: "3"})
	require.NoError(t, err)
	assert.Empty(t, tasks)

	_, err = cascade.New(store, nil).SetStatus("2.1", types.StatusCompleted)
	require.NoError(t, err)

	tasks, err = Load(store, Options{Scope: "3"})
	require.NoError(t, err)
	assert.Equal(t, []types.PhaseID{"3.1"}, taskIDs(tasks))
}
