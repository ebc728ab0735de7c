package cascade

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daydemir/gass/internal/state"
	"github.com/daydemir/gass/internal/types"
)

func TestCheckReportsProgressAndIssues(t *testing.T) {
	store := newStore(t,
		&types.PhaseNode{ID: "1", Title: "Setup", Status: types.StatusPending, Phases: []types.ChildSummary{
			child("1.1", types.StatusCompleted),
			child("1.2", types.StatusCompleted),
		}},
		&types.PhaseNode{ID: "2", Title: "Build", Status: types.StatusCompleted, Phases: []types.ChildSummary{
			child("2.1", types.StatusCompleted),
			child("2.2", types.StatusPending),
		}},
		&types.PhaseNode{ID: "2.1", Title: "Backend", Status: types.StatusInProgress},
	)
	tree, err := state.BuildTree(store)
	require.NoError(t, err)

	report := Check(tree, "")
	require.Len(t, report.Phases, 2)
	assert.Equal(t, PhaseProgress{ID: "1", Title: "Setup", Status: types.StatusPending, LeavesCompleted: 2, LeavesTotal: 2, Percent: 100}, report.Phases[0])
	assert.Equal(t, 0, report.Phases[1].LeavesCompleted)
	assert.Equal(t, 2, report.Phases[1].LeavesTotal)

	kinds := map[types.PhaseID]IssueKind{}
	for _, issue := range report.Issues {
		kinds[issue.ID] = issue.Kind
	}
	assert.Equal(t, map[types.PhaseID]IssueKind{
		"1":   IssueShouldBeCompleted,
		"2":   IssueShouldNotBeCompleted,
		"2.1": IssueStaleSummary,
	}, kinds)
	assert.False(t, report.Consistent())

	scoped := Check(tree, "1")
	assert.Len(t, scoped.Phases, 1)
}

func TestRepairFixesWithoutDemoting(t *testing.T) {
	store := newStore(t,
		&types.PhaseNode{ID: "1", Title: "Setup", Status: types.StatusPending, Phases: []types.ChildSummary{
			child("1.1", types.StatusCompleted),
			child("1.2", types.StatusPending),
		}},
		&types.PhaseNode{ID: "1.2", Title: "Config", Status: types.StatusCompleted},
		&types.PhaseNode{ID: "3", Title: "Ship", Status: types.StatusCompleted, Phases: []types.ChildSummary{
			child("3.1", types.StatusPending),
		}},
	)
	tree, err := state.BuildTree(store)
	require.NoError(t, err)

	res, err := New(store, nil).Repair(Check(tree, ""))
	require.NoError(t, err)
	assert.Equal(t, []types.PhaseID{"1"}, res.AutoCompleted())

	assert.Equal(t, types.StatusCompleted, loadStatus(t, store, "1"))
	assert.Equal(t, types.StatusCompleted, loadStatus(t, store, "3"), "repair never demotes")

	tree, err = state.BuildTree(store)
	require.NoError(t, err)
	remaining := Check(tree, "").Issues
	require.Len(t, remaining, 1)
	assert.Equal(t, IssueShouldNotBeCompleted, remaining[0].Kind)
}

func TestSetAll(t *testing.T) {
	store := scenarioTree(t)
	require.NoError(t, store.SaveIndex(&types.Index{Phases: []types.ChildSummary{
		child("1", types.StatusCompleted),
		child("2", types.StatusPending),
	}}))

	n, err := SetAll(store, types.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	index, err := store.LoadIndex()
	require.NoError(t, err)
	for _, p := range index.Phases {
		assert.Equal(t, types.StatusCompleted, p.Status)
	}
	assert.Equal(t, types.StatusCompleted, summaryStatus(t, store, "2.1", "2.1.2"))
	assert.Equal(t, types.StatusCompleted, loadStatus(t, store, "2.2"))

	_, err = SetAll(store, types.Status("bogus"))
	assert.Error(t, err)
}
