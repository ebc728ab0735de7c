package history

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	id, err := store.StartRun(ctx, "", KindBatch)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.NoError(t, store.AddEvent(ctx, id, "1.1", "validated", "", 1500*time.Millisecond))
	require.NoError(t, store.AddEvent(ctx, id, "1.2", "failed", "exit status 1", 20*time.Millisecond))
	require.NoError(t, store.FinishRun(ctx, id, Totals{Total: 2, Succeeded: 1, Failed: 1}))

	runs, err := store.ListRuns(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].ID)
	assert.Equal(t, KindBatch, runs[0].Kind)
	assert.Equal(t, 2, runs[0].Total)
	assert.Equal(t, 1, runs[0].Failed)
	require.NotNil(t, runs[0].FinishedAt)
	assert.False(t, runs[0].StartedAt.IsZero())

	events, err := store.Events(ctx, id)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "1.1", events[0].PhaseID)
	assert.Equal(t, int64(1500), events[0].ElapsedMS)
	assert.Equal(t, "exit status 1", events[1].Detail)
}

func TestListRunsFiltersAndLimits(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for i := 0; i < 3; i++ {
		_, err := store.StartRun(ctx, fmt.Sprintf("batch-%d", i), KindBatch)
		require.NoError(t, err)
	}
	_, err := store.StartRun(ctx, "bd", KindBreakdown)
	require.NoError(t, err)

	runs, err := store.ListRuns(ctx, KindBreakdown, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "bd", runs[0].ID)
	assert.Nil(t, runs[0].FinishedAt)

	runs, err = store.ListRuns(ctx, "", 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestPhaseEventsNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	first, err := store.StartRun(ctx, "", KindBatch)
	require.NoError(t, err)
	second, err := store.StartRun(ctx, "", KindBatch)
	require.NoError(t, err)
	require.NoError(t, store.AddEvent(ctx, first, "2.1", "needs-revision", "", 0))
	require.NoError(t, store.AddEvent(ctx, second, "2.1", "validated", "", 0))
	require.NoError(t, store.AddEvent(ctx, second, "2.2", "validated", "", 0))

	events, err := store.PhaseEvents(ctx, "2.1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, second, events[0].RunID)
	assert.Equal(t, "needs-revision", events[1].Result)
}

func TestEventRequiresRun(t *testing.T) {
	store := newTestStore(t)
	err := store.AddEvent(context.Background(), "missing", "1", "validated", "", 0)
	assert.Error(t, err)
}

func TestFinishUnknownRun(t *testing.T) {
	store := newTestStore(t)
	err := store.FinishRun(context.Background(), "missing", Totals{})
	assert.ErrorContains(t, err, "not found")
}

func TestOpenReportsDriverError(t *testing.T) {
	orig := openDB
	t.Cleanup(func() { openDB = orig })
	openDB = func(driver, dsn string) (*sql.DB, error) {
		return nil, fmt.Errorf("boom")
	}

	_, err := Open(t.TempDir())
	assert.ErrorContains(t, err, "boom")
}

func TestReopenKeepsRuns(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := Open(dir)
	require.NoError(t, err)
	id, err := store.StartRun(ctx, "", KindBreakdown)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = Open(dir)
	require.NoError(t, err)
	defer store.Close()
	runs, err := store.ListRuns(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].ID)
}
