package storage

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/cardwise/internal/common"
	"github.com/Veraticus/cardwise/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuns_Lifecycle(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	started := time.Now().Add(-time.Minute).UTC()
	run := &model.AnalysisRun{
		ID:        "run-1",
		Status:    model.RunStatusRunning,
		StartedAt: started,
	}
	require.NoError(t, store.CreateRun(ctx, run))

	completed := time.Now().UTC()
	genID := "gen-1"
	warning := "did not converge"
	run.Status = model.RunStatusCompleted
	run.CompletedAt = &completed
	run.GenerationID = &genID
	run.Warning = &warning
	run.CustomerCount = 42
	require.NoError(t, store.UpdateRun(ctx, run))

	got, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, got.Status)
	assert.True(t, got.IsFinished())
	assert.WithinDuration(t, started, got.StartedAt, time.Second)
	require.NotNil(t, got.CompletedAt)
	assert.WithinDuration(t, completed, *got.CompletedAt, time.Second)
	require.NotNil(t, got.GenerationID)
	assert.Equal(t, "gen-1", *got.GenerationID)
	require.NotNil(t, got.Warning)
	assert.Nil(t, got.Error)
	assert.Equal(t, 42, got.CustomerCount)
}

func TestRuns_ListNewestFirst(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Now().UTC()
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		require.NoError(t, store.CreateRun(ctx, &model.AnalysisRun{
			ID:        id,
			Status:    model.RunStatusCompleted,
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	runs, err := store.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-c", runs[0].ID)
	assert.Equal(t, "run-b", runs[1].ID)
}

func TestRuns_NotFound(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	_, err := store.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)

	err = store.UpdateRun(ctx, &model.AnalysisRun{ID: "missing", Status: model.RunStatusFailed})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestFailInterruptedRuns(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.CreateRun(ctx, &model.AnalysisRun{ID: "stale", Status: model.RunStatusRunning, StartedAt: time.Now()}))
	require.NoError(t, store.CreateRun(ctx, &model.AnalysisRun{ID: "done", Status: model.RunStatusCompleted, StartedAt: time.Now()}))

	n, err := store.FailInterruptedRuns(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stale, err := store.GetRun(ctx, "stale")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, stale.Status)
	require.NotNil(t, stale.Error)
	assert.Equal(t, "interrupted", *stale.Error)
}
