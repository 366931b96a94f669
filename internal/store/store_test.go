package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"breachstudy/internal/enrich"
	"breachstudy/internal/regress"
	"breachstudy/internal/stats"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := Open(filepath.Join(t.TempDir(), "results.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.CreateRun(ctx, "run-1", started, 1054))

	run, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, run.Status)
	assert.Equal(t, 1054, run.RowCount)
	assert.Equal(t, started, run.StartedAt)

	require.NoError(t, s.FinishRun(ctx, "run-1", started.Add(5*time.Minute), nil))

	run, err = s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, run.Status)
	assert.False(t, run.FinishedAt.IsZero())
}

func TestSetRowCount(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateRun(ctx, "run-1", time.Now().UTC(), 0))
	require.NoError(t, s.SetRowCount(ctx, "run-1", 1054))

	run, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 1054, run.RowCount)

	assert.Error(t, s.SetRowCount(ctx, "no-such-run", 1))
}

func TestFinishRunWithError(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateRun(ctx, "run-2", time.Now(), 10))
	require.NoError(t, s.FinishRun(ctx, "run-2", time.Now(),
		assert.AnError))

	run, err := s.GetRun(ctx, "run-2")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, run.Status)
	assert.NotEmpty(t, run.Error)
}

func TestFinishRunUnknown(t *testing.T) {
	s := openTestStore(t)
	err := s.FinishRun(context.Background(), "nope", time.Now(), nil)
	assert.Error(t, err)
}

func TestGetRunNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetRun(context.Background(), "missing")
	assert.Error(t, err)
}

func TestListRunsNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.CreateRun(ctx, "old", base, 1))
	require.NoError(t, s.CreateRun(ctx, "new", base.Add(time.Hour), 2))

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "new", runs[0].RunID)
	assert.Equal(t, "old", runs[1].RunID)
}

func TestEstimatesRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateRun(ctx, "run-3", time.Now(), 5))

	est := &regress.Estimate{
		Spec: regress.ModelSpec{
			Name:       "car_m1_p1_baseline",
			Dependent:  "car_m1_p1",
			Regressors: []string{"log_records"},
			Robust:     true,
		},
		Variant: regress.VariantMain,
		Result: &stats.OLSResult{
			Dependent: "car_m1_p1",
			Terms:     []string{"intercept", "log_records"},
			Coef:      []float64{0.01, -0.002},
			N:         100,
		},
		Rows:    100,
		Dropped: 5,
	}

	require.NoError(t, s.SaveEstimates(ctx, "run-3", []*regress.Estimate{est}))

	loaded, err := s.LoadEstimates(ctx, "run-3")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, est.Spec.Name, loaded[0].Spec.Name)
	assert.Equal(t, est.Variant, loaded[0].Variant)
	assert.Equal(t, est.Result.Coef, loaded[0].Result.Coef)
	assert.Equal(t, 5, loaded[0].Dropped)

	// Saving again replaces, not duplicates
	require.NoError(t, s.SaveEstimates(ctx, "run-3", []*regress.Estimate{est}))
	loaded, err = s.LoadEstimates(ctx, "run-3")
	require.NoError(t, err)
	assert.Len(t, loaded, 1)
}

func TestAttritionRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	audit := enrich.NewAttritionAudit("run-4", 42)
	require.NoError(t, s.SaveAttrition(ctx, audit))

	loaded, err := s.LoadAttrition(ctx, "run-4")
	require.NoError(t, err)
	assert.Equal(t, "run-4", loaded.RunID)
	assert.Equal(t, 42, loaded.RowCount)

	_, err = s.LoadAttrition(ctx, "other")
	assert.Error(t, err)
}
