package regress

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"breachstudy/internal/dataset"
	"breachstudy/internal/enrich"
	"breachstudy/internal/eventstudy"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// buildRegressionTable returns a table with n rows, columns "car", "x1",
// "x2", and the CRSP flag set on every row except the last.
func buildRegressionTable(t *testing.T, n int) *enrich.Table {
	t.Helper()
	events := make([]dataset.BreachEvent, n)
	for i := range events {
		events[i] = dataset.BreachEvent{
			EventID:        string(rune('a' + i)),
			Organization:   "Org",
			DisclosureDate: time.Date(2020, 1, 1+i, 0, 0, 0, 0, time.UTC),
		}
	}
	tbl, err := enrich.NewTable(events)
	require.NoError(t, err)

	for _, col := range []string{"car", "x1", "x2", enrich.FlagHasCRSPData} {
		require.NoError(t, tbl.AddColumn(col))
	}
	for i := 0; i < n; i++ {
		x1 := float64(i)
		x2 := float64(i%5 - 2)
		require.NoError(t, tbl.Set("x1", i, x1))
		require.NoError(t, tbl.Set("x2", i, x2))
		require.NoError(t, tbl.Set("car", i, 0.01-0.002*x1+0.004*x2))
		flag := 1.0
		if i == n-1 {
			flag = 0
		}
		require.NoError(t, tbl.Set(enrich.FlagHasCRSPData, i, flag))
	}
	return tbl
}

func TestRunnerFitRespectsFlags(t *testing.T) {
	tbl := buildRegressionTable(t, 20)
	runner := NewRunner(tbl, 0.01, 0.99, testLogger())

	spec := ModelSpec{
		Name:         "test",
		Dependent:    "car",
		Regressors:   []string{"x1", "x2"},
		RequireFlags: []string{enrich.FlagHasCRSPData},
		Robust:       true,
	}

	est, err := runner.fit(context.Background(), spec, VariantMain, nil, false)
	require.NoError(t, err)

	assert.Equal(t, 19, est.Rows, "unflagged row is excluded")
	assert.Equal(t, 1, est.Dropped)
	assert.Equal(t, 19, est.Result.N)
	assert.InDelta(t, -0.002, est.Result.Coef[1], 1e-9)
	assert.InDelta(t, 0.004, est.Result.Coef[2], 1e-9)
}

func TestRunnerSampleListwiseDeletion(t *testing.T) {
	tbl := buildRegressionTable(t, 10)
	// Null out one regressor value; that row must drop
	require.NoError(t, tbl.AddColumn("x3"))
	for i := 0; i < 9; i++ {
		require.NoError(t, tbl.Set("x3", i, float64(i)))
	}

	runner := NewRunner(tbl, 0.01, 0.99, testLogger())
	spec := ModelSpec{Dependent: "car", Regressors: []string{"x1", "x3"}}

	rows := runner.sample(spec, nil)
	assert.Len(t, rows, 9)
}

func TestRunnerRunVariants(t *testing.T) {
	tbl := buildRegressionTable(t, 30)
	runner := NewRunner(tbl, 0.05, 0.95, testLogger())

	specs := []ModelSpec{{
		Name:         "m1",
		Dependent:    "car",
		Regressors:   []string{"x1", "x2"},
		RequireFlags: []string{enrich.FlagHasCRSPData},
		Robust:       true,
	}}

	estimates := runner.Run(context.Background(), specs)

	// No has_complete_data column, so only main and winsorized run
	require.Len(t, estimates, 2)
	assert.Equal(t, VariantMain, estimates[0].Variant)
	assert.Equal(t, VariantWinsorized, estimates[1].Variant)

	// Now derive the composite flag and re-run
	_, err := enrich.DeriveCompositeFlag(tbl, enrich.FlagHasCompleteData,
		[]string{enrich.FlagHasCRSPData})
	require.NoError(t, err)

	estimates = runner.Run(context.Background(), specs)
	require.Len(t, estimates, 3)
	assert.Equal(t, VariantCompleteData, estimates[2].Variant)
	assert.Equal(t, 29, estimates[2].Rows)
}

func TestRunnerRunSkipsUnderidentifiedSpecs(t *testing.T) {
	tbl := buildRegressionTable(t, 3)
	runner := NewRunner(tbl, 0.01, 0.99, testLogger())

	specs := []ModelSpec{{
		Name:       "tiny",
		Dependent:  "car",
		Regressors: []string{"x1", "x2"},
	}}

	estimates := runner.Run(context.Background(), specs)
	assert.Empty(t, estimates, "3 rows cannot identify 3 parameters")
}

func TestDefaultSpecs(t *testing.T) {
	specs := DefaultSpecs(eventstudy.DefaultWindows)
	require.Len(t, specs, 8)

	names := make(map[string]bool)
	for _, s := range specs {
		names[s.Name] = true
		assert.True(t, s.Robust)
		assert.Contains(t, s.RequireFlags, enrich.FlagHasCRSPData)
	}
	assert.True(t, names["car_m1_p1_baseline"])
	assert.True(t, names["car_m3_p3_controls"])
	assert.True(t, names["car_0_p10_controls"])

	// Controls spec extends the baseline regressors
	for _, s := range specs {
		if s.Name == "car_m1_p1_controls" {
			assert.Greater(t, len(s.Regressors), 3)
		}
	}
}
