package enrich

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMergePreservesRowCount(t *testing.T) {
	events := testEvents(4)
	events[3].Ticker = "" // private firm, no join key
	tbl, err := NewTable(events)
	require.NoError(t, err)

	src := NewSource("crsp", KeyByTicker, []string{"market_cap"})
	src.Add(SourceRow{Key: events[0].Ticker, Values: map[string]float64{"market_cap": 100}})
	src.Add(SourceRow{Key: events[1].Ticker, Values: map[string]float64{"market_cap": 200}})

	result, err := Merge(tbl, src, KeepFirst, discardLogger())
	require.NoError(t, err)

	assert.Equal(t, 4, result.RowsIn)
	assert.Equal(t, 4, result.RowsOut)
	assert.Equal(t, 2, result.Matched)
	assert.Equal(t, 1, result.Unmatched)
	assert.Equal(t, 1, result.Keyless)
	assert.Equal(t, 0, result.Collisions)

	assert.Equal(t, 4, tbl.RowCount(), "merge must never change row count")
	assert.Equal(t, 2, tbl.NonNullCount("crsp_market_cap"))

	v, ok := tbl.Value("crsp_market_cap", 1)
	assert.True(t, ok)
	assert.Equal(t, 200.0, v)

	_, ok = tbl.Value("crsp_market_cap", 2)
	assert.False(t, ok, "unmatched row stays null")
}

func TestMergeDedupPolicies(t *testing.T) {
	older := time.Date(2019, 6, 30, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2020, 6, 30, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		policy     DedupPolicy
		wantErr    bool
		wantValue  float64
		collisions int
	}{
		{name: "keep first", policy: KeepFirst, wantValue: 10, collisions: 1},
		{name: "keep latest", policy: KeepLatest, wantValue: 20, collisions: 1},
		{name: "reject", policy: Reject, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := testEvents(1)
			tbl, err := NewTable(events)
			require.NoError(t, err)

			src := NewSource("fin", KeyByTicker, []string{"assets"})
			src.Add(SourceRow{Key: events[0].Ticker, AsOf: older, Values: map[string]float64{"assets": 10}})
			src.Add(SourceRow{Key: events[0].Ticker, AsOf: newer, Values: map[string]float64{"assets": 20}})

			result, err := Merge(tbl, src, tt.policy, discardLogger())
			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), "duplicate join key")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.collisions, result.Collisions)

			v, ok := tbl.Value("fin_assets", 0)
			require.True(t, ok)
			assert.Equal(t, tt.wantValue, v)
		})
	}
}

func TestMergeSkipsMissingSourceValues(t *testing.T) {
	events := testEvents(1)
	tbl, err := NewTable(events)
	require.NoError(t, err)

	src := NewSource("fin", KeyByTicker, []string{"assets", "revenue"})
	src.Add(SourceRow{Key: events[0].Ticker, Values: map[string]float64{"assets": 5}})

	result, err := Merge(tbl, src, KeepFirst, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Matched)

	assert.Equal(t, 1, tbl.NonNullCount("fin_assets"))
	assert.Equal(t, 0, tbl.NonNullCount("fin_revenue"), "absent source value stays null")
}

func TestMergeByOrganization(t *testing.T) {
	events := testEvents(2)
	events[0].Ticker = ""
	tbl, err := NewTable(events)
	require.NoError(t, err)

	src := NewSource("turnover", KeyByOrganization, []string{"ceo_departed"})
	src.Add(SourceRow{Key: events[0].Organization, Values: map[string]float64{"ceo_departed": 1}})

	result, err := Merge(tbl, src, KeepFirst, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Matched)
	assert.Equal(t, 0, result.Keyless, "organization key exists even without a ticker")

	assert.True(t, tbl.FlagTrue("turnover_ceo_departed", 0))
}
