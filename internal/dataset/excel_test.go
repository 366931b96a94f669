package dataset

import (
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExcelRoundTrip(t *testing.T) {
	events := []BreachEvent{
		{
			EventID:         "BR-1",
			Organization:    "Acme Corp",
			Ticker:          "ACME",
			DisclosureDate:  time.Date(2019, 3, 14, 0, 0, 0, 0, time.UTC),
			BreachType:      "hacking",
			RecordsAffected: 1200000,
			Severity:        SeverityHigh,
			Source:          "prc",
		},
		{
			EventID:        "BR-2",
			Organization:   "Globex Inc",
			DisclosureDate: time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC),
			Severity:       SeverityUnknown,
		},
	}

	path := filepath.Join(t.TempDir(), "events.xlsx")
	require.NoError(t, WriteExcel(path, events))

	loaded, err := LoadExcel(path, slog.Default())
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	assert.Equal(t, events[0].EventID, loaded[0].EventID)
	assert.Equal(t, events[0].Organization, loaded[0].Organization)
	assert.Equal(t, events[0].Ticker, loaded[0].Ticker)
	assert.Equal(t, events[0].DisclosureDate, loaded[0].DisclosureDate)
	assert.Equal(t, events[0].RecordsAffected, loaded[0].RecordsAffected)
	assert.Equal(t, SeverityHigh, loaded[0].Severity)

	assert.Equal(t, "BR-2", loaded[1].EventID)
	assert.False(t, loaded[1].HasTicker())
}

func TestLoadExcelMissingSheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	require.NoError(t, WriteExcel(path, nil))

	// A workbook whose data sheet has only a header row still resolves,
	// yielding zero events.
	events, err := LoadExcel(path, slog.Default())
	require.NoError(t, err)
	assert.Empty(t, events)
}
