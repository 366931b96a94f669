package collector

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"breachstudy/internal/dataset"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCollector(cfg Config) *Collector {
	cfg.Source = "ag-portal"
	return New(cfg, discardLogger())
}

func TestParseRows(t *testing.T) {
	c := testCollector(Config{})

	rows := []portalRow{
		{Organization: "Acme Health Inc", Reported: "03/15/2024", BreachType: "Hacking", Affected: "12,500"},
		{Organization: "Beta Corp", Reported: "2024-04-01", BreachType: "Insider", Affected: "Unknown"},
		{Organization: "", Reported: "03/15/2024"},
		{Organization: "Gamma LLC", Reported: "not a date"},
	}

	events := c.parseRows(context.Background(), rows)
	require.Len(t, events, 2)

	assert.Equal(t, "Acme Health Inc", events[0].Organization)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), events[0].DisclosureDate)
	assert.Equal(t, "hacking", events[0].BreachType)
	assert.Equal(t, int64(12500), events[0].RecordsAffected)
	assert.Equal(t, dataset.SeverityUnknown, events[0].Severity)
	assert.Equal(t, "ag-portal", events[0].Source)

	assert.Equal(t, int64(0), events[1].RecordsAffected)
}

func TestParseRowsDateRange(t *testing.T) {
	c := testCollector(Config{
		From: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
	})

	rows := []portalRow{
		{Organization: "Too Early", Reported: "12/30/2023"},
		{Organization: "In Range", Reported: "06/15/2024"},
		{Organization: "Too Late", Reported: "01/02/2025"},
	}

	events := c.parseRows(context.Background(), rows)
	require.Len(t, events, 1)
	assert.Equal(t, "In Range", events[0].Organization)
}

func TestEventIDStable(t *testing.T) {
	reported := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	id1 := EventID("ag-portal", "Acme Health Inc", reported)
	id2 := EventID("ag-portal", "  acme health inc ", reported)
	id3 := EventID("ag-portal", "Other Corp", reported)

	assert.Equal(t, id1, id2)
	assert.NotEqual(t, id1, id3)
	assert.Contains(t, id1, "col-")
}

func TestMergeNew(t *testing.T) {
	reported := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	existing := []dataset.BreachEvent{
		{EventID: "ev-001", Organization: "Acme Health Inc"},
		{EventID: EventID("ag-portal", "Beta Corp", reported), Organization: "Beta Corp"},
	}
	collected := []dataset.BreachEvent{
		{EventID: EventID("ag-portal", "Beta Corp", reported), Organization: "Beta Corp"},
		{EventID: EventID("ag-portal", "Gamma LLC", reported), Organization: "Gamma LLC"},
	}

	merged, added := MergeNew(existing, collected)

	assert.Equal(t, 1, added)
	require.Len(t, merged, 3)
	assert.Equal(t, "ev-001", merged[0].EventID)
	assert.Equal(t, "Gamma LLC", merged[2].Organization)
}
