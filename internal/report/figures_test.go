package report

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"breachstudy/internal/dataset"
	"breachstudy/internal/enrich"
	"breachstudy/internal/eventstudy"
)

func TestCARWindowFigure(t *testing.T) {
	events := []dataset.BreachEvent{
		{EventID: "e1", Organization: "A", DisclosureDate: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)},
		{EventID: "e2", Organization: "B", DisclosureDate: time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)},
	}
	tbl, err := enrich.NewTable(events)
	require.NoError(t, err)

	windows := []eventstudy.Window{{Pre: -1, Post: 1}}
	require.NoError(t, tbl.AddColumn(windows[0].Column()))
	require.NoError(t, tbl.Set(windows[0].Column(), 0, -0.02))
	require.NoError(t, tbl.Set(windows[0].Column(), 1, -0.01))

	path := filepath.Join(t.TempDir(), "car.png")
	require.NoError(t, CARWindowFigure(path, tbl, windows, testLogger()))
	assert.FileExists(t, path)
}

func TestCARWindowFigureNoData(t *testing.T) {
	tbl, err := enrich.NewTable([]dataset.BreachEvent{
		{EventID: "e1", Organization: "A", DisclosureDate: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)},
	})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "car.png")
	err = CARWindowFigure(path, tbl, eventstudy.DefaultWindows, testLogger())
	assert.Error(t, err)
}

func TestAttritionFigure(t *testing.T) {
	audit := enrich.NewAttritionAudit("run-1", 5)
	tbl, err := enrich.NewTable([]dataset.BreachEvent{
		{EventID: "e1", Organization: "A", DisclosureDate: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)},
		{EventID: "e2", Organization: "B", DisclosureDate: time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)},
		{EventID: "e3", Organization: "C", DisclosureDate: time.Date(2020, 1, 3, 0, 0, 0, 0, time.UTC)},
		{EventID: "e4", Organization: "D", DisclosureDate: time.Date(2020, 1, 4, 0, 0, 0, 0, time.UTC)},
		{EventID: "e5", Organization: "E", DisclosureDate: time.Date(2020, 1, 5, 0, 0, 0, 0, time.UTC)},
	})
	require.NoError(t, err)
	require.NoError(t, audit.RecordStep("load", tbl, nil))

	path := filepath.Join(t.TempDir(), "attrition.png")
	require.NoError(t, AttritionFigure(path, audit, testLogger()))
	assert.FileExists(t, path)
}

func TestCoefficientFigure(t *testing.T) {
	est := sampleEstimate(t)

	path := filepath.Join(t.TempDir(), "coef.png")
	require.NoError(t, CoefficientFigure(path, est, testLogger()))
	assert.FileExists(t, path)
}
