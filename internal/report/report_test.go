package report

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"breachstudy/internal/config"
	"breachstudy/internal/dataset"
	"breachstudy/internal/enrich"
	"breachstudy/internal/regress"
	"breachstudy/internal/stats"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleTable() *Table {
	return &Table{
		Name:    "sample",
		Title:   "Sample table",
		Headers: []string{"Variable", "Value"},
		Rows: [][]string{
			{"log_records", "5.1234"},
			{"beta", "1.1000"},
		},
	}
}

func sampleEstimate(t *testing.T) *regress.Estimate {
	t.Helper()
	events := make([]dataset.BreachEvent, 12)
	for i := range events {
		events[i] = dataset.BreachEvent{
			EventID:        string(rune('a' + i)),
			Organization:   "Org",
			DisclosureDate: time.Date(2020, 1, 1+i, 0, 0, 0, 0, time.UTC),
		}
	}
	tbl, err := enrich.NewTable(events)
	require.NoError(t, err)
	for _, col := range []string{"car", "x"} {
		require.NoError(t, tbl.AddColumn(col))
	}
	noise := []float64{0.001, -0.001, 0.002, -0.002, 0.001, -0.001, 0.002, -0.002, 0.001, -0.001, 0.002, -0.002}
	for i := range events {
		x := float64(i)
		require.NoError(t, tbl.Set("x", i, x))
		require.NoError(t, tbl.Set("car", i, 0.01-0.003*x+noise[i]))
	}

	runner := regress.NewRunner(tbl, 0.01, 0.99, testLogger())
	spec := regress.ModelSpec{Name: "m1", Dependent: "car", Regressors: []string{"x"}, Robust: true}
	estimates := runner.Run(context.Background(), []regress.ModelSpec{spec})
	require.NotEmpty(t, estimates)
	return estimates[0]
}

func TestDescriptivesTable(t *testing.T) {
	d, err := stats.Describe("x", []float64{1, 2, 3})
	require.NoError(t, err)

	tbl := DescriptivesTable([]stats.Descriptives{d})
	assert.Equal(t, "descriptives", tbl.Name)
	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, "x", tbl.Rows[0][0])
	assert.Equal(t, "3", tbl.Rows[0][1])
	assert.Equal(t, "2.0000", tbl.Rows[0][2])
}

func TestCorrelationTableLowerTriangle(t *testing.T) {
	m, err := stats.Correlations([]string{"a", "b"},
		[][]float64{{1, 2, 3}, {3, 2, 1}})
	require.NoError(t, err)

	tbl := CorrelationTable(m)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, "1.000", tbl.Rows[0][1])
	assert.Equal(t, "", tbl.Rows[0][2], "upper triangle is blank")
	assert.Equal(t, "-1.000", tbl.Rows[1][1])
}

func TestRegressionTable(t *testing.T) {
	est := sampleEstimate(t)
	tbl := RegressionTable("main_models", "Main models", []*regress.Estimate{est})

	assert.Equal(t, []string{"Term", "m1 (main)"}, tbl.Headers)

	// Coefficient rows come in pairs, then N, R2, F footers
	require.Len(t, tbl.Rows, 2*2+3)
	assert.Equal(t, "intercept", tbl.Rows[0][0])
	assert.Equal(t, "x", tbl.Rows[2][0])
	assert.True(t, strings.HasPrefix(tbl.Rows[3][1], "("), "standard error row is parenthesized")
	assert.Contains(t, tbl.Rows[2][1], "*", "strong effect carries stars")
	assert.Equal(t, "N", tbl.Rows[4][0])
	assert.Equal(t, "12", tbl.Rows[4][1])
}

func TestAttritionTables(t *testing.T) {
	events := []dataset.BreachEvent{
		{EventID: "e1", Organization: "A", Ticker: "AAA", DisclosureDate: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)},
		{EventID: "e2", Organization: "B", DisclosureDate: time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)},
	}
	tbl, err := enrich.NewTable(events)
	require.NoError(t, err)

	audit := enrich.NewAttritionAudit("run-1", 2)

	src := enrich.NewSource("crsp", enrich.KeyByTicker, []string{"beta"})
	src.Add(enrich.SourceRow{Key: "AAA", Values: map[string]float64{"beta": 1.2}})
	result, err := enrich.Merge(tbl, src, enrich.KeepFirst, testLogger())
	require.NoError(t, err)
	require.NoError(t, audit.RecordStep("merge_crsp", tbl, result))

	_, err = enrich.DeriveFlag(tbl, enrich.FlagRule{
		Flag: enrich.FlagHasCRSPData, Requires: []string{"crsp_beta"},
	})
	require.NoError(t, err)
	require.NoError(t, audit.RecordStep("derive_flags", tbl, nil))

	at := AttritionTable(audit)
	require.Len(t, at.Rows, 2)
	assert.Equal(t, "merge_crsp", at.Rows[0][0])
	assert.Equal(t, "2", at.Rows[0][1])
	assert.Equal(t, "1", at.Rows[0][2])
	assert.Equal(t, "1", at.Rows[1][4], "flagged usable count from CRSP flag")

	nn := NonNullTable(audit)
	require.NotEmpty(t, nn.Rows)
	found := false
	for _, row := range nn.Rows {
		if row[0] == "crsp_beta" {
			found = true
			assert.Equal(t, "1", row[1])
			assert.Equal(t, "50.0%", row[2])
		}
	}
	assert.True(t, found)
}

func TestCSVWriterAddsBOM(t *testing.T) {
	dir := t.TempDir()
	w := NewCSVWriter(dir, testLogger())

	require.NoError(t, w.WriteTable(sampleTable()))

	data, err := os.ReadFile(filepath.Join(dir, "sample.csv"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xEF, 0xBB, 0xBF}, data[:3])
	assert.Contains(t, string(data), "Variable,Value")
	assert.Contains(t, string(data), "log_records,5.1234")
}

func TestWriteWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	tables := []*Table{sampleTable(), {
		Name:    "second",
		Title:   "Second table",
		Headers: []string{"A"},
		Rows:    [][]string{{"1"}},
	}}

	require.NoError(t, WriteWorkbook(path, tables, testLogger()))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.ElementsMatch(t, []string{"sample", "second"}, f.GetSheetList())

	title, err := f.GetCellValue("sample", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Sample table", title)

	header, err := f.GetCellValue("sample", "A3")
	require.NoError(t, err)
	assert.Equal(t, "Variable", header)

	cell, err := f.GetCellValue("sample", "B4")
	require.NoError(t, err)
	assert.Equal(t, "5.1234", cell)
}

func TestWriteWorkbookEmpty(t *testing.T) {
	err := WriteWorkbook(filepath.Join(t.TempDir(), "x.xlsx"), nil, testLogger())
	assert.Error(t, err)
}

func TestWriteLaTeX(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteLaTeX(dir, sampleTable(), testLogger()))

	data, err := os.ReadFile(filepath.Join(dir, "sample.tex"))
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, "\\begin{tabular}{lr}")
	assert.Contains(t, text, "\\toprule")
	assert.Contains(t, text, "\\bottomrule")
	assert.Contains(t, text, "log\\_records", "underscores are escaped")
	assert.Contains(t, text, "p<0.01")
}

func TestWriteSummary(t *testing.T) {
	est := sampleEstimate(t)
	audit := enrich.NewAttritionAudit("run-9", 12)
	d, err := stats.Describe("car", []float64{0.01, -0.02, 0.005})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "summary.txt")
	require.NoError(t, WriteSummary(path, "run-9", audit,
		[]stats.Descriptives{d}, []*regress.Estimate{est}, testLogger()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, "run-9")
	assert.Contains(t, text, "car")
	assert.Contains(t, text, "m1")
}

func TestNewSheetsUploaderDisabled(t *testing.T) {
	u, err := NewSheetsUploader(context.Background(),
		config.SheetsConfig{Enabled: false}, testLogger())
	require.NoError(t, err)
	assert.Nil(t, u)
}
