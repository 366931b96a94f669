package report

import (
	"fmt"
	"sort"
	"strconv"

	"breachstudy/internal/enrich"
	"breachstudy/internal/regress"
	"breachstudy/internal/stats"
)

// Table is a rendered report table, ready for any output format
type Table struct {
	Name    string     `json:"name"`
	Title   string     `json:"title"`
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

func formatNum(v float64, decimals int) string {
	return strconv.FormatFloat(v, 'f', decimals, 64)
}

// DescriptivesTable renders descriptive statistics, one variable per row
func DescriptivesTable(descs []stats.Descriptives) *Table {
	t := &Table{
		Name:    "descriptives",
		Title:   "Descriptive statistics",
		Headers: []string{"Variable", "N", "Mean", "Std. Dev.", "Min", "P25", "Median", "P75", "Max"},
	}
	for _, d := range descs {
		t.Rows = append(t.Rows, []string{
			d.Variable,
			strconv.Itoa(d.N),
			formatNum(d.Mean, 4),
			formatNum(d.StdDev, 4),
			formatNum(d.Min, 4),
			formatNum(d.P25, 4),
			formatNum(d.Median, 4),
			formatNum(d.P75, 4),
			formatNum(d.Max, 4),
		})
	}
	return t
}

// CorrelationTable renders a correlation matrix with variable names on both
// axes. Only the lower triangle is filled, the convention dissertation
// appendices use.
func CorrelationTable(m *stats.CorrelationMatrix) *Table {
	t := &Table{
		Name:    "correlations",
		Title:   "Pearson correlation matrix",
		Headers: append([]string{""}, m.Variables...),
	}
	for i, name := range m.Variables {
		row := make([]string, len(m.Variables)+1)
		row[0] = name
		for j := range m.Variables {
			if j > i {
				row[j+1] = ""
				continue
			}
			row[j+1] = formatNum(m.Values[i][j], 3)
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// RegressionTable renders fitted models side by side: one column per
// estimate, coefficient and standard error stacked per term, stars on the
// coefficients, fit statistics in the footer rows.
func RegressionTable(name, title string, estimates []*regress.Estimate) *Table {
	t := &Table{
		Name:    name,
		Title:   title,
		Headers: []string{"Term"},
	}
	for _, est := range estimates {
		t.Headers = append(t.Headers, est.Spec.Name+" ("+est.Variant+")")
	}

	// Union of terms across estimates, first-seen order
	var terms []string
	seen := make(map[string]bool)
	for _, est := range estimates {
		for _, term := range est.Result.Terms {
			if !seen[term] {
				seen[term] = true
				terms = append(terms, term)
			}
		}
	}

	for _, term := range terms {
		coefRow := []string{term}
		seRow := []string{""}
		for _, est := range estimates {
			idx := termIndex(est.Result.Terms, term)
			if idx < 0 {
				coefRow = append(coefRow, "")
				seRow = append(seRow, "")
				continue
			}
			coefRow = append(coefRow,
				formatNum(est.Result.Coef[idx], 4)+stats.Significance(est.Result.PValues[idx]))
			se := est.Result.StdErr[idx]
			if est.Result.Robust {
				se = est.Result.RobustStdErr[idx]
			}
			seRow = append(seRow, "("+formatNum(se, 4)+")")
		}
		t.Rows = append(t.Rows, coefRow, seRow)
	}

	nRow := []string{"N"}
	r2Row := []string{"R-squared"}
	fRow := []string{"F"}
	for _, est := range estimates {
		nRow = append(nRow, strconv.Itoa(est.Result.N))
		r2Row = append(r2Row, formatNum(est.Result.R2, 3))
		fRow = append(fRow, formatNum(est.Result.FStat, 2))
	}
	t.Rows = append(t.Rows, nRow, r2Row, fRow)

	return t
}

func termIndex(terms []string, term string) int {
	for i, t := range terms {
		if t == term {
			return i
		}
	}
	return -1
}

// AttritionTable renders the sample attrition audit: one row per pipeline
// step with rows, matches, and the availability counts that drive sample
// sizes downstream.
func AttritionTable(audit *enrich.AttritionAudit) *Table {
	t := &Table{
		Name:    "attrition",
		Title:   "Sample attrition by pipeline step",
		Headers: []string{"Step", "Rows", "Matched", "Collisions", "Flagged usable"},
	}
	for _, step := range audit.Steps {
		matched, collisions := "", ""
		if step.Merge != nil {
			matched = strconv.Itoa(step.Merge.Matched)
			collisions = strconv.Itoa(step.Merge.Collisions)
		}
		usable := ""
		if n, ok := step.FlagCounts[enrich.FlagHasCompleteData]; ok {
			usable = strconv.Itoa(n)
		} else if n, ok := step.FlagCounts[enrich.FlagHasCRSPData]; ok {
			usable = strconv.Itoa(n)
		}
		t.Rows = append(t.Rows, []string{
			step.Step,
			strconv.Itoa(step.RowsOut),
			matched,
			collisions,
			usable,
		})
	}
	return t
}

// NonNullTable renders per-variable non-null counts from the final audit
// step, sorted by variable name.
func NonNullTable(audit *enrich.AttritionAudit) *Table {
	t := &Table{
		Name:    "non_null_counts",
		Title:   "Per-variable availability",
		Headers: []string{"Variable", "Non-null", "Share"},
	}
	if len(audit.Steps) == 0 {
		return t
	}
	last := audit.Steps[len(audit.Steps)-1]

	names := make([]string, 0, len(last.NonNullCounts))
	for name := range last.NonNullCounts {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		n := last.NonNullCounts[name]
		share := 0.0
		if audit.RowCount > 0 {
			share = float64(n) / float64(audit.RowCount)
		}
		t.Rows = append(t.Rows, []string{
			name,
			strconv.Itoa(n),
			fmt.Sprintf("%.1f%%", 100*share),
		})
	}
	return t
}
