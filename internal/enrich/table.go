package enrich

import (
	"fmt"
	"math"
	"sort"

	"breachstudy/internal/dataset"
	"breachstudy/internal/errors"
)

// Table is the working dataset for the enrichment pipeline. Row identity is
// fixed at construction: every merge and derive step operates on exactly the
// same rows, in the same order, as the loaded breach events. Columns are
// nullable float64 vectors tracked alongside the events.
type Table struct {
	events  []dataset.BreachEvent
	index   map[string]int // event ID -> row position
	order   []string       // column registration order
	columns map[string]*column
}

type column struct {
	values  []float64
	present []bool
}

// NewTable builds a table over the loaded events. Event IDs must be unique;
// the dataset loader already enforces this, the check here guards callers
// constructing tables directly.
func NewTable(events []dataset.BreachEvent) (*Table, error) {
	index := make(map[string]int, len(events))
	for i, e := range events {
		if _, dup := index[e.EventID]; dup {
			return nil, errors.NewAppValidationError(fmt.Sprintf("duplicate event id %s", e.EventID))
		}
		index[e.EventID] = i
	}
	return &Table{
		events:  events,
		index:   index,
		columns: make(map[string]*column),
	}, nil
}

// RowCount returns the fixed number of rows
func (t *Table) RowCount() int {
	return len(t.events)
}

// Events returns the underlying breach events in row order
func (t *Table) Events() []dataset.BreachEvent {
	return t.events
}

// Event returns the event at row i
func (t *Table) Event(i int) dataset.BreachEvent {
	return t.events[i]
}

// RowOf returns the row position for an event ID
func (t *Table) RowOf(eventID string) (int, bool) {
	i, ok := t.index[eventID]
	return i, ok
}

// AddColumn registers a new all-null column
func (t *Table) AddColumn(name string) error {
	if _, exists := t.columns[name]; exists {
		return errors.NewAppValidationError(fmt.Sprintf("column %s already exists", name))
	}
	t.columns[name] = &column{
		values:  make([]float64, len(t.events)),
		present: make([]bool, len(t.events)),
	}
	t.order = append(t.order, name)
	return nil
}

// HasColumn reports whether a column is registered
func (t *Table) HasColumn(name string) bool {
	_, ok := t.columns[name]
	return ok
}

// Columns returns column names in registration order
func (t *Table) Columns() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Set assigns a value at (column, row). NaN and infinities are treated as
// null: downstream statistics must never see them as data.
func (t *Table) Set(name string, row int, v float64) error {
	col, ok := t.columns[name]
	if !ok {
		return errors.NewAppValidationError(fmt.Sprintf("unknown column %s", name))
	}
	if row < 0 || row >= len(t.events) {
		return errors.NewAppValidationError(fmt.Sprintf("row %d out of range", row))
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		col.present[row] = false
		return nil
	}
	col.values[row] = v
	col.present[row] = true
	return nil
}

// Value returns (value, non-null) at (column, row)
func (t *Table) Value(name string, row int) (float64, bool) {
	col, ok := t.columns[name]
	if !ok || row < 0 || row >= len(t.events) {
		return 0, false
	}
	if !col.present[row] {
		return 0, false
	}
	return col.values[row], true
}

// NonNullCount returns the number of non-null values in a column
func (t *Table) NonNullCount(name string) int {
	col, ok := t.columns[name]
	if !ok {
		return 0
	}
	n := 0
	for _, p := range col.present {
		if p {
			n++
		}
	}
	return n
}

// NonNullCounts returns the per-column non-null counts for every column
func (t *Table) NonNullCounts() map[string]int {
	counts := make(map[string]int, len(t.columns))
	for name := range t.columns {
		counts[name] = t.NonNullCount(name)
	}
	return counts
}

// ColumnValues extracts the non-null values of a column together with their
// row positions, preserving row order.
func (t *Table) ColumnValues(name string) (values []float64, rows []int) {
	col, ok := t.columns[name]
	if !ok {
		return nil, nil
	}
	for i, p := range col.present {
		if p {
			values = append(values, col.values[i])
			rows = append(rows, i)
		}
	}
	return values, rows
}

// CompleteRows returns the rows where every listed column is non-null,
// in row order. This is the listwise-deletion primitive the regression
// layer uses to report exact sample sizes.
func (t *Table) CompleteRows(cols []string) []int {
	var rows []int
	for i := range t.events {
		complete := true
		for _, name := range cols {
			if _, ok := t.Value(name, i); !ok {
				complete = false
				break
			}
		}
		if complete {
			rows = append(rows, i)
		}
	}
	return rows
}

// SortedColumns returns column names sorted alphabetically, for stable
// serialization of audit output.
func (t *Table) SortedColumns() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	sort.Strings(out)
	return out
}
