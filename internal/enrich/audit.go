package enrich

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"breachstudy/internal/errors"
)

// AttritionAudit is the per-step record of sample attrition. Row counts never
// change, so attrition shows up as declining non-null counts and flag
// eligibility; downstream models read their sample sizes from here.
type AttritionAudit struct {
	RunID     string      `json:"run_id"`
	StartedAt time.Time   `json:"started_at"`
	RowCount  int         `json:"row_count"`
	Steps     []StepAudit `json:"steps"`
}

// StepAudit records the table state after one pipeline step
type StepAudit struct {
	Step          string         `json:"step"`
	At            time.Time      `json:"at"`
	RowsIn        int            `json:"rows_in"`
	RowsOut       int            `json:"rows_out"`
	Merge         *MergeResult   `json:"merge,omitempty"`
	NonNullCounts map[string]int `json:"non_null_counts"`
	FlagCounts    map[string]int `json:"flag_counts,omitempty"`
}

// NewAttritionAudit starts an audit for a run over a fixed row count
func NewAttritionAudit(runID string, rowCount int) *AttritionAudit {
	return &AttritionAudit{
		RunID:     runID,
		StartedAt: time.Now().UTC(),
		RowCount:  rowCount,
	}
}

// RecordStep captures the table state after a pipeline step. It fails if the
// table's row count drifted from the audited count: that is the one invariant
// this pipeline must never lose.
func (a *AttritionAudit) RecordStep(step string, t *Table, merge *MergeResult) error {
	if t.RowCount() != a.RowCount {
		return errors.NewMergeError(
			fmt.Sprintf("step %s changed row count: %d -> %d", step, a.RowCount, t.RowCount()), nil)
	}

	entry := StepAudit{
		Step:          step,
		At:            time.Now().UTC(),
		RowsIn:        a.RowCount,
		RowsOut:       t.RowCount(),
		Merge:         merge,
		NonNullCounts: t.NonNullCounts(),
	}

	flagCounts := make(map[string]int)
	for _, flag := range []string{FlagHasCRSPData, FlagHasVolatilityWindow, FlagHasFinancialData, FlagHasCompleteData} {
		if t.HasColumn(flag) {
			flagCounts[flag] = len(t.FlaggedRows(flag))
		}
	}
	if len(flagCounts) > 0 {
		entry.FlagCounts = flagCounts
	}

	a.Steps = append(a.Steps, entry)
	return nil
}

// Save writes the audit as indented JSON
func (a *AttritionAudit) Save(path string) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return errors.NewStorageError("failed to marshal attrition audit", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.NewStorageError("failed to write attrition audit", err)
	}
	return nil
}

// LoadAttritionAudit reads a previously saved audit
func LoadAttritionAudit(path string) (*AttritionAudit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewStorageError("failed to read attrition audit", err)
	}
	var audit AttritionAudit
	if err := json.Unmarshal(data, &audit); err != nil {
		return nil, errors.NewParsingError("failed to unmarshal attrition audit", err)
	}
	return &audit, nil
}
