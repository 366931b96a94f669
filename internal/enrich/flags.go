package enrich

import (
	"fmt"

	"breachstudy/internal/errors"
)

// Well-known availability flags. Each flag is a 0/1 column that is never
// null: eligibility must be decidable for every row.
const (
	FlagHasCRSPData         = "has_crsp_data"
	FlagHasVolatilityWindow = "has_volatility_window"
	FlagHasFinancialData    = "has_financial_data"
	FlagHasCompleteData     = "has_complete_data"
)

// FlagRule defines an availability flag as the conjunction of non-null
// status over a set of source columns.
type FlagRule struct {
	Flag     string
	Requires []string
}

// DeriveFlag adds the flag column and sets it 1 where every required column
// is non-null, 0 otherwise. Every row gets a value.
func DeriveFlag(t *Table, rule FlagRule) (int, error) {
	for _, col := range rule.Requires {
		if !t.HasColumn(col) {
			return 0, errors.NewAppValidationError(
				fmt.Sprintf("flag %s requires unknown column %s", rule.Flag, col))
		}
	}

	if !t.HasColumn(rule.Flag) {
		if err := t.AddColumn(rule.Flag); err != nil {
			return 0, err
		}
	}

	eligible := 0
	for i := 0; i < t.RowCount(); i++ {
		v := 1.0
		for _, col := range rule.Requires {
			if _, ok := t.Value(col, i); !ok {
				v = 0
				break
			}
		}
		if v == 1 {
			eligible++
		}
		if err := t.Set(rule.Flag, i, v); err != nil {
			return 0, err
		}
	}

	return eligible, nil
}

// DeriveCompositeFlag sets a flag as the conjunction of other flags.
// Used for has_complete_data over the individual availability flags.
func DeriveCompositeFlag(t *Table, flag string, flags []string) (int, error) {
	for _, f := range flags {
		if !t.HasColumn(f) {
			return 0, errors.NewAppValidationError(
				fmt.Sprintf("composite flag %s requires unknown flag %s", flag, f))
		}
	}

	if !t.HasColumn(flag) {
		if err := t.AddColumn(flag); err != nil {
			return 0, err
		}
	}

	eligible := 0
	for i := 0; i < t.RowCount(); i++ {
		v := 1.0
		for _, f := range flags {
			fv, ok := t.Value(f, i)
			if !ok || fv != 1 {
				v = 0
				break
			}
		}
		if v == 1 {
			eligible++
		}
		if err := t.Set(flag, i, v); err != nil {
			return 0, err
		}
	}

	return eligible, nil
}

// FlagTrue reports whether a flag is set for a row
func (t *Table) FlagTrue(flag string, row int) bool {
	v, ok := t.Value(flag, row)
	return ok && v == 1
}

// FlaggedRows returns the rows with the flag set, in row order
func (t *Table) FlaggedRows(flag string) []int {
	var rows []int
	for i := 0; i < t.RowCount(); i++ {
		if t.FlagTrue(flag, i) {
			rows = append(rows, i)
		}
	}
	return rows
}
