package features

import (
	"math"
	"sort"

	"breachstudy/internal/dataset"
	"breachstudy/internal/enrich"
)

// Column names for the transformed variables
const (
	ColLogRecords      = "log_records"
	ColSizeQuartile    = "size_quartile"
	ColSeverityModHigh = "severity_moderate_or_high"
	ColSeverityHigh    = "severity_high"
)

// DeriveLogRecords adds log(1 + records affected). Zero records, meaning the
// count was not disclosed, maps to null rather than log(1)=0 so undisclosed
// counts do not masquerade as tiny breaches.
func DeriveLogRecords(t *enrich.Table) error {
	if !t.HasColumn(ColLogRecords) {
		if err := t.AddColumn(ColLogRecords); err != nil {
			return err
		}
	}
	for i := 0; i < t.RowCount(); i++ {
		records := t.Event(i).RecordsAffected
		if records <= 0 {
			continue
		}
		if err := t.Set(ColLogRecords, i, math.Log1p(float64(records))); err != nil {
			return err
		}
	}
	return nil
}

// DeriveSizeQuartiles buckets a firm size column into quartiles 1 through 4
// over its non-null values. Rows with a null size stay null.
func DeriveSizeQuartiles(t *enrich.Table, sizeCol string) error {
	if !t.HasColumn(ColSizeQuartile) {
		if err := t.AddColumn(ColSizeQuartile); err != nil {
			return err
		}
	}

	values, rows := t.ColumnValues(sizeCol)
	if len(values) == 0 {
		return nil
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	cut := func(q float64) float64 {
		idx := int(q * float64(len(sorted)))
		if idx >= len(sorted) {
			idx = len(sorted) - 1
		}
		return sorted[idx]
	}
	q1, q2, q3 := cut(0.25), cut(0.5), cut(0.75)

	for i, row := range rows {
		v := values[i]
		quartile := 4.0
		switch {
		case v < q1:
			quartile = 1
		case v < q2:
			quartile = 2
		case v < q3:
			quartile = 3
		}
		if err := t.Set(ColSizeQuartile, row, quartile); err != nil {
			return err
		}
	}
	return nil
}

// DeriveSeverityIndicators adds 0/1 columns from the curated severity
// category. Events with unknown severity stay null on both columns so they
// drop out of specifications that condition on severity.
func DeriveSeverityIndicators(t *enrich.Table) error {
	for _, col := range []string{ColSeverityModHigh, ColSeverityHigh} {
		if !t.HasColumn(col) {
			if err := t.AddColumn(col); err != nil {
				return err
			}
		}
	}

	for i := 0; i < t.RowCount(); i++ {
		severity := dataset.NormalizeSeverity(t.Event(i).Severity)
		var modHigh, high float64
		switch severity {
		case dataset.SeverityHigh:
			modHigh, high = 1, 1
		case dataset.SeverityModerate:
			modHigh, high = 1, 0
		case dataset.SeverityLow:
			modHigh, high = 0, 0
		default:
			continue // unknown stays null
		}
		if err := t.Set(ColSeverityModHigh, i, modHigh); err != nil {
			return err
		}
		if err := t.Set(ColSeverityHigh, i, high); err != nil {
			return err
		}
	}
	return nil
}
