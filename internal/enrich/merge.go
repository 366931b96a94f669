package enrich

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"breachstudy/internal/dataset"
	"breachstudy/internal/errors"
)

// DedupPolicy determines how duplicate join keys on an enrichment source are
// resolved. Every resolution is logged with the colliding key so the merge
// remains auditable.
type DedupPolicy int

const (
	// KeepFirst keeps the first source row for a key, in source order
	KeepFirst DedupPolicy = iota
	// KeepLatest keeps the source row with the latest AsOf date
	KeepLatest
	// Reject fails the merge on any duplicate key
	Reject
)

// String returns the policy name used in logs and the audit trail
func (p DedupPolicy) String() string {
	switch p {
	case KeepFirst:
		return "keep_first"
	case KeepLatest:
		return "keep_latest"
	case Reject:
		return "reject"
	default:
		return "unknown"
	}
}

// KeyFunc extracts the join key from a breach event. An empty key means the
// event cannot match this source (e.g. private firms have no ticker).
type KeyFunc func(e dataset.BreachEvent) string

// KeyByTicker joins on the stock ticker
func KeyByTicker(e dataset.BreachEvent) string { return e.Ticker }

// KeyByOrganization joins on the organization name
func KeyByOrganization(e dataset.BreachEvent) string { return e.Organization }

// SourceRow is one row of an enrichment source
type SourceRow struct {
	Key    string
	AsOf   time.Time
	Values map[string]float64
}

// Source is an enrichment source table keyed by an organization identifier
type Source struct {
	Name    string
	Key     KeyFunc
	Columns []string
	rows    map[string][]SourceRow
}

// NewSource creates an empty enrichment source
func NewSource(name string, key KeyFunc, columns []string) *Source {
	return &Source{
		Name:    name,
		Key:     key,
		Columns: columns,
		rows:    make(map[string][]SourceRow),
	}
}

// Add appends a source row
func (s *Source) Add(row SourceRow) {
	s.rows[row.Key] = append(s.rows[row.Key], row)
}

// MergeResult summarizes one merge step for the attrition audit
type MergeResult struct {
	Source     string `json:"source"`
	Policy     string `json:"policy"`
	RowsIn     int    `json:"rows_in"`
	RowsOut    int    `json:"rows_out"`
	Matched    int    `json:"matched"`
	Unmatched  int    `json:"unmatched"`
	Keyless    int    `json:"keyless"`
	Collisions int    `json:"collisions"`
}

// Merge left-joins an enrichment source into the table. The join is strictly
// one row per event: duplicate keys on the source side are resolved by the
// policy before any value lands in the table, so row multiplication is
// impossible by construction. The row-count invariant is still checked and
// returned in the result for the audit trail.
func Merge(t *Table, src *Source, policy DedupPolicy, logger *slog.Logger) (*MergeResult, error) {
	if logger == nil {
		logger = slog.Default()
	}

	rowsIn := t.RowCount()

	for _, col := range src.Columns {
		name := src.Name + "_" + col
		if !t.HasColumn(name) {
			if err := t.AddColumn(name); err != nil {
				return nil, err
			}
		}
	}

	resolved, collisions, err := resolveDuplicates(src, policy, logger)
	if err != nil {
		return nil, err
	}

	result := &MergeResult{
		Source:     src.Name,
		Policy:     policy.String(),
		RowsIn:     rowsIn,
		Collisions: collisions,
	}

	for i, event := range t.Events() {
		key := src.Key(event)
		if key == "" {
			result.Keyless++
			continue
		}

		row, ok := resolved[key]
		if !ok {
			result.Unmatched++
			continue
		}

		result.Matched++
		for _, col := range src.Columns {
			v, has := row.Values[col]
			if !has {
				continue
			}
			if err := t.Set(src.Name+"_"+col, i, v); err != nil {
				return nil, err
			}
		}
	}

	result.RowsOut = t.RowCount()
	if result.RowsOut != result.RowsIn {
		// Unreachable with the columnar table, but the invariant is the
		// contract this pipeline exists to keep.
		return nil, errors.NewMergeError(
			fmt.Sprintf("row count changed during merge of %s: %d -> %d",
				src.Name, result.RowsIn, result.RowsOut), nil)
	}

	logger.Info("merged enrichment source",
		slog.String("source", src.Name),
		slog.String("policy", policy.String()),
		slog.Int("rows", result.RowsOut),
		slog.Int("matched", result.Matched),
		slog.Int("unmatched", result.Unmatched),
		slog.Int("keyless", result.Keyless),
		slog.Int("collisions", result.Collisions))

	return result, nil
}

// resolveDuplicates collapses each key's candidate rows to exactly one
func resolveDuplicates(src *Source, policy DedupPolicy, logger *slog.Logger) (map[string]SourceRow, int, error) {
	resolved := make(map[string]SourceRow, len(src.rows))
	collisions := 0

	// Deterministic iteration so collision logs are stable across runs
	keys := make([]string, 0, len(src.rows))
	for key := range src.rows {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		candidates := src.rows[key]
		if len(candidates) == 1 {
			resolved[key] = candidates[0]
			continue
		}

		collisions++
		switch policy {
		case Reject:
			return nil, collisions, errors.NewMergeError(
				fmt.Sprintf("duplicate join key in source %s", src.Name), nil).
				WithContext("key", key).
				WithContext("candidates", len(candidates))
		case KeepLatest:
			latest := candidates[0]
			for _, c := range candidates[1:] {
				if c.AsOf.After(latest.AsOf) {
					latest = c
				}
			}
			resolved[key] = latest
		default: // KeepFirst
			resolved[key] = candidates[0]
		}

		logger.Warn("duplicate join key resolved",
			slog.String("source", src.Name),
			slog.String("key", key),
			slog.Int("candidates", len(candidates)),
			slog.String("policy", policy.String()))
	}

	return resolved, collisions, nil
}
