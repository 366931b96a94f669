package features

import (
	"sort"
	"strings"

	"breachstudy/internal/enrich"
)

// Column names for the prior-breach history variables
const (
	ColPriorBreachCount = "prior_breach_count"
	ColFirstBreach      = "first_breach"
	ColDaysSinceLast    = "days_since_last_breach"
)

// DerivePriorBreachHistory adds the repeat-offender variables. For each
// event it counts earlier breaches by the same organization, marks first
// breaches, and records the days since the organization's previous breach.
// Count and indicator are never null; days_since_last_breach is null for
// first breaches.
func DerivePriorBreachHistory(t *enrich.Table) error {
	for _, col := range []string{ColPriorBreachCount, ColFirstBreach, ColDaysSinceLast} {
		if !t.HasColumn(col) {
			if err := t.AddColumn(col); err != nil {
				return err
			}
		}
	}

	// Rows per organization, ordered by disclosure date. Ties keep load
	// order so same-day breaches do not count each other as prior.
	byOrg := make(map[string][]int)
	for i := 0; i < t.RowCount(); i++ {
		org := normalizeOrg(t.Event(i).Organization)
		byOrg[org] = append(byOrg[org], i)
	}

	for _, rows := range byOrg {
		ordered := make([]int, len(rows))
		copy(ordered, rows)
		sort.SliceStable(ordered, func(a, b int) bool {
			return t.Event(ordered[a]).DisclosureDate.Before(t.Event(ordered[b]).DisclosureDate)
		})

		for pos, row := range ordered {
			prior := 0
			for _, other := range ordered[:pos] {
				if t.Event(other).DisclosureDate.Before(t.Event(row).DisclosureDate) {
					prior++
				}
			}

			if err := t.Set(ColPriorBreachCount, row, float64(prior)); err != nil {
				return err
			}
			first := 1.0
			if prior > 0 {
				first = 0
			}
			if err := t.Set(ColFirstBreach, row, first); err != nil {
				return err
			}
			if prior > 0 {
				// Nearest strictly earlier breach
				var lastIdx int
				for _, other := range ordered[:pos] {
					if t.Event(other).DisclosureDate.Before(t.Event(row).DisclosureDate) {
						lastIdx = other
					}
				}
				days := t.Event(row).DisclosureDate.Sub(t.Event(lastIdx).DisclosureDate).Hours() / 24
				if err := t.Set(ColDaysSinceLast, row, days); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

func normalizeOrg(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
