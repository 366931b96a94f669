package features

import (
	"fmt"
	"log/slog"
	"time"

	"breachstudy/internal/enrich"
	"breachstudy/internal/errors"
)

// Column names for the post-disclosure event flags
const (
	ColExecTurnover   = "exec_turnover"
	ColRegEnforcement = "reg_enforcement"
)

// DatedRecord is one row of a post-disclosure flag source, e.g. a CEO
// departure or an enforcement action against an organization.
type DatedRecord struct {
	Key  string
	Date time.Time
}

// DerivePostDisclosureFlag sets a 0/1 column marking events where any record
// for the event's key falls inside the window after disclosure. The flag is
// never null; an organization with no records at all is a 0, same as one
// whose records fall outside the window.
func DerivePostDisclosureFlag(t *enrich.Table, col string, records []DatedRecord,
	key enrich.KeyFunc, windowDays int, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if windowDays <= 0 {
		return 0, errors.NewAppValidationError(
			fmt.Sprintf("flag %s: window must be positive, got %d", col, windowDays))
	}

	if !t.HasColumn(col) {
		if err := t.AddColumn(col); err != nil {
			return 0, err
		}
	}

	byKey := make(map[string][]time.Time)
	for _, r := range records {
		k := normalizeOrg(r.Key)
		byKey[k] = append(byKey[k], r.Date)
	}

	flagged := 0
	for i := 0; i < t.RowCount(); i++ {
		event := t.Event(i)
		disclosed := event.DisclosureDate
		deadline := disclosed.AddDate(0, 0, windowDays)

		v := 0.0
		for _, date := range byKey[normalizeOrg(key(event))] {
			if date.After(disclosed) && !date.After(deadline) {
				v = 1
				break
			}
		}
		if v == 1 {
			flagged++
		}
		if err := t.Set(col, i, v); err != nil {
			return 0, err
		}
	}

	logger.Info("derived post-disclosure flag",
		slog.String("column", col),
		slog.Int("window_days", windowDays),
		slog.Int("flagged", flagged),
		slog.Int("rows", t.RowCount()))

	return flagged, nil
}
