package dataset

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// BreachEvent is one corporate data-breach disclosure. Rows loaded from the
// curated dataset keep their load order for the rest of the pipeline: the
// enrichment steps never reorder, add, or drop rows.
type BreachEvent struct {
	EventID         string    `json:"event_id" validate:"required"`
	Organization    string    `json:"organization" validate:"required"`
	Ticker          string    `json:"ticker"`
	DisclosureDate  time.Time `json:"disclosure_date"`
	BreachType      string    `json:"breach_type"`
	RecordsAffected int64     `json:"records_affected" validate:"gte=0"`
	Severity        string    `json:"severity"`
	Source          string    `json:"source"`
}

// Canonical severity categories. Severity arrives as a curated column in the
// input dataset; Normalize maps free-form spellings onto this set.
const (
	SeverityLow      = "low"
	SeverityModerate = "moderate"
	SeverityHigh     = "high"
	SeverityUnknown  = "unknown"
)

// NormalizeSeverity maps a raw severity string to a canonical category
func NormalizeSeverity(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "low", "minor", "1":
		return SeverityLow
	case "moderate", "medium", "2":
		return SeverityModerate
	case "high", "severe", "critical", "3":
		return SeverityHigh
	default:
		return SeverityUnknown
	}
}

// HasTicker reports whether the event maps to a publicly traded firm
func (e *BreachEvent) HasTicker() bool {
	return strings.TrimSpace(e.Ticker) != ""
}

// Validate runs the struct-tag validator plus domain checks the tags
// cannot express (whitespace-only fields, zero dates).
func (e *BreachEvent) Validate() error {
	if err := validate.Struct(e); err != nil {
		return fmt.Errorf("event %q: %w", e.EventID, err)
	}
	if strings.TrimSpace(e.EventID) == "" {
		return fmt.Errorf("event id is empty")
	}
	if strings.TrimSpace(e.Organization) == "" {
		return fmt.Errorf("event %s: organization is empty", e.EventID)
	}
	if e.DisclosureDate.IsZero() {
		return fmt.Errorf("event %s: disclosure date is missing", e.EventID)
	}
	if e.RecordsAffected < 0 {
		return fmt.Errorf("event %s: negative records affected: %d", e.EventID, e.RecordsAffected)
	}
	return nil
}
