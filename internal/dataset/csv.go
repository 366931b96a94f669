package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"breachstudy/internal/errors"
)

// Date layouts accepted in the curated dataset, tried in order.
var dateLayouts = []string{"2006-01-02", "01/02/2006", "2006/01/02"}

// LoadCSV reads the curated breach-event dataset from a CSV file. Column
// positions are resolved from the header, tolerating the naming variants that
// show up in hand-maintained spreadsheets. Duplicate event IDs are rejected:
// row identity is the contract the whole pipeline depends on.
func LoadCSV(path string, logger *slog.Logger) ([]BreachEvent, error) {
	if logger == nil {
		logger = slog.Default()
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, errors.NewStorageError("failed to open breach events CSV", err)
	}
	defer file.Close()

	events, err := readCSV(file, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("loaded breach events",
		slog.String("path", path),
		slog.Int("events", len(events)))

	return events, nil
}

func readCSV(r io.Reader, logger *slog.Logger) ([]BreachEvent, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, errors.NewParsingError("failed to read CSV header", err)
	}

	cols := mapColumns(header)
	for _, required := range []string{"event_id", "organization", "disclosure_date"} {
		if _, ok := cols[required]; !ok {
			return nil, errors.NewParsingError(
				fmt.Sprintf("required column %q not found in header", required), nil)
		}
	}

	var events []BreachEvent
	seen := make(map[string]int)
	line := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.NewParsingError(fmt.Sprintf("failed to read CSV row %d", line+1), err)
		}
		line++

		event, err := parseRow(record, cols)
		if err != nil {
			return nil, errors.NewParsingError(fmt.Sprintf("row %d", line), err)
		}

		if prev, dup := seen[event.EventID]; dup {
			return nil, errors.NewAppValidationError(
				fmt.Sprintf("duplicate event id %s at rows %d and %d", event.EventID, prev, line))
		}
		seen[event.EventID] = line

		if err := event.Validate(); err != nil {
			return nil, errors.NewAppValidationError(fmt.Sprintf("row %d: %v", line, err))
		}

		events = append(events, event)
	}

	return events, nil
}

// mapColumns resolves header names to canonical field keys
func mapColumns(header []string) map[string]int {
	cols := make(map[string]int)
	for i, name := range header {
		// Strip the UTF-8 BOM Excel leaves on the first cell
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\uFEFF")))
		key = strings.ReplaceAll(key, " ", "_")
		switch key {
		case "event_id", "eventid", "id", "breach_id":
			cols["event_id"] = i
		case "organization", "org", "company", "company_name", "entity":
			cols["organization"] = i
		case "ticker", "symbol", "tic":
			cols["ticker"] = i
		case "disclosure_date", "date", "date_made_public", "breach_date":
			cols["disclosure_date"] = i
		case "breach_type", "type", "type_of_breach":
			cols["breach_type"] = i
		case "records_affected", "records", "total_records", "individuals_affected":
			cols["records_affected"] = i
		case "severity", "severity_category":
			cols["severity"] = i
		case "source", "data_source":
			cols["source"] = i
		}
	}
	return cols
}

func parseRow(record []string, cols map[string]int) (BreachEvent, error) {
	get := func(key string) string {
		idx, ok := cols[key]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	date, err := parseDate(get("disclosure_date"))
	if err != nil {
		return BreachEvent{}, fmt.Errorf("disclosure date: %w", err)
	}

	var recordsAffected int64
	if raw := get("records_affected"); raw != "" {
		// Hand-curated exports often carry thousands separators
		cleaned := strings.ReplaceAll(raw, ",", "")
		recordsAffected, err = strconv.ParseInt(cleaned, 10, 64)
		if err != nil {
			return BreachEvent{}, fmt.Errorf("records affected %q: %w", raw, err)
		}
	}

	return BreachEvent{
		EventID:         get("event_id"),
		Organization:    get("organization"),
		Ticker:          strings.ToUpper(get("ticker")),
		DisclosureDate:  date,
		BreachType:      strings.ToLower(get("breach_type")),
		RecordsAffected: recordsAffected,
		Severity:        NormalizeSeverity(get("severity")),
		Source:          get("source"),
	}, nil
}

// WriteCSV writes events to path with the canonical column set. The output
// round-trips through LoadCSV unchanged.
func WriteCSV(path string, events []BreachEvent) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.NewStorageError("failed to create breach events CSV", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	header := []string{"event_id", "organization", "ticker", "disclosure_date",
		"breach_type", "records_affected", "severity", "source"}
	if err := writer.Write(header); err != nil {
		return errors.NewStorageError("failed to write CSV header", err)
	}

	for i := range events {
		e := &events[i]
		row := []string{
			e.EventID,
			e.Organization,
			e.Ticker,
			e.DisclosureDate.Format("2006-01-02"),
			e.BreachType,
			strconv.FormatInt(e.RecordsAffected, 10),
			e.Severity,
			e.Source,
		}
		if err := writer.Write(row); err != nil {
			return errors.NewStorageError(fmt.Sprintf("failed to write event %s", e.EventID), err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return errors.NewStorageError("failed to flush breach events CSV", err)
	}
	return nil
}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format %q", raw)
}
