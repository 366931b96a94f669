package features

import (
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"breachstudy/internal/errors"
)

var recordDateLayouts = []string{"2006-01-02", "01/02/2006", "2006/01/02"}

// LoadDatedRecords reads key/date pairs from a header-mapped CSV file, e.g.
// executive departures or enforcement actions by organization. Rows with a
// missing key or unparseable date are logged and skipped.
func LoadDatedRecords(path, keyColumn, dateColumn string, logger *slog.Logger) ([]DatedRecord, error) {
	if logger == nil {
		logger = slog.Default()
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, errors.NewStorageError("failed to open "+path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, errors.NewParsingError("failed to read header of "+path, err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF")))
		h = strings.ReplaceAll(h, " ", "_")
		cols[h] = i
	}

	keyIdx, ok := cols[keyColumn]
	if !ok {
		return nil, errors.NewParsingError("missing key column "+keyColumn, nil)
	}
	dateIdx, ok := cols[dateColumn]
	if !ok {
		return nil, errors.NewParsingError("missing date column "+dateColumn, nil)
	}

	var records []DatedRecord
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			logger.Warn("skipping malformed record row",
				slog.String("path", path),
				slog.Int("line", line),
				slog.String("error", err.Error()))
			continue
		}

		key := strings.TrimSpace(record[keyIdx])
		if key == "" || dateIdx >= len(record) {
			continue
		}
		date, err := parseRecordDate(record[dateIdx])
		if err != nil {
			logger.Warn("skipping record with unparseable date",
				slog.String("path", path),
				slog.Int("line", line),
				slog.String("value", record[dateIdx]))
			continue
		}
		records = append(records, DatedRecord{Key: key, Date: date})
	}

	logger.Info("loaded dated records",
		slog.String("path", path),
		slog.Int("records", len(records)))

	return records, nil
}

func parseRecordDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	var lastErr error
	for _, layout := range recordDateLayouts {
		d, err := time.Parse(layout, raw)
		if err == nil {
			return d, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
