package enrich

import (
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"breachstudy/internal/errors"
)

// sourceDateLayouts are the date formats accepted in source files
var sourceDateLayouts = []string{"2006-01-02", "01/02/2006", "2006/01/02"}

// LoadSourceCSV reads an enrichment source from a header-mapped CSV file.
// keyColumn holds the join key; asOfColumn, when non-empty, holds the row's
// reference date used by KeepLatest dedup. valueColumns are parsed as
// numbers; unparseable cells are logged and left out of the row, so they
// land in the table as nulls rather than zeros.
func LoadSourceCSV(path, name string, key KeyFunc, keyColumn, asOfColumn string,
	valueColumns []string, logger *slog.Logger) (*Source, error) {
	if logger == nil {
		logger = slog.Default()
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, errors.NewStorageError("failed to open source file "+path, err)
	}
	defer file.Close()

	src, err := readSource(file, name, key, keyColumn, asOfColumn, valueColumns, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("loaded enrichment source",
		slog.String("source", name),
		slog.String("path", path),
		slog.Int("keys", len(src.rows)))

	return src, nil
}

func readSource(r io.Reader, name string, key KeyFunc, keyColumn, asOfColumn string,
	valueColumns []string, logger *slog.Logger) (*Source, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, errors.NewParsingError("failed to read source header", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF")))
		h = strings.ReplaceAll(h, " ", "_")
		cols[h] = i
	}

	keyIdx, ok := cols[keyColumn]
	if !ok {
		return nil, errors.NewParsingError("source missing key column "+keyColumn, nil)
	}
	asOfIdx := -1
	if asOfColumn != "" {
		if asOfIdx, ok = cols[asOfColumn]; !ok {
			return nil, errors.NewParsingError("source missing date column "+asOfColumn, nil)
		}
	}

	src := NewSource(name, key, valueColumns)
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			logger.Warn("skipping malformed source row",
				slog.String("source", name),
				slog.Int("line", line),
				slog.String("error", err.Error()))
			continue
		}

		row := SourceRow{
			Key:    strings.TrimSpace(record[keyIdx]),
			Values: make(map[string]float64, len(valueColumns)),
		}
		if row.Key == "" {
			continue
		}

		if asOfIdx >= 0 && asOfIdx < len(record) {
			if d, err := parseSourceDate(record[asOfIdx]); err == nil {
				row.AsOf = d
			}
		}

		for _, col := range valueColumns {
			idx, ok := cols[col]
			if !ok || idx >= len(record) {
				continue
			}
			raw := strings.ReplaceAll(strings.TrimSpace(record[idx]), ",", "")
			if raw == "" {
				continue
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				logger.Warn("skipping unparseable source value",
					slog.String("source", name),
					slog.Int("line", line),
					slog.String("column", col),
					slog.String("value", raw))
				continue
			}
			row.Values[col] = v
		}

		src.Add(row)
	}

	return src, nil
}

func parseSourceDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	var lastErr error
	for _, layout := range sourceDateLayouts {
		d, err := time.Parse(layout, raw)
		if err == nil {
			return d, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
