package dataset

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"breachstudy/internal/errors"
)

// LoadExcel reads breach events from an Excel workbook. The sheet holding the
// data is located by header content rather than by name, since curated
// workbooks rename sheets freely.
func LoadExcel(path string, logger *slog.Logger) ([]BreachEvent, error) {
	if logger == nil {
		logger = slog.Default()
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.NewStorageError("failed to open workbook", err)
	}
	defer f.Close()

	rows, sheetName, err := findEventSheet(f)
	if err != nil {
		return nil, err
	}

	logger.Info("found breach event sheet",
		slog.String("path", path),
		slog.String("sheet", sheetName),
		slog.Int("rows", len(rows)))

	headerIdx := -1
	var cols map[string]int
	for i, row := range rows {
		candidate := mapColumns(row)
		_, hasID := candidate["event_id"]
		_, hasOrg := candidate["organization"]
		_, hasDate := candidate["disclosure_date"]
		if hasID && hasOrg && hasDate {
			headerIdx = i
			cols = candidate
			break
		}
	}
	if headerIdx < 0 {
		return nil, errors.NewParsingError("no header row with event_id/organization/disclosure_date found", nil)
	}

	var events []BreachEvent
	seen := make(map[string]int)

	for i := headerIdx + 1; i < len(rows); i++ {
		row := rows[i]
		if isEmptyRow(row) {
			continue
		}

		event, err := parseRow(row, cols)
		if err != nil {
			return nil, errors.NewParsingError(fmt.Sprintf("sheet %s row %d", sheetName, i+1), err)
		}

		if prev, dup := seen[event.EventID]; dup {
			return nil, errors.NewAppValidationError(
				fmt.Sprintf("duplicate event id %s at rows %d and %d", event.EventID, prev, i+1))
		}
		seen[event.EventID] = i + 1

		if err := event.Validate(); err != nil {
			return nil, errors.NewAppValidationError(fmt.Sprintf("sheet %s row %d: %v", sheetName, i+1, err))
		}

		events = append(events, event)
	}

	return events, nil
}

// findEventSheet locates the sheet containing breach data
func findEventSheet(f *excelize.File) ([][]string, string, error) {
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil || len(rows) == 0 {
			continue
		}
		for _, row := range rows[:min(4, len(rows))] {
			rowText := strings.ToLower(strings.Join(row, " "))
			if strings.Contains(rowText, "organization") || strings.Contains(rowText, "company") {
				if strings.Contains(rowText, "date") {
					return rows, name, nil
				}
			}
		}
	}
	return nil, "", errors.NewParsingError("could not find a breach event sheet in workbook", nil)
}

func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// WriteExcel exports events to a workbook, one row per event
func WriteExcel(path string, events []BreachEvent) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Breach Events"
	idx, err := f.NewSheet(sheet)
	if err != nil {
		return errors.NewStorageError("failed to create sheet", err)
	}
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	headers := []string{"event_id", "organization", "ticker", "disclosure_date",
		"breach_type", "records_affected", "severity", "source"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	for r, e := range events {
		values := []interface{}{
			e.EventID, e.Organization, e.Ticker,
			e.DisclosureDate.Format("2006-01-02"),
			e.BreachType, strconv.FormatInt(e.RecordsAffected, 10),
			e.Severity, e.Source,
		}
		for c, v := range values {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return errors.NewStorageError("failed to save workbook", err)
	}
	return nil
}
