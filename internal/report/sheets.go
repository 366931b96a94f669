package report

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"breachstudy/internal/config"
	"breachstudy/internal/errors"
)

// SheetsUploader pushes headline tables to a Google Sheets spreadsheet so
// advisors can read results without touching the run directory.
type SheetsUploader struct {
	cfg     config.SheetsConfig
	service *sheets.Service
	logger  *slog.Logger
}

// NewSheetsUploader builds the uploader from service-account credentials.
// Returns nil without error when the upload is disabled in config.
func NewSheetsUploader(ctx context.Context, cfg config.SheetsConfig, logger *slog.Logger) (*SheetsUploader, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	service, err := sheets.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsFile))
	if err != nil {
		return nil, errors.NewNetworkError("failed to create sheets service", err)
	}

	return &SheetsUploader{cfg: cfg, service: service, logger: logger}, nil
}

// Upload writes each table to a sheet named after it, creating the sheet if
// missing and replacing its contents.
func (u *SheetsUploader) Upload(ctx context.Context, tables []*Table) error {
	spreadsheet, err := u.service.Spreadsheets.Get(u.cfg.SpreadsheetID).Context(ctx).Do()
	if err != nil {
		return errors.NewNetworkError("failed to open spreadsheet", err)
	}

	existing := make(map[string]bool)
	for _, sheet := range spreadsheet.Sheets {
		existing[sheet.Properties.Title] = true
	}

	for _, t := range tables {
		title := sheetName(t)
		if !existing[title] {
			req := &sheets.BatchUpdateSpreadsheetRequest{
				Requests: []*sheets.Request{{
					AddSheet: &sheets.AddSheetRequest{
						Properties: &sheets.SheetProperties{Title: title},
					},
				}},
			}
			if _, err := u.service.Spreadsheets.BatchUpdate(u.cfg.SpreadsheetID, req).Context(ctx).Do(); err != nil {
				return errors.NewNetworkError("failed to add sheet "+title, err)
			}
			existing[title] = true
		}

		values := make([][]interface{}, 0, len(t.Rows)+1)
		header := make([]interface{}, len(t.Headers))
		for i, h := range t.Headers {
			header[i] = h
		}
		values = append(values, header)
		for _, row := range t.Rows {
			cells := make([]interface{}, len(row))
			for i, c := range row {
				cells[i] = c
			}
			values = append(values, cells)
		}

		if _, err := u.service.Spreadsheets.Values.Clear(
			u.cfg.SpreadsheetID, title, &sheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
			return errors.NewNetworkError("failed to clear sheet "+title, err)
		}

		rangeStr := fmt.Sprintf("%s!A1", title)
		valueRange := &sheets.ValueRange{Values: values}
		if _, err := u.service.Spreadsheets.Values.Update(
			u.cfg.SpreadsheetID, rangeStr, valueRange).
			ValueInputOption("RAW").Context(ctx).Do(); err != nil {
			return errors.NewNetworkError("failed to update sheet "+title, err)
		}

		u.logger.InfoContext(ctx, "uploaded table to sheets",
			slog.String("table", t.Name),
			slog.String("sheet", title),
			slog.Int("rows", len(t.Rows)))
	}

	return nil
}
