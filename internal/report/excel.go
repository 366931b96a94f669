package report

import (
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"breachstudy/internal/errors"
)

// WriteWorkbook writes every table into one Excel workbook, one sheet per
// table, and saves it at path.
func WriteWorkbook(path string, tables []*Table, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if len(tables) == 0 {
		return errors.NewAppValidationError("no tables for workbook")
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return errors.NewStorageError("failed to create header style", err)
	}

	for i, t := range tables {
		sheet := sheetName(t)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return errors.NewStorageError("failed to rename sheet", err)
			}
		} else {
			if _, err := f.NewSheet(sheet); err != nil {
				return errors.NewStorageError("failed to add sheet "+sheet, err)
			}
		}

		f.SetCellValue(sheet, "A1", t.Title)

		for col, header := range t.Headers {
			cell, err := excelize.CoordinatesToCellName(col+1, 3)
			if err != nil {
				return errors.NewStorageError("invalid cell coordinates", err)
			}
			f.SetCellValue(sheet, cell, header)
			f.SetCellStyle(sheet, cell, cell, headerStyle)
		}

		for r, row := range t.Rows {
			for c, value := range row {
				cell, err := excelize.CoordinatesToCellName(c+1, r+4)
				if err != nil {
					return errors.NewStorageError("invalid cell coordinates", err)
				}
				f.SetCellValue(sheet, cell, value)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return errors.NewStorageError(fmt.Sprintf("failed to save workbook %s", path), err)
	}

	logger.Info("wrote excel workbook",
		slog.String("path", path),
		slog.Int("sheets", len(tables)))

	return nil
}

// sheetName truncates to Excel's 31-character sheet name limit
func sheetName(t *Table) string {
	name := t.Name
	if len(name) > 31 {
		name = name[:31]
	}
	return name
}
