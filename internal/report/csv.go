package report

import (
	"encoding/csv"
	"log/slog"
	"os"
	"path/filepath"

	"breachstudy/internal/errors"
)

// CSVWriter writes report tables as CSV files into a run directory
type CSVWriter struct {
	dir    string
	logger *slog.Logger
}

// NewCSVWriter creates a CSV writer rooted at dir
func NewCSVWriter(dir string, logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{dir: dir, logger: logger}
}

// WriteTable writes one table as <name>.csv with a UTF-8 BOM so Excel
// opens it correctly.
func (w *CSVWriter) WriteTable(t *Table) error {
	path := filepath.Join(w.dir, t.Name+".csv")

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return errors.NewStorageError("failed to create report directory", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return errors.NewStorageError("failed to create "+path, err)
	}
	defer file.Close()

	if _, err := file.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return errors.NewStorageError("failed to write BOM", err)
	}

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write(t.Headers); err != nil {
		return errors.NewStorageError("failed to write headers", err)
	}
	for _, row := range t.Rows {
		if err := writer.Write(row); err != nil {
			return errors.NewStorageError("failed to write row", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return errors.NewStorageError("failed to flush "+path, err)
	}

	w.logger.Info("wrote csv table",
		slog.String("table", t.Name),
		slog.String("path", path),
		slog.Int("rows", len(t.Rows)))

	return nil
}

// WriteAll writes every table
func (w *CSVWriter) WriteAll(tables []*Table) error {
	for _, t := range tables {
		if err := w.WriteTable(t); err != nil {
			return err
		}
	}
	return nil
}
