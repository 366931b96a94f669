package report

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"breachstudy/internal/errors"
)

// WriteLaTeX renders a table as a booktabs tabular snippet at
// <dir>/<name>.tex, ready for \input in a dissertation chapter.
func WriteLaTeX(dir string, t *Table, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.NewStorageError("failed to create report directory", err)
	}

	var b strings.Builder
	b.WriteString("% " + t.Title + "\n")
	b.WriteString("\\begin{tabular}{l" + strings.Repeat("r", len(t.Headers)-1) + "}\n")
	b.WriteString("\\toprule\n")

	b.WriteString(latexRow(t.Headers))
	b.WriteString("\\midrule\n")
	for _, row := range t.Rows {
		b.WriteString(latexRow(row))
	}
	b.WriteString("\\bottomrule\n")
	b.WriteString("\\end{tabular}\n")
	b.WriteString("% *** p<0.01, ** p<0.05, * p<0.1\n")

	path := filepath.Join(dir, t.Name+".tex")
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return errors.NewStorageError("failed to write "+path, err)
	}

	logger.Info("wrote latex table",
		slog.String("table", t.Name),
		slog.String("path", path))

	return nil
}

func latexRow(cells []string) string {
	escaped := make([]string, len(cells))
	for i, cell := range cells {
		escaped[i] = escapeLaTeX(cell)
	}
	return strings.Join(escaped, " & ") + " \\\\\n"
}

// escapeLaTeX escapes the special characters that appear in variable names
// and formatted numbers. Significance stars stay literal.
func escapeLaTeX(s string) string {
	replacer := strings.NewReplacer(
		"_", "\\_",
		"%", "\\%",
		"&", "\\&",
		"#", "\\#",
		"$", "\\$",
	)
	return replacer.Replace(s)
}

// WriteAllLaTeX writes every table as a .tex snippet
func WriteAllLaTeX(dir string, tables []*Table, logger *slog.Logger) error {
	for _, t := range tables {
		if err := WriteLaTeX(dir, t, logger); err != nil {
			return err
		}
	}
	return nil
}
