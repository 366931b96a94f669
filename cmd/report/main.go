// Command report regenerates report artifacts for a recorded run from the
// results store, without re-running the pipeline. Tables that need the raw
// enriched sample (descriptives, correlations) are only produced by a full
// pipeline run.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"breachstudy/internal/config"
	"breachstudy/internal/enrich"
	"breachstudy/internal/infrastructure"
	"breachstudy/internal/regress"
	"breachstudy/internal/report"
	"breachstudy/internal/store"
)

func main() {
	runID := flag.String("run-id", "", "run to regenerate artifacts for (required)")
	outDir := flag.String("out", "", "output directory (default the run's artifact directory)")
	flag.Parse()

	if *runID == "" {
		fmt.Fprintln(os.Stderr, "usage: report -run-id <id> [-out <dir>]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	if err := run(*runID, *outDir); err != nil {
		slog.Error("report generation failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(runID, outDir string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	paths, err := config.NewPaths(cfg.Paths)
	if err != nil {
		return fmt.Errorf("resolve paths: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer infrastructure.CloseLogFile()

	db, err := store.Open(paths.ResultsDB, logger)
	if err != nil {
		return fmt.Errorf("open results store: %w", err)
	}
	defer db.Close()

	ctx := context.Background()

	rec, err := db.GetRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("load run: %w", err)
	}
	estimates, err := db.LoadEstimates(ctx, runID)
	if err != nil {
		return fmt.Errorf("load estimates: %w", err)
	}
	audit, err := db.LoadAttrition(ctx, runID)
	if err != nil {
		return fmt.Errorf("load attrition audit: %w", err)
	}

	if outDir == "" {
		outDir = paths.RunDir(runID)
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tables := buildTables(audit, estimates)

	tablesDir := filepath.Join(outDir, "tables")
	if err := os.MkdirAll(tablesDir, 0755); err != nil {
		return err
	}
	if err := report.NewCSVWriter(tablesDir, logger).WriteAll(tables); err != nil {
		return fmt.Errorf("write CSV tables: %w", err)
	}

	latexDir := filepath.Join(outDir, "latex")
	if err := os.MkdirAll(latexDir, 0755); err != nil {
		return err
	}
	if err := report.WriteAllLaTeX(latexDir, tables, logger); err != nil {
		return fmt.Errorf("write LaTeX tables: %w", err)
	}

	if err := report.WriteWorkbook(filepath.Join(outDir, "report.xlsx"), tables, logger); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}

	logger.Info("artifacts regenerated",
		slog.String("run_id", runID),
		slog.String("status", rec.Status),
		slog.String("dir", outDir),
		slog.Int("tables", len(tables)))
	return nil
}

func buildTables(audit *enrich.AttritionAudit, estimates []*regress.Estimate) []*report.Table {
	tables := []*report.Table{
		report.AttritionTable(audit),
		report.NonNullTable(audit),
	}

	byVariant := make(map[string][]*regress.Estimate)
	for _, est := range estimates {
		byVariant[est.Variant] = append(byVariant[est.Variant], est)
	}

	variants := make([]string, 0, len(byVariant))
	for variant := range byVariant {
		variants = append(variants, variant)
	}
	sort.Strings(variants)

	for _, variant := range variants {
		tables = append(tables, report.RegressionTable(
			"regressions_"+variant,
			fmt.Sprintf("Abnormal return regressions (%s)", variant),
			byVariant[variant]))
	}
	return tables
}
