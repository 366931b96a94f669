// Command collector scrapes a breach-notification portal and merges new
// rows into a candidate CSV for curation.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"breachstudy/internal/collector"
	"breachstudy/internal/config"
	"breachstudy/internal/dataset"
	"breachstudy/internal/infrastructure"
)

func main() {
	portal := flag.String("portal", "", "breach notification portal URL (required)")
	out := flag.String("out", "", "output CSV path (default data/collected_events.csv)")
	source := flag.String("source", "portal", "source label for collected rows")
	table := flag.String("table", "table", "CSS selector for the notification table")
	next := flag.String("next", "", "CSS selector for the next-page link")
	maxPages := flag.Int("max-pages", 0, "page limit, 0 for all pages")
	fromStr := flag.String("from", "", "earliest reported date YYYY-MM-DD")
	toStr := flag.String("to", "", "latest reported date YYYY-MM-DD")
	headless := flag.Bool("headless", true, "run the browser headless")
	flag.Parse()

	if *portal == "" {
		fmt.Fprintln(os.Stderr, "usage: collector -portal <url> [options]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	if err := run(*portal, *out, *source, *table, *next, *maxPages, *fromStr, *toStr, *headless); err != nil {
		slog.Error("collection failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(portal, out, source, table, next string, maxPages int, fromStr, toStr string, headless bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	paths, err := config.NewPaths(cfg.Paths)
	if err != nil {
		return fmt.Errorf("resolve paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return err
	}
	if out == "" {
		out = filepath.Join(paths.DataDir, "collected_events.csv")
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer infrastructure.CloseLogFile()

	collectorCfg := collector.Config{
		PortalURL:     portal,
		TableSelector: table,
		NextSelector:  next,
		MaxPages:      maxPages,
		Source:        source,
		Headless:      headless,
	}
	if fromStr != "" {
		if collectorCfg.From, err = time.Parse("2006-01-02", fromStr); err != nil {
			return fmt.Errorf("invalid -from date: %w", err)
		}
	}
	if toStr != "" {
		if collectorCfg.To, err = time.Parse("2006-01-02", toStr); err != nil {
			return fmt.Errorf("invalid -to date: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collected, err := collector.New(collectorCfg, logger).Collect(ctx)
	if err != nil {
		return err
	}

	var existing []dataset.BreachEvent
	if config.FileExists(out) {
		if existing, err = dataset.LoadCSV(out, logger); err != nil {
			return fmt.Errorf("load existing output: %w", err)
		}
	}

	merged, added := collector.MergeNew(existing, collected)
	if err := dataset.WriteCSV(out, merged); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	logger.Info("collection written",
		slog.String("path", out),
		slog.Int("collected", len(collected)),
		slog.Int("new", added),
		slog.Int("total", len(merged)))
	return nil
}
