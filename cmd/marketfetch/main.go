// Command marketfetch backfills daily quote history for every ticker in the
// breach event dataset, plus the market index, into the local quote store.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"breachstudy/internal/config"
	"breachstudy/internal/dataset"
	"breachstudy/internal/infrastructure"
	"breachstudy/internal/marketdata"
)

func main() {
	fromStr := flag.String("from", "", "start date YYYY-MM-DD (default 2 years back)")
	toStr := flag.String("to", "", "end date YYYY-MM-DD (default today)")
	tickersFlag := flag.String("tickers", "", "comma-separated tickers (default all tickers in the event dataset)")
	refresh := flag.Bool("refresh", false, "refetch tickers that already have stored quotes")
	flag.Parse()

	if err := run(*fromStr, *toStr, *tickersFlag, *refresh); err != nil {
		slog.Error("market fetch failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(fromStr, toStr, tickersFlag string, refresh bool) error {
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

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer infrastructure.CloseLogFile()

	from, to, err := parseRange(fromStr, toStr)
	if err != nil {
		return err
	}

	tickers, err := resolveTickers(tickersFlag, paths, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fetcher := marketdata.NewFetcher(cfg.MarketData, logger)
	quotes := marketdata.NewStore(paths.MarketQuotesDir, logger)

	logger.InfoContext(ctx, "starting quote backfill",
		slog.Int("tickers", len(tickers)),
		slog.String("from", from.Format("2006-01-02")),
		slog.String("to", to.Format("2006-01-02")))

	fetched, skipped, failed := 0, 0, 0
	for _, ticker := range tickers {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !refresh && quotes.HasQuotes(ticker) {
			skipped++
			continue
		}

		history, err := fetcher.FetchDaily(ctx, ticker, from, to)
		if err != nil {
			// One bad ticker should not abort the backfill
			logger.WarnContext(ctx, "fetch failed",
				slog.String("ticker", ticker),
				slog.String("error", err.Error()))
			failed++
			continue
		}
		if err := quotes.SaveQuotes(ticker, history); err != nil {
			return fmt.Errorf("save quotes for %s: %w", ticker, err)
		}
		fetched++
	}

	logger.InfoContext(ctx, "quote backfill finished",
		slog.Int("fetched", fetched),
		slog.Int("skipped", skipped),
		slog.Int("failed", failed))
	return nil
}

func parseRange(fromStr, toStr string) (time.Time, time.Time, error) {
	to := time.Now().UTC().Truncate(24 * time.Hour)
	from := to.AddDate(-2, 0, 0)

	var err error
	if fromStr != "" {
		if from, err = time.Parse("2006-01-02", fromStr); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid -from date: %w", err)
		}
	}
	if toStr != "" {
		if to, err = time.Parse("2006-01-02", toStr); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid -to date: %w", err)
		}
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("-to %s is before -from %s", toStr, fromStr)
	}
	return from, to, nil
}

func resolveTickers(tickersFlag string, paths *config.Paths, logger *slog.Logger) ([]string, error) {
	if tickersFlag != "" {
		var tickers []string
		for _, t := range strings.Split(tickersFlag, ",") {
			if t = strings.ToUpper(strings.TrimSpace(t)); t != "" {
				tickers = append(tickers, t)
			}
		}
		return tickers, nil
	}

	events, err := dataset.LoadCSV(paths.BreachEventsCSV, logger)
	if err != nil {
		return nil, fmt.Errorf("load event dataset: %w", err)
	}

	seen := make(map[string]bool)
	var tickers []string
	for i := range events {
		if !events[i].HasTicker() {
			continue
		}
		if !seen[events[i].Ticker] {
			seen[events[i].Ticker] = true
			tickers = append(tickers, events[i].Ticker)
		}
	}
	sort.Strings(tickers)
	return tickers, nil
}
