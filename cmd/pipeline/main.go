// Command pipeline runs the full breach event study: load the curated
// dataset, enrich it, estimate abnormal returns and regressions, and write
// report artifacts plus a SQLite record of the run.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"breachstudy/internal/config"
	"breachstudy/internal/infrastructure"
	"breachstudy/internal/pipeline"
	"breachstudy/internal/store"
)

func main() {
	runID := flag.String("run-id", "", "run identifier (defaults to a new UUID)")
	flag.Parse()

	if err := run(*runID); err != nil {
		slog.Error("pipeline failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(runID string) error {
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

	providers, err := infrastructure.InitializeOTel(nil, logger)
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	metrics, err := infrastructure.NewPipelineMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}

	db, err := store.Open(paths.ResultsDB, logger)
	if err != nil {
		return fmt.Errorf("open results store: %w", err)
	}
	defer db.Close()

	if runID == "" {
		runID = uuid.New().String()
	}
	runDir := paths.RunDir(runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return fmt.Errorf("create run directory: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startedAt := time.Now().UTC()
	if err := db.CreateRun(ctx, runID, startedAt, 0); err != nil {
		return fmt.Errorf("record run: %w", err)
	}

	logger.InfoContext(ctx, "starting pipeline run",
		slog.String("run_id", runID),
		slog.String("run_dir", runDir))

	state := pipeline.NewState(runID, runDir, cfg)
	state.Paths = paths

	var broadcaster pipeline.Broadcaster
	if cfg.Pipeline.ProgressURL != "" {
		broadcaster = pipeline.NewHTTPBroadcaster(cfg.Pipeline.ProgressURL, logger)
		logger.InfoContext(ctx, "streaming progress to results server",
			slog.String("url", cfg.Pipeline.ProgressURL))
	}

	manifest := pipeline.NewManifest(runID)
	runner := pipeline.NewRunner(pipeline.DefaultStages(logger, metrics), manifest, metrics,
		broadcaster, cfg.Pipeline.StageTimeout, logger)

	runErr := runner.Run(ctx, state)

	if saveErr := persistResults(ctx, db, state, logger); saveErr != nil && runErr == nil {
		runErr = saveErr
	}

	if err := db.FinishRun(ctx, runID, time.Now().UTC(), runErr); err != nil {
		logger.WarnContext(ctx, "failed to finalize run record",
			slog.String("error", err.Error()))
	}

	if runErr != nil {
		return runErr
	}

	logger.InfoContext(ctx, "pipeline run completed",
		slog.String("run_id", runID),
		slog.Duration("elapsed", time.Since(startedAt)))
	return nil
}

func persistResults(ctx context.Context, db *store.Store, state *pipeline.State, logger *slog.Logger) error {
	if state.Audit != nil {
		if err := db.SaveAttrition(ctx, state.Audit); err != nil {
			return fmt.Errorf("save attrition audit: %w", err)
		}
		if err := db.SetRowCount(ctx, state.RunID, state.Audit.RowCount); err != nil {
			logger.WarnContext(ctx, "failed to update run row count",
				slog.String("error", err.Error()))
		}
	}
	if len(state.Estimates) > 0 {
		if err := db.SaveEstimates(ctx, state.RunID, state.Estimates); err != nil {
			return fmt.Errorf("save estimates: %w", err)
		}
		logger.InfoContext(ctx, "estimates saved",
			slog.Int("count", len(state.Estimates)))
	}
	return nil
}
