package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"breachstudy/internal/errors"
	"breachstudy/internal/infrastructure"
)

// Runner executes pipeline stages sequentially against shared state.
// Each stage runs inside its own OTel span with a per-stage timeout; stage
// failures stop the run and are recorded in the manifest.
type Runner struct {
	stages       []Stage
	manifest     *Manifest
	metrics      *infrastructure.PipelineMetrics
	tracer       trace.Tracer
	broadcaster  Broadcaster
	logger       *slog.Logger
	stageTimeout time.Duration
}

// NewRunner builds a runner. Metrics and broadcaster may be nil.
func NewRunner(stages []Stage, manifest *Manifest, metrics *infrastructure.PipelineMetrics,
	broadcaster Broadcaster, stageTimeout time.Duration, logger *slog.Logger) *Runner {
	if broadcaster == nil {
		broadcaster = NopBroadcaster{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		stages:       stages,
		manifest:     manifest,
		metrics:      metrics,
		tracer:       otel.Tracer(infrastructure.ServiceName),
		broadcaster:  broadcaster,
		logger:       logger,
		stageTimeout: stageTimeout,
	}
}

// Run executes every stage in order. The manifest is saved to the run
// directory after each stage so an interrupted run leaves an inspectable
// trail.
func (r *Runner) Run(ctx context.Context, state *State) error {
	var runErr error
	for _, stage := range r.stages {
		if err := r.runStage(ctx, stage, state); err != nil {
			runErr = err
			break
		}
	}

	r.manifest.Finish(runErr)
	if err := r.manifest.Save(state.RunDir); err != nil {
		r.logger.WarnContext(ctx, "failed to save manifest",
			slog.String("run_id", state.RunID),
			slog.String("error", err.Error()))
	}
	return runErr
}

func (r *Runner) runStage(ctx context.Context, stage Stage, state *State) error {
	for _, input := range stage.RequiredInputs() {
		if !state.Has(input) {
			return errors.NewAppValidationError(
				fmt.Sprintf("stage %s requires %s, which no earlier stage produced", stage.ID(), input))
		}
	}
	if err := stage.Validate(state); err != nil {
		return fmt.Errorf("stage %s validation: %w", stage.ID(), err)
	}

	stageCtx := ctx
	cancel := context.CancelFunc(func() {})
	if r.stageTimeout > 0 {
		stageCtx, cancel = context.WithTimeout(ctx, r.stageTimeout)
	}
	defer cancel()

	stageCtx, span := r.tracer.Start(stageCtx, "pipeline."+stage.ID(),
		trace.WithAttributes(
			attribute.String("run_id", state.RunID),
			attribute.String("stage", stage.ID()),
		))
	defer span.End()

	r.broadcast(state, stage, StatusRunning, "")
	r.logger.InfoContext(stageCtx, "stage started",
		slog.String("run_id", state.RunID),
		slog.String("stage", stage.ID()))

	start := time.Now()
	err := stage.Execute(stageCtx, state)
	elapsed := time.Since(start)

	rows := 0
	if state.Table != nil {
		rows = state.Table.RowCount()
	}
	if r.metrics != nil {
		r.metrics.RecordStage(stageCtx, stage.ID(), elapsed.Seconds(), rows, err)
	}

	exec := StageExecution{
		StageID:   stage.ID(),
		StageName: stage.Name(),
		StartTime: start.UTC(),
		EndTime:   start.Add(elapsed).UTC(),
		Duration:  elapsed.String(),
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		exec.Status = StatusFailed
		exec.Error = err.Error()
		r.manifest.RecordStage(exec)
		r.broadcast(state, stage, StatusFailed, err.Error())
		r.logger.ErrorContext(stageCtx, "stage failed",
			slog.String("run_id", state.RunID),
			slog.String("stage", stage.ID()),
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()))
		return fmt.Errorf("stage %s: %w", stage.ID(), err)
	}

	state.MarkProduced(stage.ProducedOutputs()...)
	exec.Status = StatusCompleted
	exec.Outputs = stage.ProducedOutputs()
	r.manifest.RecordStage(exec)
	r.broadcast(state, stage, StatusCompleted, "")

	r.logger.InfoContext(stageCtx, "stage completed",
		slog.String("run_id", state.RunID),
		slog.String("stage", stage.ID()),
		slog.Duration("elapsed", elapsed),
		slog.Int("rows", rows))

	if err := r.manifest.Save(state.RunDir); err != nil {
		r.logger.WarnContext(stageCtx, "failed to save manifest",
			slog.String("run_id", state.RunID),
			slog.String("error", err.Error()))
	}
	return nil
}

func (r *Runner) broadcast(state *State, stage Stage, status, message string) {
	r.broadcaster.Publish(ProgressEvent{
		RunID:   state.RunID,
		StageID: stage.ID(),
		Stage:   stage.Name(),
		Status:  status,
		Message: message,
		At:      time.Now().UTC(),
	})
}
