package pipeline

import (
	"context"
)

// Data keys tracked through the run. A stage declares which keys it needs
// and which it produces; the runner refuses to execute a stage whose inputs
// are missing.
const (
	DataDataset    = "dataset"
	DataMarketData = "market_data"
	DataEnriched   = "enriched_table"
	DataFeatures   = "features"
	DataEventStudy = "event_study"
	DataEstimates  = "estimates"
	DataReport     = "report"
)

// Stage is one step of the analysis pipeline
type Stage interface {
	// ID returns the stable identifier used in logs, metrics, and manifests
	ID() string

	// Name returns the human-readable stage name
	Name() string

	// RequiredInputs lists the data keys the stage needs before running
	RequiredInputs() []string

	// ProducedOutputs lists the data keys the stage marks produced on success
	ProducedOutputs() []string

	// Validate checks preconditions beyond data keys, e.g. files on disk
	Validate(state *State) error

	// Execute runs the stage against the shared state
	Execute(ctx context.Context, state *State) error
}

// Stage status values used in manifests and progress events
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)
