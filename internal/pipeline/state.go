package pipeline

import (
	"sync"

	"breachstudy/internal/config"
	"breachstudy/internal/dataset"
	"breachstudy/internal/enrich"
	"breachstudy/internal/eventstudy"
	"breachstudy/internal/marketdata"
	"breachstudy/internal/regress"
	"breachstudy/internal/report"
)

// State is the shared state flowing through the pipeline stages. Stages
// read and write its fields directly; the produced-key set behind the mutex
// is what the runner consults for stage ordering.
type State struct {
	RunID  string
	RunDir string
	Cfg    *config.Config
	Paths  *config.Paths

	Events    []dataset.BreachEvent
	Table     *enrich.Table
	Audit     *enrich.AttritionAudit
	Market    *marketdata.ReturnSeries
	Quotes    *marketdata.Store
	Windows   []eventstudy.Window
	Estimates []*regress.Estimate
	Tables    []*report.Table

	mu       sync.Mutex
	produced map[string]bool
}

// NewState creates the state for one run
func NewState(runID, runDir string, cfg *config.Config) *State {
	return &State{
		RunID:    runID,
		RunDir:   runDir,
		Cfg:      cfg,
		Windows:  eventstudy.DefaultWindows,
		produced: make(map[string]bool),
	}
}

// MarkProduced records that a data key is now available
func (s *State) MarkProduced(keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		s.produced[key] = true
	}
}

// Has reports whether a data key has been produced
func (s *State) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.produced[key]
}

// Produced returns the produced data keys
func (s *State) Produced() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.produced))
	for key := range s.produced {
		keys = append(keys, key)
	}
	return keys
}
