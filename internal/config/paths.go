package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths is the single source of truth for file locations used by the pipeline.
// All paths resolve relative to a base directory (executable directory by
// default) so runs behave identically regardless of the working directory.
type Paths struct {
	BaseDir string
	DataDir string
	RunsDir string
	LogsDir string

	// Input files under DataDir
	BreachEventsCSV   string
	MarketQuotesDir   string
	MarketIndexCSV    string
	FinancialsCSV     string
	TurnoverCSV       string
	EnforcementCSV    string
	IntegrityManifest string

	// ResultsDB is the SQLite database holding run metadata and estimates
	ResultsDB string
}

// NewPaths builds the path set from configuration. An empty BaseDir resolves
// to the executable directory.
func NewPaths(cfg PathsConfig) (*Paths, error) {
	base := cfg.BaseDir
	if base == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to get executable path: %w", err)
		}
		exe, err = filepath.EvalSymlinks(exe)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve executable symlinks: %w", err)
		}
		base = filepath.Dir(exe)
	}

	dataDir := filepath.Join(base, cfg.DataDir)

	return &Paths{
		BaseDir: base,
		DataDir: dataDir,
		RunsDir: filepath.Join(base, cfg.RunsDir),
		LogsDir: filepath.Join(base, cfg.LogsDir),

		BreachEventsCSV:   filepath.Join(dataDir, "breach_events.csv"),
		MarketQuotesDir:   filepath.Join(dataDir, "quotes"),
		MarketIndexCSV:    filepath.Join(dataDir, "market_index.csv"),
		FinancialsCSV:     filepath.Join(dataDir, "financials.csv"),
		TurnoverCSV:       filepath.Join(dataDir, "executive_turnover.csv"),
		EnforcementCSV:    filepath.Join(dataDir, "enforcement_actions.csv"),
		IntegrityManifest: filepath.Join(dataDir, "input_manifest.json"),
		ResultsDB:         filepath.Join(dataDir, "results.db"),
	}, nil
}

// EnsureDirectories creates the base directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.DataDir, p.MarketQuotesDir, p.RunsDir, p.LogsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// RunDir returns the artifact directory for a specific run
func (p *Paths) RunDir(runID string) string {
	return filepath.Join(p.RunsDir, runID)
}

// QuoteCSV returns the daily quote file for a ticker
func (p *Paths) QuoteCSV(ticker string) string {
	return filepath.Join(p.MarketQuotesDir, fmt.Sprintf("%s_daily.csv", ticker))
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
