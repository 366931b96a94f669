package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"breachstudy/internal/config"
	"breachstudy/internal/dataset"
	"breachstudy/internal/enrich"
	"breachstudy/internal/errors"
	"breachstudy/internal/eventstudy"
	"breachstudy/internal/features"
	"breachstudy/internal/infrastructure"
	"breachstudy/internal/marketdata"
	"breachstudy/internal/regress"
	"breachstudy/internal/report"
	"breachstudy/internal/stats"
)

// financialColumns are the numeric columns read from the financials source
var financialColumns = []string{"market_cap", "total_assets", "revenue"}

// DefaultStages builds the standard stage sequence for a full run
func DefaultStages(logger *slog.Logger, metrics *infrastructure.PipelineMetrics) []Stage {
	return []Stage{
		&LoadDatasetStage{logger: logger},
		&MarketDataStage{logger: logger},
		&EnrichStage{logger: logger},
		&FeaturesStage{logger: logger},
		&EventStudyStage{logger: logger, metrics: metrics},
		&RegressStage{logger: logger},
		&ReportStage{logger: logger},
	}
}

// LoadDatasetStage loads the curated breach events and opens the audit
type LoadDatasetStage struct {
	logger *slog.Logger
}

func (s *LoadDatasetStage) ID() string                { return "load_dataset" }
func (s *LoadDatasetStage) Name() string              { return "Load breach events" }
func (s *LoadDatasetStage) RequiredInputs() []string  { return nil }
func (s *LoadDatasetStage) ProducedOutputs() []string { return []string{DataDataset} }

func (s *LoadDatasetStage) Validate(state *State) error {
	if !config.FileExists(state.Paths.BreachEventsCSV) {
		return errors.NewAppValidationError("breach events file missing: " + state.Paths.BreachEventsCSV)
	}
	return nil
}

func (s *LoadDatasetStage) Execute(ctx context.Context, state *State) error {
	if config.FileExists(state.Paths.IntegrityManifest) {
		manifest, err := dataset.LoadManifest(state.Paths.IntegrityManifest)
		if err != nil {
			return err
		}
		changed, err := manifest.Verify()
		if err != nil {
			return err
		}
		if len(changed) > 0 {
			return errors.NewAppValidationError(
				fmt.Sprintf("input files changed since manifest: %v", changed))
		}
	}

	events, err := dataset.LoadCSV(state.Paths.BreachEventsCSV, s.logger)
	if err != nil {
		return err
	}

	table, err := enrich.NewTable(events)
	if err != nil {
		return err
	}

	state.Events = events
	state.Table = table
	state.Audit = enrich.NewAttritionAudit(state.RunID, table.RowCount())
	return state.Audit.RecordStep(s.ID(), table, nil)
}

// MarketDataStage loads the market index series and opens the quote store
type MarketDataStage struct {
	logger *slog.Logger
}

func (s *MarketDataStage) ID() string                { return "market_data" }
func (s *MarketDataStage) Name() string              { return "Load market data" }
func (s *MarketDataStage) RequiredInputs() []string  { return nil }
func (s *MarketDataStage) ProducedOutputs() []string { return []string{DataMarketData} }

func (s *MarketDataStage) Validate(state *State) error {
	if !config.FileExists(state.Paths.MarketIndexCSV) {
		return errors.NewAppValidationError("market index file missing: " + state.Paths.MarketIndexCSV)
	}
	return nil
}

func (s *MarketDataStage) Execute(ctx context.Context, state *State) error {
	index, err := marketdata.LoadIndex(state.Paths.MarketIndexCSV, s.logger)
	if err != nil {
		return err
	}
	state.Market = index
	state.Quotes = marketdata.NewStore(state.Paths.MarketQuotesDir, s.logger)
	return nil
}

// EnrichStage merges the financials source onto the event table
type EnrichStage struct {
	logger *slog.Logger
}

func (s *EnrichStage) ID() string                { return "enrich" }
func (s *EnrichStage) Name() string              { return "Merge enrichment sources" }
func (s *EnrichStage) RequiredInputs() []string  { return []string{DataDataset} }
func (s *EnrichStage) ProducedOutputs() []string { return []string{DataEnriched} }

func (s *EnrichStage) Validate(state *State) error { return nil }

func (s *EnrichStage) Execute(ctx context.Context, state *State) error {
	if !config.FileExists(state.Paths.FinancialsCSV) {
		s.logger.WarnContext(ctx, "financials source missing, firm controls will be null",
			slog.String("path", state.Paths.FinancialsCSV))
		return state.Audit.RecordStep(s.ID(), state.Table, nil)
	}

	src, err := enrich.LoadSourceCSV(state.Paths.FinancialsCSV, "financials",
		enrich.KeyByTicker, "ticker", "fiscal_year_end", financialColumns, s.logger)
	if err != nil {
		return err
	}

	result, err := enrich.Merge(state.Table, src, enrich.KeepLatest, s.logger)
	if err != nil {
		return err
	}
	return state.Audit.RecordStep(s.ID(), state.Table, result)
}

// FeaturesStage derives the analysis variables
type FeaturesStage struct {
	logger *slog.Logger
}

func (s *FeaturesStage) ID() string                { return "features" }
func (s *FeaturesStage) Name() string              { return "Derive features" }
func (s *FeaturesStage) RequiredInputs() []string  { return []string{DataEnriched} }
func (s *FeaturesStage) ProducedOutputs() []string { return []string{DataFeatures} }

func (s *FeaturesStage) Validate(state *State) error { return nil }

func (s *FeaturesStage) Execute(ctx context.Context, state *State) error {
	if err := features.DerivePriorBreachHistory(state.Table); err != nil {
		return err
	}
	if err := features.DeriveLogRecords(state.Table); err != nil {
		return err
	}
	if err := features.DeriveSeverityIndicators(state.Table); err != nil {
		return err
	}

	if state.Table.HasColumn("financials_market_cap") {
		if err := features.DeriveSizeQuartiles(state.Table, "financials_market_cap"); err != nil {
			return err
		}
	}

	if err := s.deriveEventFlag(ctx, state, features.ColExecTurnover,
		state.Paths.TurnoverCSV, state.Cfg.Pipeline.TurnoverWindowDays); err != nil {
		return err
	}
	if err := s.deriveEventFlag(ctx, state, features.ColRegEnforcement,
		state.Paths.EnforcementCSV, state.Cfg.Pipeline.EnforcementWindowDays); err != nil {
		return err
	}

	return state.Audit.RecordStep(s.ID(), state.Table, nil)
}

func (s *FeaturesStage) deriveEventFlag(ctx context.Context, state *State,
	col, path string, windowDays int) error {
	if !config.FileExists(path) {
		s.logger.WarnContext(ctx, "flag source missing, deriving all-zero flag",
			slog.String("column", col),
			slog.String("path", path))
		_, err := features.DerivePostDisclosureFlag(state.Table, col, nil,
			enrich.KeyByOrganization, windowDays, s.logger)
		return err
	}
	records, err := features.LoadDatedRecords(path, "organization", "date", s.logger)
	if err != nil {
		return err
	}
	_, err = features.DerivePostDisclosureFlag(state.Table, col, records,
		enrich.KeyByOrganization, windowDays, s.logger)
	return err
}

// EventStudyStage estimates market models and CARs, then derives the
// availability flags that gate the regression samples.
type EventStudyStage struct {
	logger  *slog.Logger
	metrics *infrastructure.PipelineMetrics
}

func (s *EventStudyStage) ID() string   { return "event_study" }
func (s *EventStudyStage) Name() string { return "Event study" }
func (s *EventStudyStage) RequiredInputs() []string {
	return []string{DataFeatures, DataMarketData}
}
func (s *EventStudyStage) ProducedOutputs() []string { return []string{DataEventStudy} }

func (s *EventStudyStage) Validate(state *State) error {
	if state.Market == nil || state.Market.Len() == 0 {
		return errors.NewAppValidationError("market index series is empty")
	}
	return nil
}

func (s *EventStudyStage) Execute(ctx context.Context, state *State) error {
	load := func(ticker string) (*marketdata.ReturnSeries, error) {
		if !state.Quotes.HasQuotes(ticker) {
			return nil, nil
		}
		quotes, err := state.Quotes.LoadQuotes(ticker)
		if err != nil {
			return nil, err
		}
		return marketdata.ComputeReturns(ticker, quotes), nil
	}

	study := eventstudy.New(state.Cfg.EventStudy, state.Windows, state.Market, load, s.logger)
	estimated, err := study.Run(ctx, state.Table, state.Cfg.Pipeline.MaxConcurrency)
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "market models estimated",
		slog.Int("estimated", estimated),
		slog.Int("events", state.Table.RowCount()))

	flagRules := []enrich.FlagRule{
		{Flag: enrich.FlagHasCRSPData, Requires: []string{
			eventstudy.ColBeta, state.Windows[0].Column(),
		}},
		{Flag: enrich.FlagHasVolatilityWindow, Requires: []string{
			eventstudy.ColPreVolatility,
		}},
	}
	if state.Table.HasColumn("financials_market_cap") {
		flagRules = append(flagRules, enrich.FlagRule{
			Flag:     enrich.FlagHasFinancialData,
			Requires: []string{"financials_market_cap"},
		})
	}

	flags := make([]string, 0, len(flagRules))
	for _, rule := range flagRules {
		if _, err := enrich.DeriveFlag(state.Table, rule); err != nil {
			return err
		}
		flags = append(flags, rule.Flag)
	}
	usable, err := enrich.DeriveCompositeFlag(state.Table, enrich.FlagHasCompleteData, flags)
	if err != nil {
		return err
	}
	s.metrics.RecordFlaggedUsable(ctx, state.RunID, usable)
	s.logger.InfoContext(ctx, "complete-data sample flagged",
		slog.Int("usable", usable),
		slog.Int("events", state.Table.RowCount()))

	return state.Audit.RecordStep(s.ID(), state.Table, nil)
}

// RegressStage estimates the model registry with robustness variants
type RegressStage struct {
	logger *slog.Logger
}

func (s *RegressStage) ID() string                { return "regress" }
func (s *RegressStage) Name() string              { return "Regressions" }
func (s *RegressStage) RequiredInputs() []string  { return []string{DataEventStudy} }
func (s *RegressStage) ProducedOutputs() []string { return []string{DataEstimates} }

func (s *RegressStage) Validate(state *State) error { return nil }

func (s *RegressStage) Execute(ctx context.Context, state *State) error {
	runner := regress.NewRunner(state.Table,
		state.Cfg.Pipeline.WinsorizeLower, state.Cfg.Pipeline.WinsorizeUpper, s.logger)
	state.Estimates = runner.Run(ctx, regress.DefaultSpecs(state.Windows))

	if err := state.Audit.RecordStep(s.ID(), state.Table, nil); err != nil {
		return err
	}
	return state.Audit.Save(filepath.Join(state.RunDir, "attrition.json"))
}

// ReportStage renders every artifact into the run directory
type ReportStage struct {
	logger *slog.Logger
}

func (s *ReportStage) ID() string                { return "report" }
func (s *ReportStage) Name() string              { return "Render report" }
func (s *ReportStage) RequiredInputs() []string  { return []string{DataEstimates} }
func (s *ReportStage) ProducedOutputs() []string { return []string{DataReport} }

func (s *ReportStage) Validate(state *State) error {
	if state.RunDir == "" {
		return errors.NewAppValidationError("run directory not set")
	}
	return nil
}

func (s *ReportStage) Execute(ctx context.Context, state *State) error {
	tables, err := s.buildTables(state)
	if err != nil {
		return err
	}
	state.Tables = tables

	csvWriter := report.NewCSVWriter(filepath.Join(state.RunDir, "tables"), s.logger)
	if err := csvWriter.WriteAll(tables); err != nil {
		return err
	}
	if err := report.WriteAllLaTeX(filepath.Join(state.RunDir, "latex"), tables, s.logger); err != nil {
		return err
	}
	if err := report.WriteWorkbook(filepath.Join(state.RunDir, "report.xlsx"), tables, s.logger); err != nil {
		return err
	}

	figDir := filepath.Join(state.RunDir, "figures")
	if err := report.CARWindowFigure(filepath.Join(figDir, "car_windows.png"),
		state.Table, state.Windows, s.logger); err != nil {
		s.logger.WarnContext(ctx, "skipping CAR figure", slog.String("error", err.Error()))
	}
	if err := report.AttritionFigure(filepath.Join(figDir, "attrition.png"),
		state.Audit, s.logger); err != nil {
		s.logger.WarnContext(ctx, "skipping attrition figure", slog.String("error", err.Error()))
	}
	for _, est := range state.Estimates {
		if est.Variant != regress.VariantMain {
			continue
		}
		path := filepath.Join(figDir, "coef_"+est.Spec.Name+".png")
		if err := report.CoefficientFigure(path, est, s.logger); err != nil {
			s.logger.WarnContext(ctx, "skipping coefficient figure",
				slog.String("spec", est.Spec.Name),
				slog.String("error", err.Error()))
		}
	}

	descs := s.describeVariables(state)
	if err := report.WriteSummary(filepath.Join(state.RunDir, "summary.txt"),
		state.RunID, state.Audit, descs, state.Estimates, s.logger); err != nil {
		return err
	}

	uploader, err := report.NewSheetsUploader(ctx, state.Cfg.Sheets, s.logger)
	if err != nil {
		return err
	}
	if uploader != nil {
		if err := uploader.Upload(ctx, tables); err != nil {
			// Publication failures should not sink a finished analysis
			s.logger.WarnContext(ctx, "sheets upload failed", slog.String("error", err.Error()))
		}
	}

	return nil
}

// summaryVariables are the columns summarized in descriptives and the
// correlation matrix, beyond the CAR windows.
var summaryVariables = []string{
	features.ColLogRecords,
	features.ColPriorBreachCount,
	features.ColSeverityModHigh,
	eventstudy.ColBeta,
	eventstudy.ColPreVolatility,
}

func (s *ReportStage) describeVariables(state *State) []stats.Descriptives {
	vars := make([]string, 0, len(summaryVariables)+len(state.Windows))
	for _, w := range state.Windows {
		vars = append(vars, w.Column())
	}
	vars = append(vars, summaryVariables...)

	var descs []stats.Descriptives
	for _, name := range vars {
		values, _ := state.Table.ColumnValues(name)
		d, err := stats.Describe(name, values)
		if err != nil {
			continue
		}
		descs = append(descs, d)
	}
	return descs
}

func (s *ReportStage) buildTables(state *State) ([]*report.Table, error) {
	tables := []*report.Table{
		report.AttritionTable(state.Audit),
		report.NonNullTable(state.Audit),
		report.DescriptivesTable(s.describeVariables(state)),
	}

	if corr := s.correlations(state); corr != nil {
		tables = append(tables, report.CorrelationTable(corr))
	}

	for _, variant := range []string{regress.VariantMain, regress.VariantWinsorized, regress.VariantCompleteData} {
		var ests []*regress.Estimate
		for _, est := range state.Estimates {
			if est.Variant == variant {
				ests = append(ests, est)
			}
		}
		if len(ests) == 0 {
			continue
		}
		tables = append(tables, report.RegressionTable(
			"regressions_"+variant,
			"Regression results ("+variant+")",
			ests))
	}

	return tables, nil
}

func (s *ReportStage) correlations(state *State) *stats.CorrelationMatrix {
	vars := append([]string{state.Windows[0].Column()}, summaryVariables...)

	rows := state.Table.CompleteRows(vars)
	if len(rows) < 2 {
		return nil
	}

	columns := make([][]float64, len(vars))
	for j, name := range vars {
		col := make([]float64, len(rows))
		for i, row := range rows {
			v, _ := state.Table.Value(name, row)
			col[i] = v
		}
		columns[j] = col
	}

	corr, err := stats.Correlations(vars, columns)
	if err != nil {
		return nil
	}
	return corr
}
