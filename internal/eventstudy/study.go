package eventstudy

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"breachstudy/internal/config"
	"breachstudy/internal/enrich"
	"breachstudy/internal/errors"
	"breachstudy/internal/marketdata"
)

// Column names written by the study, besides the per-window CAR columns
const (
	ColAlpha         = "mm_alpha"
	ColBeta          = "mm_beta"
	ColEstimationObs = "mm_obs"
	ColPreVolatility = "pre_volatility"
)

// SeriesLoader resolves a ticker to its daily return series. A nil series
// with nil error means no data exists for the ticker.
type SeriesLoader func(ticker string) (*marketdata.ReturnSeries, error)

// Study runs the market-model event study over the enrichment table
type Study struct {
	cfg     config.EventStudyConfig
	windows []Window
	market  *marketdata.ReturnSeries
	load    SeriesLoader
	logger  *slog.Logger
}

// New builds a study. With no windows given, DefaultWindows is used.
func New(cfg config.EventStudyConfig, windows []Window, market *marketdata.ReturnSeries,
	load SeriesLoader, logger *slog.Logger) *Study {
	if len(windows) == 0 {
		windows = DefaultWindows
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Study{cfg: cfg, windows: windows, market: market, load: load, logger: logger}
}

// Windows returns the event windows the study estimates
func (s *Study) Windows() []Window {
	return s.windows
}

type eventResult struct {
	row   int
	model *MarketModel
	vol   float64
	cars  map[string]float64
}

// Run estimates the market model and CARs for every event with a ticker.
// Per-event failures are logged and skipped; the corresponding table cells
// stay null and the availability flags derived afterwards pick that up.
// Estimation runs in parallel, bounded by concurrency; results are written
// back to the table on the calling goroutine's side of a mutex.
func (s *Study) Run(ctx context.Context, t *enrich.Table, concurrency int) (int, error) {
	cols := []string{ColAlpha, ColBeta, ColEstimationObs, ColPreVolatility}
	for _, w := range s.windows {
		cols = append(cols, w.Column())
	}
	for _, col := range cols {
		if !t.HasColumn(col) {
			if err := t.AddColumn(col); err != nil {
				return 0, err
			}
		}
	}

	if concurrency < 1 {
		concurrency = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var mu sync.Mutex
	var results []eventResult

	for i := 0; i < t.RowCount(); i++ {
		row := i
		event := t.Event(row)
		if !event.HasTicker() {
			continue
		}

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			res, err := s.estimateEvent(row, t)
			if err != nil {
				s.logger.WarnContext(ctx, "event study estimation skipped",
					slog.String("event_id", event.EventID),
					slog.String("ticker", event.Ticker),
					slog.String("error", err.Error()))
				return nil
			}

			mu.Lock()
			results = append(results, *res)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}

	for _, res := range results {
		if err := t.Set(ColAlpha, res.row, res.model.Alpha); err != nil {
			return 0, err
		}
		if err := t.Set(ColBeta, res.row, res.model.Beta); err != nil {
			return 0, err
		}
		if err := t.Set(ColEstimationObs, res.row, float64(res.model.Obs)); err != nil {
			return 0, err
		}
		if err := t.Set(ColPreVolatility, res.row, res.vol); err != nil {
			return 0, err
		}
		for col, car := range res.cars {
			if err := t.Set(col, res.row, car); err != nil {
				return 0, err
			}
		}
	}

	s.logger.InfoContext(ctx, "event study complete",
		slog.Int("events", t.RowCount()),
		slog.Int("estimated", len(results)),
		slog.Int("windows", len(s.windows)))

	return len(results), nil
}

// estimateEvent fits the market model and all window CARs for one event
func (s *Study) estimateEvent(row int, t *enrich.Table) (*eventResult, error) {
	event := t.Event(row)

	stock, err := s.load(event.Ticker)
	if err != nil {
		return nil, err
	}
	if stock == nil || stock.Len() == 0 {
		return nil, errNoSeries(event.Ticker)
	}

	// Disclosure dates on non-trading days roll forward to day 0
	eventIdx := stock.IndexOnOrAfter(event.DisclosureDate)
	if eventIdx < 0 {
		return nil, errNoSeries(event.Ticker)
	}

	model, err := EstimateMarketModel(stock, s.market, eventIdx,
		s.cfg.EstimationDays, s.cfg.EstimationGap, s.cfg.MinObs)
	if err != nil {
		return nil, err
	}

	res := &eventResult{
		row:   row,
		model: model,
		cars:  make(map[string]float64, len(s.windows)),
	}

	estEnd := eventIdx - s.cfg.EstimationGap - 1
	estStart := estEnd - s.cfg.EstimationDays + 1
	if estStart < 0 {
		estStart = 0
	}
	if window := stock.Slice(estStart, estEnd); window != nil && window.Len() > 1 {
		res.vol = stat.StdDev(window.Returns, nil)
	}

	for _, w := range s.windows {
		ars, err := AbnormalReturns(model, stock, s.market, eventIdx+w.Pre, eventIdx+w.Post)
		if err != nil {
			// Partial windows near the end of the series leave the CAR null
			// without discarding the windows that did fit.
			continue
		}
		res.cars[w.Column()] = CAR(ars)
	}

	return res, nil
}

func errNoSeries(ticker string) error {
	return errors.NewNotFoundError("return series for ticker " + ticker)
}
