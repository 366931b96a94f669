package report

import (
	"image/color"
	"log/slog"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"breachstudy/internal/enrich"
	"breachstudy/internal/errors"
	"breachstudy/internal/eventstudy"
	"breachstudy/internal/regress"
)

// CARWindowFigure plots the mean CAR per event window as a bar chart,
// saved as a PNG at path.
func CARWindowFigure(path string, t *enrich.Table, windows []eventstudy.Window, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	p := plot.New()
	p.Title.Text = "Mean cumulative abnormal return by event window"
	p.Y.Label.Text = "Mean CAR"

	values := make(plotter.Values, 0, len(windows))
	labels := make([]string, 0, len(windows))
	for _, w := range windows {
		vals, _ := t.ColumnValues(w.Column())
		if len(vals) == 0 {
			continue
		}
		sum := 0.0
		for _, v := range vals {
			sum += v
		}
		values = append(values, sum/float64(len(vals)))
		labels = append(labels, w.Label())
	}
	if len(values) == 0 {
		return errors.NewAppValidationError("no CAR columns to plot")
	}

	bars, err := plotter.NewBarChart(values, vg.Points(30))
	if err != nil {
		return errors.NewStorageError("failed to build bar chart", err)
	}
	bars.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	p.Add(bars)
	p.NominalX(labels...)
	p.Add(plotter.NewGrid())

	return saveFigure(p, path, logger)
}

// AttritionFigure plots per-step usable sample counts from the audit
func AttritionFigure(path string, audit *enrich.AttritionAudit, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	p := plot.New()
	p.Title.Text = "Usable sample by pipeline step"
	p.Y.Label.Text = "Events"

	values := make(plotter.Values, 0, len(audit.Steps))
	labels := make([]string, 0, len(audit.Steps))
	for _, step := range audit.Steps {
		usable := step.RowsOut
		if n, ok := step.FlagCounts[enrich.FlagHasCompleteData]; ok {
			usable = n
		} else if n, ok := step.FlagCounts[enrich.FlagHasCRSPData]; ok {
			usable = n
		}
		values = append(values, float64(usable))
		labels = append(labels, step.Step)
	}
	if len(values) == 0 {
		return errors.NewAppValidationError("no audit steps to plot")
	}

	bars, err := plotter.NewBarChart(values, vg.Points(25))
	if err != nil {
		return errors.NewStorageError("failed to build bar chart", err)
	}
	bars.Color = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	p.Add(bars)
	p.NominalX(labels...)
	p.Add(plotter.NewGrid())

	return saveFigure(p, path, logger)
}

// CoefficientFigure plots point estimates with approximate 95% intervals
// for one fitted model, intercept excluded.
func CoefficientFigure(path string, est *regress.Estimate, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	result := est.Result
	if len(result.Terms) < 2 {
		return errors.NewAppValidationError("no regressors to plot")
	}

	p := plot.New()
	p.Title.Text = "Coefficient estimates: " + est.Spec.Name
	p.Y.Label.Text = "Estimate"

	n := len(result.Terms) - 1
	points := make(plotter.XYs, n)
	errs := make(plotter.YErrors, n)
	labels := make([]string, n)
	for i := 0; i < n; i++ {
		idx := i + 1
		se := result.StdErr[idx]
		if result.Robust {
			se = result.RobustStdErr[idx]
		}
		points[i] = plotter.XY{X: float64(i), Y: result.Coef[idx]}
		errs[i] = struct{ Low, High float64 }{Low: 1.96 * se, High: 1.96 * se}
		labels[i] = result.Terms[idx]
	}

	scatter, err := plotter.NewScatter(points)
	if err != nil {
		return errors.NewStorageError("failed to build scatter", err)
	}
	scatter.GlyphStyle.Radius = vg.Points(4)

	bars, err := plotter.NewYErrorBars(struct {
		plotter.XYer
		plotter.YErrorer
	}{points, errs})
	if err != nil {
		return errors.NewStorageError("failed to build error bars", err)
	}

	p.Add(scatter, bars, plotter.NewGrid())
	p.NominalX(labels...)

	zero := plotter.NewFunction(func(float64) float64 { return 0 })
	zero.Color = color.RGBA{A: 255}
	p.Add(zero)

	return saveFigure(p, path, logger)
}

func saveFigure(p *plot.Plot, path string, logger *slog.Logger) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.NewStorageError("failed to create figure directory", err)
	}
	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return errors.NewStorageError("failed to save figure "+path, err)
	}
	logger.Info("wrote figure", slog.String("path", path))
	return nil
}
