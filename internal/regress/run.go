package regress

import (
	"context"
	"log/slog"

	"breachstudy/internal/enrich"
	"breachstudy/internal/stats"
)

// Variant identifies how a specification was estimated
const (
	VariantMain         = "main"
	VariantWinsorized   = "winsorized"
	VariantCompleteData = "complete_data"
)

// Estimate is one fitted specification together with its sample accounting
type Estimate struct {
	Spec    ModelSpec        `json:"spec"`
	Variant string           `json:"variant"`
	Result  *stats.OLSResult `json:"result"`
	Rows    int              `json:"rows"`
	Dropped int              `json:"dropped"`
}

// Runner estimates model specifications against the enrichment table
type Runner struct {
	table  *enrich.Table
	logger *slog.Logger

	winsorizeLower float64
	winsorizeUpper float64
}

// NewRunner builds a runner with winsorization bounds for robustness runs
func NewRunner(t *enrich.Table, lower, upper float64, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{table: t, logger: logger, winsorizeLower: lower, winsorizeUpper: upper}
}

// sample extracts the complete-case rows for a spec, optionally restricted
// by additional flags.
func (r *Runner) sample(spec ModelSpec, extraFlags []string) []int {
	rows := r.table.CompleteRows(spec.Columns())
	flags := append(append([]string{}, spec.RequireFlags...), extraFlags...)
	if len(flags) == 0 {
		return rows
	}
	var kept []int
	for _, row := range rows {
		ok := true
		for _, flag := range flags {
			if !r.table.FlagTrue(flag, row) {
				ok = false
				break
			}
		}
		if ok {
			kept = append(kept, row)
		}
	}
	return kept
}

// extract pulls aligned columns for the sample rows
func (r *Runner) extract(spec ModelSpec, rows []int) (y []float64, regressors [][]float64) {
	y = make([]float64, len(rows))
	for i, row := range rows {
		v, _ := r.table.Value(spec.Dependent, row)
		y[i] = v
	}
	regressors = make([][]float64, len(spec.Regressors))
	for j, name := range spec.Regressors {
		col := make([]float64, len(rows))
		for i, row := range rows {
			v, _ := r.table.Value(name, row)
			col[i] = v
		}
		regressors[j] = col
	}
	return y, regressors
}

// fit estimates one variant of a spec
func (r *Runner) fit(ctx context.Context, spec ModelSpec, variant string,
	extraFlags []string, winsorize bool) (*Estimate, error) {
	rows := r.sample(spec, extraFlags)

	y, regressors := r.extract(spec, rows)
	if winsorize {
		var err error
		y, err = stats.Winsorize(y, r.winsorizeLower, r.winsorizeUpper)
		if err != nil {
			return nil, err
		}
	}

	result, err := stats.FitOLS(spec.Dependent, y, spec.Regressors, regressors, spec.Robust)
	if err != nil {
		return nil, err
	}

	est := &Estimate{
		Spec:    spec,
		Variant: variant,
		Result:  result,
		Rows:    len(rows),
		Dropped: r.table.RowCount() - len(rows),
	}

	r.logger.InfoContext(ctx, "estimated model",
		slog.String("spec", spec.Name),
		slog.String("variant", variant),
		slog.Int("n", est.Rows),
		slog.Int("dropped", est.Dropped),
		slog.Float64("r2", result.R2))

	return est, nil
}

// Run estimates every spec in its main form plus the robustness variants:
// winsorized dependent and the complete-data subsample. Specs whose sample
// is too small are logged and skipped, never fatal.
func (r *Runner) Run(ctx context.Context, specs []ModelSpec) []*Estimate {
	variants := []struct {
		name      string
		flags     []string
		winsorize bool
	}{
		{name: VariantMain},
		{name: VariantWinsorized, winsorize: true},
		{name: VariantCompleteData, flags: []string{enrich.FlagHasCompleteData}},
	}

	var estimates []*Estimate
	for _, spec := range specs {
		for _, v := range variants {
			if v.name == VariantCompleteData && !r.table.HasColumn(enrich.FlagHasCompleteData) {
				continue
			}
			est, err := r.fit(ctx, spec, v.name, v.flags, v.winsorize)
			if err != nil {
				r.logger.WarnContext(ctx, "model estimation skipped",
					slog.String("spec", spec.Name),
					slog.String("variant", v.name),
					slog.String("error", err.Error()))
				continue
			}
			estimates = append(estimates, est)
		}
	}
	return estimates
}
