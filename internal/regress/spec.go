package regress

import (
	"breachstudy/internal/enrich"
	"breachstudy/internal/eventstudy"
	"breachstudy/internal/features"
)

// ModelSpec is one named regression specification. The dependent and
// regressor names are enrichment table columns; sample selection is
// listwise deletion over all of them plus any required flags.
type ModelSpec struct {
	Name         string   `json:"name"`
	Dependent    string   `json:"dependent"`
	Regressors   []string `json:"regressors"`
	RequireFlags []string `json:"require_flags,omitempty"`
	Robust       bool     `json:"robust"`
}

// Columns returns every table column the spec touches
func (s ModelSpec) Columns() []string {
	cols := make([]string, 0, 1+len(s.Regressors))
	cols = append(cols, s.Dependent)
	cols = append(cols, s.Regressors...)
	return cols
}

// baselineRegressors are the severity and history variables every
// specification carries.
var baselineRegressors = []string{
	features.ColSeverityModHigh,
	features.ColLogRecords,
	features.ColPriorBreachCount,
}

// firmControls extend the baseline with governance flags and firm size
var firmControls = []string{
	features.ColExecTurnover,
	features.ColRegEnforcement,
	features.ColSizeQuartile,
}

// DefaultSpecs builds the registry of model specifications: for each CAR
// window a baseline model and a full model with firm controls, estimated
// with HC1 robust standard errors.
func DefaultSpecs(windows []eventstudy.Window) []ModelSpec {
	specs := make([]ModelSpec, 0, 2*len(windows))
	for _, w := range windows {
		specs = append(specs, ModelSpec{
			Name:       w.Column() + "_baseline",
			Dependent:  w.Column(),
			Regressors: baselineRegressors,
			RequireFlags: []string{
				enrich.FlagHasCRSPData,
			},
			Robust: true,
		})
		specs = append(specs, ModelSpec{
			Name:       w.Column() + "_controls",
			Dependent:  w.Column(),
			Regressors: append(append([]string{}, baselineRegressors...), firmControls...),
			RequireFlags: []string{
				enrich.FlagHasCRSPData,
			},
			Robust: true,
		})
	}
	return specs
}
