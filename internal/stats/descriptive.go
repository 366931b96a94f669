package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"breachstudy/internal/errors"
)

// Descriptives summarizes one variable over its non-null observations
type Descriptives struct {
	Variable string  `json:"variable"`
	N        int     `json:"n"`
	Mean     float64 `json:"mean"`
	StdDev   float64 `json:"std_dev"`
	Min      float64 `json:"min"`
	P25      float64 `json:"p25"`
	Median   float64 `json:"median"`
	P75      float64 `json:"p75"`
	Max      float64 `json:"max"`
}

// Describe computes descriptive statistics for a variable. Values must be
// finite; the enrichment table already guarantees this for its columns.
func Describe(variable string, values []float64) (Descriptives, error) {
	if len(values) == 0 {
		return Descriptives{}, errors.NewAppValidationError("no observations for " + variable)
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	d := Descriptives{
		Variable: variable,
		N:        len(values),
		Mean:     stat.Mean(values, nil),
		Min:      sorted[0],
		P25:      stat.Quantile(0.25, stat.Empirical, sorted, nil),
		Median:   stat.Quantile(0.5, stat.Empirical, sorted, nil),
		P75:      stat.Quantile(0.75, stat.Empirical, sorted, nil),
		Max:      sorted[len(sorted)-1],
	}
	if len(values) > 1 {
		d.StdDev = stat.StdDev(values, nil)
	}
	return d, nil
}

// CorrelationMatrix computes the pairwise Pearson correlations of variables
// over their shared observations. Each column must have the same length.
type CorrelationMatrix struct {
	Variables []string    `json:"variables"`
	Values    [][]float64 `json:"values"`
}

// Correlations builds the Pearson correlation matrix for aligned columns
func Correlations(variables []string, columns [][]float64) (*CorrelationMatrix, error) {
	if len(variables) != len(columns) {
		return nil, errors.NewAppValidationError("variable names and columns out of step")
	}
	if len(columns) == 0 {
		return nil, errors.NewAppValidationError("no variables for correlation matrix")
	}
	n := len(columns[0])
	for i, col := range columns {
		if len(col) != n {
			return nil, errors.NewAppValidationError("column " + variables[i] + " length mismatch")
		}
	}
	if n < 2 {
		return nil, errors.NewAppValidationError("correlation needs at least two observations")
	}

	k := len(columns)
	values := make([][]float64, k)
	for i := range values {
		values[i] = make([]float64, k)
		values[i][i] = 1
	}
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			r := stat.Correlation(columns[i], columns[j], nil)
			if math.IsNaN(r) {
				r = 0 // constant column
			}
			values[i][j] = r
			values[j][i] = r
		}
	}

	return &CorrelationMatrix{Variables: variables, Values: values}, nil
}

// Winsorize clips values at the given lower and upper quantiles, returning a
// new slice. Used for robustness re-runs on heavy-tailed variables.
func Winsorize(values []float64, lower, upper float64) ([]float64, error) {
	if lower < 0 || upper > 1 || lower >= upper {
		return nil, errors.NewAppValidationError("winsorize bounds must satisfy 0 <= lower < upper <= 1")
	}
	if len(values) == 0 {
		return nil, nil
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	lo := stat.Quantile(lower, stat.Empirical, sorted, nil)
	hi := stat.Quantile(upper, stat.Empirical, sorted, nil)

	out := make([]float64, len(values))
	for i, v := range values {
		switch {
		case v < lo:
			out[i] = lo
		case v > hi:
			out[i] = hi
		default:
			out[i] = v
		}
	}
	return out, nil
}
