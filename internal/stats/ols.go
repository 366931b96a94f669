package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"breachstudy/internal/errors"
)

// OLSResult holds a fitted least-squares model. An intercept is always the
// first term. Standard errors are reported both classical and HC1 robust;
// the t statistics and p-values use whichever the fit was asked for.
type OLSResult struct {
	Dependent    string    `json:"dependent"`
	Terms        []string  `json:"terms"`
	Coef         []float64 `json:"coef"`
	StdErr       []float64 `json:"std_err"`
	RobustStdErr []float64 `json:"robust_std_err"`
	TStats       []float64 `json:"t_stats"`
	PValues      []float64 `json:"p_values"`
	Robust       bool      `json:"robust"`
	N            int       `json:"n"`
	DF           int       `json:"df"`
	R2           float64   `json:"r2"`
	AdjR2        float64   `json:"adj_r2"`
	FStat        float64   `json:"f_stat"`
	FPValue      float64   `json:"f_p_value"`
	Residuals    []float64 `json:"-"`
}

// FitOLS regresses y on the named regressor columns with an intercept.
// Each regressor slice must have len(y) observations, already reduced to
// complete cases. With robust set, inference uses HC1 standard errors.
func FitOLS(dependent string, y []float64, names []string, regressors [][]float64, robust bool) (*OLSResult, error) {
	n := len(y)
	if len(names) != len(regressors) {
		return nil, errors.NewEstimationError("regressor names and columns out of step", nil)
	}
	for i, col := range regressors {
		if len(col) != n {
			return nil, errors.NewEstimationError(
				fmt.Sprintf("regressor %s has %d observations, want %d", names[i], len(col), n), nil)
		}
	}

	k := len(regressors) + 1 // intercept
	if n <= k {
		return nil, errors.NewEstimationError(
			fmt.Sprintf("%d observations cannot identify %d parameters", n, k), nil)
	}

	X := mat.NewDense(n, k, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, 1)
		for j, col := range regressors {
			X.Set(i, j+1, col[i])
		}
	}
	yVec := mat.NewVecDense(n, y)

	var qr mat.QR
	qr.Factorize(X)
	var betaDense mat.Dense
	if err := qr.SolveTo(&betaDense, false, yVec); err != nil {
		return nil, errors.NewEstimationError("design matrix is rank deficient", err)
	}

	coef := make([]float64, k)
	for j := 0; j < k; j++ {
		coef[j] = betaDense.At(j, 0)
	}

	// Residuals and fit
	residuals := make([]float64, n)
	ssr := 0.0
	for i := 0; i < n; i++ {
		fitted := 0.0
		for j := 0; j < k; j++ {
			fitted += X.At(i, j) * coef[j]
		}
		residuals[i] = y[i] - fitted
		ssr += residuals[i] * residuals[i]
	}
	yMean := stat.Mean(y, nil)
	sst := 0.0
	for _, v := range y {
		d := v - yMean
		sst += d * d
	}

	df := n - k
	r2 := 0.0
	if sst > 0 {
		r2 = 1 - ssr/sst
	}
	adjR2 := 1 - (1-r2)*float64(n-1)/float64(df)

	// (X'X)^-1 for both covariance estimators
	var xtx mat.Dense
	xtx.Mul(X.T(), X)
	var xtxInv mat.Dense
	if err := xtxInv.Inverse(&xtx); err != nil {
		return nil, errors.NewEstimationError("design matrix is rank deficient", err)
	}

	sigma2 := ssr / float64(df)
	stdErr := make([]float64, k)
	for j := 0; j < k; j++ {
		stdErr[j] = math.Sqrt(sigma2 * xtxInv.At(j, j))
	}

	robustStdErr, err := hc1StdErrors(X, residuals, &xtxInv, n, k)
	if err != nil {
		return nil, err
	}

	inferenceSE := stdErr
	if robust {
		inferenceSE = robustStdErr
	}

	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(df)}
	tStats := make([]float64, k)
	pValues := make([]float64, k)
	for j := 0; j < k; j++ {
		if inferenceSE[j] == 0 {
			tStats[j] = math.Inf(1)
			pValues[j] = 0
			continue
		}
		tStats[j] = coef[j] / inferenceSE[j]
		pValues[j] = 2 * (1 - tDist.CDF(math.Abs(tStats[j])))
	}

	fStat := 0.0
	fPValue := 1.0
	if r2 < 1 && k > 1 {
		fStat = (r2 / float64(k-1)) / ((1 - r2) / float64(df))
		fDist := distuv.F{D1: float64(k - 1), D2: float64(df)}
		fPValue = 1 - fDist.CDF(fStat)
	}

	terms := append([]string{"intercept"}, names...)

	return &OLSResult{
		Dependent:    dependent,
		Terms:        terms,
		Coef:         coef,
		StdErr:       stdErr,
		RobustStdErr: robustStdErr,
		TStats:       tStats,
		PValues:      pValues,
		Robust:       robust,
		N:            n,
		DF:           df,
		R2:           r2,
		AdjR2:        adjR2,
		FStat:        fStat,
		FPValue:      fPValue,
		Residuals:    residuals,
	}, nil
}

// hc1StdErrors computes White standard errors with the HC1 small-sample
// correction n/(n-k).
func hc1StdErrors(X *mat.Dense, residuals []float64, xtxInv *mat.Dense, n, k int) ([]float64, error) {
	meat := mat.NewDense(k, k, nil)
	row := make([]float64, k)
	for i := 0; i < n; i++ {
		e2 := residuals[i] * residuals[i]
		mat.Row(row, i, X)
		for a := 0; a < k; a++ {
			for b := 0; b < k; b++ {
				meat.Set(a, b, meat.At(a, b)+e2*row[a]*row[b])
			}
		}
	}

	var tmp, cov mat.Dense
	tmp.Mul(xtxInv, meat)
	cov.Mul(&tmp, xtxInv)

	scale := float64(n) / float64(n-k)
	se := make([]float64, k)
	for j := 0; j < k; j++ {
		v := cov.At(j, j) * scale
		if v < 0 {
			return nil, errors.NewEstimationError("negative robust variance", nil)
		}
		se[j] = math.Sqrt(v)
	}
	return se, nil
}

// VIF computes variance inflation factors for each regressor by auxiliary
// regression on the remaining regressors. A factor above 10 conventionally
// signals problematic collinearity.
func VIF(names []string, regressors [][]float64) (map[string]float64, error) {
	if len(regressors) < 2 {
		return nil, errors.NewAppValidationError("vif needs at least two regressors")
	}

	out := make(map[string]float64, len(names))
	for j, name := range names {
		otherNames := make([]string, 0, len(names)-1)
		others := make([][]float64, 0, len(regressors)-1)
		for m, col := range regressors {
			if m == j {
				continue
			}
			otherNames = append(otherNames, names[m])
			others = append(others, col)
		}

		res, err := fitAuxiliary(name, regressors[j], otherNames, others)
		if err != nil {
			return nil, err
		}
		if res.R2 >= 1 {
			out[name] = math.Inf(1)
			continue
		}
		out[name] = 1 / (1 - res.R2)
	}
	return out, nil
}

// fitAuxiliary fits one VIF auxiliary regression. A rank-deficient design
// here means the remaining regressors are mutually collinear, which must not
// abort the whole VIF set: a redundant column is pruned and the fit retried.
// Removing a column that is a linear combination of the others leaves the
// spanned subspace, and therefore R2, unchanged.
func fitAuxiliary(name string, y []float64, names []string, cols [][]float64) (*OLSResult, error) {
	res, err := FitOLS(name, y, names, cols, false)
	if err == nil {
		return res, nil
	}
	if !errors.IsType(err, errors.ErrTypeEstimation) || len(cols) < 2 {
		return nil, err
	}

	for m := range cols {
		prunedNames := make([]string, 0, len(names)-1)
		pruned := make([][]float64, 0, len(cols)-1)
		for i := range cols {
			if i == m {
				continue
			}
			prunedNames = append(prunedNames, names[i])
			pruned = append(pruned, cols[i])
		}
		if res, retryErr := fitAuxiliary(name, y, prunedNames, pruned); retryErr == nil {
			return res, nil
		}
	}
	return nil, err
}

// Significance returns the conventional star notation for a p-value
func Significance(p float64) string {
	switch {
	case p < 0.01:
		return "***"
	case p < 0.05:
		return "**"
	case p < 0.1:
		return "*"
	default:
		return ""
	}
}
