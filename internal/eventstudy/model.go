package eventstudy

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"breachstudy/internal/errors"
	"breachstudy/internal/marketdata"
)

// MarketModel holds fitted market-model parameters for one event
type MarketModel struct {
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
	Sigma float64 `json:"sigma"` // residual standard deviation
	Obs   int     `json:"obs"`
}

// Predict returns the expected return for a market return
func (m *MarketModel) Predict(marketReturn float64) float64 {
	return m.Alpha + m.Beta*marketReturn
}

// alignReturns pairs stock and market returns on shared dates within the
// stock series index range [from, to].
func alignReturns(stock, market *marketdata.ReturnSeries, from, to int) (stockR, marketR []float64) {
	for i := from; i <= to && i < stock.Len(); i++ {
		if i < 0 {
			continue
		}
		j := market.IndexOf(stock.Dates[i])
		if j < 0 {
			continue
		}
		stockR = append(stockR, stock.Returns[i])
		marketR = append(marketR, market.Returns[j])
	}
	return stockR, marketR
}

// EstimateMarketModel fits R_i = alpha + beta*R_m over the estimation window
// of the stock series ending gap trading days before eventIdx. It fails when
// fewer than minObs aligned observations are available.
func EstimateMarketModel(stock, market *marketdata.ReturnSeries,
	eventIdx, estimationDays, gap, minObs int) (*MarketModel, error) {
	end := eventIdx - gap - 1
	start := end - estimationDays + 1
	if end < 0 {
		return nil, errors.NewEstimationError(
			fmt.Sprintf("ticker %s: no trading history before event", stock.Ticker), nil)
	}

	stockR, marketR := alignReturns(stock, market, start, end)
	if len(stockR) < minObs {
		return nil, errors.NewEstimationError(
			fmt.Sprintf("ticker %s: %d aligned observations, need %d",
				stock.Ticker, len(stockR), minObs), nil)
	}

	alpha, beta := stat.LinearRegression(marketR, stockR, nil, false)
	if math.IsNaN(alpha) || math.IsNaN(beta) {
		return nil, errors.NewEstimationError(
			fmt.Sprintf("ticker %s: degenerate market returns in estimation window", stock.Ticker), nil)
	}

	ssr := 0.0
	for i := range stockR {
		e := stockR[i] - (alpha + beta*marketR[i])
		ssr += e * e
	}
	sigma := 0.0
	if len(stockR) > 2 {
		sigma = math.Sqrt(ssr / float64(len(stockR)-2))
	}

	return &MarketModel{Alpha: alpha, Beta: beta, Sigma: sigma, Obs: len(stockR)}, nil
}

// AbnormalReturns computes AR_t over the stock series index range [from, to]
// using the fitted model. Days without a matching market return are an error:
// a CAR over a partial window would understate the effect silently.
func AbnormalReturns(model *MarketModel, stock, market *marketdata.ReturnSeries, from, to int) ([]float64, error) {
	if from < 0 || to >= stock.Len() {
		return nil, errors.NewEstimationError(
			fmt.Sprintf("ticker %s: event window [%d,%d] outside return series", stock.Ticker, from, to), nil)
	}

	ars := make([]float64, 0, to-from+1)
	for i := from; i <= to; i++ {
		j := market.IndexOf(stock.Dates[i])
		if j < 0 {
			return nil, errors.NewEstimationError(
				fmt.Sprintf("ticker %s: no market return on %s",
					stock.Ticker, stock.Dates[i].Format("2006-01-02")), nil)
		}
		ars = append(ars, stock.Returns[i]-model.Predict(market.Returns[j]))
	}
	return ars, nil
}

// CAR sums abnormal returns
func CAR(ars []float64) float64 {
	sum := 0.0
	for _, ar := range ars {
		sum += ar
	}
	return sum
}
