package marketdata

import (
	"math"
	"sort"
	"time"
)

// DailyQuote is one trading day of price data for a ticker
type DailyQuote struct {
	Ticker string    `json:"ticker"`
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// IsValid checks basic price sanity
func (q *DailyQuote) IsValid() bool {
	if q.Close <= 0 || q.Open < 0 || q.High < 0 || q.Low < 0 {
		return false
	}
	if q.High > 0 && q.Low > 0 && q.High < q.Low {
		return false
	}
	return true
}

// ReturnSeries is an ordered series of simple daily returns for one ticker
type ReturnSeries struct {
	Ticker  string
	Dates   []time.Time
	Returns []float64
}

// Len returns the number of observations
func (s *ReturnSeries) Len() int {
	return len(s.Returns)
}

// IndexOf returns the position of date in the series, or -1
func (s *ReturnSeries) IndexOf(date time.Time) int {
	day := date.Truncate(24 * time.Hour)
	i := sort.Search(len(s.Dates), func(i int) bool {
		return !s.Dates[i].Before(day)
	})
	if i < len(s.Dates) && s.Dates[i].Equal(day) {
		return i
	}
	return -1
}

// IndexOnOrAfter returns the position of the first trading day on or after
// date, or -1 if the series ends before it. Event dates landing on weekends
// or holidays roll forward to the next trading day.
func (s *ReturnSeries) IndexOnOrAfter(date time.Time) int {
	day := date.Truncate(24 * time.Hour)
	i := sort.Search(len(s.Dates), func(i int) bool {
		return !s.Dates[i].Before(day)
	})
	if i < len(s.Dates) {
		return i
	}
	return -1
}

// Slice returns the sub-series [from, to] by index, inclusive.
// Returns nil when the bounds fall outside the series.
func (s *ReturnSeries) Slice(from, to int) *ReturnSeries {
	if from < 0 || to >= len(s.Returns) || from > to {
		return nil
	}
	return &ReturnSeries{
		Ticker:  s.Ticker,
		Dates:   s.Dates[from : to+1],
		Returns: s.Returns[from : to+1],
	}
}

// ComputeReturns converts ordered daily quotes to a simple-return series.
// Quotes are sorted by date; days with a non-positive previous close are
// skipped rather than producing an infinite return.
func ComputeReturns(ticker string, quotes []DailyQuote) *ReturnSeries {
	sorted := make([]DailyQuote, len(quotes))
	copy(sorted, quotes)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	series := &ReturnSeries{Ticker: ticker}
	for i := 1; i < len(sorted); i++ {
		prev := sorted[i-1].Close
		if prev <= 0 {
			continue
		}
		ret := sorted[i].Close/prev - 1
		if math.IsNaN(ret) || math.IsInf(ret, 0) {
			continue
		}
		series.Dates = append(series.Dates, sorted[i].Date.Truncate(24*time.Hour))
		series.Returns = append(series.Returns, ret)
	}
	return series
}
