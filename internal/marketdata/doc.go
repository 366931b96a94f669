// Package marketdata provides daily stock and index price series: a
// rate-limited HTTP fetcher, a per-ticker CSV store, and return-series
// helpers that align event dates to the trading calendar.
package marketdata
