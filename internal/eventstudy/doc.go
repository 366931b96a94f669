// Package eventstudy implements the market-model event study. For each
// breach event it fits stock returns against market returns over a
// pre-event estimation window, then cumulates abnormal returns over the
// configured event windows. Estimation failures are logged and skipped so
// a handful of thin tickers never sinks the run.
package eventstudy
