// Package pipeline sequences the analysis stages: load events, load market
// data, merge enrichment sources, derive features, run the event study,
// estimate regressions, render the report. A Runner executes stages against
// shared state with per-stage tracing and metrics, persisting a manifest and
// the attrition audit under the run directory.
package pipeline
