// Package stats provides the statistical primitives for the analysis layer:
// descriptive summaries, winsorization, Pearson correlation matrices, and
// ordinary least squares with classical and heteroskedasticity-robust
// standard errors. Every routine takes plain float64 slices already filtered
// to complete cases; sample selection happens in the enrichment layer, not
// here.
package stats
