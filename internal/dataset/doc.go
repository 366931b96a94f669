// Package dataset loads the curated breach-event dataset from CSV or Excel,
// validates row identity (unique event IDs, parseable dates), and records an
// integrity manifest of the inputs so every run is reproducible.
package dataset
