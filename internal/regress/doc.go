// Package regress defines the named regression specifications relating
// cumulative abnormal returns to breach characteristics, and estimates them
// with robustness variants. Sample selection is explicit: every estimate
// reports the rows used and the rows dropped by listwise deletion and flags.
package regress
