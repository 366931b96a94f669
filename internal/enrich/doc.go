// Package enrich joins external data sources onto the breach event sample
// without ever changing its row count. A Table holds one row per event with
// nullable numeric columns; Merge left-joins a Source onto it with logged
// duplicate resolution; flag derivation turns non-null status of column sets
// into never-null 0/1 availability flags; AttritionAudit records the non-null
// and flag counts after each step so every sample size in the final analysis
// can be traced back to a join.
package enrich
