// Package store persists pipeline runs and their results in an embedded
// SQLite database. Regression estimates and attrition audits are stored as
// JSON payloads keyed by run, which keeps the schema stable while the
// result shapes evolve.
package store
