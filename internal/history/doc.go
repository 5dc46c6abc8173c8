// Package history keeps a SQLite journal of runs and per-resource outcomes.
//
// The journal is informational. Resume decisions are made from the step
// ledger alone, so callers treat a history database that cannot be opened
// or written as a warning rather than a reason to stop.
package history
