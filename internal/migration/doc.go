// Package migration moves resources between storage locations one step at a
// time.
//
// Every resource follows the same plan: stop its services, point their
// configuration at the destination, copy each data directory, restart and
// verify, then mark the resource complete. Each step is checked against the
// ledger before it runs and recorded only after it succeeds, so a run that
// stops for any reason resumes at the first unrecorded step.
//
// The Orchestrator runs resources in configuration order and keeps going
// after a resource fails. Only an interruption ends a run early.
package migration
