package migration

import (
	"errors"
	"time"
)

// Outcome is the result class of one resource within a run.
type Outcome string

const (
	OutcomeSkipped   Outcome = "skipped"
	OutcomeCompleted Outcome = "completed"
	OutcomeDeferred  Outcome = "deferred"
	OutcomeFailed    Outcome = "failed"
)

// Result is the per-resource outcome of a run. Err is set for OutcomeFailed.
type Result struct {
	Resource    string
	Source      string
	Destination string
	Outcome     Outcome
	Err         error
	Detail      string
	Duration    time.Duration
}

// Reason returns the failure or skip explanation.
func (r Result) Reason() string {
	if r.Err != nil {
		return r.Err.Error()
	}
	return r.Detail
}

// Report aggregates the results of a run in configuration order. NotRun
// lists resources an interrupted run never reached. Removable lists old
// source locations whose data now lives at the destination.
type Report struct {
	Results     []Result
	Interrupted bool
	NotRun      []string
	LedgerPath  string
	Removable   []string
}

// Failed reports whether the run should exit unsuccessfully.
func (r Report) Failed() bool {
	if r.Interrupted {
		return true
	}
	for _, res := range r.Results {
		if res.Outcome == OutcomeFailed {
			return true
		}
	}
	return false
}

// AllDone reports whether every resource is completed or skipped.
func (r Report) AllDone() bool {
	if r.Interrupted || len(r.NotRun) > 0 {
		return false
	}
	for _, res := range r.Results {
		if res.Outcome != OutcomeCompleted && res.Outcome != OutcomeSkipped {
			return false
		}
	}
	return true
}

// Count returns how many results have outcome o.
func (r Report) Count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// Err joins the errors of every failed resource.
func (r Report) Err() error {
	var errs []error
	for _, res := range r.Results {
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
	}
	return errors.Join(errs...)
}
