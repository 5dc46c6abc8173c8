package preflight

import (
	"context"

	"relocate/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Option customizes a RunAll pass.
type Option func(*options)

type options struct {
	systemdRunning func() bool
}

// WithSystemdProbe replaces the check for a running systemd.
func WithSystemdProbe(fn func() bool) Option {
	return func(o *options) {
		if fn != nil {
			o.systemdRunning = fn
		}
	}
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config, opts ...Option) []Result {
	if cfg == nil {
		return nil
	}
	o := options{systemdRunning: systemdRunning}
	for _, opt := range opts {
		opt(&o)
	}

	var results []Result

	if cfg.Privilege.RequireRoot {
		results = append(results, CheckPrivilege())
	}

	if needsServiceManager(cfg) {
		results = append(results, serviceManagerResult(o.systemdRunning()))
	}

	results = append(results, CheckBinaries(cfg)...)

	for _, res := range cfg.Resources {
		if ctx.Err() != nil {
			break
		}
		for _, cp := range res.Copies() {
			results = append(results, CheckDestinationWritable(res.Name+" "+cp.Label()+" destination", cp.Destination))
		}
	}

	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

func needsServiceManager(cfg *config.Config) bool {
	for _, res := range cfg.Resources {
		if len(res.Services) > 0 {
			return true
		}
	}
	return false
}
