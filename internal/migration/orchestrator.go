package migration

import (
	"context"
	"errors"
	"log/slog"

	"relocate/internal/config"
	"relocate/internal/fileutil"
	"relocate/internal/logging"
)

// Recorder journals per-resource outcomes outside the ledger.
type Recorder interface {
	RecordOutcome(ctx context.Context, runID, resource, outcome, reason string) error
}

// Runner migrates a single resource.
type Runner interface {
	Migrate(ctx context.Context, res config.Resource) Result
}

// Orchestrator runs every configured resource in order.
type Orchestrator struct {
	resources  []config.Resource
	runner     Runner
	ledgerPath string
	logger     *slog.Logger
	recorder   Recorder
	runID      string
}

// OrchestratorOption customizes an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithRecorder journals each outcome under runID.
func WithRecorder(rec Recorder, runID string) OrchestratorOption {
	return func(o *Orchestrator) {
		o.recorder = rec
		o.runID = runID
	}
}

// NewOrchestrator builds an Orchestrator for the resources of cfg.
func NewOrchestrator(cfg *config.Config, runner Runner, logger *slog.Logger, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		resources:  append([]config.Resource(nil), cfg.Resources...),
		runner:     runner,
		ledgerPath: cfg.Paths.Ledger,
		logger:     logging.NewComponentLogger(logger, "orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run migrates each resource in configuration order. A failed resource does
// not stop the run; an interruption does.
func (o *Orchestrator) Run(ctx context.Context) Report {
	if o.runID != "" {
		ctx = logging.WithRunID(ctx, o.runID)
	}
	logger := logging.WithContext(ctx, o.logger)
	report := Report{LedgerPath: o.ledgerPath}

	logger.Info("migration run started",
		logging.Int("resources", len(o.resources)),
		logging.Strings("order", names(o.resources)),
	)
	for i, res := range o.resources {
		if ctx.Err() != nil {
			report.Interrupted = true
			report.NotRun = append(report.NotRun, names(o.resources[i:])...)
			break
		}
		result := o.runner.Migrate(ctx, res)
		report.Results = append(report.Results, result)
		o.journal(ctx, logger, result)

		if errors.Is(result.Err, ErrInterrupted) {
			report.Interrupted = true
			report.NotRun = append(report.NotRun, names(o.resources[i+1:])...)
			break
		}
		if result.Outcome == OutcomeCompleted || result.Outcome == OutcomeSkipped {
			report.Removable = append(report.Removable, removable(res)...)
		}
	}

	logger.Info("migration run finished",
		logging.Int("completed", report.Count(OutcomeCompleted)),
		logging.Int("skipped", report.Count(OutcomeSkipped)),
		logging.Int("deferred", report.Count(OutcomeDeferred)),
		logging.Int("failed", report.Count(OutcomeFailed)),
		logging.Bool("interrupted", report.Interrupted),
	)
	return report
}

func (o *Orchestrator) journal(ctx context.Context, logger *slog.Logger, result Result) {
	if o.recorder == nil || o.runID == "" {
		return
	}
	reason := result.Reason()
	if err := o.recorder.RecordOutcome(context.WithoutCancel(ctx), o.runID, result.Resource, string(result.Outcome), reason); err != nil {
		logger.Warn("run history unavailable; outcome kept in log only",
			logging.String(logging.FieldResource, result.Resource),
			logging.Error(err),
		)
	}
}

// removable returns the sources of res that can be deleted by the operator.
// A source that is itself a link to the destination is still in use.
func removable(res config.Resource) []string {
	var paths []string
	for _, cp := range res.Copies() {
		if fileutil.SamePath(cp.Source, cp.Destination) {
			continue
		}
		if linked, err := fileutil.SymlinkTo(cp.Source, cp.Destination); err != nil || linked {
			continue
		}
		exists, err := isDir(cp.Source)
		if err != nil || !exists {
			continue
		}
		paths = append(paths, cp.Source)
	}
	return paths
}

func names(resources []config.Resource) []string {
	out := make([]string, 0, len(resources))
	for _, res := range resources {
		out = append(out, res.Name)
	}
	return out
}
