package migration_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"relocate/internal/config"
	"relocate/internal/logging"
	"relocate/internal/migration"
	"relocate/internal/testsupport"
)

type scriptedRunner struct {
	results map[string]migration.Result
	calls   []string
}

func (s *scriptedRunner) Migrate(_ context.Context, res config.Resource) migration.Result {
	s.calls = append(s.calls, res.Name)
	result := s.results[res.Name]
	result.Resource = res.Name
	result.Source = res.Source
	result.Destination = res.Destination
	return result
}

type recordedOutcome struct {
	runID, resource, outcome, reason string
}

type memoryRecorder struct {
	err     error
	entries []recordedOutcome
}

func (m *memoryRecorder) RecordOutcome(ctx context.Context, runID, resource, outcome, reason string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	m.entries = append(m.entries, recordedOutcome{runID, resource, outcome, reason})
	return m.err
}

func threeResources(t *testing.T) *config.Config {
	return testsupport.NewConfig(t,
		testsupport.WithResource("docker"),
		testsupport.WithResource("containerd"),
		testsupport.WithResource("registry"),
	)
}

func TestOrchestratorContinuesPastFailures(t *testing.T) {
	cfg := threeResources(t)
	runner := &scriptedRunner{results: map[string]migration.Result{
		"docker":     {Outcome: migration.OutcomeFailed, Err: fmt.Errorf("%w: docker: space", migration.ErrPrecondition)},
		"containerd": {Outcome: migration.OutcomeCompleted},
		"registry":   {Outcome: migration.OutcomeDeferred, Detail: "declined by operator"},
	}}

	report := migration.NewOrchestrator(cfg, runner, logging.NewNop()).Run(context.Background())
	if !reflect.DeepEqual(runner.calls, []string{"docker", "containerd", "registry"}) {
		t.Fatalf("unexpected order %v", runner.calls)
	}
	if !report.Failed() {
		t.Fatal("expected failed report")
	}
	if report.AllDone() {
		t.Fatal("report with a failure is not done")
	}
	if !errors.Is(report.Err(), migration.ErrPrecondition) {
		t.Fatalf("expected joined error, got %v", report.Err())
	}
	if report.LedgerPath != cfg.Paths.Ledger {
		t.Fatalf("unexpected ledger path %q", report.LedgerPath)
	}
	if !reflect.DeepEqual(report.Removable, []string{cfg.Resources[1].Source}) {
		t.Fatalf("unexpected removable sources %v", report.Removable)
	}
}

func TestDeferredIsNotAFailure(t *testing.T) {
	cfg := threeResources(t)
	runner := &scriptedRunner{results: map[string]migration.Result{
		"docker":     {Outcome: migration.OutcomeSkipped},
		"containerd": {Outcome: migration.OutcomeDeferred},
		"registry":   {Outcome: migration.OutcomeCompleted},
	}}

	report := migration.NewOrchestrator(cfg, runner, logging.NewNop()).Run(context.Background())
	if report.Failed() {
		t.Fatal("deferred resources must not fail the run")
	}
	if report.AllDone() {
		t.Fatal("a deferred resource still has work left")
	}
	if report.Count(migration.OutcomeDeferred) != 1 {
		t.Fatalf("unexpected counts %+v", report.Results)
	}
}

func TestInterruptionStopsTheRun(t *testing.T) {
	cfg := threeResources(t)
	runner := &scriptedRunner{results: map[string]migration.Result{
		"docker":     {Outcome: migration.OutcomeCompleted},
		"containerd": {Outcome: migration.OutcomeFailed, Err: fmt.Errorf("%w: containerd", migration.ErrInterrupted)},
	}}
	rec := &memoryRecorder{}

	report := migration.NewOrchestrator(cfg, runner, logging.NewNop(), migration.WithRecorder(rec, "run-1")).Run(context.Background())
	if !report.Interrupted || !report.Failed() {
		t.Fatalf("expected interrupted report, got %+v", report)
	}
	if !reflect.DeepEqual(report.NotRun, []string{"registry"}) {
		t.Fatalf("unexpected not-run list %v", report.NotRun)
	}
	if len(rec.entries) != 2 || rec.entries[1].outcome != "failed" || rec.entries[1].runID != "run-1" {
		t.Fatalf("unexpected journal %+v", rec.entries)
	}
}

func TestCancelledContextRecordsRemainingAsNotRun(t *testing.T) {
	cfg := threeResources(t)
	runner := &scriptedRunner{results: map[string]migration.Result{}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := migration.NewOrchestrator(cfg, runner, logging.NewNop()).Run(ctx)
	if len(runner.calls) != 0 {
		t.Fatalf("expected no resources to run, got %v", runner.calls)
	}
	if !report.Interrupted || len(report.NotRun) != 3 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestRecorderFailureDoesNotStopTheRun(t *testing.T) {
	cfg := threeResources(t)
	runner := &scriptedRunner{results: map[string]migration.Result{
		"docker":     {Outcome: migration.OutcomeCompleted},
		"containerd": {Outcome: migration.OutcomeCompleted},
		"registry":   {Outcome: migration.OutcomeCompleted},
	}}
	rec := &memoryRecorder{err: errors.New("database is locked")}

	report := migration.NewOrchestrator(cfg, runner, logging.NewNop(), migration.WithRecorder(rec, "run-2")).Run(context.Background())
	if report.Failed() || !report.AllDone() {
		t.Fatalf("expected clean run, got %+v", report)
	}
	if len(report.Removable) != 3 {
		t.Fatalf("expected every source to be removable, got %v", report.Removable)
	}
}

func TestOrchestratorWithHistoryStore(t *testing.T) {
	cfg := threeResources(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()
	runID, err := store.StartRun(ctx, "fresh")
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	runner := &scriptedRunner{results: map[string]migration.Result{
		"docker":     {Outcome: migration.OutcomeCompleted},
		"containerd": {Outcome: migration.OutcomeSkipped, Detail: "already complete"},
		"registry":   {Outcome: migration.OutcomeDeferred, Detail: "declined by operator"},
	}}

	migration.NewOrchestrator(cfg, runner, logging.NewNop(), migration.WithRecorder(store, runID)).Run(ctx)

	outcomes, err := store.Outcomes(ctx, runID)
	if err != nil {
		t.Fatalf("Outcomes: %v", err)
	}
	if len(outcomes) != 3 || outcomes[1].Reason != "already complete" || outcomes[2].Outcome != "deferred" {
		t.Fatalf("unexpected journal %+v", outcomes)
	}
}
