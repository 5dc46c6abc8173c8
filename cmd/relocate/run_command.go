package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"relocate/internal/cmdexec"
	"relocate/internal/config"
	"relocate/internal/confirm"
	"relocate/internal/history"
	"relocate/internal/ledger"
	"relocate/internal/logging"
	"relocate/internal/migration"
	"relocate/internal/notifications"
	"relocate/internal/preflight"
	"relocate/internal/runlock"
	"relocate/internal/signals"
)

type runOptions struct {
	yes    bool
	resume bool
}

const (
	exitStatusSuccess     = "success"
	exitStatusFailed      = "failed"
	exitStatusInterrupted = "interrupted"
)

func runMigration(cmd *cobra.Command, ctx *commandContext, opts runOptions) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.newLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	governor, runCtx := signals.Install(cmd.Context(), logger)
	defer governor.Stop()

	out := cmd.OutOrStdout()
	if failed := preflight.Failed(ctx.preflight(runCtx, cfg)); len(failed) > 0 {
		fmt.Fprintln(out, renderChecks(failed))
		fmt.Fprintf(out, "Fix the failed checks, then run: %s\n", ctx.resumeCommand())
		return fmt.Errorf("%w: %d preflight check(s) failed", migration.ErrConfig, len(failed))
	}

	lock, err := runlock.Acquire(cfg.LockPath())
	if err != nil {
		fmt.Fprintf(out, "Another relocate run holds %s. Once it has finished, run: %s\n", cfg.LockPath(), ctx.resumeCommand())
		return fmt.Errorf("%w: %w", migration.ErrConfig, err)
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("release run lock failed", logging.Error(err))
		}
	}()

	ldg, err := ledger.Open(cfg.Paths.Ledger, logger)
	if err != nil {
		fmt.Fprintf(out, "The ledger at %s could not be opened. Once it is readable, run: %s\n", cfg.Paths.Ledger, ctx.resumeCommand())
		return fmt.Errorf("%w: %w", migration.ErrPrecondition, err)
	}
	defer ldg.Close()

	mode := history.ModeFresh
	if len(ldg.Entries()) > 0 {
		mode = history.ModeResume
	} else if opts.resume {
		logger.Info("ledger is empty; starting from the first resource", logging.String("ledger", ldg.Path()))
	}

	store, runID := openHistory(runCtx, cfg, mode, logger)
	if store != nil {
		defer store.Close()
	}
	runCtx = logging.WithRunID(runCtx, runID)
	notifier := notifications.NewService(cfg)
	started := time.Now()
	notify(runCtx, notifier, logger, notifications.EventRunStarted, notifications.Payload{
		"resources": len(cfg.Resources),
		"mode":      mode,
	})
	logger.Info("run starting",
		logging.String(logging.FieldRunID, runID),
		logging.String("mode", mode),
		logging.String("ledger", ldg.Path()),
	)

	runner := cmdexec.New()
	migrator := migration.NewMigrator(cfg.Sync, migration.Deps{
		Ledger:   ldg,
		Services: ctx.host.services(logger),
		DataRoot: ctx.host.dataRoot(runner),
		Syncer:   ctx.host.syncer(cfg, runner, logger),
		Gate:     confirm.New(opts.yes || opts.resume, cmd.InOrStdin(), out, logger),
		Logger:   logger,
	})

	var orchOpts []migration.OrchestratorOption
	if store != nil {
		orchOpts = append(orchOpts, migration.WithRecorder(store, runID))
	}
	report := migration.NewOrchestrator(cfg, migrator, logger, orchOpts...).Run(runCtx)
	interrupted := report.Interrupted || governor.Interrupted()

	status := exitStatusSuccess
	switch {
	case interrupted:
		status = exitStatusInterrupted
	case report.Failed():
		status = exitStatusFailed
	}
	if store != nil {
		if err := store.FinishRun(context.WithoutCancel(runCtx), runID, status); err != nil {
			logger.Warn("run history unavailable; run end not journaled", logging.Error(err))
		}
	}

	for _, res := range report.Results {
		if res.Outcome != migration.OutcomeFailed {
			continue
		}
		notify(runCtx, notifier, logger, notifications.EventResourceFailed, notifications.Payload{
			"resource": res.Resource,
			"error":    res.Reason(),
			"hint":     migration.Hint(res.Err),
		})
	}
	if status == exitStatusInterrupted {
		notify(runCtx, notifier, logger, notifications.EventRunInterrupted, notifications.Payload{
			"resume": ctx.resumeCommand(),
		})
	} else {
		notify(runCtx, notifier, logger, notifications.EventRunFinished, notifications.Payload{
			"completed": report.Count(migration.OutcomeCompleted),
			"skipped":   report.Count(migration.OutcomeSkipped),
			"deferred":  report.Count(migration.OutcomeDeferred),
			"failed":    report.Count(migration.OutcomeFailed),
			"duration":  time.Since(started),
		})
	}

	fmt.Fprint(out, renderSummary(report, ctx.resumeCommand()))

	switch status {
	case exitStatusInterrupted:
		return fmt.Errorf("%w: run stopped before every resource finished", signals.ErrInterrupted)
	case exitStatusFailed:
		return fmt.Errorf("%d resource(s) failed; details in %s", report.Count(migration.OutcomeFailed), cfg.LogPath())
	}
	return nil
}

// openHistory starts a journaled run. History is optional: when the store
// cannot be used the run continues with a locally generated run id.
func openHistory(ctx context.Context, cfg *config.Config, mode string, logger *slog.Logger) (*history.Store, string) {
	runID := uuid.NewString()
	if cfg.Paths.HistoryDB == "" {
		return nil, runID
	}
	store, err := history.Open(cfg.Paths.HistoryDB)
	if err != nil {
		logger.Warn("run history unavailable",
			logging.String("path", cfg.Paths.HistoryDB),
			logging.Error(err),
		)
		return nil, runID
	}
	id, err := store.StartRun(ctx, mode)
	if err != nil {
		logger.Warn("run history unavailable", logging.Error(err))
		_ = store.Close()
		return nil, runID
	}
	return store, id
}

// notify publishes best effort; a failed push never changes the run result.
func notify(ctx context.Context, notifier notifications.Service, logger *slog.Logger, event notifications.Event, payload notifications.Payload) {
	if err := notifier.Publish(context.WithoutCancel(ctx), event, payload); err != nil {
		logger.Warn("notification not delivered",
			logging.String("event", string(event)),
			logging.Error(err),
		)
	}
}

func historyExists(cfg *config.Config) bool {
	if cfg.Paths.HistoryDB == "" {
		return false
	}
	info, err := os.Stat(cfg.Paths.HistoryDB)
	return err == nil && !info.IsDir()
}
