package migration

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/dustin/go-humanize"

	"relocate/internal/config"
	"relocate/internal/fileutil"
	"relocate/internal/ledger"
	"relocate/internal/logging"
	"relocate/internal/svcconfig"
)

// ServiceController stops, starts and inspects the units owning a resource.
type ServiceController interface {
	Stop(ctx context.Context, units []string) error
	Start(ctx context.Context, units []string) error
	Active(ctx context.Context, units []string) (bool, error)
}

// DataRootReporter asks a running service where it keeps its data.
type DataRootReporter interface {
	DataRoot(ctx context.Context, command []string) (string, error)
}

// Syncer copies the contents of one directory into another without deleting.
type Syncer interface {
	Sync(ctx context.Context, label, src, dst string) error
}

// Confirmer asks the operator before a resource is changed.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// Deps bundles the collaborators of a Migrator.
type Deps struct {
	Ledger   *ledger.Ledger
	Services ServiceController
	DataRoot DataRootReporter
	Syncer   Syncer
	Gate     Confirmer
	Logger   *slog.Logger
}

// Option customizes a Migrator.
type Option func(*Migrator)

// WithVolumeProbe replaces the free space lookup used by the space guard.
func WithVolumeProbe(fn func(path string) (fileutil.Volume, error)) Option {
	return func(m *Migrator) {
		if fn != nil {
			m.volumeOf = fn
		}
	}
}

// WithClock replaces time.Now for backup names and durations.
func WithClock(fn func() time.Time) Option {
	return func(m *Migrator) {
		if fn != nil {
			m.now = fn
		}
	}
}

// WithVerifyRetry sets how often the post-start check is attempted.
func WithVerifyRetry(attempts int, delay time.Duration) Option {
	return func(m *Migrator) {
		if attempts > 0 {
			m.verifyAttempts = attempts
		}
		if delay >= 0 {
			m.verifyDelay = delay
		}
	}
}

// Migrator moves one resource through its steps, consulting the ledger
// before every step and recording each step once it has succeeded.
type Migrator struct {
	ledger    *ledger.Ledger
	services  ServiceController
	dataRoot  DataRootReporter
	syncer    Syncer
	gate      Confirmer
	logger    *slog.Logger
	skipBelow int64

	volumeOf func(string) (fileutil.Volume, error)
	dirSize  func(context.Context, string) (int64, error)
	copied   func(ctx context.Context, src, dst string) (int64, error)
	mirror   func(src, dst string) error
	now      func() time.Time

	verifyAttempts int
	verifyDelay    time.Duration
}

// NewMigrator builds a Migrator from its collaborators.
func NewMigrator(sync config.Sync, deps Deps, opts ...Option) *Migrator {
	m := &Migrator{
		ledger:         deps.Ledger,
		services:       deps.Services,
		dataRoot:       deps.DataRoot,
		syncer:         deps.Syncer,
		gate:           deps.Gate,
		logger:         logging.NewComponentLogger(deps.Logger, "migrate"),
		skipBelow:      sync.SkipBelowBytes,
		volumeOf:       fileutil.VolumeOf,
		dirSize:        fileutil.DirSize,
		copied:         fileutil.CopiedBytes,
		mirror:         fileutil.MirrorDirectory,
		now:            time.Now,
		verifyAttempts: 5,
		verifyDelay:    2 * time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Migrate runs the remaining steps of res and reports the outcome.
func (m *Migrator) Migrate(ctx context.Context, res config.Resource) Result {
	started := m.now()
	ctx = logging.WithResource(ctx, res.Name)
	logger := logging.WithContext(ctx, m.logger)

	outcome, detail, err := m.migrate(ctx, logger, res)
	result := Result{
		Resource:    res.Name,
		Source:      res.Source,
		Destination: res.Destination,
		Outcome:     outcome,
		Err:         err,
		Detail:      detail,
		Duration:    m.now().Sub(started),
	}

	switch {
	case err != nil:
		logging.ErrorWithContext(logger, "resource failed", "migration_"+Kind(err),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, Hint(err)),
		)
	default:
		logger.Info("resource finished",
			logging.String("outcome", string(outcome)),
			logging.Duration("duration", result.Duration.Round(time.Second)),
		)
	}
	return result
}

func (m *Migrator) migrate(ctx context.Context, logger *slog.Logger, res config.Resource) (Outcome, string, error) {
	if err := ctx.Err(); err != nil {
		return OutcomeFailed, "", wrap(ErrInterrupted, res.Name, "", "not started", err)
	}

	complete := stepOf(res, StepComplete)
	if m.ledger.Has(complete) {
		logger.Info("resource already complete", logging.String(logging.FieldStep, complete.StepID()))
		return OutcomeSkipped, "already complete", nil
	}

	// Live introspection only applies before the first step. Once a step is
	// recorded the ledger is the authority.
	if !m.started(res) {
		if evidence, ok := m.alreadyMigrated(ctx, logger, res); ok {
			logger.Info("resource already at destination", logging.String("evidence", evidence))
			if err := m.record(res.Name, complete); err != nil {
				return OutcomeFailed, "", err
			}
			return OutcomeSkipped, evidence, nil
		}
	}

	pending, err := m.checkSpace(ctx, logger, res)
	if err != nil {
		return OutcomeFailed, "", err
	}

	prompt := fmt.Sprintf("Migrate %s from %s to %s (%s to copy)?",
		res.Name, res.Source, res.Destination, sizeLabel(pending))
	approved, err := m.gate.Confirm(ctx, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return OutcomeFailed, "", wrap(ErrInterrupted, res.Name, "confirm", "", err)
		}
		return OutcomeFailed, "", wrap(ErrStepExecution, res.Name, "confirm", "read answer", err)
	}
	if !approved {
		logger.Info("resource deferred by operator")
		return OutcomeDeferred, "declined by operator", nil
	}

	for _, step := range Plan(res) {
		if err := m.runStep(ctx, logger, res, step); err != nil {
			return OutcomeFailed, "", err
		}
	}
	return OutcomeCompleted, "", nil
}

// started reports whether any step of res is already in the ledger.
func (m *Migrator) started(res config.Resource) bool {
	for _, step := range Plan(res) {
		if m.ledger.Has(step) {
			return true
		}
	}
	return false
}

// alreadyMigrated asks the live system whether the data already lives at the
// destination.
func (m *Migrator) alreadyMigrated(ctx context.Context, logger *slog.Logger, res config.Resource) (string, bool) {
	if len(res.DataRootCommand) > 0 && m.dataRoot != nil {
		root, err := m.dataRoot.DataRoot(ctx, res.DataRootCommand)
		switch {
		case err != nil:
			logger.Debug("data root probe unavailable", logging.Error(err))
		case fileutil.SamePath(root, res.Destination):
			return "service reports data root " + root, true
		default:
			logger.Debug("service reports data root", logging.String("data_root", root))
		}
	}
	linked, err := fileutil.SymlinkTo(res.Source, res.Destination)
	if err != nil {
		logger.Debug("source link inspection failed", logging.Error(err))
		return "", false
	}
	if linked {
		return res.Source + " links to " + res.Destination, true
	}
	return "", false
}

type volumeNeed struct {
	volume fileutil.Volume
	bytes  int64
	dests  []string
}

// checkSpace refuses to start when a destination filesystem cannot hold the
// data still to be copied plus the resource's headroom. It returns the bytes
// left to copy.
func (m *Migrator) checkSpace(ctx context.Context, logger *slog.Logger, res config.Resource) (int64, error) {
	needs := map[uint64]*volumeNeed{}
	var total int64
	for _, cp := range res.Copies() {
		if m.ledger.Has(copyStep(res, cp)) {
			continue
		}
		srcBytes, err := m.dirSize(ctx, cp.Source)
		if err != nil {
			return 0, m.guardError(ctx, res, "measure source", err)
		}
		dstBytes, err := m.copied(ctx, cp.Source, cp.Destination)
		if err != nil {
			return 0, m.guardError(ctx, res, "measure destination", err)
		}
		remaining := srcBytes - dstBytes
		if remaining < 0 {
			remaining = 0
		}
		logger.Info("measured copy",
			logging.String("copy", cp.Label()),
			logging.Bytes("source_size", srcBytes),
			logging.Bytes("already_at_destination", dstBytes),
		)

		vol, err := m.volumeOf(cp.Destination)
		if err != nil {
			return 0, m.guardError(ctx, res, "inspect destination", err)
		}
		need, ok := needs[vol.Device]
		if !ok {
			need = &volumeNeed{volume: vol, bytes: res.MinFreeBytes}
			needs[vol.Device] = need
		}
		need.bytes += remaining
		need.dests = append(need.dests, cp.Destination)
		total += remaining
	}

	devices := make([]uint64, 0, len(needs))
	for dev := range needs {
		devices = append(devices, dev)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i] < devices[j] })
	for _, dev := range devices {
		need := needs[dev]
		if need.bytes > 0 && uint64(need.bytes) > need.volume.Free {
			return 0, wrap(ErrPrecondition, res.Name, "space", fmt.Sprintf(
				"insufficient space for %v: need %s (including %s headroom), %s free on %s",
				need.dests,
				sizeLabel(need.bytes),
				sizeLabel(res.MinFreeBytes),
				humanize.IBytes(need.volume.Free),
				need.volume.Path,
			), nil)
		}
		logger.Info("space check passed",
			logging.String("filesystem", need.volume.Path),
			logging.Bytes("required", need.bytes),
			logging.String("free", humanize.IBytes(need.volume.Free)),
		)
	}
	return total, nil
}

func (m *Migrator) guardError(ctx context.Context, res config.Resource, message string, err error) error {
	if ctx.Err() != nil {
		return wrap(ErrInterrupted, res.Name, "space", message, err)
	}
	return wrap(ErrPrecondition, res.Name, "space", message, err)
}

// runStep executes step unless the ledger already has it, then records it.
// A step that fails or observes cancellation is not recorded.
func (m *Migrator) runStep(ctx context.Context, logger *slog.Logger, res config.Resource, step Step) error {
	id, err := step.ID()
	if err != nil {
		return wrap(ErrConfig, res.Name, "", "invalid step", err)
	}
	stepLogger := logger.With(logging.String(logging.FieldStep, id))
	if m.ledger.Has(step) {
		stepLogger.Info("step already done, skipping")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return wrap(ErrInterrupted, res.Name, id, "stopped before step", err)
	}

	started := m.now()
	stepLogger.Info("step started")
	if err := m.execute(ctx, stepLogger, res, step); err != nil {
		if ctx.Err() != nil {
			return wrap(ErrInterrupted, res.Name, id, "step cancelled", err)
		}
		if marked(err) {
			return err
		}
		return wrap(ErrStepExecution, res.Name, id, "", err)
	}
	if err := ctx.Err(); err != nil {
		stepLogger.Warn("interrupted before step could be recorded; it will run again on resume")
		return wrap(ErrInterrupted, res.Name, id, "step not recorded", err)
	}
	if err := m.record(res.Name, step); err != nil {
		return err
	}
	stepLogger.Info("step finished", logging.Duration("duration", m.now().Sub(started).Round(time.Millisecond)))
	return nil
}

func (m *Migrator) record(resource string, step Step) error {
	if err := m.ledger.Record(step); err != nil {
		return wrap(ErrStepExecution, resource, step.StepID(), "record step", err)
	}
	return nil
}

func (m *Migrator) execute(ctx context.Context, logger *slog.Logger, res config.Resource, step Step) error {
	switch step.Kind {
	case StepServicesStopped:
		if len(res.Services) == 0 {
			logger.Info("no services to stop")
			return nil
		}
		return m.services.Stop(ctx, res.Services)
	case StepConfigUpdated:
		return m.updateConfig(logger, res)
	case StepDataCopied:
		cp, ok := copyNamed(res, step.Copy)
		if !ok {
			return wrap(ErrConfig, res.Name, step.StepID(), fmt.Sprintf("no copy named %q", step.Copy), nil)
		}
		return m.copyData(ctx, logger, res, cp)
	case StepServicesStarted:
		return m.restartAndVerify(ctx, logger, res)
	case StepComplete:
		return nil
	default:
		return fmt.Errorf("unknown step kind %d", int(step.Kind))
	}
}

func (m *Migrator) updateConfig(logger *slog.Logger, res config.Resource) error {
	if res.Config.Kind == config.RewriteNone {
		logger.Info("no service configuration to rewrite")
		return nil
	}
	result, err := svcconfig.Apply(res.Config, res.Destination, m.now())
	if err != nil {
		return err
	}
	if !result.Changed {
		logger.Info("service configuration already points at destination",
			logging.String("path", res.Config.Path),
			logging.String("key", res.Config.Key),
		)
		return nil
	}
	attrs := []logging.Attr{
		logging.String("path", res.Config.Path),
		logging.String("key", res.Config.Key),
		logging.String("value", res.Destination),
	}
	if result.Previous != "" {
		attrs = append(attrs, logging.String("previous", result.Previous))
	}
	if result.Backup != "" {
		attrs = append(attrs, logging.String("backup", result.Backup))
	}
	logger.Info("service configuration updated", logging.Args(attrs...)...)
	return nil
}

func (m *Migrator) copyData(ctx context.Context, logger *slog.Logger, res config.Resource, cp config.Copy) error {
	size, err := m.dirSize(ctx, cp.Source)
	if err != nil {
		return err
	}
	logger.Info("source data measured",
		logging.String("copy", cp.Label()),
		logging.String("source", cp.Source),
		logging.Bytes("size", size),
	)

	exists, err := isDir(cp.Source)
	if err != nil {
		return err
	}
	if exists {
		if err := m.mirror(cp.Source, cp.Destination); err != nil {
			return err
		}
	}
	if size < m.skipBelow {
		logger.Info("nothing meaningful to copy, skipping transfer",
			logging.String("copy", cp.Label()),
			logging.Bytes("threshold", m.skipBelow),
		)
		return nil
	}
	return m.syncer.Sync(ctx, res.Name+"/"+cp.Label(), cp.Source, cp.Destination)
}

func (m *Migrator) restartAndVerify(ctx context.Context, logger *slog.Logger, res config.Resource) error {
	if len(res.Services) > 0 {
		if err := m.services.Start(ctx, res.Services); err != nil {
			return err
		}
	}

	var lastErr error
	for attempt := 1; attempt <= m.verifyAttempts; attempt++ {
		lastErr = m.verify(ctx, res)
		if lastErr == nil {
			logger.Info("post-start check passed", logging.Int("attempt", attempt))
			return nil
		}
		if attempt == m.verifyAttempts {
			break
		}
		logger.Debug("post-start check not yet satisfied", logging.Int("attempt", attempt), logging.Error(lastErr))
		select {
		case <-time.After(m.verifyDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

func (m *Migrator) verify(ctx context.Context, res config.Resource) error {
	id := stepOf(res, StepServicesStarted).StepID()
	if len(res.DataRootCommand) > 0 && m.dataRoot != nil {
		root, err := m.dataRoot.DataRoot(ctx, res.DataRootCommand)
		if err != nil {
			return wrap(ErrVerification, res.Name, id, "query data root", err)
		}
		if !fileutil.SamePath(root, res.Destination) {
			return wrap(ErrVerification, res.Name, id,
				fmt.Sprintf("service reports data root %s, expected %s", root, res.Destination), nil)
		}
		return nil
	}
	if len(res.Services) == 0 {
		return nil
	}
	active, err := m.services.Active(ctx, res.Services)
	if err != nil {
		return wrap(ErrVerification, res.Name, id, "query service state", err)
	}
	if !active {
		return wrap(ErrVerification, res.Name, id, fmt.Sprintf("services %v are not active", res.Services), nil)
	}
	return nil
}

func copyNamed(res config.Resource, name string) (config.Copy, bool) {
	for _, cp := range res.Copies() {
		if cp.Name == name {
			return cp, true
		}
	}
	return config.Copy{}, false
}

func sizeLabel(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}

func isDir(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

func marked(err error) bool {
	for _, marker := range []error{ErrConfig, ErrPrecondition, ErrStepExecution, ErrVerification, ErrInterrupted} {
		if errors.Is(err, marker) {
			return true
		}
	}
	return false
}
