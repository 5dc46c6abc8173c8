package svcctl

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/coreos/go-systemd/v22/dbus"
	"github.com/coreos/go-systemd/v22/util"

	"relocate/internal/logging"
)

// DBusAPI is the subset of the systemd D-Bus connection relocate uses.
type DBusAPI interface {
	ListUnitsByNamesContext(ctx context.Context, units []string) ([]dbus.UnitStatus, error)
	StartUnitContext(ctx context.Context, name string, mode string, ch chan<- string) (int, error)
	StopUnitContext(ctx context.Context, name string, mode string, ch chan<- string) (int, error)
	Close()
}

// DBusFactory opens a connection to systemd.
type DBusFactory func(ctx context.Context) (DBusAPI, error)

func systemBus(ctx context.Context) (DBusAPI, error) {
	return dbus.NewWithContext(ctx)
}

// IsSystemdRunning reports whether systemd is the local init system.
func IsSystemdRunning() bool {
	return util.IsRunningSystemd()
}

// Systemd controls units through the systemd D-Bus API.
type Systemd struct {
	newConn DBusFactory
	logger  *slog.Logger
}

// Option customizes Systemd.
type Option func(*Systemd)

// WithDBus injects a connection factory (primarily for tests).
func WithDBus(factory DBusFactory) Option {
	return func(s *Systemd) {
		s.newConn = factory
	}
}

// NewSystemd returns a controller for the system bus.
func NewSystemd(logger *slog.Logger, opts ...Option) *Systemd {
	s := &Systemd{
		newConn: systemBus,
		logger:  logging.NewComponentLogger(logger, "systemd"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// unitState is the subset of dbus.UnitStatus used for decisions.
type unitState struct {
	name        string
	loadState   string
	activeState string
}

func (u unitState) running() bool {
	return u.loadState == "loaded" && (u.activeState == "active" || u.activeState == "activating" || u.activeState == "reloading")
}

func (s *Systemd) states(ctx context.Context, conn DBusAPI, units []string) (map[string]unitState, error) {
	statuses, err := conn.ListUnitsByNamesContext(ctx, units)
	if err != nil {
		return nil, fmt.Errorf("query units from dbus: %w", err)
	}
	out := make(map[string]unitState, len(statuses))
	for _, st := range statuses {
		out[st.Name] = unitState{name: st.Name, loadState: st.LoadState, activeState: st.ActiveState}
	}
	return out, nil
}

// Stop stops units in order. Units that are not running are skipped.
//
// Jobs are not abandoned on cancellation: systemd keeps executing a queued
// job, so the call waits for it to settle.
func (s *Systemd) Stop(ctx context.Context, units []string) error {
	if len(units) == 0 {
		return nil
	}
	ctx = context.WithoutCancel(ctx)
	conn, err := s.newConn(ctx)
	if err != nil {
		return fmt.Errorf("connect to systemd: %w", err)
	}
	defer conn.Close()

	states, err := s.states(ctx, conn, units)
	if err != nil {
		return err
	}
	for _, unit := range units {
		if st, ok := states[unit]; !ok || !st.running() {
			s.logger.Info("service already stopped", logging.String("unit", unit))
			continue
		}
		s.logger.Info("stopping service", logging.String("unit", unit))
		if err := s.runJob(ctx, "stop", unit, conn.StopUnitContext); err != nil {
			return err
		}
	}
	return nil
}

// Start starts units in reverse order so dependents come up after what they
// were stopped before. Units that are already running are skipped.
func (s *Systemd) Start(ctx context.Context, units []string) error {
	if len(units) == 0 {
		return nil
	}
	ctx = context.WithoutCancel(ctx)
	conn, err := s.newConn(ctx)
	if err != nil {
		return fmt.Errorf("connect to systemd: %w", err)
	}
	defer conn.Close()

	states, err := s.states(ctx, conn, units)
	if err != nil {
		return err
	}
	for i := len(units) - 1; i >= 0; i-- {
		unit := units[i]
		st, ok := states[unit]
		if ok && st.running() {
			s.logger.Info("service already running", logging.String("unit", unit))
			continue
		}
		if !ok || st.loadState == "not-found" {
			return fmt.Errorf("start %s: unit not found", unit)
		}
		s.logger.Info("starting service", logging.String("unit", unit))
		if err := s.runJob(ctx, "start", unit, conn.StartUnitContext); err != nil {
			return err
		}
	}
	return nil
}

// Active reports whether every unit is loaded and active.
func (s *Systemd) Active(ctx context.Context, units []string) (bool, error) {
	if len(units) == 0 {
		return true, nil
	}
	conn, err := s.newConn(ctx)
	if err != nil {
		return false, fmt.Errorf("connect to systemd: %w", err)
	}
	defer conn.Close()

	states, err := s.states(ctx, conn, units)
	if err != nil {
		return false, err
	}
	for _, unit := range units {
		st, ok := states[unit]
		if !ok || st.loadState != "loaded" || st.activeState != "active" {
			s.logger.Debug("service not active",
				logging.String("unit", unit),
				logging.String("load_state", st.loadState),
				logging.String("active_state", st.activeState),
			)
			return false, nil
		}
	}
	return true, nil
}

type jobFunc func(ctx context.Context, name string, mode string, ch chan<- string) (int, error)

func (s *Systemd) runJob(ctx context.Context, op, unit string, job jobFunc) error {
	statusCh := make(chan string, 1)
	if _, err := job(ctx, unit, "replace", statusCh); err != nil {
		return fmt.Errorf("%s %s: dbus request failed: %w", op, unit, err)
	}
	status := <-statusCh
	if status != "done" {
		return fmt.Errorf("%s %s: job finished with status %q", op, unit, status)
	}
	return nil
}
