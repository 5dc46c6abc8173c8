package signals

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"relocate/internal/logging"
)

// ExitCodeInterrupted is the process exit status after SIGINT or SIGTERM.
const ExitCodeInterrupted = 130

// ErrInterrupted reports that the run stopped because of an operator signal.
var ErrInterrupted = errors.New("interrupted")

// Governor owns the process signal dispositions for the duration of a run.
//
// SIGHUP is ignored so a dropped SSH session or closed terminal does not end
// the process; the setting is inherited by child processes. The first SIGINT
// or SIGTERM cancels the run context and work stops at the next step
// boundary. A second one exits immediately.
type Governor struct {
	cancel context.CancelFunc
	sigs   chan os.Signal
	done   chan struct{}
	logger *slog.Logger
	exit   func(int)

	mu       sync.Mutex
	received os.Signal
	stopOnce sync.Once
}

// Option customizes a Governor.
type Option func(*Governor)

// WithExit replaces os.Exit for the second-signal path.
func WithExit(fn func(int)) Option {
	return func(g *Governor) {
		g.exit = fn
	}
}

// Install configures signal handling and returns the run context.
func Install(parent context.Context, logger *slog.Logger, opts ...Option) (*Governor, context.Context) {
	ctx, cancel := context.WithCancel(parent)
	g := &Governor{
		cancel: cancel,
		sigs:   make(chan os.Signal, 2),
		done:   make(chan struct{}),
		logger: logging.NewComponentLogger(logger, "signals"),
		exit:   os.Exit,
	}
	for _, opt := range opts {
		opt(g)
	}

	signal.Ignore(syscall.SIGHUP)
	signal.Notify(g.sigs, syscall.SIGINT, syscall.SIGTERM)
	go g.watch()
	return g, ctx
}

func (g *Governor) watch() {
	for {
		select {
		case <-g.done:
			return
		case sig := <-g.sigs:
			g.mu.Lock()
			first := g.received == nil
			if first {
				g.received = sig
			}
			g.mu.Unlock()

			if first {
				g.logger.Warn("interrupt received; stopping after the current step",
					logging.String("signal", sig.String()),
				)
				g.cancel()
				continue
			}
			g.logger.Error("second interrupt received; exiting now",
				logging.String("signal", sig.String()),
				logging.String(logging.FieldErrorHint, "completed steps are already recorded in the ledger"),
			)
			g.exit(ExitCodeInterrupted)
			return
		}
	}
}

// Interrupted reports whether SIGINT or SIGTERM has been received.
func (g *Governor) Interrupted() bool {
	return g.Signal() != nil
}

// Signal returns the first interrupting signal, or nil.
func (g *Governor) Signal() os.Signal {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.received
}

// Stop restores default SIGINT/SIGTERM handling and releases the context.
// SIGHUP stays ignored until the process exits.
func (g *Governor) Stop() {
	g.stopOnce.Do(func() {
		signal.Stop(g.sigs)
		close(g.done)
		g.cancel()
	})
}
