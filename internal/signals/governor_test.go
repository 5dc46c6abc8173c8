package signals_test

import (
	"context"
	"os/signal"
	"syscall"
	"testing"
	"time"

	"relocate/internal/logging"
	"relocate/internal/signals"
)

func TestSIGHUPIsIgnored(t *testing.T) {
	gov, ctx := signals.Install(context.Background(), logging.NewNop())
	defer gov.Stop()

	if !signal.Ignored(syscall.SIGHUP) {
		t.Fatal("expected SIGHUP to be ignored")
	}
	if err := syscall.Kill(syscall.Getpid(), syscall.SIGHUP); err != nil {
		t.Fatalf("send SIGHUP: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if ctx.Err() != nil {
		t.Fatal("SIGHUP must not cancel the run")
	}
	if gov.Interrupted() {
		t.Fatal("SIGHUP must not count as an interrupt")
	}
}

func TestInterruptCancelsContext(t *testing.T) {
	exits := make(chan int, 1)
	gov, ctx := signals.Install(context.Background(), logging.NewNop(), signals.WithExit(func(code int) { exits <- code }))
	defer gov.Stop()

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGINT); err != nil {
		t.Fatalf("send SIGINT: %v", err)
	}
	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("expected SIGINT to cancel the context")
	}
	if !gov.Interrupted() || gov.Signal() != syscall.SIGINT {
		t.Fatalf("unexpected signal state: %v", gov.Signal())
	}

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatalf("send SIGTERM: %v", err)
	}
	select {
	case code := <-exits:
		if code != signals.ExitCodeInterrupted {
			t.Fatalf("unexpected exit code %d", code)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected second interrupt to exit")
	}
}

func TestStopReleasesContext(t *testing.T) {
	gov, ctx := signals.Install(context.Background(), logging.NewNop())
	gov.Stop()
	gov.Stop()
	if ctx.Err() == nil {
		t.Fatal("expected Stop to cancel the context")
	}
	if gov.Interrupted() {
		t.Fatal("Stop is not an interrupt")
	}
}
