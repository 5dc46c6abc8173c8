package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

type flakyWriter struct {
	failed bool
	writes int
}

func (w *flakyWriter) Write(p []byte) (int, error) {
	w.writes++
	if w.failed {
		return 0, errors.New("write /dev/pts/3: input/output error")
	}
	return len(p), nil
}

func newTestTee(durable *bytes.Buffer, console *flakyWriter, level slog.Level) *slog.Logger {
	return slog.New(newTeeHandler(
		newLineHandler(durable, level, false),
		newLineHandler(console, level, false),
	))
}

func TestNewTeeHandlerWithoutSinks(t *testing.T) {
	if newTeeHandler(nil, nil) != slog.DiscardHandler {
		t.Fatal("expected a discarding handler when no sink is configured")
	}
}

func TestNewTeeHandlerDurableOnly(t *testing.T) {
	durable := newLineHandler(&bytes.Buffer{}, slog.LevelInfo, false)
	if got := newTeeHandler(durable, nil); got != durable {
		t.Fatal("expected the durable handler to be used directly")
	}
}

func TestTeeHandlerWritesBothSinks(t *testing.T) {
	var durable bytes.Buffer
	console := &flakyWriter{}
	logger := newTestTee(&durable, console, slog.LevelInfo)

	logger.Info("step recorded", String(FieldStep, "docker_stopped"))
	if !strings.Contains(durable.String(), "step recorded step=docker_stopped") {
		t.Fatalf("durable sink missing record: %q", durable.String())
	}
	if console.writes != 1 {
		t.Fatalf("expected one console write, got %d", console.writes)
	}
}

func TestTeeHandlerDetachesConsoleAfterFailure(t *testing.T) {
	var durable bytes.Buffer
	console := &flakyWriter{}
	logger := newTestTee(&durable, console, slog.LevelInfo)
	derived := NewComponentLogger(logger, "migrate")

	logger.Info("before hangup")
	console.failed = true
	logger.Info("during hangup")
	derived.Info("after hangup")

	if console.writes != 2 {
		t.Fatalf("console should be tried once after failing, saw %d writes", console.writes)
	}
	for _, msg := range []string{"before hangup", "during hangup", "migrate: after hangup"} {
		if !strings.Contains(durable.String(), msg) {
			t.Fatalf("durable sink missing %q: %q", msg, durable.String())
		}
	}
}

func TestTeeHandlerEnabledFollowsLevel(t *testing.T) {
	var durable bytes.Buffer
	logger := newTestTee(&durable, &flakyWriter{}, slog.LevelInfo)
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("debug should be disabled at info level")
	}
	logger.Debug("hidden")
	if durable.Len() != 0 {
		t.Fatalf("expected no output, got %q", durable.String())
	}
}

func TestTeeHandlerWithGroupAppliesToBothSinks(t *testing.T) {
	var durable bytes.Buffer
	console := &flakyWriter{}
	logger := newTestTee(&durable, console, slog.LevelInfo).WithGroup("copy")

	logger.Info("progress", Int("percent", 40))
	if !strings.Contains(durable.String(), "copy.percent=40") {
		t.Fatalf("expected grouped attribute, got %q", durable.String())
	}
}
