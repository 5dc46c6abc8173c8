package confirm_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"relocate/internal/confirm"
	"relocate/internal/logging"
)

func interactive() bool { return true }

func TestAutoApproveSkipsPrompt(t *testing.T) {
	var out bytes.Buffer
	gate := confirm.New(true, strings.NewReader("no\n"), &out, logging.NewNop(), confirm.WithInteractive(interactive))

	ok, err := gate.Confirm(context.Background(), "Migrate docker?")
	if err != nil || !ok {
		t.Fatalf("expected auto approval, got %v %v", ok, err)
	}
	if out.Len() != 0 {
		t.Fatalf("expected no prompt, got %q", out.String())
	}
}

func TestNonInteractiveDefaultsToYes(t *testing.T) {
	var out, logs bytes.Buffer
	logger, err := logging.New(logging.Options{Console: &logs})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	// strings.Reader has no file descriptor, so it is never a terminal.
	gate := confirm.New(false, strings.NewReader(""), &out, logger)

	ok, err := gate.Confirm(context.Background(), "Migrate docker?")
	if err != nil || !ok {
		t.Fatalf("expected default yes, got %v %v", ok, err)
	}
	if out.Len() != 0 {
		t.Fatalf("expected no prompt, got %q", out.String())
	}
	if !strings.Contains(logs.String(), "non-interactive input, defaulting to yes") {
		t.Fatalf("expected fallback to be logged, got %q", logs.String())
	}
}

func TestInteractiveAnswers(t *testing.T) {
	cases := map[string]bool{
		"y\n":       true,
		"YES\n":     true,
		"  yes  \n": true,
		"n\n":       false,
		"\n":        false,
		"":          false,
		"yep\n":     false,
	}
	for input, want := range cases {
		var out bytes.Buffer
		gate := confirm.New(false, strings.NewReader(input), &out, logging.NewNop(), confirm.WithInteractive(interactive))
		got, err := gate.Confirm(context.Background(), "Migrate docker?")
		if err != nil {
			t.Fatalf("input %q: unexpected error %v", input, err)
		}
		if got != want {
			t.Fatalf("input %q: got %v want %v", input, got, want)
		}
		if !strings.Contains(out.String(), "Migrate docker? [y/N]: ") {
			t.Fatalf("input %q: prompt not written, got %q", input, out.String())
		}
	}
}

func TestCancelWhileWaiting(t *testing.T) {
	reader, writer := io.Pipe()
	defer writer.Close()
	gate := confirm.New(false, reader, io.Discard, logging.NewNop(), confirm.WithInteractive(interactive))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := gate.Confirm(ctx, "Migrate docker?")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}
