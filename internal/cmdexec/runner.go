package cmdexec

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// Runner abstracts command execution for testability.
type Runner interface {
	// Run streams every stdout and stderr line to onLine until the command exits.
	Run(ctx context.Context, binary string, args []string, onLine func(string)) error
	// Output runs the command and returns its trimmed stdout.
	Output(ctx context.Context, binary string, args []string) (string, error)
}

// ExitError describes a command that ran and exited unsuccessfully.
type ExitError struct {
	Binary   string
	ExitCode int
	Tail     []string
	Err      error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Binary, e.ExitCode)
	if len(e.Tail) > 0 {
		msg += ": " + strings.Join(e.Tail, " | ")
	}
	return msg
}

func (e *ExitError) Unwrap() error { return e.Err }

const (
	tailLines = 5
	// waitDelay bounds how long a cancelled command may take to exit after
	// receiving SIGINT before it is killed.
	waitDelay = 30 * time.Second
)

// OSRunner executes commands on the host.
type OSRunner struct{}

// New returns the host command runner.
func New() OSRunner {
	return OSRunner{}
}

func command(ctx context.Context, binary string, args []string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	// Cancellation asks the child to stop so it can keep partial progress.
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = waitDelay
	return cmd
}

// Run implements Runner.
func (OSRunner) Run(ctx context.Context, binary string, args []string, onLine func(string)) error {
	cmd := command(ctx, binary, args)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", binary, err)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		scanErr error
		once    sync.Once
		tail    []string
	)

	forward := func(line string) {
		mu.Lock()
		defer mu.Unlock()
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			tail = append(tail, trimmed)
			if len(tail) > tailLines {
				tail = tail[1:]
			}
		}
		if onLine != nil {
			onLine(line)
		}
	}

	scan := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		scanner.Split(ScanLinesOrCR)
		for scanner.Scan() {
			forward(scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() {
				scanErr = err
			})
		}
	}

	wg.Add(2)
	go scan(stdout)
	go scan(stderr)
	wg.Wait()

	if scanErr != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return fmt.Errorf("scan %s output: %w", binary, scanErr)
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s cancelled: %w", binary, ctx.Err())
		}
		return exitError(binary, err, tail)
	}
	return nil
}

// Output implements Runner.
func (OSRunner) Output(ctx context.Context, binary string, args []string) (string, error) {
	cmd := command(ctx, binary, args)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%s cancelled: %w", binary, ctx.Err())
		}
		var tail []string
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			tail = lastLines(msg, tailLines)
		}
		return "", exitError(binary, err, tail)
	}
	return strings.TrimSpace(stdout.String()), nil
}

func exitError(binary string, err error, tail []string) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Binary: binary, ExitCode: exitErr.ExitCode(), Tail: tail, Err: err}
	}
	return fmt.Errorf("run %s: %w", binary, err)
}

func lastLines(text string, n int) []string {
	lines := strings.Split(text, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}

// ScanLinesOrCR is a bufio.SplitFunc that treats both '\n' and '\r' as line
// terminators, which is how progress meters redraw a single terminal line.
func ScanLinesOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
