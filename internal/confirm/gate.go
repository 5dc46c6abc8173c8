package confirm

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/mattn/go-isatty"

	"relocate/internal/logging"
)

// Gate decides whether a destructive migration may proceed.
//
// Policy, first match wins: auto-approval, then a non-interactive default of
// yes, then an interactive prompt where only y/yes approves.
type Gate struct {
	autoApprove bool
	reader      *bufio.Reader
	input       io.Reader
	output      io.Writer
	interactive func() bool
	logger      *slog.Logger
}

// Option customizes a Gate.
type Option func(*Gate)

// WithInteractive overrides terminal detection on the input.
func WithInteractive(fn func() bool) Option {
	return func(g *Gate) {
		g.interactive = fn
	}
}

// New constructs a gate reading answers from input and writing prompts to output.
func New(autoApprove bool, input io.Reader, output io.Writer, logger *slog.Logger, opts ...Option) *Gate {
	g := &Gate{
		autoApprove: autoApprove,
		input:       input,
		output:      output,
		logger:      logging.NewComponentLogger(logger, "confirm"),
	}
	if input != nil {
		g.reader = bufio.NewReader(input)
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.interactive == nil {
		g.interactive = func() bool { return isTerminal(g.input) }
	}
	return g
}

// Confirm applies the policy to prompt. A declined prompt returns false with
// a nil error; only I/O failures and cancellation return errors.
func (g *Gate) Confirm(ctx context.Context, prompt string) (bool, error) {
	if g.autoApprove {
		g.logger.Info("confirmation auto-approved", logging.String("prompt", prompt))
		return true, nil
	}
	if g.reader == nil || !g.interactive() {
		g.logger.Info("non-interactive input, defaulting to yes", logging.String("prompt", prompt))
		return true, nil
	}

	if g.output != nil {
		if _, err := io.WriteString(g.output, prompt+" [y/N]: "); err != nil {
			return false, err
		}
	}

	type answer struct {
		text string
		err  error
	}
	answers := make(chan answer, 1)
	go func() {
		text, err := g.reader.ReadString('\n')
		answers <- answer{text: text, err: err}
	}()

	var got answer
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case got = <-answers:
	}
	if got.err != nil && !errors.Is(got.err, io.EOF) {
		return false, got.err
	}

	response := strings.ToLower(strings.TrimSpace(got.text))
	approved := response == "y" || response == "yes"
	if approved {
		g.logger.Info("operator confirmed", logging.String("prompt", prompt))
	} else {
		g.logger.Info("operator declined", logging.String("prompt", prompt), logging.String("response", response))
	}
	return approved, nil
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
