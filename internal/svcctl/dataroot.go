package svcctl

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"relocate/internal/cmdexec"
)

// ErrNoDataRootCommand is returned when a resource has no probe configured.
var ErrNoDataRootCommand = errors.New("no data root command configured")

// DataRootProbe asks a running service where it keeps its data by running a
// configured command and reading the path it prints.
type DataRootProbe struct {
	runner cmdexec.Runner
}

// NewDataRootProbe returns a probe that executes commands through runner.
func NewDataRootProbe(runner cmdexec.Runner) *DataRootProbe {
	return &DataRootProbe{runner: runner}
}

// DataRoot runs command and returns the cleaned absolute path from the last
// non-empty line of its output.
func (p *DataRootProbe) DataRoot(ctx context.Context, command []string) (string, error) {
	if len(command) == 0 {
		return "", ErrNoDataRootCommand
	}
	out, err := p.runner.Output(ctx, command[0], command[1:])
	if err != nil {
		return "", fmt.Errorf("query data root: %w", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	value := strings.TrimSpace(lines[len(lines)-1])
	value = strings.Trim(value, `"'`)
	if value == "" || !filepath.IsAbs(value) {
		return "", fmt.Errorf("query data root: %q is not an absolute path", value)
	}
	return filepath.Clean(value), nil
}
