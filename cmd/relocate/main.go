package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"relocate/internal/migration"
	"relocate/internal/signals"
)

func main() {
	cmd := newRootCommand()
	err := cmd.Execute()
	if err != nil && !interrupted(err) {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case interrupted(err):
		return signals.ExitCodeInterrupted
	default:
		return 1
	}
}

func interrupted(err error) bool {
	return errors.Is(err, signals.ErrInterrupted) ||
		errors.Is(err, migration.ErrInterrupted) ||
		errors.Is(err, context.Canceled)
}
