package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"relocate/internal/runlock"
)

func writeLedger(t *testing.T, path string, ids ...string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir ledger dir: %v", err)
	}
	content := strings.Join(ids, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write ledger: %v", err)
	}
}

func TestLedgerShowListsEntries(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "ledger", "show")
	if err != nil {
		t.Fatalf("ledger show: %v", err)
	}
	requireContains(t, out, "No steps recorded")

	writeLedger(t, env.cfg.Paths.Ledger, "docker_stopped", "docker_config_updated")
	out, _, err = runCLI(t, env, "ledger", "show")
	if err != nil {
		t.Fatalf("ledger show: %v", err)
	}
	requireContains(t, out, "docker_stopped\ndocker_config_updated\n")
}

func TestLedgerClearRetiresFile(t *testing.T) {
	env := setupCLITestEnv(t)
	writeLedger(t, env.cfg.Paths.Ledger, "docker_stopped")

	out, _, err := runCLI(t, env, "ledger", "clear", "--yes")
	if err != nil {
		t.Fatalf("ledger clear: %v", err)
	}
	requireContains(t, out, "Ledger moved to "+env.cfg.Paths.Ledger+".cleared-")
	if _, err := os.Stat(env.cfg.Paths.Ledger); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected ledger to be moved away: %v", err)
	}

	out, _, err = runCLI(t, env, "ledger", "clear", "--yes")
	if err != nil {
		t.Fatalf("second clear: %v", err)
	}
	requireContains(t, out, "nothing to clear")
}

func TestLedgerClearRefusesWhileRunHoldsLock(t *testing.T) {
	env := setupCLITestEnv(t)
	writeLedger(t, env.cfg.Paths.Ledger, "docker_stopped")

	lock, err := runlock.Acquire(env.cfg.LockPath())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer lock.Release()

	_, _, err = runCLI(t, env, "ledger", "clear", "--yes")
	if !errors.Is(err, runlock.ErrHeld) {
		t.Fatalf("expected lock error, got %v", err)
	}
	if _, err := os.Stat(env.cfg.Paths.Ledger); err != nil {
		t.Fatalf("ledger must stay in place: %v", err)
	}
}

func TestIncompleteListsStartedResources(t *testing.T) {
	env := setupCLITestEnv(t)
	pending := incomplete(env.cfg, []string{"docker_stopped", "containerd_complete"})
	if len(pending) != 1 || pending[0] != "docker" {
		t.Fatalf("unexpected pending resources %v", pending)
	}
}
