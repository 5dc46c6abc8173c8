package main

import (
	"testing"
)

func TestStatusShowsProgressPerResource(t *testing.T) {
	env := setupCLITestEnv(t)
	writeLedger(t, env.cfg.Paths.Ledger,
		"docker_stopped",
		"docker_config_updated",
		"containerd_complete",
		"registry_stopped",
	)

	out, _, err := runCLI(t, env, "status", "--no-checks")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "(4 entries)")
	requireContains(t, out, "in progress")
	requireContains(t, out, "2/5")
	requireContains(t, out, "data copied")
	requireContains(t, out, "complete")
	requireContains(t, out, "Unrecognized ledger entries (ignored): registry_stopped")
	requireNotContains(t, out, "Host checks")
}

func TestStatusRunsHostChecks(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "not started")
	requireContains(t, out, "Host checks")
	requireContains(t, out, "rsync")
}

func TestStatusIncludesLastOutcome(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, env, "--yes"); err != nil {
		t.Fatalf("run: %v", err)
	}

	out, _, err := runCLI(t, env, "status", "--no-checks")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "5/5")
	requireContains(t, out, "Completed")
}
