package main

import (
	"testing"
)

func TestLogsShowsRecordsOfLastRun(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, env, "--yes"); err != nil {
		t.Fatalf("run: %v", err)
	}

	out, _, err := runCLI(t, env, "logs", "--lines", "500", "--resource", "containerd")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "[containerd]")
	requireNotContains(t, out, "[docker]")

	out, _, err = runCLI(t, env, "logs", "-n", "1")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "migration run finished")
}
