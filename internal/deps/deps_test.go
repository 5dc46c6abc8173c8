package deps

import (
	"os"
	"path/filepath"
	"testing"

	"relocate/internal/config"
)

func TestProbeResolvesAndReportsMissing(t *testing.T) {
	stub := filepath.Join(t.TempDir(), "rsync")
	if err := os.WriteFile(stub, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	got := Probe([]Requirement{
		{Name: "rsync", Command: stub},
		{Name: "ghost", Command: "relocate-no-such-binary"},
		{Name: "blank", Command: "  ", Optional: true},
	})

	if !got[0].Available() || got[0].Path != stub || got[0].Detail != "" {
		t.Fatalf("expected stub to resolve, got %+v", got[0])
	}
	if got[1].Available() || !got[1].Blocking() || got[1].Detail == "" {
		t.Fatalf("expected blocking miss with detail, got %+v", got[1])
	}
	if got[2].Blocking() || got[2].Detail != "command not configured" {
		t.Fatalf("optional blank command should not block, got %+v", got[2])
	}
}

func TestRequirementsListsEachProbeOnce(t *testing.T) {
	cfg := config.Default()
	cfg.Resources = []config.Resource{
		{Name: "docker", DataRootCommand: []string{"docker", "info"}},
		{Name: "docker-rootless", DataRootCommand: []string{"docker", "info"}},
		{Name: "plain"},
	}

	reqs := Requirements(&cfg)
	if len(reqs) != 2 {
		t.Fatalf("expected rsync plus one probe, got %+v", reqs)
	}
	if reqs[0].Command != "rsync" || reqs[0].Optional {
		t.Fatalf("expected required rsync first, got %+v", reqs[0])
	}
	if reqs[1].Command != "docker" || !reqs[1].Optional {
		t.Fatalf("expected optional docker probe, got %+v", reqs[1])
	}
	if Requirements(nil) != nil {
		t.Fatal("nil config has no requirements")
	}
}
