package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"relocate/internal/cmdexec"
	"relocate/internal/config"
	"relocate/internal/migration"
	"relocate/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	events     *testsupport.Events
	services   *testsupport.FakeServices
	syncer     *testsupport.FakeSyncer
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t,
		testsupport.WithStubbedBinaries(),
		testsupport.WithResource("docker", "docker.service"),
		testsupport.WithResource("containerd", "containerd.service"),
	)
	for _, res := range cfg.Resources {
		testsupport.WriteFile(t, filepath.Join(res.Source, "layer.tar"), 64<<10)
	}

	configPath := filepath.Join(testsupport.BaseDir(cfg), "relocate.toml")
	writeTestConfig(t, configPath, cfg)

	events := &testsupport.Events{}
	return &cliTestEnv{
		cfg:        cfg,
		configPath: configPath,
		events:     events,
		services:   &testsupport.FakeServices{Events: events},
		syncer:     &testsupport.FakeSyncer{Events: events},
	}
}

func (e *cliTestEnv) host() hostDeps {
	return hostDeps{
		services: func(*slog.Logger) migration.ServiceController { return e.services },
		dataRoot: func(cmdexec.Runner) migration.DataRootReporter { return &testsupport.FakeDataRoot{} },
		syncer: func(*config.Config, cmdexec.Runner, *slog.Logger) migration.Syncer {
			return e.syncer
		},
		systemd: func() bool { return true },
	}
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommandWithHost(env.host())
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func requireNotContains(t *testing.T, output, substr string) {
	t.Helper()
	if strings.Contains(output, substr) {
		t.Fatalf("expected %q not to contain %q", output, substr)
	}
}
