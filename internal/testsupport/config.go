package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"relocate/internal/config"
)

// ConfigOption adjusts a fixture config before it is returned.
type ConfigOption func(*fixture)

type fixture struct {
	t    testing.TB
	root string
	cfg  config.Config
}

func (f *fixture) path(parts ...string) string {
	return filepath.Join(append([]string{f.root}, parts...)...)
}

func (f *fixture) mkdir(dir string) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		f.t.Fatalf("create %s: %v", dir, err)
	}
}

// NewConfig returns defaults with every state path moved into a fresh temp
// directory. Root privileges are not required so tests run unprivileged.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	f := &fixture{t: t, root: t.TempDir(), cfg: config.Default()}
	f.cfg.Paths.Ledger = f.path("state", "ledger")
	f.cfg.Paths.HistoryDB = f.path("state", "history.db")
	f.cfg.Paths.LogDir = f.path("logs")
	f.cfg.Privilege.RequireRoot = false

	for _, opt := range opts {
		opt(f)
	}
	return &f.cfg
}

// BaseDir returns the temp directory that holds the fixture's paths.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(filepath.Dir(cfg.Paths.Ledger))
}

// WithResource adds a resource moving <base>/old/<name> to <base>/new/<name>.
// The source is created empty; the destination is left to the migration.
func WithResource(name string, services ...string) ConfigOption {
	return func(f *fixture) {
		res := config.Resource{
			Name:        name,
			Source:      f.path("old", name),
			Destination: f.path("new", name),
			Services:    services,
			Config:      config.ConfigRewrite{Kind: config.RewriteNone},
		}
		f.mkdir(res.Source)
		f.cfg.Resources = append(f.cfg.Resources, res)
	}
}

// WithStubbedBinaries puts no-op executables for names (rsync by default)
// first on PATH for the duration of the test.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(f *fixture) {
		if len(names) == 0 {
			names = []string{"rsync"}
		}
		bin := f.path("bin")
		f.mkdir(bin)
		for _, name := range names {
			if err := os.WriteFile(filepath.Join(bin, name), []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
				f.t.Fatalf("stub %s: %v", name, err)
			}
		}
		f.t.Setenv("PATH", strings.Join([]string{bin, os.Getenv("PATH")}, string(os.PathListSeparator)))
	}
}
