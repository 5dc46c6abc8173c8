package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the locations of durable state owned by relocate.
type Paths struct {
	Ledger    string `toml:"ledger"`
	LogDir    string `toml:"log_dir"`
	HistoryDB string `toml:"history_db"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Sync contains configuration for the bulk copy tool.
type Sync struct {
	Binary    string   `toml:"binary"`
	ExtraArgs []string `toml:"extra_args"`
	// SkipBelowBytes marks copies of smaller sources as done without running
	// the copy tool.
	SkipBelowBytes int64 `toml:"skip_below_bytes"`
}

// Notifications configures optional ntfy push messages about a run.
type Notifications struct {
	// NtfyTopic is the full topic URL. Empty disables notifications.
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Privilege controls the effective-user check performed before any work.
type Privilege struct {
	RequireRoot bool `toml:"require_root"`
}

// Config rewrite kinds.
const (
	RewriteNone = "none"
	RewriteJSON = "json"
	RewriteTOML = "toml"
)

// ConfigRewrite names the service configuration key that must point at the
// destination once the data has moved.
type ConfigRewrite struct {
	Kind string `toml:"kind"`
	Path string `toml:"path"`
	Key  string `toml:"key"`
}

// Copy is one source to destination transfer. The primary copy of a resource
// has an empty Name.
type Copy struct {
	Name        string `toml:"name"`
	Source      string `toml:"source"`
	Destination string `toml:"destination"`
}

// Primary reports whether the copy is the resource's main data directory.
func (c Copy) Primary() bool {
	return c.Name == ""
}

// Label returns a human readable name for the copy.
func (c Copy) Label() string {
	if c.Primary() {
		return "data"
	}
	return c.Name
}

// Resource describes one data directory and the services that own it.
type Resource struct {
	Name        string   `toml:"name"`
	Source      string   `toml:"source"`
	Destination string   `toml:"destination"`
	Services    []string `toml:"services"`
	// MinFreeBytes is headroom required on the destination filesystem beyond
	// the bytes that still have to be copied.
	MinFreeBytes    int64         `toml:"min_free_bytes"`
	DataRootCommand []string      `toml:"data_root_command"`
	Config          ConfigRewrite `toml:"config"`
	ExtraCopies     []Copy        `toml:"extra_copies"`
}

// Copies returns the primary copy followed by any extra copies.
func (r Resource) Copies() []Copy {
	out := make([]Copy, 0, len(r.ExtraCopies)+1)
	out = append(out, Copy{Source: r.Source, Destination: r.Destination})
	out = append(out, r.ExtraCopies...)
	return out
}

// Config encapsulates all configuration values for relocate.
//
// Configuration sections:
//   - Paths: ledger, log directory and run history database
//   - Logging: log format and level
//   - Sync: copy tool binary, extra arguments and skip threshold
//   - Notifications: optional ntfy topic for run events
//   - Privilege: effective UID requirement
//   - Resources: ordered list of resources to migrate
type Config struct {
	Paths         Paths         `toml:"paths"`
	Logging       Logging       `toml:"logging"`
	Sync          Sync          `toml:"sync"`
	Notifications Notifications `toml:"notifications"`
	Privilege     Privilege     `toml:"privilege"`
	Resources     []Resource    `toml:"resources"`
}

// LockPath returns the advisory lock file guarding the ledger.
func (c *Config) LockPath() string {
	return c.Paths.Ledger + ".lock"
}

// LogPath returns the durable log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "relocate.log")
}

// Resource returns the named resource.
func (c *Config) Resource(name string) (Resource, bool) {
	for _, res := range c.Resources {
		if res.Name == name {
			return res, true
		}
	}
	return Resource{}, false
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() string {
	return defaultConfigPath
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolvedPath, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	projectPath, err := filepath.Abs(projectConfigName)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultConfigPath); err == nil && !info.IsDir() {
		return defaultConfigPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultConfigPath, false, nil
}

// EnsureDirectories creates the directories holding the ledger, logs and history.
func (c *Config) EnsureDirectories() error {
	dirs := []string{filepath.Dir(c.Paths.Ledger), c.Paths.LogDir}
	if c.Paths.HistoryDB != "" {
		dirs = append(dirs, filepath.Dir(c.Paths.HistoryDB))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && pathValue[1] == '/' {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
