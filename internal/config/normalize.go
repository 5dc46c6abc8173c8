package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.normalizeSync()
	c.normalizeNotifications()
	for i := range c.Resources {
		if err := c.Resources[i].normalize(); err != nil {
			return fmt.Errorf("resources[%d]: %w", i, err)
		}
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.Ledger) == "" {
		c.Paths.Ledger = defaultLedgerPath
	}
	if c.Paths.Ledger, err = expandPath(c.Paths.Ledger); err != nil {
		return fmt.Errorf("paths.ledger: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	// An empty history path disables run history.
	if c.Paths.HistoryDB, err = expandPath(strings.TrimSpace(c.Paths.HistoryDB)); err != nil {
		return fmt.Errorf("paths.history_db: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	if value, ok := os.LookupEnv("RELOCATE_LOG_LEVEL"); ok && strings.TrimSpace(value) != "" {
		c.Logging.Level = value
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeSync() {
	c.Sync.Binary = strings.TrimSpace(c.Sync.Binary)
	if c.Sync.Binary == "" {
		c.Sync.Binary = defaultSyncBinary
	}
	args := c.Sync.ExtraArgs[:0]
	for _, arg := range c.Sync.ExtraArgs {
		if trimmed := strings.TrimSpace(arg); trimmed != "" {
			args = append(args, trimmed)
		}
	}
	c.Sync.ExtraArgs = args
	if c.Sync.SkipBelowBytes < 0 {
		c.Sync.SkipBelowBytes = 0
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNtfyTimeout
	}
}

func (r *Resource) normalize() error {
	var err error
	r.Name = strings.ToLower(strings.TrimSpace(r.Name))
	if r.Source, err = expandPath(strings.TrimSpace(r.Source)); err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if r.Destination, err = expandPath(strings.TrimSpace(r.Destination)); err != nil {
		return fmt.Errorf("destination: %w", err)
	}

	services := make([]string, 0, len(r.Services))
	for _, unit := range r.Services {
		if trimmed := strings.TrimSpace(unit); trimmed != "" {
			services = append(services, trimmed)
		}
	}
	r.Services = services

	command := make([]string, 0, len(r.DataRootCommand))
	for _, arg := range r.DataRootCommand {
		if trimmed := strings.TrimSpace(arg); trimmed != "" {
			command = append(command, trimmed)
		}
	}
	r.DataRootCommand = command

	if err := r.Config.normalize(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	for i := range r.ExtraCopies {
		cp := &r.ExtraCopies[i]
		cp.Name = strings.ToLower(strings.TrimSpace(cp.Name))
		if cp.Source, err = expandPath(strings.TrimSpace(cp.Source)); err != nil {
			return fmt.Errorf("extra_copies[%d].source: %w", i, err)
		}
		if cp.Destination, err = expandPath(strings.TrimSpace(cp.Destination)); err != nil {
			return fmt.Errorf("extra_copies[%d].destination: %w", i, err)
		}
	}
	return nil
}

func (rw *ConfigRewrite) normalize() error {
	var err error
	rw.Key = strings.TrimSpace(rw.Key)
	rw.Kind = strings.ToLower(strings.TrimSpace(rw.Kind))
	if rw.Path, err = expandPath(strings.TrimSpace(rw.Path)); err != nil {
		return fmt.Errorf("path: %w", err)
	}
	if rw.Kind == "" {
		switch strings.ToLower(filepath.Ext(rw.Path)) {
		case "":
			rw.Kind = RewriteNone
		case ".json":
			rw.Kind = RewriteJSON
		case ".toml":
			rw.Kind = RewriteTOML
		}
	}
	return nil
}
