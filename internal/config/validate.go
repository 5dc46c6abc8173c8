package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
)

var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateResources()
}

func (c *Config) validatePaths() error {
	if c.Paths.Ledger == "" {
		return errors.New("paths.ledger must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q (use debug, info, warn or error)", c.Logging.Level)
	}
}

func (c *Config) validateSync() error {
	if c.Sync.Binary == "" {
		return errors.New("sync.binary must be set")
	}
	// Copies must stay additive so the source remains a complete fallback.
	for _, arg := range c.Sync.ExtraArgs {
		if strings.HasPrefix(arg, "--delete") || strings.HasPrefix(arg, "--remove-source-files") || arg == "--del" {
			return fmt.Errorf("sync.extra_args: %q is not allowed", arg)
		}
	}
	return nil
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic == "" {
		return nil
	}
	u, err := url.Parse(topic)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("notifications.ntfy_topic: %q must be an http(s) topic URL", topic)
	}
	return nil
}

func (c *Config) validateResources() error {
	if len(c.Resources) == 0 {
		return fmt.Errorf("no resources configured. Add [[resources]] entries to %s (create with 'relocate config init')", defaultConfigPath)
	}
	seen := make(map[string]struct{}, len(c.Resources))
	for i, res := range c.Resources {
		if err := res.validate(); err != nil {
			if res.Name != "" {
				return fmt.Errorf("resource %q: %w", res.Name, err)
			}
			return fmt.Errorf("resources[%d]: %w", i, err)
		}
		if _, ok := seen[res.Name]; ok {
			return fmt.Errorf("resource %q is defined more than once", res.Name)
		}
		seen[res.Name] = struct{}{}
	}
	return nil
}

func (r Resource) validate() error {
	if !namePattern.MatchString(r.Name) {
		return fmt.Errorf("name %q must match %s", r.Name, namePattern.String())
	}
	if err := validateTransfer(r.Source, r.Destination); err != nil {
		return err
	}
	if r.MinFreeBytes < 0 {
		return errors.New("min_free_bytes must be >= 0")
	}
	if err := r.Config.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	names := make(map[string]struct{}, len(r.ExtraCopies))
	for i, cp := range r.ExtraCopies {
		if !namePattern.MatchString(cp.Name) {
			return fmt.Errorf("extra_copies[%d]: name %q must match %s", i, cp.Name, namePattern.String())
		}
		if _, ok := names[cp.Name]; ok {
			return fmt.Errorf("extra_copies: name %q is used more than once", cp.Name)
		}
		names[cp.Name] = struct{}{}
		if err := validateTransfer(cp.Source, cp.Destination); err != nil {
			return fmt.Errorf("extra_copies[%d]: %w", i, err)
		}
	}
	return nil
}

func validateTransfer(source, destination string) error {
	if source == "" {
		return errors.New("source must be set")
	}
	if destination == "" {
		return errors.New("destination must be set")
	}
	if source == destination {
		return fmt.Errorf("source and destination are both %s", source)
	}
	if within(destination, source) || within(source, destination) {
		return fmt.Errorf("source %s and destination %s must not be nested", source, destination)
	}
	return nil
}

func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, "../")
}

func (rw ConfigRewrite) validate() error {
	switch rw.Kind {
	case RewriteNone:
		return nil
	case RewriteJSON, RewriteTOML:
	case "":
		return fmt.Errorf("kind must be set for %s (json, toml or none)", rw.Path)
	default:
		return fmt.Errorf("kind: unsupported value %q (use json, toml or none)", rw.Kind)
	}
	if rw.Path == "" {
		return errors.New("path must be set")
	}
	if rw.Key == "" {
		return errors.New("key must be set")
	}
	return nil
}
