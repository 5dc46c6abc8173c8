package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"relocate/internal/cmdexec"
	"relocate/internal/config"
	"relocate/internal/datasync"
	"relocate/internal/logging"
	"relocate/internal/migration"
	"relocate/internal/preflight"
	"relocate/internal/svcctl"
)

// hostDeps builds the collaborators that act on the host.
type hostDeps struct {
	services func(logger *slog.Logger) migration.ServiceController
	dataRoot func(runner cmdexec.Runner) migration.DataRootReporter
	syncer   func(cfg *config.Config, runner cmdexec.Runner, logger *slog.Logger) migration.Syncer
	systemd  func() bool
}

func defaultHost() hostDeps {
	return hostDeps{
		services: func(logger *slog.Logger) migration.ServiceController {
			return svcctl.NewSystemd(logger)
		},
		dataRoot: func(runner cmdexec.Runner) migration.DataRootReporter {
			return svcctl.NewDataRootProbe(runner)
		},
		syncer: func(cfg *config.Config, runner cmdexec.Runner, logger *slog.Logger) migration.Syncer {
			return datasync.New(cfg.Sync, runner, logger)
		},
		systemd: svcctl.IsSystemdRunning,
	}
}

type commandContext struct {
	configFlag   *string
	logLevelFlag *string
	host         hostDeps

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string, host hostDeps) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
		host:         host,
	}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = fmt.Errorf("%w: %w", migration.ErrConfig, err)
			return
		}
		if c.logLevelFlag != nil {
			if level := strings.TrimSpace(*c.logLevelFlag); level != "" {
				cfg.Logging.Level = strings.ToLower(level)
				if err := cfg.Validate(); err != nil {
					c.configErr = fmt.Errorf("%w: %w", migration.ErrConfig, err)
					return
				}
			}
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) newLogger(console io.Writer) (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewFromConfig(cfg, console)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, nil
}

// resumeCommand is the invocation that continues an unfinished run.
func (c *commandContext) resumeCommand() string {
	command := "sudo relocate --resume"
	if path := c.configPath(); path != "" {
		command += " --config " + path
	}
	return command
}

func (c *commandContext) preflight(ctx context.Context, cfg *config.Config) []preflight.Result {
	return preflight.RunAll(ctx, cfg, preflight.WithSystemdProbe(c.host.systemd))
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
