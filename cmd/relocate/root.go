package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	return newRootCommandWithHost(defaultHost())
}

func newRootCommandWithHost(host hostDeps) *cobra.Command {
	var configFlag string
	var logLevelFlag string
	var opts runOptions

	ctx := newCommandContext(&configFlag, &logLevelFlag, host)

	rootCmd := &cobra.Command{
		Use:   "relocate",
		Short: "Move service data directories to new storage",
		Long: "Migrates each configured resource by stopping its services, repointing\n" +
			"their configuration, copying the data, and restarting them.\n" +
			"An interrupted run continues where it stopped with --resume.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigration(cmd, ctx, opts)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Override the configured log level (debug, info, warn, error)")
	rootCmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Approve every resource without prompting")
	rootCmd.Flags().BoolVar(&opts.resume, "resume", false, "Continue a previous run from the ledger without prompting")

	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))
	rootCmd.AddCommand(newLedgerCommand(ctx))
	rootCmd.AddCommand(newLogsCommand(ctx))
	rootCmd.AddCommand(newTestNotifyCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
