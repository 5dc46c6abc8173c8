package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"relocate/internal/config"
	"relocate/internal/confirm"
	"relocate/internal/ledger"
	"relocate/internal/migration"
	"relocate/internal/runlock"
)

func newLedgerCommand(ctx *commandContext) *cobra.Command {
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect or retire the step ledger",
	}

	ledgerCmd.AddCommand(newLedgerShowCommand(ctx))
	ledgerCmd.AddCommand(newLedgerClearCommand(ctx))

	return ledgerCmd
}

func newLedgerShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print recorded step identifiers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			entries, err := ledger.ReadEntries(cfg.Paths.Ledger)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Ledger: %s\n", cfg.Paths.Ledger)
			if len(entries) == 0 {
				fmt.Fprintln(out, "No steps recorded")
				return nil
			}
			for _, id := range entries {
				fmt.Fprintln(out, id)
			}
			return nil
		},
	}
}

func newLedgerClearCommand(ctx *commandContext) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Retire the ledger so the next run starts fresh",
		Long: "Renames the ledger with a timestamp suffix. Run this only after every\n" +
			"migrated service has been verified; the next run will introspect each\n" +
			"resource again.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.newLogger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			lock, err := runlock.Acquire(cfg.LockPath())
			if err != nil {
				return err
			}
			defer lock.Release()

			entries, err := ledger.ReadEntries(cfg.Paths.Ledger)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "Ledger is empty; nothing to clear")
				return nil
			}

			prompt := fmt.Sprintf("Retire ledger %s", cfg.Paths.Ledger)
			if pending := incomplete(cfg, entries); len(pending) > 0 {
				prompt = fmt.Sprintf("Resources %s are not complete. Retire ledger %s anyway",
					strings.Join(pending, ", "), cfg.Paths.Ledger)
			}
			gate := confirm.New(yes, cmd.InOrStdin(), out, logger)
			ok, err := gate.Confirm(cmd.Context(), prompt)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(out, "Ledger left in place")
				return nil
			}

			target, err := ledger.Clear(cfg.Paths.Ledger, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Ledger moved to %s\n", target)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not prompt")
	return cmd
}

// incomplete lists resources that have recorded steps but no completion.
func incomplete(cfg *config.Config, entries []string) []string {
	done := make(map[string]struct{}, len(entries))
	for _, id := range entries {
		done[id] = struct{}{}
	}
	var pending []string
	for _, res := range cfg.Resources {
		if isDone(done, res) {
			continue
		}
		for _, step := range migration.Plan(res) {
			if _, ok := done[step.StepID()]; ok {
				pending = append(pending, res.Name)
				break
			}
		}
	}
	return pending
}
