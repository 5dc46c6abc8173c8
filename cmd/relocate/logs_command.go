package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"relocate/internal/logging"
	"relocate/internal/logs"
	"relocate/internal/signals"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var resource string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the durable run log",
		Long: "Prints the end of relocate.log. With --follow it keeps printing new\n" +
			"records, which is how to reattach to a run after a dropped session.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			filter := logs.Filter{Resource: strings.ToLower(strings.TrimSpace(resource))}
			out := cmd.OutOrStdout()

			chunk, err := logs.Last(cfg.LogPath(), lines, filter)
			if err != nil {
				return err
			}
			for _, line := range chunk.Lines {
				fmt.Fprintln(out, line)
			}
			if !follow {
				return nil
			}

			governor, followCtx := signals.Install(cmd.Context(), logging.NewNop())
			defer governor.Stop()
			return logs.Follow(followCtx, cfg.LogPath(), chunk.Offset, filter, 250*time.Millisecond, func(line string) {
				fmt.Fprintln(out, line)
			})
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new log records")
	cmd.Flags().StringVarP(&resource, "resource", "r", "", "Only show records for one resource")
	return cmd
}
