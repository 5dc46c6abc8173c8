package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"relocate/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var runID string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List previous runs and their per-resource outcomes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !historyExists(cfg) {
				fmt.Fprintln(out, "No run history recorded")
				return nil
			}
			store, err := history.Open(cfg.Paths.HistoryDB)
			if err != nil {
				return fmt.Errorf("open run history: %w", err)
			}
			defer store.Close()

			if runID != "" {
				outcomes, err := store.Outcomes(cmd.Context(), runID)
				if err != nil {
					return err
				}
				if len(outcomes) == 0 {
					fmt.Fprintf(out, "No outcomes recorded for run %s\n", runID)
					return nil
				}
				fmt.Fprintln(out, renderOutcomes(outcomes))
				return nil
			}

			runs, err := store.Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No run history recorded")
				return nil
			}
			fmt.Fprintln(out, renderRuns(runs))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to list")
	cmd.Flags().StringVar(&runID, "run", "", "Show the outcomes of one run")
	return cmd
}

func renderRuns(runs []history.Run) string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		finished := ""
		status := "running or aborted"
		if run.Finished() {
			finished = formatTimestamp(run.FinishedAt)
			status = run.ExitStatus
		}
		rows = append(rows, []string{
			run.ID,
			formatTimestamp(run.StartedAt),
			finished,
			run.Mode,
			status,
		})
	}
	return renderTable([]string{"Run", "Started", "Finished", "Mode", "Status"}, rows, nil)
}

func renderOutcomes(outcomes []history.Outcome) string {
	rows := make([][]string, 0, len(outcomes))
	for _, o := range outcomes {
		rows = append(rows, []string{
			o.Resource,
			titleCase(o.Outcome),
			formatTimestamp(o.RecordedAt),
			truncate(o.Reason, detailWidth),
		})
	}
	return renderTable([]string{"Resource", "Outcome", "Recorded", "Reason"}, rows, nil)
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
