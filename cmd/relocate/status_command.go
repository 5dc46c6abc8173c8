package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"relocate/internal/config"
	"relocate/internal/history"
	"relocate/internal/ledger"
	"relocate/internal/migration"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var skipChecks bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show per-resource progress from the ledger",
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

			var latest map[string]history.Outcome
			if historyExists(cfg) {
				if store, err := history.Open(cfg.Paths.HistoryDB); err == nil {
					latest, _ = store.LatestOutcomes(cmd.Context())
					_ = store.Close()
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Ledger: %s (%d entries)\n", cfg.Paths.Ledger, len(entries))
			fmt.Fprintln(out, renderStatus(cfg, entries, latest))

			if unknown := unrecognized(cfg, entries); len(unknown) > 0 {
				fmt.Fprintf(out, "Unrecognized ledger entries (ignored): %s\n", strings.Join(unknown, ", "))
			}

			if !skipChecks {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Host checks:")
				fmt.Fprintln(out, renderChecks(ctx.preflight(cmd.Context(), cfg)))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipChecks, "no-checks", false, "Skip host readiness checks")
	return cmd
}

func renderStatus(cfg *config.Config, entries []string, latest map[string]history.Outcome) string {
	done := make(map[string]struct{}, len(entries))
	for _, id := range entries {
		done[id] = struct{}{}
	}

	rows := make([][]string, 0, len(cfg.Resources))
	for _, res := range cfg.Resources {
		plan := migration.Plan(res)
		finished := 0
		next := ""
		for _, step := range plan {
			if _, ok := done[step.StepID()]; ok {
				finished++
				continue
			}
			if next == "" {
				next = stepLabel(step)
			}
		}

		state := "in progress"
		switch {
		case isDone(done, res):
			state = "complete"
			next = ""
		case finished == 0:
			state = "not started"
		}

		last := ""
		if outcome, ok := latest[res.Name]; ok {
			last = fmt.Sprintf("%s %s", titleCase(outcome.Outcome), humanize.Time(outcome.RecordedAt))
		}

		rows = append(rows, []string{
			res.Name,
			state,
			fmt.Sprintf("%d/%d", finished, len(plan)),
			next,
			last,
		})
	}
	return renderTable(
		[]string{"Resource", "State", "Steps", "Next", "Last outcome"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
	)
}

func isDone(done map[string]struct{}, res config.Resource) bool {
	_, ok := done[migration.Step{Resource: res.Name, Kind: migration.StepComplete}.StepID()]
	return ok
}

func stepLabel(step migration.Step) string {
	label := strings.ReplaceAll(step.Kind.String(), "_", " ")
	if step.Copy != "" {
		label += " (" + step.Copy + ")"
	}
	return label
}

// unrecognized lists ledger lines no configured resource can produce, such
// as entries left behind by a resource that was removed from the config.
func unrecognized(cfg *config.Config, entries []string) []string {
	known := migration.KnownIDs(cfg.Resources)
	var unknown []string
	for _, id := range entries {
		if _, ok := known[id]; !ok {
			unknown = append(unknown, id)
		}
	}
	sort.Strings(unknown)
	return unknown
}
