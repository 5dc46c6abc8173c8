package main

import (
	"fmt"
	"strings"
	"time"

	"relocate/internal/migration"
	"relocate/internal/preflight"
)

const detailWidth = 72

func renderSummary(report migration.Report, resumeCommand string) string {
	var b strings.Builder

	rows := make([][]string, 0, len(report.Results)+len(report.NotRun))
	for _, res := range report.Results {
		rows = append(rows, []string{
			res.Resource,
			titleCase(string(res.Outcome)),
			formatDuration(res.Duration),
			truncate(res.Reason(), detailWidth),
		})
	}
	for _, name := range report.NotRun {
		rows = append(rows, []string{name, "Not run", "", "run was interrupted"})
	}
	if len(rows) > 0 {
		b.WriteString(renderTable(
			[]string{"Resource", "Outcome", "Took", "Detail"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
		))
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "%d completed, %d skipped, %d deferred, %d failed",
		report.Count(migration.OutcomeCompleted),
		report.Count(migration.OutcomeSkipped),
		report.Count(migration.OutcomeDeferred),
		report.Count(migration.OutcomeFailed),
	)
	if len(report.NotRun) > 0 {
		fmt.Fprintf(&b, ", %d not run", len(report.NotRun))
	}
	b.WriteString("\n")

	for _, res := range report.Results {
		if res.Err == nil {
			continue
		}
		if hint := migration.Hint(res.Err); hint != "" {
			fmt.Fprintf(&b, "%s: %s\n", res.Resource, hint)
		}
	}

	if len(report.Removable) > 0 {
		b.WriteString("\nOld data is no longer used and can be removed once the services are verified:\n")
		for _, path := range report.Removable {
			fmt.Fprintf(&b, "  %s\n", path)
		}
	}

	switch {
	case report.Failed():
		fmt.Fprintf(&b, "\nProgress is saved in %s\n", report.LedgerPath)
		fmt.Fprintf(&b, "Resume with: %s\n", resumeCommand)
	case report.AllDone():
		fmt.Fprintf(&b, "\nAll resources migrated. Retire the ledger with `relocate ledger clear` after verification.\n")
	}
	return b.String()
}

func renderChecks(results []preflight.Result) string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		status := "ok"
		if !r.Passed {
			status = "FAIL"
		}
		rows = append(rows, []string{r.Name, status, truncate(r.Detail, detailWidth)})
	}
	return renderTable([]string{"Check", "Status", "Detail"}, rows, nil)
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}

func truncate(value string, width int) string {
	value = strings.ReplaceAll(strings.TrimSpace(value), "\n", " ")
	runes := []rune(value)
	if width <= 3 || len(runes) <= width {
		return value
	}
	return string(runes[:width-3]) + "..."
}
