package report

import (
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/rotisserie/eris"

	"github.com/sells-group/traceability-cli/internal/history"
	"github.com/sells-group/traceability-cli/internal/model"
)

// PrintSummary renders the run summary as console tables.
func PrintSummary(w io.Writer, result *model.Result) error {
	if result == nil {
		return eris.New("report: nil result")
	}
	s := result.Summary

	fmt.Fprintln(w, "Reconciliation Summary")

	counts := tablewriter.NewTable(w)
	counts.Header("Metric", "Count")
	rows := [][]any{
		{"Total Jira Issues", s.Total},
		{"Linked to ADO", s.Linked},
		{"Not Linked", s.Unlinked},
		{"Unresolvable Links", s.UnresolvableLinks},
		{"Duplicate Links", s.DuplicateLinks},
		{"Perfect Matches", s.PerfectMatches},
		{"Potential Matches", s.SuggestionCount},
	}
	for _, row := range rows {
		if err := counts.Append(row...); err != nil {
			return eris.Wrap(err, "report: render summary table")
		}
	}
	if err := counts.Render(); err != nil {
		return eris.Wrap(err, "report: render summary table")
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Comparison Quality (Linked Items)")

	quality := tablewriter.NewTable(w)
	quality.Header("Dimension", "Matches", "Mismatches", "Unknown", "Match %")
	dims := []struct {
		name  string
		tally model.Tally
	}{
		{"Status", s.Status},
		{"Severity", s.Severity},
		{"Assignee", s.Assignee},
	}
	for _, d := range dims {
		err := quality.Append(d.name, d.tally.Match, d.tally.Mismatch, d.tally.Unknown,
			pctLabel(d.tally.MatchPct, d.tally.Determinable()))
		if err != nil {
			return eris.Wrap(err, "report: render quality table")
		}
	}
	return eris.Wrap(quality.Render(), "report: render quality table")
}

// PrintRuns renders the run ledger as a console table, newest first.
func PrintRuns(w io.Writer, runs []history.Run) error {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded")
		return nil
	}

	table := tablewriter.NewTable(w)
	table.Header("ID", "Started", "Status", "Total", "Linked", "Perfect", "Suggestions", "Duration", "Artifact")
	for _, r := range runs {
		err := table.Append(shortID(r.ID), r.StartedAt.Format("2006-01-02 15:04:05"), string(r.Status),
			r.Total, r.Linked, r.Perfect, r.Suggestions, durationLabel(r), r.Artifact)
		if err != nil {
			return eris.Wrap(err, "report: render runs table")
		}
	}
	return eris.Wrap(table.Render(), "report: render runs table")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func durationLabel(r history.Run) string {
	if r.FinishedAt == nil {
		return "-"
	}
	return r.Duration().Round(time.Millisecond).String()
}
