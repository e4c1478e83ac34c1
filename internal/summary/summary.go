// Package summary aggregates pairs and suggestions into run-level counts.
// Output is fully deterministic: every grouped breakdown is explicitly
// sorted and no clocks or map iteration orders leak into the result.
package summary

import (
	"sort"

	"github.com/sells-group/traceability-cli/internal/model"
)

// DefaultTopAssignees caps the assignee leaderboard.
const DefaultTopAssignees = 10

// Build computes the Summary for a run. topAssignees bounds the assignee
// breakdown; non-positive values fall back to DefaultTopAssignees.
func Build(pairs []model.Pair, suggestions []model.Suggestion, topAssignees int) model.Summary {
	if topAssignees <= 0 {
		topAssignees = DefaultTopAssignees
	}

	s := model.Summary{
		Total:    len(pairs) + len(suggestions),
		Linked:   len(pairs),
		Unlinked: len(suggestions),
	}

	jiraStatuses := make(map[string]int)
	adoStates := make(map[string]int)
	severities := make(map[string]int)
	itemTypes := make(map[string]int)
	assignees := make(map[string]int)

	for _, p := range pairs {
		tallyOutcome(&s.Status, p.Verdict.Status)
		tallyOutcome(&s.Severity, p.Verdict.Severity)
		tallyOutcome(&s.Assignee, p.Verdict.Assignee)

		if p.Verdict.Perfect() {
			s.PerfectMatches++
		}
		if !p.Resolved() {
			s.UnresolvableLinks++
		}
		if p.Duplicate {
			s.DuplicateLinks++
		}

		jiraStatuses[orNone(p.Issue.Status)]++
		severities[orNone(p.Issue.Severity)]++
		assignees[orUnassigned(p.Issue.Assignee)]++
		if p.Resolved() {
			adoStates[orNone(p.WorkItem.State)]++
			itemTypes[orNone(p.WorkItem.Type)]++
		}
	}

	for _, sug := range suggestions {
		s.SuggestionCount += len(sug.Candidates)
		jiraStatuses[orNone(sug.Issue.Status)]++
		severities[orNone(sug.Issue.Severity)]++
	}

	s.Status.MatchPct = pct(s.Status.Match, s.Status.Determinable())
	s.Severity.MatchPct = pct(s.Severity.Match, s.Severity.Determinable())
	s.Assignee.MatchPct = pct(s.Assignee.Match, s.Assignee.Determinable())
	s.PerfectPct = pct(s.PerfectMatches, s.Linked)

	s.JiraStatuses = groupCounts(jiraStatuses, 0)
	s.ADOStates = groupCounts(adoStates, 0)
	s.Severities = groupCounts(severities, 0)
	s.WorkItemTypes = groupCounts(itemTypes, 0)
	s.TopAssignees = groupCounts(assignees, topAssignees)

	return s
}

func tallyOutcome(t *model.Tally, o model.Outcome) {
	switch o {
	case model.OutcomeMatch:
		t.Match++
	case model.OutcomeMismatch:
		t.Mismatch++
	default:
		t.Unknown++
	}
}

// pct returns 100*part/whole, or 0 when whole is 0. Unknown outcomes are
// excluded from whole by the callers, so rates reflect determinable data only.
func pct(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return 100 * float64(part) / float64(whole)
}

// groupCounts flattens a counter map into buckets sorted by count descending
// then key ascending, truncated to limit when limit > 0.
func groupCounts(counts map[string]int, limit int) []model.GroupCount {
	if len(counts) == 0 {
		return nil
	}
	out := make([]model.GroupCount, 0, len(counts))
	for k, v := range counts {
		out = append(out, model.GroupCount{Key: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func orUnassigned(s string) string {
	if s == "" {
		return "(unassigned)"
	}
	return s
}
