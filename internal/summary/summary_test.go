package summary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/traceability-cli/internal/model"
)

func pairWith(key string, v model.Verdict) model.Pair {
	return model.Pair{
		Issue:    model.Issue{Key: key, Status: "Done", Severity: "Sev-2", Assignee: "Jane"},
		WorkItem: &model.WorkItem{ID: "1", State: "Closed", Type: "Bug"},
		Verdict:  v,
	}
}

func TestBuild_Totals(t *testing.T) {
	pairs := []model.Pair{
		pairWith("PROJ-1", model.Verdict{Status: model.OutcomeMatch, Severity: model.OutcomeMatch, Assignee: model.OutcomeMatch}),
		pairWith("PROJ-2", model.Verdict{Status: model.OutcomeMismatch, Severity: model.OutcomeUnknown, Assignee: model.OutcomeMatch}),
	}
	suggestions := []model.Suggestion{
		{Issue: model.Issue{Key: "PROJ-3", Status: "Open"}, Candidates: []model.Candidate{{WorkItemID: "9", Score: 85}}},
		{Issue: model.Issue{Key: "PROJ-4", Status: "Open"}},
	}

	s := Build(pairs, suggestions, 0)

	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.Linked)
	assert.Equal(t, 2, s.Unlinked)
	assert.Equal(t, 1, s.SuggestionCount)
	assert.Equal(t, 1, s.PerfectMatches)
	assert.InDelta(t, 50.0, s.PerfectPct, 0.001)
}

func TestBuild_PercentagesOverDeterminableOnly(t *testing.T) {
	pairs := []model.Pair{
		pairWith("PROJ-1", model.Verdict{Status: model.OutcomeMatch}),
		pairWith("PROJ-2", model.Verdict{Status: model.OutcomeMismatch}),
		pairWith("PROJ-3", model.Verdict{Status: model.OutcomeUnknown}),
		pairWith("PROJ-4", model.Verdict{Status: model.OutcomeMatch}),
	}

	s := Build(pairs, nil, 0)

	assert.Equal(t, 2, s.Status.Match)
	assert.Equal(t, 1, s.Status.Mismatch)
	assert.Equal(t, 1, s.Status.Unknown)
	// 2 of 3 determinable, the unknown is excluded from the denominator.
	assert.InDelta(t, 66.666, s.Status.MatchPct, 0.01)
}

func TestBuild_AllUnknownPercentageIsZero(t *testing.T) {
	pairs := []model.Pair{
		pairWith("PROJ-1", model.Verdict{Severity: model.OutcomeUnknown}),
	}

	s := Build(pairs, nil, 0)
	assert.Equal(t, 0, s.Severity.Determinable())
	assert.Zero(t, s.Severity.MatchPct)
}

func TestBuild_UnresolvableAndDuplicates(t *testing.T) {
	pairs := []model.Pair{
		{Issue: model.Issue{Key: "PROJ-1", ADOID: "7"}},
		{Issue: model.Issue{Key: "PROJ-2", ADOID: "8"}, WorkItem: &model.WorkItem{ID: "8"}, Duplicate: true},
	}

	s := Build(pairs, nil, 0)
	assert.Equal(t, 1, s.UnresolvableLinks)
	assert.Equal(t, 1, s.DuplicateLinks)
}

func TestBuild_BreakdownOrdering(t *testing.T) {
	pairs := []model.Pair{
		{Issue: model.Issue{Key: "A", Status: "Done"}, WorkItem: &model.WorkItem{State: "Closed"}},
		{Issue: model.Issue{Key: "B", Status: "Open"}, WorkItem: &model.WorkItem{State: "Active"}},
		{Issue: model.Issue{Key: "C", Status: "Done"}, WorkItem: &model.WorkItem{State: "Closed"}},
		{Issue: model.Issue{Key: "D", Status: "Blocked"}, WorkItem: &model.WorkItem{State: "Active"}},
	}

	s := Build(pairs, nil, 0)

	require.Len(t, s.JiraStatuses, 3)
	assert.Equal(t, model.GroupCount{Key: "Done", Count: 2}, s.JiraStatuses[0])
	// Ties sort alphabetically.
	assert.Equal(t, model.GroupCount{Key: "Blocked", Count: 1}, s.JiraStatuses[1])
	assert.Equal(t, model.GroupCount{Key: "Open", Count: 1}, s.JiraStatuses[2])

	require.Len(t, s.ADOStates, 2)
	assert.Equal(t, "Active", s.ADOStates[0].Key)
	assert.Equal(t, "Closed", s.ADOStates[1].Key)
}

func TestBuild_EmptyValuesBucketed(t *testing.T) {
	pairs := []model.Pair{
		{Issue: model.Issue{Key: "A"}, WorkItem: &model.WorkItem{}},
	}

	s := Build(pairs, nil, 0)
	require.NotEmpty(t, s.JiraStatuses)
	assert.Equal(t, "(none)", s.JiraStatuses[0].Key)
	require.NotEmpty(t, s.TopAssignees)
	assert.Equal(t, "(unassigned)", s.TopAssignees[0].Key)
}

func TestBuild_TopAssigneesTruncated(t *testing.T) {
	var pairs []model.Pair
	names := []string{"a", "b", "c", "d", "e"}
	for i, name := range names {
		pairs = append(pairs, model.Pair{
			Issue:    model.Issue{Key: names[i], Assignee: name},
			WorkItem: &model.WorkItem{},
		})
	}

	s := Build(pairs, nil, 3)
	assert.Len(t, s.TopAssignees, 3)
}

func TestBuild_Deterministic(t *testing.T) {
	pairs := []model.Pair{
		pairWith("PROJ-1", model.Verdict{Status: model.OutcomeMatch, Severity: model.OutcomeMismatch, Assignee: model.OutcomeUnknown}),
		pairWith("PROJ-2", model.Verdict{Status: model.OutcomeMismatch, Severity: model.OutcomeMatch, Assignee: model.OutcomeMatch}),
		{Issue: model.Issue{Key: "PROJ-3", Status: "Blocked", Severity: "Sev-1", Assignee: "Ann"}, WorkItem: &model.WorkItem{State: "New", Type: "Task"}},
	}
	suggestions := []model.Suggestion{
		{Issue: model.Issue{Key: "PROJ-4", Status: "Open", Severity: "Sev-3"}},
	}

	first := Build(pairs, suggestions, 10)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, Build(pairs, suggestions, 10))
	}
}

func TestBuild_Empty(t *testing.T) {
	s := Build(nil, nil, 0)
	assert.Zero(t, s.Total)
	assert.Zero(t, s.PerfectPct)
	assert.Empty(t, s.JiraStatuses)
}
