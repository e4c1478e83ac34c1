package model

// Tally counts the outcomes of one comparison dimension across all pairs.
type Tally struct {
	Match    int     `json:"match"`
	Mismatch int     `json:"mismatch"`
	Unknown  int     `json:"unknown"`
	MatchPct float64 `json:"match_pct"` // percent of determinable outcomes, 0 when none
}

// Determinable returns the number of outcomes that were match or mismatch.
func (t Tally) Determinable() int {
	return t.Match + t.Mismatch
}

// GroupCount is one bucket of a grouped breakdown.
type GroupCount struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Summary aggregates a reconciliation run. All percentages are computed over
// determinable outcomes only so unknowns never inflate or deflate a rate.
type Summary struct {
	Total             int `json:"total"`
	Linked            int `json:"linked"`
	Unlinked          int `json:"unlinked"`
	UnresolvableLinks int `json:"unresolvable_links"`
	DuplicateLinks    int `json:"duplicate_links"`
	SuggestionCount   int `json:"suggestion_count"`

	Status   Tally `json:"status"`
	Severity Tally `json:"severity"`
	Assignee Tally `json:"assignee"`

	PerfectMatches int     `json:"perfect_matches"`
	PerfectPct     float64 `json:"perfect_pct"` // percent of linked pairs

	JiraStatuses  []GroupCount `json:"jira_statuses,omitempty"`
	ADOStates     []GroupCount `json:"ado_states,omitempty"`
	Severities    []GroupCount `json:"severities,omitempty"`
	WorkItemTypes []GroupCount `json:"work_item_types,omitempty"`
	TopAssignees  []GroupCount `json:"top_assignees,omitempty"`
}

// Result is the complete, immutable output of one reconciliation run.
// Pairs preserve source order; Suggestions preserve the order in which
// unlinked issues appeared in the source.
type Result struct {
	Pairs       []Pair       `json:"pairs"`
	Suggestions []Suggestion `json:"suggestions"`
	Summary     Summary      `json:"summary"`
}
