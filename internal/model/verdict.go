package model

// Outcome is the tri-state result of comparing one field across a linked pair.
// Unknown means at least one side could not be normalized; it is never folded
// into match or mismatch.
type Outcome string

const (
	OutcomeMatch    Outcome = "match"
	OutcomeMismatch Outcome = "mismatch"
	OutcomeUnknown  Outcome = "unknown"
)

// Determinable reports whether the outcome is a definite match or mismatch.
func (o Outcome) Determinable() bool {
	return o == OutcomeMatch || o == OutcomeMismatch
}

// Verdict holds the per-field outcomes for one linked pair.
type Verdict struct {
	Status   Outcome `json:"status"`
	Severity Outcome `json:"severity"`
	Assignee Outcome `json:"assignee"`
}

// Perfect reports whether every compared field matched.
func (v Verdict) Perfect() bool {
	return v.Status == OutcomeMatch && v.Severity == OutcomeMatch && v.Assignee == OutcomeMatch
}

// Pair is a Jira issue joined to the ADO work item it references.
// WorkItem is nil when the referenced item could not be fetched; the link
// intent is preserved and every outcome degrades to unknown.
type Pair struct {
	Issue     Issue     `json:"issue"`
	WorkItem  *WorkItem `json:"work_item,omitempty"`
	Verdict   Verdict   `json:"verdict"`
	Duplicate bool      `json:"duplicate,omitempty"` // target already claimed by an earlier issue
}

// Resolved reports whether the referenced work item was found.
func (p Pair) Resolved() bool {
	return p.WorkItem != nil
}

// Confidence labels for similarity scores, highest tier first.
const (
	ConfidenceVeryHigh = "Very High"
	ConfidenceHigh     = "High"
	ConfidenceMedium   = "Medium"
	ConfidenceLow      = "Low"
)

// Candidate is a proposed work item match for an unlinked issue.
type Candidate struct {
	IssueKey   string `json:"issue_key"`
	WorkItemID string `json:"work_item_id"`
	Title      string `json:"title"`
	State      string `json:"state,omitempty"`
	Type       string `json:"type,omitempty"`
	Score      int    `json:"score"`
	Confidence string `json:"confidence"`
}

// Suggestion pairs an unlinked issue with its ranked candidates.
// Candidates is empty when nothing scored at or above the threshold.
type Suggestion struct {
	Issue      Issue       `json:"issue"`
	Candidates []Candidate `json:"candidates,omitempty"`
}
