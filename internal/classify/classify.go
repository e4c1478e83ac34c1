// Package classify compares a linked issue/work item pair field by field.
// Every comparison is tri-state: a side that fails to normalize makes the
// outcome unknown rather than guessing either way.
package classify

import (
	"github.com/sells-group/traceability-cli/internal/model"
	"github.com/sells-group/traceability-cli/internal/normalize"
)

// Classify produces the verdict for one pair. A nil work item (unresolvable
// link) yields unknown on every dimension. Pure given its inputs, so pairs
// can be classified concurrently.
func Classify(issue model.Issue, item *model.WorkItem, n *normalize.Normalizer) model.Verdict {
	if item == nil {
		return model.Verdict{
			Status:   model.OutcomeUnknown,
			Severity: model.OutcomeUnknown,
			Assignee: model.OutcomeUnknown,
		}
	}
	return model.Verdict{
		Status:   Status(n, issue.Status, item.State),
		Severity: Severity(n, issue.Severity, item.Severity),
		Assignee: Assignee(n, issue.Assignee, item.AssignedTo),
	}
}

// Status compares lifecycle buckets: both sides must normalize to a known
// class for a determinable outcome.
func Status(n *normalize.Normalizer, jiraStatus, adoState string) model.Outcome {
	a := n.Status(jiraStatus)
	b := n.Status(adoState)
	if a == normalize.StatusUnknown || b == normalize.StatusUnknown {
		return model.OutcomeUnknown
	}
	if a == b {
		return model.OutcomeMatch
	}
	return model.OutcomeMismatch
}

// Severity compares extracted ordinals.
func Severity(n *normalize.Normalizer, jiraSeverity, adoSeverity string) model.Outcome {
	a, aOK := n.Severity(jiraSeverity)
	b, bOK := n.Severity(adoSeverity)
	if !aOK || !bOK {
		return model.OutcomeUnknown
	}
	if a == b {
		return model.OutcomeMatch
	}
	return model.OutcomeMismatch
}

// Assignee compares folded identities. Two unassigned records are unknown,
// not a match: absence of an owner is not shared ownership.
func Assignee(n *normalize.Normalizer, jiraAssignee, adoAssignee string) model.Outcome {
	a, aOK := n.Assignee(jiraAssignee)
	b, bOK := n.Assignee(adoAssignee)
	if !aOK || !bOK {
		return model.OutcomeUnknown
	}
	if a == b {
		return model.OutcomeMatch
	}
	return model.OutcomeMismatch
}
