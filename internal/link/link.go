// Package link partitions source issues by their ADO work item references.
package link

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/traceability-cli/internal/model"
)

// Resolve splits issues into linked pairs and unlinked issues, preserving
// input order in both outputs.
//
// A pair whose referenced work item is absent from items keeps a nil
// WorkItem; the link intent is never discarded. When several issues claim
// the same work item, every claim is kept and the later ones are flagged
// Duplicate. An empty items map is legal (every link is unresolvable);
// a nil issues slice is a contract violation.
func Resolve(issues []model.Issue, items map[string]model.WorkItem) ([]model.Pair, []model.Issue, error) {
	if issues == nil {
		return nil, nil, eris.New("link: nil issues")
	}

	claimed := make(map[string]string, len(issues)) // work item id -> first claiming issue key

	var pairs []model.Pair
	var unlinked []model.Issue
	for _, issue := range issues {
		if !issue.Linked() {
			unlinked = append(unlinked, issue)
			continue
		}

		pair := model.Pair{Issue: issue}
		if wi, ok := items[issue.ADOID]; ok {
			w := wi
			pair.WorkItem = &w
		}

		if first, dup := claimed[issue.ADOID]; dup {
			pair.Duplicate = true
			zap.L().Warn("link: work item claimed by multiple issues",
				zap.String("work_item", issue.ADOID),
				zap.String("issue", issue.Key),
				zap.String("first_claim", first),
			)
		} else {
			claimed[issue.ADOID] = issue.Key
		}

		pairs = append(pairs, pair)
	}

	return pairs, unlinked, nil
}

// ReferencedIDs returns the distinct work item ids referenced by issues,
// in first-seen order.
func ReferencedIDs(issues []model.Issue) []string {
	seen := make(map[string]bool, len(issues))
	var ids []string
	for _, issue := range issues {
		if !issue.Linked() || seen[issue.ADOID] {
			continue
		}
		seen[issue.ADOID] = true
		ids = append(ids, issue.ADOID)
	}
	return ids
}
