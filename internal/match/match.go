// Package match ranks candidate work items for unlinked issues by title
// similarity. Scores use a token-sort ratio: titles are tokenized, folded,
// and re-joined in sorted order before the Levenshtein similarity is taken,
// so word reordering does not depress the score.
package match

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/agext/levenshtein"

	"github.com/sells-group/traceability-cli/internal/model"
)

const (
	// DefaultThreshold is the minimum score a candidate must reach.
	DefaultThreshold = 70
	// DefaultLimit caps how many candidates are suggested per issue.
	DefaultLimit = 5
)

// Config tunes candidate selection.
type Config struct {
	Threshold int `yaml:"threshold" mapstructure:"threshold"`
	Limit     int `yaml:"limit" mapstructure:"limit"`
}

// Matcher scores and ranks work item candidates. Safe for concurrent use.
type Matcher struct {
	threshold int
	limit     int
	params    *levenshtein.Params
}

// New builds a Matcher; non-positive config values fall back to defaults.
func New(cfg Config) *Matcher {
	m := &Matcher{
		threshold: cfg.Threshold,
		limit:     cfg.Limit,
		params:    levenshtein.NewParams(),
	}
	if m.threshold <= 0 {
		m.threshold = DefaultThreshold
	}
	if m.limit <= 0 {
		m.limit = DefaultLimit
	}
	return m
}

// Score returns the token-sort similarity of two titles on a 0-100 scale.
// A title with no tokens scores 0 against everything, including another
// empty title.
func (m *Matcher) Score(a, b string) int {
	sa := tokenSort(a)
	sb := tokenSort(b)
	if sa == "" || sb == "" {
		return 0
	}
	return int(math.Round(levenshtein.Similarity(sa, sb, m.params) * 100))
}

// Rank returns the candidates from pool scoring at or above the threshold,
// ordered by score descending with ties broken by ascending work item id,
// truncated to the configured limit. The pool is taken as given: items that
// are already linked elsewhere are the caller's business to include or not.
func (m *Matcher) Rank(issue model.Issue, pool []model.WorkItem) []model.Candidate {
	if tokenSort(issue.Summary) == "" {
		return nil
	}

	var out []model.Candidate
	for _, wi := range pool {
		score := m.Score(issue.Summary, wi.Title)
		if score < m.threshold {
			continue
		}
		out = append(out, model.Candidate{
			IssueKey:   issue.Key,
			WorkItemID: wi.ID,
			Title:      wi.Title,
			State:      wi.State,
			Type:       wi.Type,
			Score:      score,
			Confidence: Confidence(score),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return lessID(out[i].WorkItemID, out[j].WorkItemID)
	})

	if len(out) > m.limit {
		out = out[:m.limit]
	}
	return out
}

// Confidence maps a score to its tier label.
func Confidence(score int) string {
	switch {
	case score >= 90:
		return model.ConfidenceVeryHigh
	case score >= 80:
		return model.ConfidenceHigh
	case score >= 70:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}

var tokenRe = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// tokenSort folds a title to lowercase, splits on non-alphanumeric runs,
// sorts the tokens, and rejoins them with single spaces.
func tokenSort(s string) string {
	parts := tokenRe.Split(strings.ToLower(s), -1)
	tokens := parts[:0]
	for _, p := range parts {
		if p != "" {
			tokens = append(tokens, p)
		}
	}
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// lessID orders work item ids numerically when both parse as integers,
// lexicographically otherwise.
func lessID(a, b string) bool {
	ai, aErr := strconv.Atoi(a)
	bi, bErr := strconv.Atoi(b)
	if aErr == nil && bErr == nil {
		return ai < bi
	}
	return a < b
}
