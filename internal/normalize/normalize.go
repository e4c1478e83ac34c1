// Package normalize canonicalizes raw Jira and ADO field values so they can
// be compared across systems. Every function is total: values that cannot be
// canonicalized report not-ok instead of erroring, and the comparison layer
// treats them as unknown.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// StatusClass is the lifecycle bucket a raw status string normalizes to.
type StatusClass string

const (
	StatusClosed  StatusClass = "closed"
	StatusOpen    StatusClass = "open"
	StatusUnknown StatusClass = "unknown"
)

// DefaultClosedStatuses covers the closed-side vocabulary of both systems:
// Jira resolution states plus the ADO Closed/Removed states.
var DefaultClosedStatuses = []string{
	"closed", "done", "resolved", "completed", "removed",
}

// DefaultOpenStatuses covers active states on both sides.
var DefaultOpenStatuses = []string{
	"open", "new", "active", "in progress", "to do", "reopened",
}

// Config sets the status vocabularies. Empty lists fall back to the defaults.
type Config struct {
	ClosedStatuses []string
	OpenStatuses   []string
}

// Normalizer canonicalizes field values using configured vocabularies.
// It is safe for concurrent use.
type Normalizer struct {
	closed map[string]bool
	open   map[string]bool
}

// New builds a Normalizer from cfg.
func New(cfg Config) *Normalizer {
	closed := cfg.ClosedStatuses
	if len(closed) == 0 {
		closed = DefaultClosedStatuses
	}
	open := cfg.OpenStatuses
	if len(open) == 0 {
		open = DefaultOpenStatuses
	}

	n := &Normalizer{
		closed: make(map[string]bool, len(closed)),
		open:   make(map[string]bool, len(open)),
	}
	for _, s := range closed {
		n.closed[foldStatus(s)] = true
	}
	for _, s := range open {
		n.open[foldStatus(s)] = true
	}
	return n
}

var severityDigitsRe = regexp.MustCompile(`\d+`)

// Severity extracts the severity ordinal from a raw lexicon value by taking
// the first contiguous digit run: "Sev-4" and "4 - High" both yield 4.
// Purely textual values like "Critical" have no ordinal and report not-ok.
func (n *Normalizer) Severity(raw string) (int, bool) {
	digits := severityDigitsRe.FindString(raw)
	if digits == "" {
		return 0, false
	}
	v, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Status classifies a raw status string as closed, open, or unknown.
// Membership is checked on the trimmed, case-folded whole string; closed
// wins when a value appears in both vocabularies.
func (n *Normalizer) Status(raw string) StatusClass {
	key := foldStatus(raw)
	if key == "" {
		return StatusUnknown
	}
	if n.closed[key] {
		return StatusClosed
	}
	if n.open[key] {
		return StatusOpen
	}
	return StatusUnknown
}

// Assignee canonicalizes a display name for identity comparison: trims,
// strips diacritics, case-folds, and collapses interior whitespace.
// Empty values and the "unassigned" sentinel report not-ok so that two
// unassigned records never count as a match.
func (n *Normalizer) Assignee(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	s = cases.Fold().String(stripDiacritics(s))
	s = multiSpaceRe.ReplaceAllString(s, " ")
	if s == "unassigned" {
		return "", false
	}
	return s, true
}

var multiSpaceRe = regexp.MustCompile(`\s{2,}`)

func foldStatus(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// stripDiacritics decomposes to NFD, drops combining marks, and recomposes,
// so "José" compares equal to "Jose".
func stripDiacritics(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return norm.NFC.String(b.String())
}
