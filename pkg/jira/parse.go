package jira

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Issue is a Jira issue flattened to the reconciliation fields. Custom field
// payloads are already unwrapped: Severity and ADOState hold the option
// value, ADORef holds the cleaned work item reference ("" when the issue is
// not linked or carries a not-linked sentinel).
type Issue struct {
	Key            string     `json:"key"`
	Summary        string     `json:"summary"`
	Status         string     `json:"status"`
	StatusCategory string     `json:"status_category,omitempty"`
	Priority       string     `json:"priority,omitempty"`
	Type           string     `json:"type,omitempty"`
	Assignee       string     `json:"assignee,omitempty"`
	Severity       string     `json:"severity,omitempty"`
	ADORef         string     `json:"ado_ref,omitempty"`
	ADOState       string     `json:"ado_state,omitempty"`
	Created        *time.Time `json:"created,omitempty"`
	Resolved       *time.Time `json:"resolved,omitempty"`
}

type fieldIDs struct {
	severity string
	adoID    string
	adoState string
}

type searchResponse struct {
	StartAt    int             `json:"startAt"`
	MaxResults int             `json:"maxResults"`
	Total      int             `json:"total"`
	Issues     []issueEnvelope `json:"issues"`
}

// issueEnvelope keeps fields raw so instance-specific custom field ids can
// be looked up by name.
type issueEnvelope struct {
	Key    string                     `json:"key"`
	Fields map[string]json.RawMessage `json:"fields"`
}

func (e issueEnvelope) flatten(ids fieldIDs) Issue {
	f := e.Fields

	issue := Issue{
		Key:     e.Key,
		Summary: jsonString(f["summary"]),
	}

	var status struct {
		Name           string `json:"name"`
		StatusCategory struct {
			Name string `json:"name"`
		} `json:"statusCategory"`
	}
	if raw, ok := f["status"]; ok {
		_ = json.Unmarshal(raw, &status)
	}
	issue.Status = status.Name
	issue.StatusCategory = status.StatusCategory.Name

	issue.Priority = namedField(f["priority"])
	issue.Type = namedField(f["issuetype"])

	var assignee struct {
		DisplayName string `json:"displayName"`
	}
	if raw, ok := f["assignee"]; ok {
		_ = json.Unmarshal(raw, &assignee)
	}
	issue.Assignee = assignee.DisplayName

	issue.Severity = optionValue(f[ids.severity])
	issue.ADORef = cleanADORef(optionValue(f[ids.adoID]))
	issue.ADOState = optionValue(f[ids.adoState])

	issue.Created = parseTime(jsonString(f["created"]))
	issue.Resolved = parseTime(jsonString(f["resolutiondate"]))

	return issue
}

// namedField extracts the "name" of a Jira named entity (priority, issuetype).
func namedField(raw json.RawMessage) string {
	var v struct {
		Name string `json:"name"`
	}
	if raw == nil {
		return ""
	}
	_ = json.Unmarshal(raw, &v)
	return v.Name
}

// optionValue extracts a custom field value: select options arrive as
// {"value": ...}, free-form fields as a bare string or number.
func optionValue(raw json.RawMessage) string {
	if raw == nil {
		return ""
	}
	var opt struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(raw, &opt); err == nil && opt.Value != nil {
		return scalarString(opt.Value)
	}
	return scalarString(raw)
}

// scalarString renders a JSON scalar as text. Numbers render without a
// fractional part when whole, matching how numeric ids come back from Jira.
func scalarString(raw json.RawMessage) string {
	if raw == nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		if n == float64(int64(n)) {
			return strconv.FormatInt(int64(n), 10)
		}
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return ""
}

// notLinkedSentinels are field values teams use to mark "no ADO item".
var notLinkedSentinels = map[string]bool{
	"not linked": true,
	"n/a":        true,
	"none":       true,
}

// cleanADORef normalizes a work item reference, mapping sentinels to empty.
func cleanADORef(ref string) string {
	ref = strings.TrimSpace(ref)
	if notLinkedSentinels[strings.ToLower(ref)] {
		return ""
	}
	return ref
}

func jsonString(raw json.RawMessage) string {
	var s string
	if raw == nil {
		return ""
	}
	_ = json.Unmarshal(raw, &s)
	return s
}

// jiraTimeLayout is Jira's REST timestamp format, e.g.
// "2024-03-05T14:30:00.000+0100".
const jiraTimeLayout = "2006-01-02T15:04:05.000-0700"

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(jiraTimeLayout, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return nil
		}
	}
	return &t
}
