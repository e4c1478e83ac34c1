package model

import "time"

// Issue is a Jira issue flattened to the fields the reconciliation cares about.
// String fields carry raw values as reported by Jira; normalization happens
// at comparison time so reports can always show what the source actually said.
type Issue struct {
	Key            string     `json:"key"`
	Summary        string     `json:"summary"`
	Status         string     `json:"status"`
	StatusCategory string     `json:"status_category,omitempty"`
	Priority       string     `json:"priority,omitempty"`
	Severity       string     `json:"severity,omitempty"`
	Assignee       string     `json:"assignee,omitempty"`
	Type           string     `json:"type,omitempty"`
	ADOID          string     `json:"ado_id,omitempty"`
	ADOState       string     `json:"ado_state,omitempty"` // Jira's mirror of the ADO state, report-only
	Created        *time.Time `json:"created,omitempty"`
	Resolved       *time.Time `json:"resolved,omitempty"`
}

// Linked reports whether the issue carries an ADO work item reference.
func (i Issue) Linked() bool {
	return i.ADOID != ""
}

// WorkItem is an Azure DevOps work item flattened for comparison. The ID is
// kept as a string because it travels through Jira custom fields as text.
type WorkItem struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	State         string     `json:"state"`
	AssignedTo    string     `json:"assigned_to,omitempty"`
	Type          string     `json:"type,omitempty"`
	Priority      string     `json:"priority,omitempty"`
	Severity      string     `json:"severity,omitempty"`
	AreaPath      string     `json:"area_path,omitempty"`
	IterationPath string     `json:"iteration_path,omitempty"`
	Created       *time.Time `json:"created,omitempty"`
	Resolved      *time.Time `json:"resolved,omitempty"`
	Closed        *time.Time `json:"closed,omitempty"`
}
