package ado

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// WorkItem is an ADO work item flattened to the reconciliation fields.
// Severity and Priority stay textual because on-premise installations mix
// bare ordinals ("2") with labeled values ("2 - High").
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
	Closed        *time.Time `json:"closed,omitempty"`
	Resolved      *time.Time `json:"resolved,omitempty"`
}

// workItemEnvelope keeps fields raw: ADO reports every field under its
// reference name and the value shapes vary by server version.
type workItemEnvelope struct {
	ID     json.Number                `json:"id"`
	Fields map[string]json.RawMessage `json:"fields"`
}

func (e workItemEnvelope) flatten() WorkItem {
	f := e.Fields
	return WorkItem{
		ID:            e.ID.String(),
		Title:         fieldString(f["System.Title"]),
		State:         fieldString(f["System.State"]),
		AssignedTo:    identityName(f["System.AssignedTo"]),
		Type:          fieldString(f["System.WorkItemType"]),
		Priority:      fieldString(f["Microsoft.VSTS.Common.Priority"]),
		Severity:      fieldString(f["Microsoft.VSTS.Common.Severity"]),
		AreaPath:      fieldString(f["System.AreaPath"]),
		IterationPath: fieldString(f["System.IterationPath"]),
		Created:       parseTime(fieldString(f["System.CreatedDate"])),
		Closed:        parseTime(fieldString(f["Microsoft.VSTS.Common.ClosedDate"])),
		Resolved:      parseTime(fieldString(f["Microsoft.VSTS.Common.ResolvedDate"])),
	}
}

// identityName extracts a display name. Older servers return identity fields
// as bare "Name <DOMAIN\\user>" strings, newer ones as identity objects.
func identityName(raw json.RawMessage) string {
	if raw == nil {
		return ""
	}
	var identity struct {
		DisplayName string `json:"displayName"`
	}
	if err := json.Unmarshal(raw, &identity); err == nil && identity.DisplayName != "" {
		return identity.DisplayName
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		// Strip a trailing "<...>" account qualifier.
		if i := strings.IndexByte(s, '<'); i > 0 {
			s = s[:i]
		}
		return strings.TrimSpace(s)
	}
	return ""
}

// fieldString renders a scalar field as text. Numbers render without a
// fractional part when whole, so Priority 2 reads "2", not "2.000000".
func fieldString(raw json.RawMessage) string {
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

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}
