package jira

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
)

// FileSource serves issues from an exported search payload instead of the
// API, for offline runs and replaying a prior snapshot. The JQL argument to
// Search is ignored.
type FileSource struct {
	Path string

	// Custom field ids; empty values fall back to the package defaults.
	SeverityField string
	ADOIDField    string
	ADOStateField string
}

func (s *FileSource) Search(_ context.Context, _ string) ([]Issue, error) {
	return LoadFile(s.Path, s.SeverityField, s.ADOIDField, s.ADOStateField)
}

// LoadFile parses an exported search payload. Both the full search envelope
// ({"issues": [...]}) and a bare issue array are accepted.
func LoadFile(path, severityField, adoIDField, adoStateField string) ([]Issue, error) {
	if path == "" {
		return nil, eris.New("jira: empty input path")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "jira: read %s", path)
	}

	ids := fieldIDs{
		severity: severityField,
		adoID:    adoIDField,
		adoState: adoStateField,
	}
	if ids.severity == "" {
		ids.severity = DefaultSeverityField
	}
	if ids.adoID == "" {
		ids.adoID = DefaultADOIDField
	}
	if ids.adoState == "" {
		ids.adoState = DefaultADOStateField
	}

	var envelope struct {
		Issues []issueEnvelope `json:"issues"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		var bare []issueEnvelope
		if bareErr := json.Unmarshal(data, &bare); bareErr != nil {
			return nil, eris.Wrapf(err, "jira: parse %s", path)
		}
		envelope.Issues = bare
	}

	issues := make([]Issue, 0, len(envelope.Issues))
	for _, env := range envelope.Issues {
		issues = append(issues, env.flatten(ids))
	}
	return issues, nil
}
