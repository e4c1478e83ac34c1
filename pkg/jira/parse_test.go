package jira

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanADORef_Sentinels(t *testing.T) {
	assert.Equal(t, "", cleanADORef(""))
	assert.Equal(t, "", cleanADORef("  "))
	assert.Equal(t, "", cleanADORef("Not Linked"))
	assert.Equal(t, "", cleanADORef("not linked"))
	assert.Equal(t, "", cleanADORef("N/A"))
	assert.Equal(t, "", cleanADORef("None"))
	assert.Equal(t, "4512", cleanADORef(" 4512 "))
}

func TestScalarString_Shapes(t *testing.T) {
	assert.Equal(t, "hello", scalarString(json.RawMessage(`"hello"`)))
	assert.Equal(t, "4512", scalarString(json.RawMessage(`4512`)))
	assert.Equal(t, "4512", scalarString(json.RawMessage(`4512.0`)))
	assert.Equal(t, "4512.5", scalarString(json.RawMessage(`4512.5`)))
	assert.Equal(t, "", scalarString(nil))
	assert.Equal(t, "", scalarString(json.RawMessage(`{"nested":true}`)))
}

func TestOptionValue_Shapes(t *testing.T) {
	assert.Equal(t, "Sev-2", optionValue(json.RawMessage(`{"value":"Sev-2"}`)))
	assert.Equal(t, "bare", optionValue(json.RawMessage(`"bare"`)))
	assert.Equal(t, "7", optionValue(json.RawMessage(`{"value":7}`)))
	assert.Equal(t, "", optionValue(nil))
	assert.Equal(t, "", optionValue(json.RawMessage(`null`)))
}

func TestParseTime_Formats(t *testing.T) {
	got := parseTime("2024-03-05T14:30:00.000+0100")
	require.NotNil(t, got)
	assert.Equal(t, 2024, got.Year())

	got = parseTime("2024-03-05T14:30:00Z")
	require.NotNil(t, got)

	assert.Nil(t, parseTime(""))
	assert.Nil(t, parseTime("yesterday"))
}

func TestFlatten_MissingFields(t *testing.T) {
	env := issueEnvelope{Key: "PROJ-7", Fields: map[string]json.RawMessage{
		"summary": json.RawMessage(`"bare minimum"`),
	}}

	got := env.flatten(fieldIDs{
		severity: DefaultSeverityField,
		adoID:    DefaultADOIDField,
		adoState: DefaultADOStateField,
	})

	assert.Equal(t, "PROJ-7", got.Key)
	assert.Equal(t, "bare minimum", got.Summary)
	assert.Empty(t, got.Status)
	assert.Empty(t, got.Assignee)
	assert.Empty(t, got.ADORef)
	assert.Nil(t, got.Created)
}

func TestLoadFile_Envelope(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.json")
	payload := `{
		"total": 2,
		"issues": [
			{"key": "PROJ-1", "fields": {"summary": "first", "` + DefaultADOIDField + `": "100"}},
			{"key": "PROJ-2", "fields": {"summary": "second", "` + DefaultADOIDField + `": "Not Linked"}}
		]
	}`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o644))

	issues, err := LoadFile(path, "", "", "")
	require.NoError(t, err)
	require.Len(t, issues, 2)
	assert.Equal(t, "100", issues[0].ADORef)
	assert.Empty(t, issues[1].ADORef)
}

func TestLoadFile_BareArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.json")
	payload := `[{"key": "PROJ-1", "fields": {"summary": "only"}}]`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o644))

	issues, err := LoadFile(path, "", "", "")
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "PROJ-1", issues[0].Key)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.json"), "", "", "")
	assert.Error(t, err)

	_, err = LoadFile("", "", "", "")
	assert.Error(t, err)
}

func TestLoadFile_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o644))

	_, err := LoadFile(path, "", "", "")
	assert.Error(t, err)
}

func TestFileSource_Search(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.json")
	payload := `{"issues": [{"key": "PROJ-1", "fields": {"summary": "from file"}}]}`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o644))

	src := &FileSource{Path: path}
	issues, err := src.Search(context.Background(), "ignored")
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "from file", issues[0].Summary)
}
