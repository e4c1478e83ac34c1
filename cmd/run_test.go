package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/traceability-cli/internal/config"
	"github.com/sells-group/traceability-cli/internal/history"
	"github.com/sells-group/traceability-cli/internal/model"
	"github.com/sells-group/traceability-cli/pkg/jira"
)

func TestSourceForRun_FileMode(t *testing.T) {
	c := &config.Config{
		Source: config.SourceConfig{Mode: "file", Input: "/tmp/export.json"},
		Jira: config.JiraConfig{
			SeverityField: "customfield_1",
			ADOIDField:    "customfield_2",
			ADOStateField: "customfield_3",
		},
	}

	source, mode := sourceForRun(c)
	assert.Equal(t, "file", mode)

	fs, ok := source.(*jira.FileSource)
	require.True(t, ok)
	assert.Equal(t, "/tmp/export.json", fs.Path)
	assert.Equal(t, "customfield_1", fs.SeverityField)
	assert.Equal(t, "customfield_2", fs.ADOIDField)
	assert.Equal(t, "customfield_3", fs.ADOStateField)
}

func TestSourceForRun_APIMode(t *testing.T) {
	c := &config.Config{
		Source: config.SourceConfig{Mode: "api"},
		Jira: config.JiraConfig{
			URL:   "https://example.atlassian.net",
			Email: "bot@example.com",
			Token: "api-token",
		},
	}

	source, mode := sourceForRun(c)
	assert.Equal(t, "api", mode)
	require.NotNil(t, source)

	_, isFile := source.(*jira.FileSource)
	assert.False(t, isFile)
}

func TestLedgerHelpers_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")

	ledger := openLedger(ctx, path)
	require.NotNil(t, ledger)
	defer ledger.Close()

	runID := recordStart(ctx, ledger)
	require.NotEmpty(t, runID)

	finishLedger(ctx, ledger, runID, model.Summary{
		Total:           7,
		Linked:          5,
		Unlinked:        2,
		PerfectMatches:  3,
		SuggestionCount: 4,
	}, "out.xlsx", nil)

	runs, err := ledger.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, runID, runs[0].ID)
	assert.Equal(t, history.StatusComplete, runs[0].Status)
	assert.Equal(t, 7, runs[0].Total)
	assert.Equal(t, 5, runs[0].Linked)
	assert.Equal(t, 2, runs[0].Unlinked)
	assert.Equal(t, 3, runs[0].Perfect)
	assert.Equal(t, 4, runs[0].Suggestions)
	assert.Equal(t, "out.xlsx", runs[0].Artifact)
}

func TestLedgerHelpers_NilSafe(t *testing.T) {
	ctx := context.Background()

	assert.Empty(t, recordStart(ctx, nil))
	finishLedger(ctx, nil, "some-id", model.Summary{}, "", nil)

	// An empty run id is a no-op even against a live ledger.
	path := filepath.Join(t.TempDir(), "ledger.db")
	ledger := openLedger(ctx, path)
	require.NotNil(t, ledger)
	defer ledger.Close()

	finishLedger(ctx, ledger, "", model.Summary{}, "", nil)

	runs, err := ledger.List(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestOpenLedger_BadPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "sub", "ledger.db")
	assert.Nil(t, openLedger(context.Background(), path))
}

// newADOServer serves the work item and WIQL endpoints a reconciliation run
// hits: item 501 is the linked target, the WIQL scan surfaces item 600.
func newADOServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/wit/wiql"):
			json.NewEncoder(w).Encode(map[string]any{
				"workItems": []map[string]any{{"id": 600}},
			})
		case strings.HasSuffix(r.URL.Path, "/wit/workitems/501"):
			json.NewEncoder(w).Encode(map[string]any{
				"id": 501,
				"fields": map[string]any{
					"System.Title":                   "Checkout fails on submit",
					"System.State":                   "Closed",
					"System.AssignedTo":              map[string]any{"displayName": "Dana Scully"},
					"System.WorkItemType":            "Bug",
					"Microsoft.VSTS.Common.Severity": "2 - High",
				},
			})
		case strings.HasSuffix(r.URL.Path, "/wit/workitems/600"):
			json.NewEncoder(w).Encode(map[string]any{
				"id": 600,
				"fields": map[string]any{
					"System.Title":        "Crash on login page",
					"System.State":        "Active",
					"System.WorkItemType": "Bug",
				},
			})
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// writeExportFile drops a two-issue Jira search export: PROJ-1 linked to
// item 501 and matching it on every dimension, PROJ-2 unlinked.
func writeExportFile(t *testing.T) string {
	t.Helper()
	payload := map[string]any{
		"issues": []map[string]any{
			{
				"key": "PROJ-1",
				"fields": map[string]any{
					"summary": "Checkout fails on submit",
					"status": map[string]any{
						"name":           "Done",
						"statusCategory": map[string]any{"name": "Done"},
					},
					"assignee":          map[string]any{"displayName": "Dana Scully"},
					"customfield_10042": map[string]any{"value": "2 - High"},
					"customfield_10109": "501",
				},
			},
			{
				"key": "PROJ-2",
				"fields": map[string]any{
					"summary": "Login page crash",
					"status": map[string]any{
						"name":           "Open",
						"statusCategory": map[string]any{"name": "To Do"},
					},
				},
			},
		},
	}
	data, err := json.Marshal(payload)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "export.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// withRunConfig swaps the package config for the test and restores it after.
func withRunConfig(t *testing.T, c *config.Config) {
	t.Helper()
	old := cfg
	cfg = c
	t.Cleanup(func() { cfg = old })
}

func newRunConfig(adoURL, input, dir string) *config.Config {
	return &config.Config{
		Jira: config.JiraConfig{JQL: "project = PROJ"},
		ADO: config.ADOConfig{
			Server:     adoURL,
			Collection: "DefaultCollection",
			Project:    "Payments",
			PAT:        "pat-token",
		},
		Source:  config.SourceConfig{Mode: "file", Input: input},
		Match:   config.MatchConfig{Threshold: 70, Limit: 5},
		Recon:   config.ReconConfig{ScanDays: 30, ScanLimit: 50, Workers: 2, TopAssignees: 5},
		Report:  config.ReportConfig{Output: filepath.Join(dir, "report.xlsx")},
		History: config.HistoryConfig{Path: filepath.Join(dir, "ledger.db")},
	}
}

func TestExecuteRun_FileSourceDryRun(t *testing.T) {
	srv := newADOServer(t)
	dir := t.TempDir()
	c := newRunConfig(srv.URL, writeExportFile(t), dir)
	withRunConfig(t, c)

	ctx := context.Background()
	out := filepath.Join(dir, "report.xlsx")
	result, err := executeRun(ctx, "", out, true)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, 2, result.Summary.Total)
	assert.Equal(t, 1, result.Summary.Linked)
	assert.Equal(t, 1, result.Summary.Unlinked)
	assert.Equal(t, 1, result.Summary.PerfectMatches)
	assert.Equal(t, 1, result.Summary.SuggestionCount)

	require.Len(t, result.Suggestions, 1)
	require.NotEmpty(t, result.Suggestions[0].Candidates)
	assert.Equal(t, "600", result.Suggestions[0].Candidates[0].WorkItemID)

	// Dry run: no workbook on disk.
	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))

	// The ledger row completes with no artifact.
	ledger := openLedger(ctx, c.History.Path)
	require.NotNil(t, ledger)
	defer ledger.Close()

	runs, err := ledger.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, history.StatusComplete, runs[0].Status)
	assert.Equal(t, 2, runs[0].Total)
	assert.Equal(t, 1, runs[0].Linked)
	assert.Empty(t, runs[0].Artifact)
}

func TestExecuteRun_WritesWorkbook(t *testing.T) {
	srv := newADOServer(t)
	dir := t.TempDir()
	c := newRunConfig(srv.URL, writeExportFile(t), dir)
	withRunConfig(t, c)

	ctx := context.Background()
	out := filepath.Join(dir, "report.xlsx")
	result, err := executeRun(ctx, "", out, false)
	require.NoError(t, err)
	require.NotNil(t, result)

	wb, err := xlsx.OpenFile(out)
	require.NoError(t, err)
	assert.Len(t, wb.Sheets, 7)

	ledger := openLedger(ctx, c.History.Path)
	require.NotNil(t, ledger)
	defer ledger.Close()

	runs, err := ledger.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, history.StatusComplete, runs[0].Status)
	assert.Equal(t, out, runs[0].Artifact)
}

func TestExecuteRun_FetchFailure(t *testing.T) {
	dir := t.TempDir()
	// Source file does not exist; the run fails before any ADO traffic.
	c := newRunConfig("http://127.0.0.1:1", filepath.Join(dir, "missing.json"), dir)
	withRunConfig(t, c)

	ctx := context.Background()
	result, err := executeRun(ctx, "", filepath.Join(dir, "report.xlsx"), false)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "fetch issues")

	ledger := openLedger(ctx, c.History.Path)
	require.NotNil(t, ledger)
	defer ledger.Close()

	runs, err := ledger.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, history.StatusFailed, runs[0].Status)
	assert.NotEmpty(t, runs[0].Error)
	assert.Empty(t, runs[0].Artifact)
}
