package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func issuePayload(key, summary, status string) map[string]any {
	return map[string]any{
		"key": key,
		"fields": map[string]any{
			"summary": summary,
			"status": map[string]any{
				"name":           status,
				"statusCategory": map[string]any{"name": "Done"},
			},
			"priority":             map[string]any{"name": "High"},
			"issuetype":            map[string]any{"name": "Bug"},
			"assignee":             map[string]any{"displayName": "Jane Smith"},
			"created":              "2024-03-05T14:30:00.000+0100",
			"resolutiondate":       nil,
			DefaultSeverityField:   map[string]any{"value": "Sev-2"},
			DefaultADOIDField:      "4512",
			DefaultADOStateField:   "Closed",
		},
	}
}

func TestSearch_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/3/search", r.URL.Path)
		assert.Equal(t, "project = PROJ", r.URL.Query().Get("jql"))
		assert.Contains(t, r.URL.Query().Get("fields"), DefaultADOIDField)

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "bot@example.com", user)
		assert.Equal(t, "api-token", pass)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"startAt":    0,
			"maxResults": 100,
			"total":      1,
			"issues":     []any{issuePayload("PROJ-1", "Login fails", "Done")},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "bot@example.com", "api-token")
	issues, err := client.Search(context.Background(), "project = PROJ")

	require.NoError(t, err)
	require.Len(t, issues, 1)
	got := issues[0]
	assert.Equal(t, "PROJ-1", got.Key)
	assert.Equal(t, "Login fails", got.Summary)
	assert.Equal(t, "Done", got.Status)
	assert.Equal(t, "Jane Smith", got.Assignee)
	assert.Equal(t, "Sev-2", got.Severity)
	assert.Equal(t, "4512", got.ADORef)
	assert.Equal(t, "Closed", got.ADOState)
	require.NotNil(t, got.Created)
	assert.Nil(t, got.Resolved)
}

func TestSearch_Pagination(t *testing.T) {
	t.Parallel()

	const total = 150
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startAt, _ := strconv.Atoi(r.URL.Query().Get("startAt"))
		maxResults, _ := strconv.Atoi(r.URL.Query().Get("maxResults"))
		assert.Equal(t, 100, maxResults)

		var page []any
		for i := startAt; i < total && i < startAt+maxResults; i++ {
			page = append(page, issuePayload(fmt.Sprintf("PROJ-%d", i+1), "issue", "Open"))
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"startAt":    startAt,
			"maxResults": maxResults,
			"total":      total,
			"issues":     page,
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "bot@example.com", "api-token", WithRateLimit(0))
	issues, err := client.Search(context.Background(), "project = PROJ")

	require.NoError(t, err)
	assert.Len(t, issues, total)
	assert.Equal(t, "PROJ-1", issues[0].Key)
	assert.Equal(t, "PROJ-150", issues[total-1].Key)
}

func TestSearch_EmptyJQL(t *testing.T) {
	t.Parallel()

	client := NewClient("http://localhost", "a@b.c", "t")
	_, err := client.Search(context.Background(), "  ")
	assert.Error(t, err)
}

func TestSearch_RetryOn500(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"startAt": 0, "maxResults": 100, "total": 0, "issues": []any{},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "bot@example.com", "api-token")
	issues, err := client.Search(context.Background(), "project = PROJ")

	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestSearch_AuthFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"errorMessages":["Unauthorized"]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "bot@example.com", "bad-token")
	_, err := client.Search(context.Background(), "project = PROJ")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestMyself_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/3/myself", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"displayName":"Sync Bot"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "bot@example.com", "api-token")
	name, err := client.Myself(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "Sync Bot", name)
}

func TestSearch_CustomFieldOverride(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Query().Get("fields"), "customfield_20001")

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"startAt": 0, "maxResults": 100, "total": 1,
			"issues": []any{map[string]any{
				"key": "PROJ-9",
				"fields": map[string]any{
					"summary":            "custom mapped",
					"customfield_20001":  map[string]any{"value": "Sev-1"},
					"customfield_20002":  44.0,
					"customfield_20003":  "Active",
				},
			}},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "bot@example.com", "api-token",
		WithCustomFields("customfield_20001", "customfield_20002", "customfield_20003"))
	issues, err := client.Search(context.Background(), "project = PROJ")

	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "Sev-1", issues[0].Severity)
	// Numeric references flatten to integer text.
	assert.Equal(t, "44", issues[0].ADORef)
	assert.Equal(t, "Active", issues[0].ADOState)
}
