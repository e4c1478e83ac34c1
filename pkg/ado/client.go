// Package ado provides an Azure DevOps Server REST client scoped to work
// item retrieval: single lookups for linked issues, WIQL-driven scans for
// the similarity candidate pool, and a project probe for connectivity checks.
package ado

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// apiVersion is the REST api-version understood by on-premise ADO Server
// installations from TFS 2018 onward.
const apiVersion = "5.0"

// DefaultConcurrency bounds parallel work item hydration.
const DefaultConcurrency = 5

// Client defines the Azure DevOps operations used by the reconciliation.
type Client interface {
	// WorkItem fetches a single work item by id. A nonexistent id returns
	// (nil, nil): absence is data, not an error.
	WorkItem(ctx context.Context, id string) (*WorkItem, error)
	// WorkItems fetches the given ids concurrently and returns the ones that
	// exist, keyed by id. Missing ids are simply absent from the map.
	WorkItems(ctx context.Context, ids []string) (map[string]WorkItem, error)
	// RecentWorkItems queries items created in the trailing window via WIQL
	// and hydrates up to limit of them, newest first.
	RecentWorkItems(ctx context.Context, days, limit int) ([]WorkItem, error)
	// Project returns the project name as reported by the server. Used as a
	// connectivity and credential probe.
	Project(ctx context.Context) (string, error)
}

// Option configures the ADO client.
type Option func(*httpClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit overrides the default request throttle (10 req/s).
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

// WithConcurrency bounds how many work items are hydrated in parallel.
func WithConcurrency(n int) Option {
	return func(c *httpClient) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

type httpClient struct {
	server      string // e.g. https://tfs.example.com
	collection  string
	project     string
	pat         string
	concurrency int
	limiter     *rate.Limiter
	http        *http.Client
}

// NewClient creates an ADO client for one project, authenticating with a
// personal access token (basic auth, empty username).
func NewClient(server, collection, project, pat string, opts ...Option) Client {
	c := &httpClient{
		server:      strings.TrimRight(server, "/"),
		collection:  collection,
		project:     project,
		pat:         pat,
		concurrency: DefaultConcurrency,
		limiter:     rate.NewLimiter(10, 1),
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// apiBase is the project-scoped API root: {server}/{collection}/{project}/_apis.
func (c *httpClient) apiBase() string {
	return fmt.Sprintf("%s/%s/%s/_apis", c.server, url.PathEscape(c.collection), url.PathEscape(c.project))
}

func (c *httpClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// retryableStatusCode returns true if the HTTP status code should trigger a retry.
func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable
}

// retryDo executes a request with exponential backoff on transient failures
// (429, 500, 502, 503). POST bodies are replayed via GetBody on each attempt.
// Returns the body and status of the final response.
func (c *httpClient) retryDo(ctx context.Context, req *http.Request) ([]byte, int, error) {
	const maxAttempts = 3
	backoff := 1 * time.Second

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		retryReq := req.Clone(ctx)
		if req.GetBody != nil {
			b, err := req.GetBody()
			if err != nil {
				return nil, 0, eris.Wrap(err, "ado: rewind request body")
			}
			retryReq.Body = b
		}

		resp, err := c.http.Do(retryReq)
		if err != nil {
			lastErr = err
			if attempt < maxAttempts {
				select {
				case <-ctx.Done():
					return nil, 0, ctx.Err()
				case <-time.After(backoff):
				}
				backoff *= 2
				continue
			}
			return nil, 0, lastErr
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, resp.StatusCode, eris.Wrap(readErr, "ado: read response body")
		}

		if retryableStatusCode(resp.StatusCode) && attempt < maxAttempts {
			lastErr = eris.Errorf("ado: status %d: %s", resp.StatusCode, string(body))
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}

		return body, resp.StatusCode, nil
	}

	return nil, 0, lastErr
}

func (c *httpClient) do(ctx context.Context, method, reqURL string, payload any) ([]byte, int, error) {
	if err := c.wait(ctx); err != nil {
		return nil, 0, eris.Wrap(err, "ado: rate limit")
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, eris.Wrap(err, "ado: marshal payload")
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, 0, eris.Wrap(err, "ado: create request")
	}
	req.SetBasicAuth("", c.pat)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	respBody, statusCode, err := c.retryDo(ctx, req)
	if err != nil {
		return nil, 0, eris.Wrap(err, "ado: request failed")
	}
	return respBody, statusCode, nil
}

func (c *httpClient) WorkItem(ctx context.Context, id string) (*WorkItem, error) {
	if strings.TrimSpace(id) == "" {
		return nil, eris.New("ado: empty work item id")
	}

	reqURL := fmt.Sprintf("%s/wit/workitems/%s?api-version=%s", c.apiBase(), url.PathEscape(id), apiVersion)
	body, statusCode, err := c.do(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	// Deleted or never-existing ids come back 404; the link resolver treats
	// the absence as unresolvable, so it is not an error here.
	if statusCode == http.StatusNotFound {
		return nil, nil
	}
	if statusCode != http.StatusOK {
		return nil, eris.Errorf("ado: work item %s: unexpected status %d: %s", id, statusCode, string(body))
	}

	var env workItemEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, eris.Wrapf(err, "ado: unmarshal work item %s", id)
	}
	wi := env.flatten()
	return &wi, nil
}

func (c *httpClient) WorkItems(ctx context.Context, ids []string) (map[string]WorkItem, error) {
	items := make(map[string]WorkItem, len(ids))
	if len(ids) == 0 {
		return items, nil
	}

	// Per-index slots, folded into the map after the group finishes.
	found := make([]*WorkItem, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			wi, err := c.WorkItem(gctx, id)
			if err != nil {
				return err
			}
			found[i] = wi
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "ado: fetch work items")
	}

	for i, wi := range found {
		if wi != nil {
			items[ids[i]] = *wi
		}
	}
	return items, nil
}

func (c *httpClient) RecentWorkItems(ctx context.Context, days, limit int) ([]WorkItem, error) {
	if days < 0 {
		return nil, eris.Errorf("ado: negative scan window: %d days", days)
	}

	// WIQL string literals escape single quotes by doubling them.
	project := strings.ReplaceAll(c.project, "'", "''")
	query := fmt.Sprintf(
		"SELECT [System.Id], [System.Title] FROM WorkItems "+
			"WHERE [System.TeamProject] = '%s' AND [System.CreatedDate] >= @Today - %d "+
			"ORDER BY [System.CreatedDate] DESC",
		project, days,
	)

	reqURL := fmt.Sprintf("%s/wit/wiql?api-version=%s", c.apiBase(), apiVersion)
	body, statusCode, err := c.do(ctx, http.MethodPost, reqURL, map[string]string{"query": query})
	if err != nil {
		return nil, err
	}
	if statusCode != http.StatusOK {
		return nil, eris.Errorf("ado: wiql query: unexpected status %d: %s", statusCode, string(body))
	}

	var result struct {
		WorkItems []struct {
			ID json.Number `json:"id"`
		} `json:"workItems"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "ado: unmarshal wiql response")
	}

	ids := make([]string, 0, len(result.WorkItems))
	for _, ref := range result.WorkItems {
		ids = append(ids, ref.ID.String())
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	byID, err := c.WorkItems(ctx, ids)
	if err != nil {
		return nil, err
	}

	// Keep the WIQL ordering for ids that hydrated.
	items := make([]WorkItem, 0, len(byID))
	for _, id := range ids {
		if wi, ok := byID[id]; ok {
			items = append(items, wi)
		}
	}
	return items, nil
}

func (c *httpClient) Project(ctx context.Context) (string, error) {
	reqURL := fmt.Sprintf("%s/%s/_apis/projects/%s?api-version=%s",
		c.server, url.PathEscape(c.collection), url.PathEscape(c.project), apiVersion)
	body, statusCode, err := c.do(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", err
	}
	if statusCode != http.StatusOK {
		return "", eris.Errorf("ado: project probe: unexpected status %d: %s", statusCode, string(body))
	}

	var project struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body, &project); err != nil {
		return "", eris.Wrap(err, "ado: unmarshal project response")
	}
	return project.Name, nil
}
