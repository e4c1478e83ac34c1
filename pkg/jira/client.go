// Package jira provides a Jira Cloud REST v3 client scoped to issue search,
// flattening raw payloads into the fields the reconciliation needs.
package jira

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Default custom field ids for the ADO traceability fields. Jira assigns
// these per instance; override with WithCustomFields.
const (
	DefaultSeverityField = "customfield_10042"
	DefaultADOIDField    = "customfield_10109"
	DefaultADOStateField = "customfield_10110"
)

// DefaultPageSize is the search page size; 100 is the v3 search maximum.
const DefaultPageSize = 100

// Client defines the Jira operations used by the reconciliation.
type Client interface {
	// Search runs a JQL query and returns every matching issue, following
	// pagination to the end.
	Search(ctx context.Context, jql string) ([]Issue, error)
	// Myself returns the display name of the authenticated user. Used as a
	// connectivity and credential probe.
	Myself(ctx context.Context) (string, error)
}

// Option configures the Jira client.
type Option func(*httpClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit overrides the default request throttle (5 req/s).
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

// WithPageSize sets the search page size.
func WithPageSize(n int) Option {
	return func(c *httpClient) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithCustomFields sets the custom field ids carrying severity, the ADO work
// item reference, and the mirrored ADO state.
func WithCustomFields(severity, adoID, adoState string) Option {
	return func(c *httpClient) {
		if severity != "" {
			c.fields.severity = severity
		}
		if adoID != "" {
			c.fields.adoID = adoID
		}
		if adoState != "" {
			c.fields.adoState = adoState
		}
	}
}

type httpClient struct {
	baseURL  string
	email    string
	token    string
	pageSize int
	fields   fieldIDs
	limiter  *rate.Limiter
	http     *http.Client
}

// NewClient creates a Jira client authenticating with email + API token
// basic auth.
func NewClient(baseURL, email, token string, opts ...Option) Client {
	c := &httpClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		email:    email,
		token:    token,
		pageSize: DefaultPageSize,
		fields: fieldIDs{
			severity: DefaultSeverityField,
			adoID:    DefaultADOIDField,
			adoState: DefaultADOStateField,
		},
		limiter: rate.NewLimiter(5, 1),
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
// (429, 500, 502, 503). Returns the body and status of the final response.
func (c *httpClient) retryDo(ctx context.Context, req *http.Request) ([]byte, int, error) {
	const maxAttempts = 3
	backoff := 1 * time.Second

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		retryReq := req.Clone(ctx)

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
			return nil, resp.StatusCode, eris.Wrap(readErr, "jira: read response body")
		}

		if retryableStatusCode(resp.StatusCode) && attempt < maxAttempts {
			lastErr = eris.Errorf("jira: status %d: %s", resp.StatusCode, string(body))
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

func (c *httpClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if err := c.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "jira: rate limit")
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "jira: create request")
	}
	req.SetBasicAuth(c.email, c.token)
	req.Header.Set("Accept", "application/json")

	body, statusCode, err := c.retryDo(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "jira: request failed")
	}
	if statusCode != http.StatusOK {
		return nil, eris.Errorf("jira: unexpected status %d: %s", statusCode, string(body))
	}
	return body, nil
}

func (c *httpClient) Search(ctx context.Context, jql string) ([]Issue, error) {
	if strings.TrimSpace(jql) == "" {
		return nil, eris.New("jira: empty jql")
	}

	fields := strings.Join([]string{
		"summary", "status", "priority", "issuetype", "assignee",
		"created", "resolutiondate",
		c.fields.severity, c.fields.adoID, c.fields.adoState,
	}, ",")

	var issues []Issue
	startAt := 0
	for {
		params := url.Values{}
		params.Set("jql", jql)
		params.Set("startAt", strconv.Itoa(startAt))
		params.Set("maxResults", strconv.Itoa(c.pageSize))
		params.Set("fields", fields)

		body, err := c.get(ctx, "/rest/api/3/search", params)
		if err != nil {
			return nil, err
		}

		var page searchResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, eris.Wrap(err, "jira: unmarshal search response")
		}

		for _, env := range page.Issues {
			issues = append(issues, env.flatten(c.fields))
		}

		startAt += len(page.Issues)
		if len(page.Issues) == 0 || startAt >= page.Total {
			break
		}
	}

	return issues, nil
}

func (c *httpClient) Myself(ctx context.Context) (string, error) {
	body, err := c.get(ctx, "/rest/api/3/myself", nil)
	if err != nil {
		return "", err
	}

	var me struct {
		DisplayName string `json:"displayName"`
	}
	if err := json.Unmarshal(body, &me); err != nil {
		return "", eris.Wrap(err, "jira: unmarshal myself response")
	}
	return me.DisplayName, nil
}
