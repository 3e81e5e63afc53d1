// Package client is the Go SDK for the scraping service: job submission,
// polling, and result rendering.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"scrapegate/internal/api"
)

// ErrEmptyQuery is returned before any network call when the query is blank.
var ErrEmptyQuery = fmt.Errorf("query must not be empty")

// JobError is returned when a polled job ends in the failed state. Its
// message is the server's error string, verbatim.
type JobError struct {
	JobID   string
	Message string
}

func (e *JobError) Error() string {
	return fmt.Sprintf("job %s failed: %s", e.JobID, e.Message)
}

type Client struct {
	baseURL  string
	apiKey   string
	httpc    *http.Client
	interval time.Duration
	maxPolls int
}

type Option func(*Client)

// WithHTTPClient swaps the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpc = h }
}

// WithPollInterval changes the fixed delay between status polls.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) { c.interval = d }
}

// WithMaxPolls bounds how many status checks WaitForJob performs. Zero means
// unbounded.
func WithMaxPolls(n int) Option {
	return func(c *Client) { c.maxPolls = n }
}

func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		httpc:    &http.Client{Timeout: 30 * time.Second},
		interval: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Scrape submits a scraping job and returns its acknowledgement.
func (c *Client) Scrape(ctx context.Context, req api.ScrapeRequest) (*api.ScrapeAccepted, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, ErrEmptyQuery
	}
	var out api.ScrapeAccepted
	if err := c.do(ctx, http.MethodPost, "/v1/scraper/scrape", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// BatchScrape submits a job over an explicit URL list.
func (c *Client) BatchScrape(ctx context.Context, req api.BatchScrapeRequest) (*api.ScrapeAccepted, error) {
	if len(req.URLs) == 0 {
		return nil, fmt.Errorf("urls must not be empty")
	}
	var out api.ScrapeAccepted
	if err := c.do(ctx, http.MethodPost, "/v1/scraper/batch", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MapSite discovers a site's links synchronously.
func (c *Client) MapSite(ctx context.Context, req api.MapRequest) (*api.MapResponse, error) {
	if req.URL == "" {
		return nil, fmt.Errorf("url must not be empty")
	}
	q := url.Values{}
	q.Set("url", req.URL)
	if req.Search != "" {
		q.Set("search", req.Search)
	}
	if req.Limit > 0 {
		q.Set("limit", strconv.Itoa(req.Limit))
	}
	if req.Depth > 0 {
		q.Set("depth", strconv.Itoa(req.Depth))
	}
	if req.IncludeSubdomains {
		q.Set("include_subdomains", "true")
	}
	var out api.MapResponse
	if err := c.do(ctx, http.MethodGet, "/v1/map?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// JobStatus fetches the current lifecycle state of a job.
func (c *Client) JobStatus(ctx context.Context, jobID string) (*api.JobStatusResponse, error) {
	var out api.JobStatusResponse
	if err := c.do(ctx, http.MethodGet, "/v1/scraper/jobs/"+jobID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// JobResults fetches the results of a completed job.
func (c *Client) JobResults(ctx context.Context, jobID string) (*api.JobResultsResponse, error) {
	var out api.JobResultsResponse
	if err := c.do(ctx, http.MethodGet, "/v1/scraper/jobs/"+jobID+"/results", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListJobs returns the caller's jobs, newest first.
func (c *Client) ListJobs(ctx context.Context) ([]api.JobListItem, error) {
	var out []api.JobListItem
	if err := c.do(ctx, http.MethodGet, "/v1/jobs", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteJob removes a job and its stored results.
func (c *Client) DeleteJob(ctx context.Context, jobID string) error {
	return c.do(ctx, http.MethodDelete, "/v1/jobs/"+jobID, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr api.Error
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s", method, path, apiErr.Error)
		}
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}
