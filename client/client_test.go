package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scrapegate/internal/api"
)

// fakeJobServer simulates the job endpoints: the job reports pending for a
// configured number of status calls, then settles into its final state.
type fakeJobServer struct {
	pendingPolls int32
	finalStatus  string
	errorMessage string
	results      []api.ResultItem

	statusCalls  int32
	resultsCalls int32
	scrapeCalls  int32
}

func (f *fakeJobServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/scraper/scrape", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.scrapeCalls, 1)
		_ = json.NewEncoder(w).Encode(api.ScrapeAccepted{JobID: "job-1", Status: "pending"})
	})
	mux.HandleFunc("/v1/scraper/jobs/job-1", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&f.statusCalls, 1)
		status := "pending"
		errMsg := ""
		if n > f.pendingPolls {
			status = f.finalStatus
			errMsg = f.errorMessage
		}
		_ = json.NewEncoder(w).Encode(api.JobStatusResponse{
			JobID:        "job-1",
			Status:       status,
			CreatedAt:    time.Now().UTC().Format(time.RFC3339),
			ErrorMessage: errMsg,
		})
	})
	mux.HandleFunc("/v1/scraper/jobs/job-1/results", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.resultsCalls, 1)
		_ = json.NewEncoder(w).Encode(api.JobResultsResponse{
			JobID:   "job-1",
			Query:   "test",
			Results: f.results,
		})
	})
	return mux
}

func TestScrapeEmptyQueryFailsBeforeNetwork(t *testing.T) {
	fake := &fakeJobServer{}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c := New(srv.URL, "key")
	_, err := c.Scrape(context.Background(), api.ScrapeRequest{Query: "   "})
	assert.ErrorIs(t, err, ErrEmptyQuery)
	assert.EqualValues(t, 0, atomic.LoadInt32(&fake.scrapeCalls), "no request should be sent for an empty query")
}

func TestWaitForJobPollsUntilCompleted(t *testing.T) {
	fake := &fakeJobServer{
		pendingPolls: 3,
		finalStatus:  "completed",
		results:      []api.ResultItem{{URL: "https://example.com", Content: "# hi", ContentType: api.ContentTypeMarkdown}},
	}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c := New(srv.URL, "key", WithPollInterval(10*time.Millisecond))
	res, err := c.WaitForJob(context.Background(), "job-1")
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "https://example.com", res.Results[0].URL)

	assert.EqualValues(t, 4, atomic.LoadInt32(&fake.statusCalls), "3 pending polls plus the completed one")
	assert.EqualValues(t, 1, atomic.LoadInt32(&fake.resultsCalls), "results must be fetched exactly once")
}

func TestWaitForJobImmediateCompletion(t *testing.T) {
	fake := &fakeJobServer{pendingPolls: 0, finalStatus: "completed"}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	// A long interval proves the first check is immediate.
	c := New(srv.URL, "key", WithPollInterval(time.Hour))
	start := time.Now()
	_, err := c.WaitForJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.EqualValues(t, 1, atomic.LoadInt32(&fake.statusCalls))
}

func TestWaitForJobFailedReturnsJobError(t *testing.T) {
	fake := &fakeJobServer{
		pendingPolls: 1,
		finalStatus:  "failed",
		errorMessage: "no pages could be scraped from https://example.com",
	}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c := New(srv.URL, "key", WithPollInterval(10*time.Millisecond))
	_, err := c.WaitForJob(context.Background(), "job-1")

	var jobErr *JobError
	require.ErrorAs(t, err, &jobErr)
	assert.Equal(t, "job-1", jobErr.JobID)
	assert.Equal(t, "no pages could be scraped from https://example.com", jobErr.Message)
	assert.EqualValues(t, 0, atomic.LoadInt32(&fake.resultsCalls), "results must not be fetched for a failed job")
}

func TestWaitForJobContextCancellation(t *testing.T) {
	fake := &fakeJobServer{pendingPolls: 1 << 30, finalStatus: "completed"}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := New(srv.URL, "key", WithPollInterval(10*time.Millisecond))
	_, err := c.WaitForJob(ctx, "job-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitForJobMaxPolls(t *testing.T) {
	fake := &fakeJobServer{pendingPolls: 1 << 30, finalStatus: "completed"}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c := New(srv.URL, "key", WithPollInterval(5*time.Millisecond), WithMaxPolls(3))
	_, err := c.WaitForJob(context.Background(), "job-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "still pending after 3 polls")
	assert.EqualValues(t, 3, atomic.LoadInt32(&fake.statusCalls))
}

func TestClientSendsBearerAuth(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode([]api.JobListItem{})
	}))
	defer srv.Close()

	c := New(srv.URL, "secret-key")
	_, err := c.ListJobs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret-key", gotAuth)
}

func TestClientDecodesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(api.NewError("usage quota exceeded: need 5 credits"))
	}))
	defer srv.Close()

	c := New(srv.URL, "key")
	_, err := c.Scrape(context.Background(), api.ScrapeRequest{Query: "latest go releases", Domain: "go.dev"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "usage quota exceeded")
}
