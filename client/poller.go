package client

import (
	"context"
	"fmt"
	"time"

	"scrapegate/internal/api"
)

// WaitForJob polls the job's status at the client's fixed interval until it
// reaches a terminal state, then returns the results (completed) or a
// *JobError (failed). The results endpoint is hit exactly once, and only
// after the status endpoint reported completion.
//
// Cancellation of ctx stops polling immediately. When the client was built
// with WithMaxPolls, exceeding the bound returns an error instead of polling
// forever.
func (c *Client) WaitForJob(ctx context.Context, jobID string) (*api.JobResultsResponse, error) {
	polls := 0
	check := func() (*api.JobResultsResponse, bool, error) {
		polls++
		status, err := c.JobStatus(ctx, jobID)
		if err != nil {
			return nil, true, err
		}
		switch status.Status {
		case "completed":
			results, err := c.JobResults(ctx, jobID)
			return results, true, err
		case "failed":
			return nil, true, &JobError{JobID: jobID, Message: status.ErrorMessage}
		}
		return nil, false, nil
	}

	// First check happens immediately; a job finished before WaitForJob was
	// called should not cost a full interval.
	if results, done, err := check(); done {
		return results, err
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		if c.maxPolls > 0 && polls >= c.maxPolls {
			return nil, fmt.Errorf("job %s still pending after %d polls", jobID, polls)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			if results, done, err := check(); done {
				return results, err
			}
		}
	}
}
