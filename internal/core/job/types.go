package job

import (
	"time"

	"scrapegate/internal/api"
)

// Status is the job lifecycle state. Transitions only move toward a
// terminal state; the store rejects regressions.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusFailed }

func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusRunning:
		return 1
	case StatusCompleted, StatusFailed:
		return 2
	}
	return -1
}

// CanTransition reports whether a job may move from one status to another.
// Re-applying the current status is allowed so task retries stay idempotent.
func CanTransition(from, to Status) bool {
	if from.rank() < 0 || to.rank() < 0 {
		return false
	}
	if from == to {
		return true
	}
	return to.rank() > from.rank()
}

// Job is the stored record for one unit of scraping work.
type Job struct {
	ID           string                 `json:"job_id"`
	APIKey       string                 `json:"api_key"`
	Query        string                 `json:"query"`
	Domain       string                 `json:"domain,omitempty"`
	Status       Status                 `json:"status"`
	Options      map[string]interface{} `json:"options,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	CompletedAt  *time.Time             `json:"completed_at,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Results      []api.ResultItem       `json:"results,omitempty"`
}

// StatusResponse shapes the job for the polling endpoint.
func (j *Job) StatusResponse() api.JobStatusResponse {
	resp := api.JobStatusResponse{
		JobID:     j.ID,
		Status:    string(j.Status),
		CreatedAt: j.CreatedAt.UTC().Format(time.RFC3339),
	}
	if j.CompletedAt != nil {
		resp.CompletedAt = j.CompletedAt.UTC().Format(time.RFC3339)
	}
	if j.Status == StatusFailed {
		resp.ErrorMessage = j.ErrorMessage
	}
	return resp
}

func (j *Job) ListItem() api.JobListItem {
	return api.JobListItem{
		JobID:     j.ID,
		Query:     j.Query,
		Status:    string(j.Status),
		CreatedAt: j.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (j *Job) Detail() api.JobDetail {
	d := api.JobDetail{
		JobID:       j.ID,
		Query:       j.Query,
		Domain:      j.Domain,
		Status:      string(j.Status),
		CreatedAt:   j.CreatedAt.UTC().Format(time.RFC3339),
		ResultCount: len(j.Results),
	}
	if j.CompletedAt != nil {
		d.CompletedAt = j.CompletedAt.UTC().Format(time.RFC3339)
	}
	if j.Status == StatusFailed {
		d.ErrorMessage = j.ErrorMessage
	}
	return d
}
