package job

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"scrapegate/internal/api"
	"scrapegate/internal/logger"
	rds "scrapegate/internal/platform/redis"
)

var (
	ErrNotFound      = fmt.Errorf("job not found")
	ErrQuotaExceeded = fmt.Errorf("usage quota exceeded")
)

// JobService persists jobs in Redis: one JSON record per job plus a
// per-API-key index sorted by creation time.
type JobService struct {
	redis *rds.Service
	log   *logger.Logger
}

func NewJobService(redis *rds.Service) *JobService {
	return &JobService{redis: redis, log: logger.New("JobService")}
}

// Create stores a new pending job and indexes it under its owning API key.
func (s *JobService) Create(ctx context.Context, apiKey, query, domain string, options map[string]interface{}) (*Job, error) {
	j := &Job{
		ID:        uuid.New().String(),
		APIKey:    apiKey,
		Query:     query,
		Domain:    domain,
		Status:    StatusPending,
		Options:   options,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.redis.CacheSet(ctx, key(j.ID), j, ttl(j.Status)); err != nil {
		return nil, err
	}
	if err := s.redis.IndexAdd(ctx, indexKey(apiKey), j.ID, float64(j.CreatedAt.UnixNano())); err != nil {
		return nil, err
	}
	return j, nil
}

// Get fetches a job regardless of owner. Used by task handlers.
func (s *JobService) Get(ctx context.Context, jobID string) (*Job, error) {
	var j Job
	if err := s.redis.CacheGet(ctx, key(jobID), &j); err != nil {
		return nil, ErrNotFound
	}
	return &j, nil
}

// GetOwned fetches a job and hides it from non-owners.
func (s *JobService) GetOwned(ctx context.Context, apiKey, jobID string) (*Job, error) {
	j, err := s.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j.APIKey != apiKey {
		return nil, ErrNotFound
	}
	return j, nil
}

// List returns the key's jobs newest-first. Records whose TTL already
// expired are dropped from the index lazily.
func (s *JobService) List(ctx context.Context, apiKey string) ([]*Job, error) {
	ids, err := s.redis.IndexRange(ctx, indexKey(apiKey), 0)
	if err != nil {
		return nil, err
	}
	out := make([]*Job, 0, len(ids))
	for _, id := range ids {
		j, err := s.Get(ctx, id)
		if err != nil {
			_ = s.redis.IndexRemove(ctx, indexKey(apiKey), id)
			continue
		}
		out = append(out, j)
	}
	return out, nil
}

// Delete removes a job record and its index entry.
func (s *JobService) Delete(ctx context.Context, apiKey, jobID string) error {
	if _, err := s.GetOwned(ctx, apiKey, jobID); err != nil {
		return err
	}
	if err := s.redis.CacheDel(ctx, key(jobID)); err != nil {
		return err
	}
	return s.redis.IndexRemove(ctx, indexKey(apiKey), jobID)
}

// MarkRunning moves a job into the running state.
func (s *JobService) MarkRunning(ctx context.Context, jobID string) error {
	return s.transition(ctx, jobID, StatusRunning, nil, "")
}

// Complete stores results and moves the job to completed.
func (s *JobService) Complete(ctx context.Context, jobID string, results []api.ResultItem) error {
	return s.transition(ctx, jobID, StatusCompleted, results, "")
}

// Fail records the error message and moves the job to failed.
func (s *JobService) Fail(ctx context.Context, jobID, errMsg string) error {
	return s.transition(ctx, jobID, StatusFailed, nil, errMsg)
}

func (s *JobService) transition(ctx context.Context, jobID string, to Status, results []api.ResultItem, errMsg string) error {
	j, err := s.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if !CanTransition(j.Status, to) {
		return fmt.Errorf("invalid status transition %s -> %s for job %s", j.Status, to, jobID)
	}
	j.Status = to
	if results != nil {
		j.Results = results
	}
	if errMsg != "" {
		j.ErrorMessage = errMsg
	}
	if to.Terminal() {
		now := time.Now().UTC()
		j.CompletedAt = &now
	}
	if err := s.redis.CacheSet(ctx, key(jobID), j, ttl(to)); err != nil {
		return err
	}
	// Publish an update event for status listeners
	_ = s.redis.Client().Publish(ctx, key(jobID), string(to)).Err()
	return nil
}

// ConsumeCredits enforces the per-key usage quota atomically. The increment
// is rolled back when the quota would be exceeded.
func (s *JobService) ConsumeCredits(ctx context.Context, apiKey string, credits, quota int) error {
	if quota <= 0 {
		return nil
	}
	total, err := s.redis.CounterAdd(ctx, usageKey(apiKey), int64(credits))
	if err != nil {
		return err
	}
	if total > int64(quota) {
		_, _ = s.redis.CounterAdd(ctx, usageKey(apiKey), int64(-credits))
		return fmt.Errorf("%w: need %d credits", ErrQuotaExceeded, credits)
	}
	return nil
}

func key(id string) string          { return "job:" + id }
func indexKey(apiKey string) string { return "jobs:" + apiKey }
func usageKey(apiKey string) string { return "usage:" + apiKey }

// Terminal jobs are kept for a day so the results endpoint stays useful;
// in-flight jobs expire after an hour.
func ttl(s Status) int {
	if s.Terminal() {
		return 86400
	}
	return 3600
}
