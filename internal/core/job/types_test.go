package job

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionForward(t *testing.T) {
	assert.True(t, CanTransition(StatusPending, StatusRunning))
	assert.True(t, CanTransition(StatusPending, StatusCompleted))
	assert.True(t, CanTransition(StatusPending, StatusFailed))
	assert.True(t, CanTransition(StatusRunning, StatusCompleted))
	assert.True(t, CanTransition(StatusRunning, StatusFailed))
}

func TestCanTransitionRejectsRegressions(t *testing.T) {
	assert.False(t, CanTransition(StatusRunning, StatusPending))
	assert.False(t, CanTransition(StatusCompleted, StatusRunning))
	assert.False(t, CanTransition(StatusCompleted, StatusPending))
	assert.False(t, CanTransition(StatusFailed, StatusRunning))
	assert.False(t, CanTransition(StatusCompleted, StatusFailed))
	assert.False(t, CanTransition(StatusFailed, StatusCompleted))
}

func TestCanTransitionIdempotentRetry(t *testing.T) {
	// Task retries re-apply the current status.
	assert.True(t, CanTransition(StatusRunning, StatusRunning))
	assert.True(t, CanTransition(StatusCompleted, StatusCompleted))
}

func TestCanTransitionUnknownStatus(t *testing.T) {
	assert.False(t, CanTransition(Status("bogus"), StatusRunning))
	assert.False(t, CanTransition(StatusPending, Status("bogus")))
}

func TestTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusRunning.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
}

func TestStatusResponseHidesErrorUnlessFailed(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	j := &Job{ID: "j1", Status: StatusRunning, CreatedAt: created, ErrorMessage: "stale"}

	resp := j.StatusResponse()
	assert.Equal(t, "running", resp.Status)
	assert.Equal(t, "2026-03-01T12:00:00Z", resp.CreatedAt)
	assert.Empty(t, resp.ErrorMessage)

	j.Status = StatusFailed
	done := created.Add(time.Minute)
	j.CompletedAt = &done
	resp = j.StatusResponse()
	assert.Equal(t, "stale", resp.ErrorMessage)
	assert.Equal(t, "2026-03-01T12:01:00Z", resp.CompletedAt)
}

func TestDetailCountsResults(t *testing.T) {
	j := &Job{ID: "j1", Status: StatusCompleted, CreatedAt: time.Now()}
	assert.Equal(t, 0, j.Detail().ResultCount)
}
