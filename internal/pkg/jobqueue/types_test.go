package jobqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobLifecycle(t *testing.T) {
	job := &Job{ID: "j1", Type: JobTypeWelcomeMail, Status: JobStatusPending, MaxRetries: 2}

	job.MarkAsProcessing()
	assert.Equal(t, JobStatusProcessing, job.Status)
	require.NotNil(t, job.ProcessedAt)

	job.MarkAsFailed("smtp down")
	assert.Equal(t, 1, job.RetryCount)
	assert.True(t, job.IsRetryable())

	job.MarkAsRetrying()
	assert.False(t, job.IsRetryable(), "only failed jobs are retryable")

	job.MarkAsFailed("smtp down again")
	assert.Equal(t, 2, job.RetryCount)
	assert.False(t, job.IsRetryable(), "retry budget exhausted")

	job.MarkAsCompleted()
	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.Empty(t, job.ErrorMsg)
	assert.NotNil(t, job.CompletedAt)
}

func TestWelcomeMailPayloadFromStoredMap(t *testing.T) {
	// Payloads come back from Redis as generic JSON maps.
	stored := map[string]interface{}{
		"session_id": "cs_1",
		"user_id":    "5f6e",
		"email":      "reader@example.com",
		"unexpected": 42,
	}

	p, err := WelcomeMailJobPayloadFromMap(stored)
	require.NoError(t, err)
	assert.Equal(t, "cs_1", p.SessionID)
	assert.Equal(t, "reader@example.com", p.Email)
	assert.Empty(t, p.SubscriptionID)
}
