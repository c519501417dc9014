package tasks

import (
	"time"

	"ticket-booking/internal/models"
)

// RetryPolicy bounds automatic redelivery for one task kind.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     []time.Duration
}

// Delay returns the backoff before the attempt following failedAttempt
// (1-based). Past the end of the schedule the last delay repeats.
func (p RetryPolicy) Delay(failedAttempt int) time.Duration {
	if len(p.Backoff) == 0 {
		return 0
	}
	idx := failedAttempt - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(p.Backoff) {
		idx = len(p.Backoff) - 1
	}
	return p.Backoff[idx]
}

// Exhausted reports whether failedAttempt was the last allowed attempt.
func (p RetryPolicy) Exhausted(failedAttempt int) bool {
	return failedAttempt >= p.MaxAttempts
}

var retrySchedule = []time.Duration{60 * time.Second, 120 * time.Second, 180 * time.Second}

// Sweeps run on their own cadence, so a failed sweep is not retried; the
// next tick covers it.
var policies = map[string]RetryPolicy{
	models.TaskTypeProcessConfirmedBooking: {MaxAttempts: 3, Backoff: retrySchedule},
	models.TaskTypeSendNotification:        {MaxAttempts: 3, Backoff: retrySchedule},
	models.TaskTypeGenerateReport:          {MaxAttempts: 3, Backoff: retrySchedule},
	models.TaskTypeSweepExpired:            {MaxAttempts: 1},
	models.TaskTypeSweepAbandoned:          {MaxAttempts: 1},
}

// PolicyFor returns the retry policy for a task type. Unknown types get a
// single attempt.
func PolicyFor(taskType string) RetryPolicy {
	if p, ok := policies[taskType]; ok {
		return p
	}
	return RetryPolicy{MaxAttempts: 1}
}
