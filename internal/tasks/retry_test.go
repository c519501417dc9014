package tasks

import (
	"testing"
	"time"

	"ticket-booking/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicyDelay(t *testing.T) {
	policy := PolicyFor(models.TaskTypeProcessConfirmedBooking)

	assert.Equal(t, 60*time.Second, policy.Delay(1))
	assert.Equal(t, 120*time.Second, policy.Delay(2))
	assert.Equal(t, 180*time.Second, policy.Delay(3))
	// Past the schedule the last delay repeats.
	assert.Equal(t, 180*time.Second, policy.Delay(7))
}

func TestRetryPolicyDelayEmptySchedule(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 1}
	assert.Equal(t, time.Duration(0), policy.Delay(1))
}

func TestRetryPolicyExhausted(t *testing.T) {
	policy := PolicyFor(models.TaskTypeSendNotification)

	assert.False(t, policy.Exhausted(1))
	assert.False(t, policy.Exhausted(2))
	assert.True(t, policy.Exhausted(3))
	assert.True(t, policy.Exhausted(4))
}

func TestPolicyForSweepsSingleAttempt(t *testing.T) {
	for _, taskType := range []string{models.TaskTypeSweepExpired, models.TaskTypeSweepAbandoned} {
		policy := PolicyFor(taskType)
		assert.Equal(t, 1, policy.MaxAttempts, taskType)
		assert.True(t, policy.Exhausted(1), taskType)
	}
}

func TestPolicyForUnknownType(t *testing.T) {
	policy := PolicyFor("SOMETHING_ELSE")
	assert.Equal(t, 1, policy.MaxAttempts)
}
