package broker

import (
	"context"
	"encoding/json"
	"testing"

	"ticket-booking/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func taskMessage(t *testing.T, payload interface{}) kafka.Message {
	t.Helper()
	value, err := json.Marshal(payload)
	require.NoError(t, err)
	return kafka.Message{Value: value}
}

func TestTaskRouterDispatchesByType(t *testing.T) {
	router := NewTaskRouter()

	var got models.BaseTask
	router.Register(models.TaskTypeProcessConfirmedBooking,
		func(ctx context.Context, msg kafka.Message, base models.BaseTask) error {
			got = base
			return nil
		})

	task := models.ProcessConfirmedBookingTask{
		BaseTask: models.BaseTask{
			TaskID:        "task-1",
			TaskType:      models.TaskTypeProcessConfirmedBooking,
			CorrelationID: "99",
			Attempt:       2,
		},
		BookingID: 99,
	}

	err := router.HandleMessage(context.Background(), taskMessage(t, task))
	require.NoError(t, err)
	assert.Equal(t, "task-1", got.TaskID)
	assert.Equal(t, 2, got.Attempt)
}

func TestTaskRouterIgnoresUnknownType(t *testing.T) {
	router := NewTaskRouter()

	called := false
	router.Register(models.TaskTypeGenerateReport,
		func(ctx context.Context, msg kafka.Message, base models.BaseTask) error {
			called = true
			return nil
		})

	task := models.BaseTask{TaskID: "task-2", TaskType: "UNKNOWN_TYPE"}
	err := router.HandleMessage(context.Background(), taskMessage(t, task))

	require.NoError(t, err)
	assert.False(t, called)
}

func TestTaskRouterRejectsMalformedEnvelope(t *testing.T) {
	router := NewTaskRouter()
	err := router.HandleMessage(context.Background(), kafka.Message{Value: []byte("not json")})
	assert.Error(t, err)
}

func TestBumpAttemptPreservesPayload(t *testing.T) {
	original := models.SendNotificationTask{
		BaseTask: models.BaseTask{
			TaskID:        "task-3",
			TaskType:      models.TaskTypeSendNotification,
			CorrelationID: "7",
			Attempt:       1,
		},
		Kind:     models.NotificationLowInventory,
		TargetID: 7,
		Message:  "low",
	}
	payload, err := json.Marshal(original)
	require.NoError(t, err)

	value, err := bumpAttempt(payload, 2)
	require.NoError(t, err)

	var redelivered models.SendNotificationTask
	require.NoError(t, json.Unmarshal(value, &redelivered))
	assert.Equal(t, 2, redelivered.Attempt)
	assert.Equal(t, "task-3", redelivered.TaskID)
	assert.Equal(t, models.NotificationLowInventory, redelivered.Kind)
	assert.Equal(t, int64(7), redelivered.TargetID)
}

func TestBumpAttemptRejectsMalformedPayload(t *testing.T) {
	_, err := bumpAttempt([]byte("not json"), 2)
	assert.Error(t, err)
}
