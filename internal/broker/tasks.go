package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"ticket-booking/internal/models"
	"ticket-booking/internal/util"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// TaskPublisher enqueues booking-lifecycle tasks. Messages are keyed by
// correlation id so redeliveries for one booking stay ordered on a partition.
type TaskPublisher struct {
	producer *Producer
}

func NewTaskPublisher(producer *Producer) *TaskPublisher {
	return &TaskPublisher{producer: producer}
}

func newBaseTask(taskType, correlationID string) models.BaseTask {
	return models.BaseTask{
		TaskID:        uuid.New().String(),
		TaskType:      taskType,
		CorrelationID: correlationID,
		Attempt:       1,
		EnqueuedAt:    time.Now().UTC(),
	}
}

// EnqueueProcessConfirmedBooking schedules ticket issuance for a confirmed
// booking.
func (tp *TaskPublisher) EnqueueProcessConfirmedBooking(ctx context.Context, bookingID int64) error {
	task := models.ProcessConfirmedBookingTask{
		BaseTask:  newBaseTask(models.TaskTypeProcessConfirmedBooking, strconv.FormatInt(bookingID, 10)),
		BookingID: bookingID,
	}
	return tp.producer.Publish(ctx, task.CorrelationID, task)
}

// EnqueueSweep schedules a scan for pending bookings older than olderThan.
// taskType selects the checkout-expiry or abandoned-cleanup cadence.
func (tp *TaskPublisher) EnqueueSweep(ctx context.Context, taskType string, olderThan time.Duration) error {
	task := models.SweepExpiredTask{
		BaseTask:  newBaseTask(taskType, "sweep"),
		OlderThan: olderThan,
	}
	return tp.producer.Publish(ctx, task.CorrelationID, task)
}

// EnqueueNotification schedules a reminder or alert.
func (tp *TaskPublisher) EnqueueNotification(ctx context.Context, kind string, targetID int64, message string) error {
	task := models.SendNotificationTask{
		BaseTask: newBaseTask(models.TaskTypeSendNotification, strconv.FormatInt(targetID, 10)),
		Kind:     kind,
		TargetID: targetID,
		Message:  message,
	}
	return tp.producer.Publish(ctx, task.CorrelationID, task)
}

// EnqueueReport schedules a booking report over [start, end).
func (tp *TaskPublisher) EnqueueReport(ctx context.Context, start, end time.Time) error {
	task := models.GenerateReportTask{
		BaseTask: newBaseTask(models.TaskTypeGenerateReport, "report"),
		Start:    start,
		End:      end,
	}
	return tp.producer.Publish(ctx, task.CorrelationID, task)
}

// Redeliver republishes the stored bytes of a task whose retry backoff has
// elapsed, bumping the attempt counter.
func (tp *TaskPublisher) Redeliver(ctx context.Context, run *models.TaskRun) error {
	value, err := bumpAttempt(run.Payload, run.Attempt+1)
	if err != nil {
		return err
	}
	return tp.producer.PublishRaw(ctx, run.CorrelationID, value)
}

// bumpAttempt rewrites the attempt field of a stored task payload, leaving
// every other field byte-for-byte as first published.
func bumpAttempt(payload []byte, attempt int) ([]byte, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode stored task payload: %w", err)
	}

	encoded, err := json.Marshal(attempt)
	if err != nil {
		return nil, err
	}
	raw["attempt"] = encoded

	return json.Marshal(raw)
}

// TaskHandlerFunc executes one decoded task message.
type TaskHandlerFunc func(ctx context.Context, msg kafka.Message, base models.BaseTask) error

// TaskRouter decodes the task envelope and dispatches to the handler
// registered for its type.
type TaskRouter struct {
	handlers map[string]TaskHandlerFunc
	logger   *zap.Logger
}

func NewTaskRouter() *TaskRouter {
	return &TaskRouter{
		handlers: make(map[string]TaskHandlerFunc),
		logger:   util.GetLogger(),
	}
}

// Register binds a handler to a task type.
func (tr *TaskRouter) Register(taskType string, handler TaskHandlerFunc) {
	tr.handlers[taskType] = handler
}

// HandleMessage routes a raw Kafka message to its task handler.
func (tr *TaskRouter) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var base models.BaseTask
	if err := json.Unmarshal(msg.Value, &base); err != nil {
		return fmt.Errorf("failed to unmarshal task envelope: %w", err)
	}

	handler, ok := tr.handlers[base.TaskType]
	if !ok {
		tr.logger.Warn("Unhandled task type", zap.String("task_type", base.TaskType))
		return nil
	}

	tr.logger.Info("Handling task",
		zap.String("task_type", base.TaskType),
		zap.String("task_id", base.TaskID),
		zap.Int("attempt", base.Attempt))

	return handler(ctx, msg, base)
}
