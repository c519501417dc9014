package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"ticket-booking/internal/broker"
	"ticket-booking/internal/models"
	"ticket-booking/internal/store"
	"ticket-booking/internal/tasks"
	"ticket-booking/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// TaskWorker consumes booking tasks and drives them through the retry
// policy. Every delivery is recorded in the durable task ledger; failures
// schedule a backoff retry there, and exhausted tasks are parked for
// operator reconciliation rather than dropped.
type TaskWorker struct {
	consumers    []*broker.Consumer
	router       *broker.TaskRouter
	orchestrator *tasks.Orchestrator
	store        *store.Store
	logger       *zap.Logger

	wg sync.WaitGroup
}

// NewTaskWorker wires the orchestrator's handlers into a task router and
// builds one consumer per pool slot, all in the same consumer group.
func NewTaskWorker(
	brokers []string,
	topic, groupID string,
	poolSize int,
	orchestrator *tasks.Orchestrator,
	st *store.Store,
) *TaskWorker {
	if poolSize < 1 {
		poolSize = 1
	}

	consumers := make([]*broker.Consumer, poolSize)
	for i := range consumers {
		consumers[i] = broker.NewConsumer(brokers, topic, groupID)
	}

	w := &TaskWorker{
		consumers:    consumers,
		router:       broker.NewTaskRouter(),
		orchestrator: orchestrator,
		store:        st,
		logger:       util.GetLogger(),
	}
	w.registerHandlers()
	return w
}

func (w *TaskWorker) registerHandlers() {
	w.router.Register(models.TaskTypeProcessConfirmedBooking,
		func(ctx context.Context, msg kafka.Message, base models.BaseTask) error {
			var task models.ProcessConfirmedBookingTask
			if err := json.Unmarshal(msg.Value, &task); err != nil {
				return fmt.Errorf("failed to unmarshal task: %w", err)
			}
			return w.orchestrator.ProcessConfirmedBooking(ctx, task.BookingID)
		})

	sweep := func(ctx context.Context, msg kafka.Message, base models.BaseTask) error {
		var task models.SweepExpiredTask
		if err := json.Unmarshal(msg.Value, &task); err != nil {
			return fmt.Errorf("failed to unmarshal task: %w", err)
		}
		return w.orchestrator.SweepExpired(ctx, task.OlderThan)
	}
	w.router.Register(models.TaskTypeSweepExpired, sweep)
	w.router.Register(models.TaskTypeSweepAbandoned, sweep)

	w.router.Register(models.TaskTypeSendNotification,
		func(ctx context.Context, msg kafka.Message, base models.BaseTask) error {
			var task models.SendNotificationTask
			if err := json.Unmarshal(msg.Value, &task); err != nil {
				return fmt.Errorf("failed to unmarshal task: %w", err)
			}
			return w.orchestrator.SendScheduledNotification(ctx, &task)
		})

	w.router.Register(models.TaskTypeGenerateReport,
		func(ctx context.Context, msg kafka.Message, base models.BaseTask) error {
			var task models.GenerateReportTask
			if err := json.Unmarshal(msg.Value, &task); err != nil {
				return fmt.Errorf("failed to unmarshal task: %w", err)
			}
			_, err := w.orchestrator.GenerateReport(ctx, task.Start, task.End)
			return err
		})
}

// Start launches the consumer pool and blocks until the context is
// cancelled.
func (w *TaskWorker) Start(ctx context.Context) {
	w.logger.Info("Starting task worker pool", zap.Int("consumers", len(w.consumers)))

	for i, consumer := range w.consumers {
		w.wg.Add(1)
		go func(idx int, c *broker.Consumer) {
			defer w.wg.Done()
			if err := c.StartConsuming(ctx, w.handleMessage); err != nil && ctx.Err() == nil {
				w.logger.Error("Consumer stopped unexpectedly",
					zap.Int("consumer", idx),
					zap.Error(err))
			}
		}(i, consumer)
	}

	w.wg.Wait()
}

// Stop closes the consumers after Start's context is cancelled.
func (w *TaskWorker) Stop() {
	for _, c := range w.consumers {
		_ = c.Close()
	}
	w.logger.Info("Task worker stopped")
}

// handleMessage records the attempt in the task ledger, executes the task,
// and applies the retry policy to the outcome. A non-nil return means the
// outcome could not be recorded in the ledger; the consumer then leaves the
// offset uncommitted so the message is redelivered rather than dropped.
func (w *TaskWorker) handleMessage(ctx context.Context, msg kafka.Message) error {
	var base models.BaseTask
	if err := json.Unmarshal(msg.Value, &base); err != nil {
		// Malformed envelope: no task id to track, nothing to retry.
		w.logger.Error("Dropping malformed task message", zap.Error(err))
		return nil
	}

	policy := tasks.PolicyFor(base.TaskType)
	run := &models.TaskRun{
		TaskID:        base.TaskID,
		TaskType:      base.TaskType,
		CorrelationID: base.CorrelationID,
		Payload:       msg.Value,
		Attempt:       base.Attempt,
		MaxAttempts:   policy.MaxAttempts,
	}
	if err := w.store.RecordTaskStart(ctx, run); err != nil {
		return fmt.Errorf("failed to record task start: %w", err)
	}

	if err := w.router.HandleMessage(ctx, msg); err != nil {
		return w.handleFailure(ctx, base, policy, err)
	}

	util.TasksExecutedTotal.WithLabelValues(base.TaskType, "success").Inc()
	if err := w.store.MarkTaskDone(ctx, base.TaskID); err != nil {
		w.logger.Error("Failed to mark task done",
			zap.String("task_id", base.TaskID),
			zap.Error(err))
	}
	return nil
}

func (w *TaskWorker) handleFailure(ctx context.Context, base models.BaseTask, policy tasks.RetryPolicy, taskErr error) error {
	util.TasksExecutedTotal.WithLabelValues(base.TaskType, "failure").Inc()

	if policy.Exhausted(base.Attempt) {
		util.TasksParkedTotal.WithLabelValues(base.TaskType).Inc()
		w.logger.Error("Task exhausted retries, parking for reconciliation",
			zap.String("task_id", base.TaskID),
			zap.String("task_type", base.TaskType),
			zap.String("correlation_id", base.CorrelationID),
			zap.Int("attempts", base.Attempt),
			zap.Error(taskErr))
		return w.store.MarkTaskParked(ctx, base.TaskID, taskErr.Error())
	}

	delay := policy.Delay(base.Attempt)
	nextAttempt := time.Now().Add(delay)
	util.TaskRetriesTotal.WithLabelValues(base.TaskType).Inc()
	w.logger.Warn("Task failed, scheduling retry",
		zap.String("task_id", base.TaskID),
		zap.String("task_type", base.TaskType),
		zap.Int("attempt", base.Attempt),
		zap.Duration("delay", delay),
		zap.Error(taskErr))
	return w.store.MarkTaskRetry(ctx, base.TaskID, taskErr.Error(), nextAttempt)
}

// staleRunningAfter is how long a task may sit in running before the
// dispatcher assumes its worker died and requeues it. Generous compared to
// any single task's runtime so a slow sweep is not double-dispatched.
const staleRunningAfter = 10 * time.Minute

// RetryDispatcher periodically republishes tasks whose backoff has elapsed
// and rescues tasks stranded in running by a crashed worker.
type RetryDispatcher struct {
	store     *store.Store
	publisher *broker.TaskPublisher
	interval  time.Duration
	logger    *zap.Logger
}

func NewRetryDispatcher(st *store.Store, publisher *broker.TaskPublisher, interval time.Duration) *RetryDispatcher {
	return &RetryDispatcher{
		store:     st,
		publisher: publisher,
		interval:  interval,
		logger:    util.GetLogger(),
	}
}

// Start runs the dispatch loop until the context is cancelled.
func (d *RetryDispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.logger.Info("Retry dispatcher started", zap.Duration("interval", d.interval))

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Retry dispatcher stopped")
			return
		case <-ticker.C:
			d.dispatchDue(ctx)
		}
	}
}

func (d *RetryDispatcher) dispatchDue(ctx context.Context) {
	rescued, err := d.store.RequeueStaleRunning(ctx, time.Now().Add(-staleRunningAfter))
	if err != nil {
		d.logger.Error("Failed to requeue stale running tasks", zap.Error(err))
	} else if rescued > 0 {
		d.logger.Warn("Requeued tasks stranded in running state",
			zap.Int64("count", rescued))
	}

	runs, err := d.store.ClaimDueRetries(ctx, time.Now(), 100)
	if err != nil {
		d.logger.Error("Failed to claim due retries", zap.Error(err))
		return
	}

	for i := range runs {
		run := &runs[i]
		if err := d.publisher.Redeliver(ctx, run); err != nil {
			d.logger.Error("Failed to redeliver task, rescheduling",
				zap.String("task_id", run.TaskID),
				zap.Error(err))
			// Push the row back to retry so the next tick picks it up.
			_ = d.store.MarkTaskRetry(ctx, run.TaskID, err.Error(), time.Now().Add(d.interval))
			continue
		}
		d.logger.Info("Task redelivered",
			zap.String("task_id", run.TaskID),
			zap.String("task_type", run.TaskType),
			zap.Int("attempt", run.Attempt+1))
	}
}
