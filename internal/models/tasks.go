package models

import "time"

// Task types consumed from the booking-tasks topic.
const (
	TaskTypeProcessConfirmedBooking = "PROCESS_CONFIRMED_BOOKING"
	TaskTypeSweepExpired            = "SWEEP_EXPIRED_RESERVATIONS"
	TaskTypeSweepAbandoned          = "SWEEP_ABANDONED_BOOKINGS"
	TaskTypeSendNotification        = "SEND_SCHEDULED_NOTIFICATION"
	TaskTypeGenerateReport          = "GENERATE_REPORT"
)

// Notification kinds carried by SEND_SCHEDULED_NOTIFICATION tasks.
const (
	NotificationBookingConfirmed = "booking_confirmed"
	NotificationBookingCancelled = "booking_cancelled"
	NotificationEventReminder    = "event_reminder"
	NotificationLowInventory     = "low_inventory"
)

// BaseTask carries common fields for all queued tasks. CorrelationID ties
// redeliveries back to current database state (the booking or event id);
// Attempt counts executions so the worker can apply the retry policy.
type BaseTask struct {
	TaskID        string    `json:"task_id"`
	TaskType      string    `json:"task_type"`
	CorrelationID string    `json:"correlation_id"`
	Attempt       int       `json:"attempt"`
	EnqueuedAt    time.Time `json:"enqueued_at"`
}

// ProcessConfirmedBookingTask issues tickets and notifies the buyer after a
// booking reaches confirmed/paid.
type ProcessConfirmedBookingTask struct {
	BaseTask
	BookingID int64 `json:"booking_id"`
}

// SweepExpiredTask triggers a scan of pending bookings older than the given
// TTL. The same message shape serves both the checkout-expiry cadence and the
// abandoned-row cleanup cadence.
type SweepExpiredTask struct {
	BaseTask
	OlderThan time.Duration `json:"older_than"`
}

// SendNotificationTask delivers a time-based reminder or alert. Duplicate
// sends on retry are an accepted risk: there is no dedup key per
// (target, kind).
type SendNotificationTask struct {
	BaseTask
	Kind     string `json:"kind"`
	TargetID int64  `json:"target_id"`
	Message  string `json:"message,omitempty"`
}

// GenerateReportTask aggregates confirmed, paid bookings over a date range.
// Read-only and safe to retry freely.
type GenerateReportTask struct {
	BaseTask
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Task run statuses in the durable task ledger.
const (
	TaskRunStatusRunning = "running"
	TaskRunStatusRetry   = "retry"
	TaskRunStatusDone    = "done"
	TaskRunStatusParked  = "parked"
)

// TaskRun is the durable record of a task's delivery attempts. Parked rows
// are the reconciliation queue: tasks that exhausted automatic retries and
// await operator review.
type TaskRun struct {
	ID            int64      `db:"id"`
	TaskID        string     `db:"task_id"`
	TaskType      string     `db:"task_type"`
	CorrelationID string     `db:"correlation_id"`
	Payload       []byte     `db:"payload"`
	Attempt       int        `db:"attempt"`
	MaxAttempts   int        `db:"max_attempts"`
	Status        string     `db:"status"`
	LastError     string     `db:"last_error"`
	NextAttemptAt *time.Time `db:"next_attempt_at"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
}
