package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ticket-booking/config"
	"ticket-booking/internal/broker"
	"ticket-booking/internal/models"
	"ticket-booking/internal/store"
	"ticket-booking/internal/util"

	"go.uber.org/zap"
)

// lowInventoryThreshold triggers an operator alert when the remaining
// fraction of capacity drops to or below it.
const lowInventoryThreshold = 0.10

// reminderWindow selects events starting within this horizon for buyer
// reminders.
const reminderWindow = 24 * time.Hour

// Scheduler evaluates the periodic job table and enqueues task messages. It
// never executes business logic inline; the worker pool does, so scheduling
// stays independent of request-serving processes.
type Scheduler struct {
	store     *store.Store
	publisher *broker.TaskPublisher
	cfg       config.BusinessConfig
	logger    *zap.Logger

	wg sync.WaitGroup
}

func NewScheduler(st *store.Store, publisher *broker.TaskPublisher, cfg config.BusinessConfig) *Scheduler {
	return &Scheduler{
		store:     st,
		publisher: publisher,
		cfg:       cfg,
		logger:    util.GetLogger(),
	}
}

type job struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context) error
}

// Start launches one ticker per job plus the daily-report timer, and returns
// immediately. Jobs stop when the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	jobs := []job{
		{
			name:     "sweep-expired",
			interval: s.cfg.SweepInterval,
			run: func(ctx context.Context) error {
				return s.publisher.EnqueueSweep(ctx, models.TaskTypeSweepExpired, s.cfg.CheckoutTTL)
			},
		},
		{
			name:     "sweep-abandoned",
			interval: s.cfg.AbandonedInterval,
			run: func(ctx context.Context) error {
				return s.publisher.EnqueueSweep(ctx, models.TaskTypeSweepAbandoned, s.cfg.AbandonedTTL)
			},
		},
		{
			name:     "low-inventory-alert",
			interval: s.cfg.LowInventoryInterval,
			run:      s.enqueueLowInventoryAlerts,
		},
		{
			name:     "event-reminder",
			interval: s.cfg.ReminderInterval,
			run:      s.enqueueEventReminders,
		},
	}

	for _, j := range jobs {
		s.wg.Add(1)
		go s.runPeriodic(ctx, j)
	}

	s.wg.Add(1)
	go s.runDailyReport(ctx)

	s.logger.Info("Scheduler started", zap.Int("jobs", len(jobs)+1))
}

// Wait blocks until all job loops have exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) runPeriodic(ctx context.Context, j job) {
	defer s.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.run(ctx); err != nil {
				s.logger.Error("Scheduled job failed",
					zap.String("job", j.name),
					zap.Error(err))
			}
		}
	}
}

// runDailyReport fires at every 00:00 UTC, enqueueing a report over the
// prior day.
func (s *Scheduler) runDailyReport(ctx context.Context) {
	defer s.wg.Done()

	for {
		next := NextMidnightUTC(time.Now().UTC())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			end := next
			start := end.Add(-24 * time.Hour)
			if err := s.publisher.EnqueueReport(ctx, start, end); err != nil {
				s.logger.Error("Failed to enqueue daily report", zap.Error(err))
			}
		}
	}
}

// NextMidnightUTC returns the first instant strictly after now at 00:00 UTC.
func NextMidnightUTC(now time.Time) time.Time {
	now = now.UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if !midnight.After(now) {
		midnight = midnight.Add(24 * time.Hour)
	}
	return midnight
}

func (s *Scheduler) enqueueLowInventoryAlerts(ctx context.Context) error {
	events, err := s.store.ListActiveEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active events: %w", err)
	}

	for _, event := range events {
		if event.RemainingRatio() > lowInventoryThreshold {
			continue
		}
		msg := fmt.Sprintf("%d of %d tickets remaining", event.Available, event.TotalCapacity)
		if err := s.publisher.EnqueueNotification(ctx, models.NotificationLowInventory, event.ID, msg); err != nil {
			s.logger.Error("Failed to enqueue low-inventory alert",
				zap.Int64("event_id", event.ID),
				zap.Error(err))
		}
	}
	return nil
}

func (s *Scheduler) enqueueEventReminders(ctx context.Context) error {
	events, err := s.store.ListUpcomingEvents(ctx, time.Now().Add(reminderWindow))
	if err != nil {
		return fmt.Errorf("failed to list upcoming events: %w", err)
	}

	for _, event := range events {
		if err := s.publisher.EnqueueNotification(ctx, models.NotificationEventReminder, event.ID, ""); err != nil {
			s.logger.Error("Failed to enqueue event reminder",
				zap.Int64("event_id", event.ID),
				zap.Error(err))
		}
	}
	return nil
}
