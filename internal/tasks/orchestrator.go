package tasks

import (
	"context"
	"fmt"
	"time"

	"ticket-booking/internal/models"
	"ticket-booking/internal/service"
	"ticket-booking/internal/util"

	"go.uber.org/zap"
)

// Store is the slice of storage the orchestrator needs. *store.Store
// satisfies it; tests use a fake.
type Store interface {
	GetBookingByID(ctx context.Context, id int64) (*models.Booking, error)
	GetEventByID(ctx context.Context, id int64) (*models.Event, error)
	CreateTicket(ctx context.Context, ticket *models.Ticket) error
	CountTicketsByBookingID(ctx context.Context, bookingID int64) (int, error)
	ListExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]int64, error)
	ListConfirmedByEvent(ctx context.Context, eventID int64) ([]models.Booking, error)
	GetBookingStats(ctx context.Context, start, end time.Time) (*models.BookingStats, error)
}

// Expirer applies the expire transition to one booking.
type Expirer interface {
	ExpireBooking(ctx context.Context, bookingID int64) (bool, error)
}

const sweepBatchSize = 500

// operatorRecipient receives low-inventory alerts.
const operatorRecipient int64 = 0

// Orchestrator executes booking-lifecycle tasks delivered at-least-once.
// Every handler re-reads current database state before acting, so a
// redelivery after a crash resumes correctly instead of replaying a stale
// snapshot.
type Orchestrator struct {
	store    Store
	expirer  Expirer
	notifier service.NotificationAdapter
	logger   *zap.Logger
	now      func() time.Time
}

func NewOrchestrator(store Store, expirer Expirer, notifier service.NotificationAdapter) *Orchestrator {
	return &Orchestrator{
		store:    store,
		expirer:  expirer,
		notifier: notifier,
		logger:   util.GetLogger(),
		now:      time.Now,
	}
}

// ProcessConfirmedBooking issues the booking's tickets and notifies the
// buyer. The booking state is re-checked here: a cancel that raced the
// dispatch wins, and no tickets are issued. Redelivery after a partial
// failure tops up missing tickets rather than duplicating them.
func (o *Orchestrator) ProcessConfirmedBooking(ctx context.Context, bookingID int64) error {
	ctx, span := util.StartSpan(ctx, "Orchestrator.ProcessConfirmedBooking")
	defer span.End()

	booking, err := o.store.GetBookingByID(ctx, bookingID)
	if err != nil {
		return fmt.Errorf("failed to load booking: %w", err)
	}

	if booking.Status != models.BookingStatusConfirmed || booking.PaymentStatus != models.PaymentStatusPaid {
		o.logger.Info("Skipping ticket issuance for non-confirmed booking",
			zap.Int64("booking_id", bookingID),
			zap.String("status", booking.Status))
		return nil
	}

	issued, err := o.store.CountTicketsByBookingID(ctx, bookingID)
	if err != nil {
		return fmt.Errorf("failed to count tickets: %w", err)
	}

	for i := issued; i < booking.Quantity; i++ {
		number, err := util.NewTicketNumber()
		if err != nil {
			return fmt.Errorf("failed to generate ticket number: %w", err)
		}
		ticket := &models.Ticket{
			TicketNumber: number,
			EventID:      booking.EventID,
			BookingID:    booking.ID,
			Status:       models.TicketStatusActive,
			QRPayload:    models.QRPayloadFor(number),
		}
		if err := o.store.CreateTicket(ctx, ticket); err != nil {
			return fmt.Errorf("failed to create ticket: %w", err)
		}
		util.TicketsIssuedTotal.Inc()
	}

	o.logger.Info("Tickets issued",
		zap.String("booking_number", booking.BookingNumber),
		zap.Int("quantity", booking.Quantity))

	err = o.notifier.Notify(ctx, booking.UserID, models.NotificationBookingConfirmed, map[string]string{
		"booking_number": booking.BookingNumber,
	})
	if err != nil {
		return fmt.Errorf("failed to notify buyer: %w", err)
	}
	return nil
}

// SweepExpired cancels pending bookings older than olderThan. A failure on
// one booking is logged and the scan continues; the guarded transition makes
// overlap with the lazy expiry path harmless.
func (o *Orchestrator) SweepExpired(ctx context.Context, olderThan time.Duration) error {
	ctx, span := util.StartSpan(ctx, "Orchestrator.SweepExpired")
	defer span.End()

	cutoff := o.now().Add(-olderThan)
	ids, err := o.store.ListExpiredPending(ctx, cutoff, sweepBatchSize)
	if err != nil {
		return fmt.Errorf("failed to list expired bookings: %w", err)
	}

	expired := 0
	for _, id := range ids {
		won, err := o.expirer.ExpireBooking(ctx, id)
		if err != nil {
			o.logger.Error("Failed to expire booking, continuing sweep",
				zap.Int64("booking_id", id),
				zap.Error(err))
			continue
		}
		if won {
			expired++
		}
	}

	o.logger.Info("Expiry sweep finished",
		zap.Int("candidates", len(ids)),
		zap.Int("expired", expired),
		zap.Duration("older_than", olderThan))
	return nil
}

// SendScheduledNotification delivers a time-based reminder or alert.
func (o *Orchestrator) SendScheduledNotification(ctx context.Context, task *models.SendNotificationTask) error {
	ctx, span := util.StartSpan(ctx, "Orchestrator.SendScheduledNotification")
	defer span.End()

	switch task.Kind {
	case models.NotificationEventReminder:
		return o.sendEventReminders(ctx, task.TargetID)

	case models.NotificationLowInventory:
		return o.notifier.Notify(ctx, operatorRecipient, task.Kind, map[string]string{
			"event_id": fmt.Sprintf("%d", task.TargetID),
			"message":  task.Message,
		})

	case models.NotificationBookingCancelled:
		booking, err := o.store.GetBookingByID(ctx, task.TargetID)
		if err != nil {
			return fmt.Errorf("failed to load booking: %w", err)
		}
		return o.notifier.Notify(ctx, booking.UserID, task.Kind, map[string]string{
			"booking_number": booking.BookingNumber,
		})

	default:
		o.logger.Warn("Unknown notification kind", zap.String("kind", task.Kind))
		return nil
	}
}

func (o *Orchestrator) sendEventReminders(ctx context.Context, eventID int64) error {
	event, err := o.store.GetEventByID(ctx, eventID)
	if err != nil {
		return fmt.Errorf("failed to load event: %w", err)
	}

	bookings, err := o.store.ListConfirmedByEvent(ctx, eventID)
	if err != nil {
		return fmt.Errorf("failed to list confirmed bookings: %w", err)
	}

	sent, failed := 0, 0
	for _, booking := range bookings {
		err := o.notifier.Notify(ctx, booking.UserID, models.NotificationEventReminder, map[string]string{
			"booking_number": booking.BookingNumber,
			"event_name":     event.Name,
			"starts_at":      event.StartsAt.Format(time.RFC3339),
		})
		if err != nil {
			failed++
			o.logger.Error("Failed to send reminder, continuing",
				zap.Int64("booking_id", booking.ID),
				zap.Error(err))
			continue
		}
		sent++
	}

	o.logger.Info("Event reminders sent",
		zap.Int64("event_id", eventID),
		zap.Int("sent", sent),
		zap.Int("failed", failed))
	return nil
}

// GenerateReport aggregates confirmed, paid bookings over [start, end).
// Pure query; safe to retry freely.
func (o *Orchestrator) GenerateReport(ctx context.Context, start, end time.Time) (*models.BookingStats, error) {
	ctx, span := util.StartSpan(ctx, "Orchestrator.GenerateReport")
	defer span.End()

	stats, err := o.store.GetBookingStats(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate bookings: %w", err)
	}

	o.logger.Info("Booking report generated",
		zap.Time("start", start),
		zap.Time("end", end),
		zap.Int("total_bookings", stats.TotalBookings),
		zap.String("total_revenue", stats.TotalRevenue.String()),
		zap.String("average_value", stats.AverageValue.String()))
	return stats, nil
}
