package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ticket-booking/internal/models"

	"github.com/shopspring/decimal"
)

// CreateBookingTx reserves inventory and inserts the booking in one
// transaction. The event row is locked FOR UPDATE so the check-and-decrement
// serializes concurrent reservers; no two callers can together drive
// available below zero.
func (s *Store) CreateBookingTx(ctx context.Context, booking *models.Booking) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var event models.Event
	err = tx.GetContext(ctx, &event,
		"SELECT * FROM events WHERE id = $1 FOR UPDATE", booking.EventID)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: %d", ErrEventNotFound, booking.EventID)
	}
	if err != nil {
		return fmt.Errorf("failed to lock event: %w", err)
	}

	if event.Status != models.EventStatusActive {
		return fmt.Errorf("%w: event %d is %s", ErrEventNotActive, event.ID, event.Status)
	}
	if event.Available <= 0 {
		return fmt.Errorf("%w: event %d", ErrEventSoldOut, event.ID)
	}
	if event.Available < booking.Quantity {
		return fmt.Errorf("%w: available=%d, requested=%d",
			ErrInsufficientInventory, event.Available, booking.Quantity)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE events
		 SET available = available - $1, reserved = reserved + $1, updated_at = NOW()
		 WHERE id = $2`,
		booking.Quantity, event.ID)
	if err != nil {
		return fmt.Errorf("failed to reserve inventory: %w", err)
	}

	booking.TotalAmount = event.Price.Mul(decimal.NewFromInt(int64(booking.Quantity)))
	booking.Status = models.BookingStatusPending
	booking.PaymentStatus = models.PaymentStatusPending

	query := `
		INSERT INTO bookings (booking_number, user_id, event_id, quantity, total_amount, status, payment_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	err = tx.GetContext(ctx, booking, query,
		booking.BookingNumber, booking.UserID, booking.EventID,
		booking.Quantity, booking.TotalAmount, booking.Status, booking.PaymentStatus)
	if err != nil {
		return fmt.Errorf("failed to insert booking: %w", err)
	}

	return tx.Commit()
}

// ConfirmBookingTx applies the pending -> confirmed/paid transition and
// commits the reservation as a sale. The guarded UPDATE makes the transition
// idempotent: a duplicate payment callback loses the guard and reports
// won=false without touching the ledger.
func (s *Store) ConfirmBookingTx(ctx context.Context, bookingID int64, paymentID string) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var row struct {
		EventID  int64 `db:"event_id"`
		Quantity int   `db:"quantity"`
	}
	err = tx.GetContext(ctx, &row,
		`UPDATE bookings
		 SET status = $1, payment_status = $2, payment_id = $3, updated_at = NOW()
		 WHERE id = $4 AND status = $5 AND payment_status = $6
		 RETURNING event_id, quantity`,
		models.BookingStatusConfirmed, models.PaymentStatusPaid, paymentID,
		bookingID, models.BookingStatusPending, models.PaymentStatusPending)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to confirm booking: %w", err)
	}

	if err := commitReserved(ctx, tx, row.EventID, row.Quantity); err != nil {
		return false, err
	}

	return true, tx.Commit()
}

// CancelPendingTx applies the pending -> cancelled transition (user cancel or
// expiry) and releases the reservation. Both the lazy expiry path and the
// sweep route through this guard, so a second attempt is a no-op.
func (s *Store) CancelPendingTx(ctx context.Context, bookingID int64) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var row struct {
		EventID  int64 `db:"event_id"`
		Quantity int   `db:"quantity"`
	}
	err = tx.GetContext(ctx, &row,
		`UPDATE bookings
		 SET status = $1, updated_at = NOW()
		 WHERE id = $2 AND status = $3 AND payment_status = $4
		 RETURNING event_id, quantity`,
		models.BookingStatusCancelled,
		bookingID, models.BookingStatusPending, models.PaymentStatusPending)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to cancel booking: %w", err)
	}

	if err := releaseReserved(ctx, tx, row.EventID, row.Quantity); err != nil {
		return false, err
	}

	return true, tx.Commit()
}

// CancelConfirmedTx applies confirmed/paid -> cancelled/refunded: restocks the
// sold units and logically cancels the booking's tickets.
func (s *Store) CancelConfirmedTx(ctx context.Context, bookingID int64) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var row struct {
		EventID  int64 `db:"event_id"`
		Quantity int   `db:"quantity"`
	}
	err = tx.GetContext(ctx, &row,
		`UPDATE bookings
		 SET status = $1, payment_status = $2, updated_at = NOW()
		 WHERE id = $3 AND status = $4 AND payment_status = $5
		 RETURNING event_id, quantity`,
		models.BookingStatusCancelled, models.PaymentStatusRefunded,
		bookingID, models.BookingStatusConfirmed, models.PaymentStatusPaid)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to cancel confirmed booking: %w", err)
	}

	if err := restockSold(ctx, tx, row.EventID, row.Quantity); err != nil {
		return false, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE tickets SET status = $1, updated_at = NOW()
		 WHERE booking_id = $2 AND status = $3`,
		models.TicketStatusCancelled, bookingID, models.TicketStatusActive)
	if err != nil {
		return false, fmt.Errorf("failed to cancel tickets: %w", err)
	}

	return true, tx.Commit()
}

// GetBookingByID retrieves a booking by ID.
func (s *Store) GetBookingByID(ctx context.Context, id int64) (*models.Booking, error) {
	var booking models.Booking
	err := s.db.GetContext(ctx, &booking, "SELECT * FROM bookings WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %d", ErrBookingNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// GetBookingByNumber retrieves a booking by its public booking number.
func (s *Store) GetBookingByNumber(ctx context.Context, number string) (*models.Booking, error) {
	var booking models.Booking
	err := s.db.GetContext(ctx, &booking, "SELECT * FROM bookings WHERE booking_number = $1", number)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrBookingNotFound, number)
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// GetBookingsByUserID retrieves bookings for a user, newest first.
func (s *Store) GetBookingsByUserID(ctx context.Context, userID int64) ([]models.Booking, error) {
	var bookings []models.Booking
	err := s.db.SelectContext(ctx, &bookings,
		"SELECT * FROM bookings WHERE user_id = $1 ORDER BY created_at DESC", userID)
	return bookings, err
}

// ListExpiredPending returns ids of pending, unpaid bookings created before
// the cutoff. The sweep re-applies the guarded cancel transition to each, so
// a stale listing cannot double-release.
func (s *Store) ListExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]int64, error) {
	var ids []int64
	err := s.db.SelectContext(ctx, &ids,
		`SELECT id FROM bookings
		 WHERE status = $1 AND payment_status = $2 AND created_at <= $3
		 ORDER BY created_at
		 LIMIT $4`,
		models.BookingStatusPending, models.PaymentStatusPending, cutoff, limit)
	return ids, err
}

// ListConfirmedByEvent retrieves confirmed bookings for an event, for
// reminder fan-out.
func (s *Store) ListConfirmedByEvent(ctx context.Context, eventID int64) ([]models.Booking, error) {
	var bookings []models.Booking
	err := s.db.SelectContext(ctx, &bookings,
		"SELECT * FROM bookings WHERE event_id = $1 AND status = $2",
		eventID, models.BookingStatusConfirmed)
	return bookings, err
}

// GetBookingStats aggregates confirmed, paid bookings in a date range.
func (s *Store) GetBookingStats(ctx context.Context, start, end time.Time) (*models.BookingStats, error) {
	var stats models.BookingStats
	err := s.db.GetContext(ctx, &stats,
		`SELECT COUNT(*) AS total_bookings,
		        COALESCE(SUM(total_amount), 0) AS total_revenue
		 FROM bookings
		 WHERE status = $1 AND payment_status = $2
		   AND created_at >= $3 AND created_at < $4`,
		models.BookingStatusConfirmed, models.PaymentStatusPaid, start, end)
	if err != nil {
		return nil, err
	}
	if stats.TotalBookings > 0 {
		stats.AverageValue = stats.TotalRevenue.Div(decimal.NewFromInt(int64(stats.TotalBookings)))
	}
	return &stats, nil
}
