package store

import (
	"context"
	"database/sql"
	"fmt"

	"ticket-booking/internal/models"
)

// CreatePayment inserts a payment record.
func (s *Store) CreatePayment(ctx context.Context, payment *models.Payment) error {
	query := `
		INSERT INTO payments (id, booking_id, amount, status, provider_tx_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	return s.db.GetContext(ctx, &payment.CreatedAt, query,
		payment.ID, payment.BookingID, payment.Amount, payment.Status, payment.ProviderTxID)
}

// GetPaymentByBookingID retrieves the latest payment for a booking.
func (s *Store) GetPaymentByBookingID(ctx context.Context, bookingID int64) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.GetContext(ctx, &payment,
		"SELECT * FROM payments WHERE booking_id = $1 ORDER BY created_at DESC LIMIT 1", bookingID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: booking %d", ErrPaymentNotFound, bookingID)
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// UpdatePaymentStatus updates a payment's status and provider reference.
func (s *Store) UpdatePaymentStatus(ctx context.Context, paymentID, status, providerTxID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE payments SET status = $1, provider_tx_id = $2 WHERE id = $3",
		status, providerTxID, paymentID)
	return err
}

// MarkPaymentRefunded flips a paid payment to refunded. The status guard
// rejects a second refund of the same payment.
func (s *Store) MarkPaymentRefunded(ctx context.Context, paymentID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE payments SET status = $1, refunded_at = NOW()
		 WHERE id = $2 AND status = $3`,
		models.PaymentStatusRefunded, paymentID, models.PaymentStatusPaid)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
