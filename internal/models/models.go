package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Event owns a fixed, perishable ticket inventory. The available/reserved
// counters are mutated only through store ledger operations, never assigned
// directly elsewhere. available + reserved never exceeds TotalCapacity.
type Event struct {
	ID            int64           `db:"id" json:"id"`
	Name          string          `db:"name" json:"name"`
	Venue         string          `db:"venue" json:"venue"`
	StartsAt      time.Time       `db:"starts_at" json:"starts_at"`
	TotalCapacity int             `db:"total_capacity" json:"total_capacity"`
	Available     int             `db:"available" json:"available"`
	Reserved      int             `db:"reserved" json:"reserved"`
	Price         decimal.Decimal `db:"price" json:"price"`
	Status        string          `db:"status" json:"status"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// IsSoldOut reports whether no units remain for new reservations.
func (e *Event) IsSoldOut() bool {
	return e.Available <= 0
}

// RemainingRatio is the fraction of capacity still available, used for
// low-inventory alerting.
func (e *Event) RemainingRatio() float64 {
	if e.TotalCapacity == 0 {
		return 0
	}
	return float64(e.Available) / float64(e.TotalCapacity)
}

// Booking is the source of truth for its reservation's lifecycle: the guarded
// status transitions on this row decide whether inventory is released exactly
// once.
type Booking struct {
	ID            int64           `db:"id" json:"id"`
	BookingNumber string          `db:"booking_number" json:"booking_number"`
	UserID        int64           `db:"user_id" json:"user_id"`
	EventID       int64           `db:"event_id" json:"event_id"`
	Quantity      int             `db:"quantity" json:"quantity"`
	TotalAmount   decimal.Decimal `db:"total_amount" json:"total_amount"`
	Status        string          `db:"status" json:"status"`
	PaymentStatus string          `db:"payment_status" json:"payment_status"`
	PaymentID     string          `db:"payment_id" json:"payment_id,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// IsCancellable reports whether the booking qualifies for cancel-with-refund.
func (b *Booking) IsCancellable() bool {
	return b.Status == BookingStatusConfirmed && b.PaymentStatus == PaymentStatusPaid
}

// IsPendingPayment reports whether the booking still holds an unpaid
// reservation.
func (b *Booking) IsPendingPayment() bool {
	return b.Status == BookingStatusPending && b.PaymentStatus == PaymentStatusPending
}

// ExpiresAt is the wall-clock deadline for completing checkout.
func (b *Booking) ExpiresAt(ttl time.Duration) time.Time {
	return b.CreatedAt.Add(ttl)
}

// IsExpired reports whether an unpaid booking has outlived its checkout
// window at the given instant. Paid or cancelled bookings never expire.
func (b *Booking) IsExpired(ttl time.Duration, now time.Time) bool {
	return b.IsPendingPayment() && now.After(b.ExpiresAt(ttl))
}

// Ticket is created only as a side effect of a booking reaching confirmed.
// Cancellation is logical, preserving the audit trail.
type Ticket struct {
	ID           int64     `db:"id" json:"id"`
	TicketNumber string    `db:"ticket_number" json:"ticket_number"`
	EventID      int64     `db:"event_id" json:"event_id"`
	BookingID    int64     `db:"booking_id" json:"booking_id"`
	Status       string    `db:"status" json:"status"`
	QRPayload    string    `db:"qr_payload" json:"qr_payload"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// QRPayloadFor derives the scannable payload deterministically from the
// ticket number.
func QRPayloadFor(ticketNumber string) string {
	return fmt.Sprintf("ticket://%s", ticketNumber)
}

// Payment records a capture attempt against the external gateway.
type Payment struct {
	ID           string          `db:"id" json:"id"`
	BookingID    int64           `db:"booking_id" json:"booking_id"`
	Amount       decimal.Decimal `db:"amount" json:"amount"`
	Status       string          `db:"status" json:"status"`
	ProviderTxID string          `db:"provider_tx_id" json:"provider_tx_id,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	RefundedAt   *time.Time      `db:"refunded_at" json:"refunded_at,omitempty"`
}

// Event statuses
const (
	EventStatusDraft     = "draft"
	EventStatusActive    = "active"
	EventStatusCancelled = "cancelled"
)

// Booking statuses
const (
	BookingStatusPending   = "pending"
	BookingStatusConfirmed = "confirmed"
	BookingStatusCancelled = "cancelled"
)

// Booking payment statuses
const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusRefunded = "refunded"
	PaymentStatusFailed   = "failed"
)

// Ticket statuses
const (
	TicketStatusActive    = "active"
	TicketStatusUsed      = "used"
	TicketStatusCancelled = "cancelled"
)

// BookingStats aggregates confirmed, paid bookings over a date range.
type BookingStats struct {
	TotalBookings int             `db:"total_bookings" json:"total_bookings"`
	TotalRevenue  decimal.Decimal `db:"total_revenue" json:"total_revenue"`
	AverageValue  decimal.Decimal `json:"average_booking_value"`
}
