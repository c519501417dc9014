package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestEventIsSoldOut(t *testing.T) {
	event := &Event{TotalCapacity: 100, Available: 0, Reserved: 10}
	assert.True(t, event.IsSoldOut())

	event.Available = 1
	assert.False(t, event.IsSoldOut())
}

func TestEventRemainingRatio(t *testing.T) {
	tests := []struct {
		name      string
		capacity  int
		available int
		want      float64
	}{
		{"full", 100, 100, 1.0},
		{"low", 100, 10, 0.1},
		{"empty", 100, 0, 0},
		{"zero capacity", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := &Event{TotalCapacity: tt.capacity, Available: tt.available}
			assert.InDelta(t, tt.want, event.RemainingRatio(), 1e-9)
		})
	}
}

func TestBookingIsCancellable(t *testing.T) {
	tests := []struct {
		name          string
		status        string
		paymentStatus string
		want          bool
	}{
		{"confirmed and paid", BookingStatusConfirmed, PaymentStatusPaid, true},
		{"pending", BookingStatusPending, PaymentStatusPending, false},
		{"cancelled", BookingStatusCancelled, PaymentStatusRefunded, false},
		{"confirmed but refunded", BookingStatusConfirmed, PaymentStatusRefunded, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &Booking{Status: tt.status, PaymentStatus: tt.paymentStatus}
			assert.Equal(t, tt.want, b.IsCancellable())
		})
	}
}

func TestBookingIsExpired(t *testing.T) {
	ttl := 10 * time.Minute
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	pending := &Booking{
		Status:        BookingStatusPending,
		PaymentStatus: PaymentStatusPending,
		CreatedAt:     created,
	}

	assert.False(t, pending.IsExpired(ttl, created.Add(9*time.Minute)))
	assert.True(t, pending.IsExpired(ttl, created.Add(11*time.Minute)))

	// A paid booking never expires, no matter how old.
	paid := &Booking{
		Status:        BookingStatusConfirmed,
		PaymentStatus: PaymentStatusPaid,
		CreatedAt:     created,
	}
	assert.False(t, paid.IsExpired(ttl, created.Add(24*time.Hour)))

	cancelled := &Booking{
		Status:        BookingStatusCancelled,
		PaymentStatus: PaymentStatusPending,
		CreatedAt:     created,
	}
	assert.False(t, cancelled.IsExpired(ttl, created.Add(24*time.Hour)))
}

func TestBookingExpiresAt(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := &Booking{CreatedAt: created}
	assert.Equal(t, created.Add(10*time.Minute), b.ExpiresAt(10*time.Minute))
}

func TestQRPayloadFor(t *testing.T) {
	assert.Equal(t, "ticket://TKT-1A2B3C4D", QRPayloadFor("TKT-1A2B3C4D"))
	// Deterministic: same ticket number, same payload.
	assert.Equal(t, QRPayloadFor("TKT-00000000"), QRPayloadFor("TKT-00000000"))
}

func TestBookingTotalAmountPrecision(t *testing.T) {
	price := decimal.RequireFromString("19.99")
	total := price.Mul(decimal.NewFromInt(3))
	assert.Equal(t, "59.97", total.StringFixed(2))
}
