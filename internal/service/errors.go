package service

import (
	"errors"

	"ticket-booking/internal/store"
)

// Service-level errors complementing the storage sentinels.
var (
	ErrUnauthorized          = errors.New("unauthorized")
	ErrBookingNotCancellable = errors.New("booking not cancellable")
	ErrBookingExpired        = errors.New("booking expired")
	ErrBookingCancelled      = errors.New("booking cancelled")
	ErrPaymentDeclined       = errors.New("payment declined")
	ErrRefundFailed          = errors.New("refund failed")
	ErrInvalidQuantity       = errors.New("invalid quantity")
)

// Reason categories surfaced to API callers.
const (
	ReasonSoldOut               = "sold_out"
	ReasonInsufficientInventory = "insufficient_inventory"
	ReasonNotFound              = "not_found"
	ReasonEventNotActive        = "event_not_active"
	ReasonUnauthorized          = "unauthorized"
	ReasonNotCancellable        = "not_cancellable"
	ReasonExpired               = "expired"
	ReasonCancelled             = "cancelled"
	ReasonPaymentDeclined       = "payment_declined"
	ReasonInvalidRequest        = "invalid_request"
	ReasonInternal              = "internal_error"
)

// Reason maps an error to its API reason category.
func Reason(err error) string {
	switch {
	case errors.Is(err, store.ErrEventSoldOut):
		return ReasonSoldOut
	case errors.Is(err, store.ErrInsufficientInventory):
		return ReasonInsufficientInventory
	case errors.Is(err, store.ErrEventNotFound), errors.Is(err, store.ErrBookingNotFound):
		return ReasonNotFound
	case errors.Is(err, store.ErrEventNotActive):
		return ReasonEventNotActive
	case errors.Is(err, ErrUnauthorized):
		return ReasonUnauthorized
	case errors.Is(err, ErrBookingNotCancellable), errors.Is(err, ErrRefundFailed):
		return ReasonNotCancellable
	case errors.Is(err, ErrBookingExpired):
		return ReasonExpired
	case errors.Is(err, ErrBookingCancelled):
		return ReasonCancelled
	case errors.Is(err, ErrPaymentDeclined):
		return ReasonPaymentDeclined
	case errors.Is(err, ErrInvalidQuantity):
		return ReasonInvalidRequest
	default:
		return ReasonInternal
	}
}
