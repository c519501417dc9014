package service

import (
	"errors"
	"fmt"
	"testing"

	"ticket-booking/internal/store"

	"github.com/stretchr/testify/assert"
)

func TestReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{store.ErrEventSoldOut, ReasonSoldOut},
		{store.ErrInsufficientInventory, ReasonInsufficientInventory},
		{store.ErrEventNotFound, ReasonNotFound},
		{store.ErrBookingNotFound, ReasonNotFound},
		{store.ErrEventNotActive, ReasonEventNotActive},
		{ErrUnauthorized, ReasonUnauthorized},
		{ErrBookingNotCancellable, ReasonNotCancellable},
		{ErrRefundFailed, ReasonNotCancellable},
		{ErrBookingExpired, ReasonExpired},
		{ErrBookingCancelled, ReasonCancelled},
		{ErrPaymentDeclined, ReasonPaymentDeclined},
		{ErrInvalidQuantity, ReasonInvalidRequest},
		{errors.New("something else"), ReasonInternal},
		{store.ErrInvariantViolation, ReasonInternal},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Reason(tt.err))
		})
	}
}

func TestReasonUnwrapsWrappedErrors(t *testing.T) {
	err := fmt.Errorf("creating booking: %w", store.ErrInsufficientInventory)
	assert.Equal(t, ReasonInsufficientInventory, Reason(err))

	err = fmt.Errorf("checkout: %w: BKG-12345678", ErrBookingExpired)
	assert.Equal(t, ReasonExpired, Reason(err))
}
