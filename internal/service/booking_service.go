package service

import (
	"context"
	"fmt"
	"time"

	"ticket-booking/internal/models"
	"ticket-booking/internal/store"
	"ticket-booking/internal/util"

	"go.uber.org/zap"
)

// TaskEnqueuer hands booking side effects to the background orchestrator.
type TaskEnqueuer interface {
	EnqueueProcessConfirmedBooking(ctx context.Context, bookingID int64) error
}

// BookingService owns the booking state machine: creation with reservation,
// payment confirmation, cancellation with refund, and checkout expiry.
type BookingService struct {
	store       *store.Store
	ledger      *InventoryLedger
	payments    *PaymentService
	tasks       TaskEnqueuer
	checkoutTTL time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

func NewBookingService(
	st *store.Store,
	ledger *InventoryLedger,
	payments *PaymentService,
	tasks TaskEnqueuer,
	checkoutTTL time.Duration,
) *BookingService {
	return &BookingService{
		store:       st,
		ledger:      ledger,
		payments:    payments,
		tasks:       tasks,
		checkoutTTL: checkoutTTL,
		logger:      util.GetLogger(),
		now:         time.Now,
	}
}

// CreateBookingRequest is the booking-creation API input.
type CreateBookingRequest struct {
	UserID   int64 `json:"user_id" binding:"required"`
	EventID  int64 `json:"event_id" binding:"required"`
	Quantity int   `json:"quantity" binding:"required,min=1"`
}

// CreateBooking reserves inventory and opens a pending booking. The Redis
// gate rejects obviously-lost requests early; the database transaction is the
// serialization point that actually grants the reservation.
func (s *BookingService) CreateBooking(ctx context.Context, req *CreateBookingRequest) (*models.Booking, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.CreateBooking")
	defer span.End()

	if req.Quantity <= 0 {
		util.BookingsFailedTotal.WithLabelValues(ReasonInvalidRequest).Inc()
		return nil, fmt.Errorf("%w: %d", ErrInvalidQuantity, req.Quantity)
	}

	start := time.Now()
	defer func() {
		util.InventoryReserveLatency.Observe(time.Since(start).Seconds())
	}()

	granted, err := s.ledger.TryReserveFast(ctx, req.EventID, req.Quantity)
	if err != nil {
		return nil, err
	}
	if !granted {
		util.InventoryReservationsFailed.WithLabelValues("fast_path_denied").Inc()
		util.BookingsFailedTotal.WithLabelValues(ReasonInsufficientInventory).Inc()
		return nil, fmt.Errorf("%w: event %d", store.ErrInsufficientInventory, req.EventID)
	}

	number, err := util.NewBookingNumber()
	if err != nil {
		return nil, fmt.Errorf("failed to generate booking number: %w", err)
	}

	booking := &models.Booking{
		BookingNumber: number,
		UserID:        req.UserID,
		EventID:       req.EventID,
		Quantity:      req.Quantity,
	}

	if err := s.store.CreateBookingTx(ctx, booking); err != nil {
		// The Redis gate granted units the database refused; hand them back.
		s.ledger.UndoReserveFast(ctx, req.EventID, req.Quantity)
		util.InventoryReservationsFailed.WithLabelValues("db_rejected").Inc()
		util.BookingsFailedTotal.WithLabelValues(Reason(err)).Inc()
		return nil, err
	}

	util.BookingsCreatedTotal.Inc()
	s.logger.Info("Booking created",
		zap.String("booking_number", booking.BookingNumber),
		zap.Int64("event_id", booking.EventID),
		zap.Int("quantity", booking.Quantity))

	return booking, nil
}

// GetBooking returns a booking with its tickets, lazily expiring it first if
// the checkout window has passed.
func (s *BookingService) GetBooking(ctx context.Context, number string) (*models.Booking, []models.Ticket, error) {
	booking, err := s.store.GetBookingByNumber(ctx, number)
	if err != nil {
		return nil, nil, err
	}

	booking, err = s.expireIfStale(ctx, booking)
	if err != nil {
		return nil, nil, err
	}

	tickets, err := s.store.GetTicketsByBookingID(ctx, booking.ID)
	if err != nil {
		return nil, nil, err
	}
	return booking, tickets, nil
}

// Checkout captures payment for a pending booking and applies the
// payment-succeeded transition. A repeat call on an already-confirmed booking
// returns the current state without side effects.
func (s *BookingService) Checkout(ctx context.Context, number string, instrument CardInstrument) (*models.Booking, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.Checkout")
	defer span.End()

	booking, err := s.store.GetBookingByNumber(ctx, number)
	if err != nil {
		return nil, err
	}

	if booking.IsExpired(s.checkoutTTL, s.now()) {
		if _, err := s.ExpireBooking(ctx, booking.ID); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", ErrBookingExpired, number)
	}

	// Duplicate checkout of a confirmed booking: report current state, no-op.
	if !booking.IsPendingPayment() {
		if booking.Status == models.BookingStatusConfirmed {
			return booking, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrBookingCancelled, number)
	}

	payment, err := s.payments.Capture(ctx, booking.ID, booking.TotalAmount, instrument)
	if err != nil {
		return nil, err
	}

	return s.HandlePaymentSucceeded(ctx, booking.ID, payment.ID)
}

// HandlePaymentSucceeded applies pending -> confirmed/paid. Idempotent
// against duplicate callbacks: losing the transition guard to an earlier
// confirm re-reads and returns the current state, and tickets are enqueued
// only by the winner. Losing the guard to a cancel or expiry means money
// moved for a booking that no longer holds inventory; the capture is
// refunded on the spot and the caller gets ErrBookingCancelled, never a
// silent success.
func (s *BookingService) HandlePaymentSucceeded(ctx context.Context, bookingID int64, paymentID string) (*models.Booking, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.HandlePaymentSucceeded")
	defer span.End()

	won, err := s.store.ConfirmBookingTx(ctx, bookingID, paymentID)
	if err != nil {
		return nil, s.ledger.CheckInvariant(err)
	}

	booking, getErr := s.store.GetBookingByID(ctx, bookingID)
	if getErr != nil {
		return nil, getErr
	}

	if !won {
		if booking.Status == models.BookingStatusCancelled {
			if refundErr := s.payments.Refund(ctx, bookingID); refundErr != nil {
				s.logger.Error("Failed to refund capture on cancelled booking, payment stranded",
					zap.Int64("booking_id", bookingID),
					zap.String("payment_id", paymentID),
					zap.Error(refundErr))
				return nil, fmt.Errorf("%w: %s: refund failed: %v",
					ErrBookingCancelled, booking.BookingNumber, refundErr)
			}
			s.logger.Warn("Capture raced a cancel, payment refunded",
				zap.Int64("booking_id", bookingID),
				zap.String("payment_id", paymentID))
			return nil, fmt.Errorf("%w: %s", ErrBookingCancelled, booking.BookingNumber)
		}

		s.logger.Info("Payment callback on non-pending booking, no-op",
			zap.Int64("booking_id", bookingID),
			zap.String("status", booking.Status))
		return booking, nil
	}

	s.ledger.MirrorCommit(ctx, booking.EventID, booking.Quantity)
	util.BookingsConfirmedTotal.Inc()
	s.logger.Info("Booking confirmed",
		zap.String("booking_number", booking.BookingNumber),
		zap.String("payment_id", paymentID))

	if err := s.tasks.EnqueueProcessConfirmedBooking(ctx, booking.ID); err != nil {
		// The booking is confirmed either way; the parked-task path picks
		// this up through reconciliation if the enqueue never lands.
		s.logger.Error("Failed to enqueue ticket issuance",
			zap.Int64("booking_id", booking.ID),
			zap.Error(err))
	}

	return booking, nil
}

// CancelBooking cancels on behalf of requesterID. Pending bookings release
// their reservation; confirmed bookings are refunded first, then cancelled
// with their tickets. operatorOverride bypasses the ownership check.
func (s *BookingService) CancelBooking(ctx context.Context, number string, requesterID int64, operatorOverride bool) (*models.Booking, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.CancelBooking")
	defer span.End()

	booking, err := s.store.GetBookingByNumber(ctx, number)
	if err != nil {
		return nil, err
	}

	if booking.UserID != requesterID && !operatorOverride {
		return nil, fmt.Errorf("%w: booking %s does not belong to user %d",
			ErrUnauthorized, number, requesterID)
	}

	switch {
	case booking.IsPendingPayment():
		won, err := s.store.CancelPendingTx(ctx, booking.ID)
		if err != nil {
			return nil, s.ledger.CheckInvariant(err)
		}
		if won {
			s.ledger.MirrorRelease(ctx, booking.EventID, booking.Quantity)
			util.BookingsCancelledTotal.WithLabelValues("user").Inc()
			s.logger.Info("Pending booking cancelled",
				zap.String("booking_number", booking.BookingNumber))
		}

	case booking.IsCancellable():
		// Refund before the state transition: a failed refund leaves the
		// booking confirmed and the inventory sold.
		if err := s.payments.Refund(ctx, booking.ID); err != nil {
			return nil, err
		}
		won, err := s.store.CancelConfirmedTx(ctx, booking.ID)
		if err != nil {
			return nil, s.ledger.CheckInvariant(err)
		}
		if won {
			s.ledger.MirrorRestock(ctx, booking.EventID, booking.Quantity)
			util.BookingsCancelledTotal.WithLabelValues("refund").Inc()
			s.logger.Info("Confirmed booking cancelled with refund",
				zap.String("booking_number", booking.BookingNumber))
		}

	default:
		return nil, fmt.Errorf("%w: %s is %s/%s",
			ErrBookingNotCancellable, number, booking.Status, booking.PaymentStatus)
	}

	return s.store.GetBookingByID(ctx, booking.ID)
}

// ExpireBooking applies the expire transition to a pending booking. Shared by
// the lazy access path and the periodic sweep; whichever fires second loses
// the guard and no-ops.
func (s *BookingService) ExpireBooking(ctx context.Context, bookingID int64) (bool, error) {
	booking, err := s.store.GetBookingByID(ctx, bookingID)
	if err != nil {
		return false, err
	}

	won, err := s.store.CancelPendingTx(ctx, bookingID)
	if err != nil {
		return false, s.ledger.CheckInvariant(err)
	}
	if won {
		s.ledger.MirrorRelease(ctx, booking.EventID, booking.Quantity)
		util.BookingsExpiredTotal.Inc()
		s.logger.Info("Booking expired",
			zap.String("booking_number", booking.BookingNumber))
	}
	return won, nil
}

// CheckoutTTL exposes the configured checkout window.
func (s *BookingService) CheckoutTTL() time.Duration {
	return s.checkoutTTL
}

func (s *BookingService) expireIfStale(ctx context.Context, booking *models.Booking) (*models.Booking, error) {
	if !booking.IsExpired(s.checkoutTTL, s.now()) {
		return booking, nil
	}
	if _, err := s.ExpireBooking(ctx, booking.ID); err != nil {
		return nil, err
	}
	return s.store.GetBookingByID(ctx, booking.ID)
}
