package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ticket-booking/internal/models"
	"ticket-booking/internal/store"
	"ticket-booking/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CardInstrument is the payment instrument accepted at checkout.
type CardInstrument struct {
	CardNumber string `json:"card_number" binding:"required"`
	Expiry     string `json:"expiry" binding:"required"`
	CVV        string `json:"cvv" binding:"required"`
}

// PaymentResult is the outcome of a capture attempt.
type PaymentResult struct {
	Status       string
	ProviderTxID string
}

// RefundResult is the outcome of a refund attempt.
type RefundResult struct {
	Status string
}

const (
	CaptureSucceeded = "succeeded"
	CaptureDeclined  = "declined"
	RefundSucceeded  = "succeeded"
	RefundFailed     = "failed"
)

// PaymentAdapter is the pluggable gateway boundary. The core treats any
// non-success result as a failure per the error taxonomy; it never inspects
// gateway internals.
type PaymentAdapter interface {
	Capture(ctx context.Context, amount decimal.Decimal, instrument CardInstrument) (PaymentResult, error)
	Refund(ctx context.Context, providerTxID string) (RefundResult, error)
}

// MockGateway simulates a card processor: captures succeed unless the card
// number ends in 0002 (the conventional test decline card), refunds always
// succeed.
type MockGateway struct {
	logger *zap.Logger
}

func NewMockGateway() *MockGateway {
	return &MockGateway{logger: util.GetLogger()}
}

func (g *MockGateway) Capture(ctx context.Context, amount decimal.Decimal, instrument CardInstrument) (PaymentResult, error) {
	if strings.HasSuffix(instrument.CardNumber, "0002") {
		g.logger.Warn("Mock gateway declined capture")
		return PaymentResult{Status: CaptureDeclined}, nil
	}

	txID := fmt.Sprintf("TXN-%s", strings.ToUpper(uuid.New().String()[:8]))
	g.logger.Info("Mock gateway captured payment",
		zap.String("tx_id", txID),
		zap.String("amount", amount.String()))
	return PaymentResult{Status: CaptureSucceeded, ProviderTxID: txID}, nil
}

func (g *MockGateway) Refund(ctx context.Context, providerTxID string) (RefundResult, error) {
	g.logger.Info("Mock gateway refunded payment", zap.String("tx_id", providerTxID))
	return RefundResult{Status: RefundSucceeded}, nil
}

// PaymentService records capture and refund outcomes against the payments
// table, delegating the money movement to the adapter.
type PaymentService struct {
	store   *store.Store
	gateway PaymentAdapter
	logger  *zap.Logger
}

func NewPaymentService(st *store.Store, gateway PaymentAdapter) *PaymentService {
	return &PaymentService{
		store:   st,
		gateway: gateway,
		logger:  util.GetLogger(),
	}
}

// Capture attempts to collect the booking amount. A declined capture is
// recorded as a failed payment and reported as ErrPaymentDeclined; the
// booking stays pending so the buyer may retry within the checkout window.
func (ps *PaymentService) Capture(ctx context.Context, bookingID int64, amount decimal.Decimal, instrument CardInstrument) (*models.Payment, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.Capture")
	defer span.End()

	util.PaymentAttemptsTotal.Inc()
	start := time.Now()
	defer func() {
		ps.logger.Debug("Payment capture finished",
			zap.Int64("booking_id", bookingID),
			zap.Duration("elapsed", time.Since(start)))
	}()

	payment := &models.Payment{
		ID:        uuid.New().String(),
		BookingID: bookingID,
		Amount:    amount,
		Status:    models.PaymentStatusPending,
	}
	if err := ps.store.CreatePayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	result, err := ps.gateway.Capture(ctx, amount, instrument)
	if err != nil {
		_ = ps.store.UpdatePaymentStatus(ctx, payment.ID, models.PaymentStatusFailed, "")
		util.PaymentFailedTotal.Inc()
		return nil, fmt.Errorf("gateway capture failed: %w", err)
	}

	if result.Status != CaptureSucceeded {
		if err := ps.store.UpdatePaymentStatus(ctx, payment.ID, models.PaymentStatusFailed, ""); err != nil {
			return nil, fmt.Errorf("failed to record declined payment: %w", err)
		}
		util.PaymentFailedTotal.Inc()
		payment.Status = models.PaymentStatusFailed
		return payment, ErrPaymentDeclined
	}

	if err := ps.store.UpdatePaymentStatus(ctx, payment.ID, models.PaymentStatusPaid, result.ProviderTxID); err != nil {
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}

	util.PaymentSuccessTotal.Inc()
	payment.Status = models.PaymentStatusPaid
	payment.ProviderTxID = result.ProviderTxID
	return payment, nil
}

// Refund reverses the paid payment for a booking. The status guard on the
// payment row rejects a second refund of the same payment.
func (ps *PaymentService) Refund(ctx context.Context, bookingID int64) error {
	ctx, span := util.StartSpan(ctx, "PaymentService.Refund")
	defer span.End()

	payment, err := ps.store.GetPaymentByBookingID(ctx, bookingID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRefundFailed, err)
	}
	if payment.Status != models.PaymentStatusPaid {
		return fmt.Errorf("%w: payment %s is %s", ErrRefundFailed, payment.ID, payment.Status)
	}

	result, err := ps.gateway.Refund(ctx, payment.ProviderTxID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRefundFailed, err)
	}
	if result.Status != RefundSucceeded {
		return fmt.Errorf("%w: gateway returned %s", ErrRefundFailed, result.Status)
	}

	refunded, err := ps.store.MarkPaymentRefunded(ctx, payment.ID)
	if err != nil {
		return fmt.Errorf("failed to record refund: %w", err)
	}
	if !refunded {
		// Lost the guard to a concurrent refund; the money moved once.
		ps.logger.Warn("Refund already recorded", zap.String("payment_id", payment.ID))
		return nil
	}

	util.RefundsTotal.Inc()
	ps.logger.Info("Refund issued",
		zap.Int64("booking_id", bookingID),
		zap.String("payment_id", payment.ID))
	return nil
}

// GetPayment retrieves the latest payment for a booking.
func (ps *PaymentService) GetPayment(ctx context.Context, bookingID int64) (*models.Payment, error) {
	return ps.store.GetPaymentByBookingID(ctx, bookingID)
}
