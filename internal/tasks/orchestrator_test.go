package tasks

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"ticket-booking/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	bookings map[int64]*models.Booking
	events   map[int64]*models.Event
	tickets  []*models.Ticket

	expiredIDs []int64
	confirmed  map[int64][]models.Booking
	stats      *models.BookingStats
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		bookings:  make(map[int64]*models.Booking),
		events:    make(map[int64]*models.Event),
		confirmed: make(map[int64][]models.Booking),
	}
}

func (f *fakeStore) GetBookingByID(ctx context.Context, id int64) (*models.Booking, error) {
	b, ok := f.bookings[id]
	if !ok {
		return nil, fmt.Errorf("booking %d not found", id)
	}
	return b, nil
}

func (f *fakeStore) GetEventByID(ctx context.Context, id int64) (*models.Event, error) {
	e, ok := f.events[id]
	if !ok {
		return nil, fmt.Errorf("event %d not found", id)
	}
	return e, nil
}

func (f *fakeStore) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	f.tickets = append(f.tickets, ticket)
	return nil
}

func (f *fakeStore) CountTicketsByBookingID(ctx context.Context, bookingID int64) (int, error) {
	count := 0
	for _, tk := range f.tickets {
		if tk.BookingID == bookingID {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) ListExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]int64, error) {
	return f.expiredIDs, nil
}

func (f *fakeStore) ListConfirmedByEvent(ctx context.Context, eventID int64) ([]models.Booking, error) {
	return f.confirmed[eventID], nil
}

func (f *fakeStore) GetBookingStats(ctx context.Context, start, end time.Time) (*models.BookingStats, error) {
	return f.stats, nil
}

type fakeExpirer struct {
	won    map[int64]bool
	failOn map[int64]bool
	calls  []int64
}

func (f *fakeExpirer) ExpireBooking(ctx context.Context, bookingID int64) (bool, error) {
	f.calls = append(f.calls, bookingID)
	if f.failOn[bookingID] {
		return false, errors.New("expire failed")
	}
	return f.won[bookingID], nil
}

type sentNotification struct {
	recipient int64
	kind      string
	payload   map[string]string
}

type fakeNotifier struct {
	sent []sentNotification
	err  error
}

func (f *fakeNotifier) Notify(ctx context.Context, recipient int64, kind string, payload map[string]string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentNotification{recipient: recipient, kind: kind, payload: payload})
	return nil
}

func confirmedBooking(id, userID, eventID int64, quantity int) *models.Booking {
	return &models.Booking{
		ID:            id,
		BookingNumber: fmt.Sprintf("BKG-%08d", id),
		UserID:        userID,
		EventID:       eventID,
		Quantity:      quantity,
		Status:        models.BookingStatusConfirmed,
		PaymentStatus: models.PaymentStatusPaid,
	}
}

func TestProcessConfirmedBookingIssuesTickets(t *testing.T) {
	st := newFakeStore()
	st.bookings[1] = confirmedBooking(1, 42, 7, 3)
	notifier := &fakeNotifier{}

	o := NewOrchestrator(st, &fakeExpirer{}, notifier)
	require.NoError(t, o.ProcessConfirmedBooking(context.Background(), 1))

	assert.Len(t, st.tickets, 3)
	for _, tk := range st.tickets {
		assert.Equal(t, int64(1), tk.BookingID)
		assert.Equal(t, int64(7), tk.EventID)
		assert.Equal(t, models.TicketStatusActive, tk.Status)
		assert.Equal(t, models.QRPayloadFor(tk.TicketNumber), tk.QRPayload)
	}

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, int64(42), notifier.sent[0].recipient)
	assert.Equal(t, models.NotificationBookingConfirmed, notifier.sent[0].kind)
}

func TestProcessConfirmedBookingRedeliveryTopsUp(t *testing.T) {
	st := newFakeStore()
	st.bookings[1] = confirmedBooking(1, 42, 7, 3)
	// One ticket already issued by a crashed earlier attempt.
	st.tickets = append(st.tickets, &models.Ticket{
		TicketNumber: "TKT-AAAAAAAA",
		BookingID:    1,
		EventID:      7,
		Status:       models.TicketStatusActive,
	})
	notifier := &fakeNotifier{}

	o := NewOrchestrator(st, &fakeExpirer{}, notifier)
	require.NoError(t, o.ProcessConfirmedBooking(context.Background(), 1))

	assert.Len(t, st.tickets, 3, "redelivery tops up to quantity, never past it")
}

func TestProcessConfirmedBookingSkipsCancelled(t *testing.T) {
	st := newFakeStore()
	st.bookings[1] = &models.Booking{
		ID:            1,
		UserID:        42,
		EventID:       7,
		Quantity:      3,
		Status:        models.BookingStatusCancelled,
		PaymentStatus: models.PaymentStatusRefunded,
	}
	notifier := &fakeNotifier{}

	o := NewOrchestrator(st, &fakeExpirer{}, notifier)
	require.NoError(t, o.ProcessConfirmedBooking(context.Background(), 1))

	assert.Empty(t, st.tickets, "a cancel that raced the dispatch wins")
	assert.Empty(t, notifier.sent)
}

func TestProcessConfirmedBookingNotifyFailureIsRetryable(t *testing.T) {
	st := newFakeStore()
	st.bookings[1] = confirmedBooking(1, 42, 7, 2)
	notifier := &fakeNotifier{err: errors.New("smtp down")}

	o := NewOrchestrator(st, &fakeExpirer{}, notifier)
	err := o.ProcessConfirmedBooking(context.Background(), 1)

	require.Error(t, err)
	// Tickets were still issued; the retry will find them and only re-notify.
	assert.Len(t, st.tickets, 2)
}

func TestSweepExpiredContinuesPastFailures(t *testing.T) {
	st := newFakeStore()
	st.expiredIDs = []int64{10, 11, 12}
	expirer := &fakeExpirer{
		won:    map[int64]bool{10: true, 12: true},
		failOn: map[int64]bool{11: true},
	}

	o := NewOrchestrator(st, expirer, &fakeNotifier{})
	require.NoError(t, o.SweepExpired(context.Background(), 10*time.Minute))

	assert.Equal(t, []int64{10, 11, 12}, expirer.calls, "failure on one booking does not stop the sweep")
}

func TestSendScheduledNotificationLowInventory(t *testing.T) {
	notifier := &fakeNotifier{}
	o := NewOrchestrator(newFakeStore(), &fakeExpirer{}, notifier)

	task := &models.SendNotificationTask{
		Kind:     models.NotificationLowInventory,
		TargetID: 7,
		Message:  "9 of 100 tickets remaining",
	}
	require.NoError(t, o.SendScheduledNotification(context.Background(), task))

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, operatorRecipient, notifier.sent[0].recipient)
	assert.Equal(t, "9 of 100 tickets remaining", notifier.sent[0].payload["message"])
}

func TestSendScheduledNotificationEventReminderFansOut(t *testing.T) {
	st := newFakeStore()
	st.events[7] = &models.Event{
		ID:       7,
		Name:     "Summer Fest",
		StartsAt: time.Date(2026, 7, 1, 19, 0, 0, 0, time.UTC),
	}
	st.confirmed[7] = []models.Booking{
		*confirmedBooking(1, 42, 7, 2),
		*confirmedBooking(2, 43, 7, 1),
	}
	notifier := &fakeNotifier{}

	o := NewOrchestrator(st, &fakeExpirer{}, notifier)
	task := &models.SendNotificationTask{
		Kind:     models.NotificationEventReminder,
		TargetID: 7,
	}
	require.NoError(t, o.SendScheduledNotification(context.Background(), task))

	require.Len(t, notifier.sent, 2)
	assert.Equal(t, int64(42), notifier.sent[0].recipient)
	assert.Equal(t, int64(43), notifier.sent[1].recipient)
	assert.Equal(t, "Summer Fest", notifier.sent[0].payload["event_name"])
}

func TestSendScheduledNotificationUnknownKind(t *testing.T) {
	notifier := &fakeNotifier{}
	o := NewOrchestrator(newFakeStore(), &fakeExpirer{}, notifier)

	task := &models.SendNotificationTask{Kind: "carrier_pigeon", TargetID: 1}
	require.NoError(t, o.SendScheduledNotification(context.Background(), task))
	assert.Empty(t, notifier.sent)
}

func TestGenerateReport(t *testing.T) {
	st := newFakeStore()
	st.stats = &models.BookingStats{
		TotalBookings: 4,
		TotalRevenue:  decimal.RequireFromString("239.88"),
		AverageValue:  decimal.RequireFromString("59.97"),
	}

	o := NewOrchestrator(st, &fakeExpirer{}, &fakeNotifier{})
	end := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	stats, err := o.GenerateReport(context.Background(), end.Add(-24*time.Hour), end)

	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalBookings)
	assert.Equal(t, "239.88", stats.TotalRevenue.StringFixed(2))
}
