package store

import (
	"context"
	"database/sql"
	"fmt"

	"ticket-booking/internal/models"
)

// CreateTicket inserts a ticket row.
func (s *Store) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	query := `
		INSERT INTO tickets (ticket_number, event_id, booking_id, status, qr_payload)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, ticket, query,
		ticket.TicketNumber, ticket.EventID, ticket.BookingID, ticket.Status, ticket.QRPayload)
}

// GetTicketsByBookingID retrieves all tickets for a booking.
func (s *Store) GetTicketsByBookingID(ctx context.Context, bookingID int64) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := s.db.SelectContext(ctx, &tickets,
		"SELECT * FROM tickets WHERE booking_id = $1 ORDER BY id", bookingID)
	return tickets, err
}

// CountTicketsByBookingID returns the number of tickets already issued for a
// booking. Ticket issuance checks this before generating rows so redelivered
// tasks issue tickets exactly once.
func (s *Store) CountTicketsByBookingID(ctx context.Context, bookingID int64) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM tickets WHERE booking_id = $1", bookingID)
	return count, err
}

// GetTicketByNumber retrieves a ticket by its public number.
func (s *Store) GetTicketByNumber(ctx context.Context, number string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := s.db.GetContext(ctx, &ticket, "SELECT * FROM tickets WHERE ticket_number = $1", number)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("ticket not found: %s", number)
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// MarkTicketUsed flips an active ticket to used at the venue gate.
func (s *Store) MarkTicketUsed(ctx context.Context, ticketID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tickets SET status = $1, updated_at = NOW()
		 WHERE id = $2 AND status = $3`,
		models.TicketStatusUsed, ticketID, models.TicketStatusActive)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
