package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ticket-booking/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Domain errors detectable at the storage layer. Callers match with
// errors.Is and translate to API reason categories.
var (
	ErrEventNotFound         = errors.New("event not found")
	ErrEventNotActive        = errors.New("event not active")
	ErrEventSoldOut          = errors.New("event sold out")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrBookingNotFound       = errors.New("booking not found")
	ErrPaymentNotFound       = errors.New("payment not found")

	// ErrInvariantViolation marks a ledger mutation that would corrupt the
	// counters (release without a matching reservation, restock past
	// capacity). Never self-healed; logged loudly by the caller.
	ErrInvariantViolation = errors.New("inventory invariant violation")
)

type Store struct {
	db *sqlx.DB
}

// NewStore connects to Postgres and configures the pool.
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// GetEventByID retrieves an event by ID.
func (s *Store) GetEventByID(ctx context.Context, id int64) (*models.Event, error) {
	var event models.Event
	err := s.db.GetContext(ctx, &event, "SELECT * FROM events WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %d", ErrEventNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// ListActiveEvents retrieves all events currently on sale.
func (s *Store) ListActiveEvents(ctx context.Context) ([]models.Event, error) {
	var events []models.Event
	err := s.db.SelectContext(ctx, &events,
		"SELECT * FROM events WHERE status = $1 ORDER BY starts_at", models.EventStatusActive)
	return events, err
}

// ListUpcomingEvents retrieves active events starting within the window,
// for reminder scheduling.
func (s *Store) ListUpcomingEvents(ctx context.Context, until time.Time) ([]models.Event, error) {
	var events []models.Event
	err := s.db.SelectContext(ctx, &events,
		`SELECT * FROM events
		 WHERE status = $1 AND starts_at > NOW() AND starts_at <= $2
		 ORDER BY starts_at`,
		models.EventStatusActive, until)
	return events, err
}

// CreateEvent inserts an event with its full capacity available.
func (s *Store) CreateEvent(ctx context.Context, event *models.Event) error {
	query := `
		INSERT INTO events (name, venue, starts_at, total_capacity, available, reserved, price, status)
		VALUES ($1, $2, $3, $4, $4, 0, $5, $6)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, event, query,
		event.Name, event.Venue, event.StartsAt, event.TotalCapacity, event.Price, event.Status)
}

// releaseReserved moves units back from reserved to available inside tx.
// Zero rows affected means the reservation was already released or never
// existed: an invariant violation, never silently absorbed.
func releaseReserved(ctx context.Context, tx *sqlx.Tx, eventID int64, quantity int) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE events
		 SET available = available + $1, reserved = reserved - $1, updated_at = NOW()
		 WHERE id = $2 AND reserved >= $1`,
		quantity, eventID)
	if err != nil {
		return fmt.Errorf("failed to release reservation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: release of %d units for event %d without matching reservation",
			ErrInvariantViolation, quantity, eventID)
	}
	return nil
}

// commitReserved retires reserved units as sold inside tx. The available
// counter was already decremented at reservation time, so commit only drops
// the provisional hold.
func commitReserved(ctx context.Context, tx *sqlx.Tx, eventID int64, quantity int) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE events SET reserved = reserved - $1, updated_at = NOW()
		 WHERE id = $2 AND reserved >= $1`,
		quantity, eventID)
	if err != nil {
		return fmt.Errorf("failed to commit reservation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: commit of %d units for event %d without matching reservation",
			ErrInvariantViolation, quantity, eventID)
	}
	return nil
}

// restockSold returns sold units to availability on refund, capped so the
// counters never exceed total capacity.
func restockSold(ctx context.Context, tx *sqlx.Tx, eventID int64, quantity int) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE events SET available = available + $1, updated_at = NOW()
		 WHERE id = $2 AND available + reserved + $1 <= total_capacity`,
		quantity, eventID)
	if err != nil {
		return fmt.Errorf("failed to restock: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: restock of %d units for event %d would exceed capacity",
			ErrInvariantViolation, quantity, eventID)
	}
	return nil
}
