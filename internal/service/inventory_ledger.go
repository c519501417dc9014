package service

import (
	"context"
	"errors"
	"fmt"

	"ticket-booking/internal/redisclient"
	"ticket-booking/internal/store"
	"ticket-booking/internal/util"

	"go.uber.org/zap"
)

// InventoryLedger fronts the per-event ticket counters. Postgres is the
// source of truth; Redis holds a Lua-scripted mirror used as a fast-path gate
// so obviously-lost reservations fail before taking a row lock. Mirror
// updates are best effort — a missed mirror write only costs a wasted trip to
// the database, never a counter violation.
type InventoryLedger struct {
	store  *store.Store
	redis  *redisclient.Client
	logger *zap.Logger
}

func NewInventoryLedger(st *store.Store, redis *redisclient.Client) *InventoryLedger {
	return &InventoryLedger{
		store:  st,
		redis:  redis,
		logger: util.GetLogger(),
	}
}

// TryReserveFast asks the Redis gate for quantity units. A definitive denial
// means the event cannot satisfy the request right now; a Redis error is
// treated as a pass-through so the database transaction decides.
func (l *InventoryLedger) TryReserveFast(ctx context.Context, eventID int64, quantity int) (bool, error) {
	if l.redis == nil {
		return true, nil
	}

	granted, err := l.redis.ReserveInventory(ctx, eventID, quantity)
	if err != nil {
		l.logger.Warn("Redis reservation gate unavailable, deferring to database",
			zap.Int64("event_id", eventID),
			zap.Error(err))
		return true, nil
	}
	return granted, nil
}

// UndoReserveFast returns a fast-path hold after the database transaction
// rejected the reservation.
func (l *InventoryLedger) UndoReserveFast(ctx context.Context, eventID int64, quantity int) {
	if l.redis == nil {
		return
	}
	if err := l.redis.ReleaseInventory(ctx, eventID, quantity); err != nil {
		l.logger.Error("Failed to undo fast-path reservation",
			zap.Int64("event_id", eventID),
			zap.Error(err))
	}
}

// MirrorRelease reflects a database release in the Redis mirror.
func (l *InventoryLedger) MirrorRelease(ctx context.Context, eventID int64, quantity int) {
	if l.redis == nil {
		return
	}
	if err := l.redis.ReleaseInventory(ctx, eventID, quantity); err != nil {
		l.logger.Error("Failed to mirror release",
			zap.Int64("event_id", eventID),
			zap.Error(err))
	}
}

// MirrorCommit reflects a committed sale in the Redis mirror.
func (l *InventoryLedger) MirrorCommit(ctx context.Context, eventID int64, quantity int) {
	if l.redis == nil {
		return
	}
	if err := l.redis.CommitInventory(ctx, eventID, quantity); err != nil {
		l.logger.Error("Failed to mirror commit",
			zap.Int64("event_id", eventID),
			zap.Error(err))
	}
}

// MirrorRestock reflects a refund restock in the Redis mirror.
func (l *InventoryLedger) MirrorRestock(ctx context.Context, eventID int64, quantity int) {
	if l.redis == nil {
		return
	}
	if err := l.redis.RestockInventory(ctx, eventID, quantity); err != nil {
		l.logger.Error("Failed to mirror restock",
			zap.Int64("event_id", eventID),
			zap.Error(err))
	}
}

// CheckInvariant surfaces a ledger invariant violation: counted, logged
// loudly, and never self-healed.
func (l *InventoryLedger) CheckInvariant(err error) error {
	if errors.Is(err, store.ErrInvariantViolation) {
		util.InventoryInvariantViolations.Inc()
		l.logger.Error("Inventory invariant violation", zap.Error(err))
	}
	return err
}

// Sync seeds the Redis mirror from database state at startup.
func (l *InventoryLedger) Sync(ctx context.Context) error {
	if l.redis == nil {
		return nil
	}

	events, err := l.store.ListActiveEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to list events for sync: %w", err)
	}

	for _, event := range events {
		if err := l.redis.InitInventory(ctx, event.ID, event.Available, event.Reserved); err != nil {
			l.logger.Error("Failed to seed inventory mirror",
				zap.Int64("event_id", event.ID),
				zap.Error(err))
		}
	}

	l.logger.Info("Inventory mirror synced", zap.Int("events", len(events)))
	return nil
}
