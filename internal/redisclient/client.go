package redisclient

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"ticket-booking/internal/util"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

//go:embed scripts/reserve_inventory.lua
var reserveInventoryScript string

//go:embed scripts/release_inventory.lua
var releaseInventoryScript string

//go:embed scripts/commit_inventory.lua
var commitInventoryScript string

// Client wraps Redis with the Lua-scripted inventory fast path. Redis is a
// gate in front of the database, not the source of truth: a reservation
// granted here still has to win the Postgres transaction.
type Client struct {
	rdb           *redis.Client
	reserveScript *redis.Script
	releaseScript *redis.Script
	commitScript  *redis.Script
	logger        *zap.Logger
}

// NewClient creates a Redis client with the inventory scripts loaded.
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewClientWith(rdb), nil
}

// NewClientWith wraps an existing connection; used by tests with a mock.
func NewClientWith(rdb *redis.Client) *Client {
	return &Client{
		rdb:           rdb,
		reserveScript: redis.NewScript(reserveInventoryScript),
		releaseScript: redis.NewScript(releaseInventoryScript),
		commitScript:  redis.NewScript(commitInventoryScript),
		logger:        util.GetLogger(),
	}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func inventoryKey(eventID int64) string {
	return fmt.Sprintf("inventory:%d", eventID)
}

// ReserveInventory atomically holds quantity units for an event. Returns
// false when not enough units are available.
func (c *Client) ReserveInventory(ctx context.Context, eventID int64, quantity int) (bool, error) {
	result, err := c.reserveScript.Run(ctx, c.rdb, []string{inventoryKey(eventID)}, quantity).Result()
	if err != nil {
		return false, fmt.Errorf("reserve inventory script failed: %w", err)
	}

	granted, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected script result type %T", result)
	}
	return granted == 1, nil
}

// ReleaseInventory returns held units to availability. A 0 reply means the
// mirror held fewer reserved units than asked: the counters have drifted from
// the database. The mirror is resynced at startup, so drift is logged rather
// than returned, but never absorbed silently.
func (c *Client) ReleaseInventory(ctx context.Context, eventID int64, quantity int) error {
	result, err := c.releaseScript.Run(ctx, c.rdb, []string{inventoryKey(eventID)}, quantity).Result()
	if err != nil {
		return fmt.Errorf("release inventory script failed: %w", err)
	}
	if applied, ok := result.(int64); ok && applied == 0 {
		c.logger.Error("Inventory mirror drift: release without matching reserved units",
			zap.Int64("event_id", eventID),
			zap.Int("quantity", quantity))
	}
	return nil
}

// CommitInventory retires held units as sold. Drift is reported the same way
// as ReleaseInventory.
func (c *Client) CommitInventory(ctx context.Context, eventID int64, quantity int) error {
	result, err := c.commitScript.Run(ctx, c.rdb, []string{inventoryKey(eventID)}, quantity).Result()
	if err != nil {
		return fmt.Errorf("commit inventory script failed: %w", err)
	}
	if applied, ok := result.(int64); ok && applied == 0 {
		c.logger.Error("Inventory mirror drift: commit without matching reserved units",
			zap.Int64("event_id", eventID),
			zap.Int("quantity", quantity))
	}
	return nil
}

// RestockInventory adds units back to availability after a refund.
func (c *Client) RestockInventory(ctx context.Context, eventID int64, quantity int) error {
	return c.rdb.HIncrBy(ctx, inventoryKey(eventID), "available", int64(quantity)).Err()
}

// InitInventory seeds the counters for an event from database state.
func (c *Client) InitInventory(ctx context.Context, eventID int64, available, reserved int) error {
	pipe := c.rdb.Pipeline()
	pipe.HSet(ctx, inventoryKey(eventID), "available", available)
	pipe.HSet(ctx, inventoryKey(eventID), "reserved", reserved)

	_, err := pipe.Exec(ctx)
	return err
}

// GetInventory reads the cached counters for an event.
func (c *Client) GetInventory(ctx context.Context, eventID int64) (available, reserved int, err error) {
	result, err := c.rdb.HGetAll(ctx, inventoryKey(eventID)).Result()
	if err != nil {
		return 0, 0, err
	}
	if len(result) == 0 {
		return 0, 0, fmt.Errorf("inventory not found for event %d", eventID)
	}

	fmt.Sscanf(result["available"], "%d", &available)
	fmt.Sscanf(result["reserved"], "%d", &reserved)
	return available, reserved, nil
}
