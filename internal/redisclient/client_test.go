package redisclient

import (
	"context"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func setupMockClient() (*Client, redismock.ClientMock) {
	rdb, mock := redismock.NewClientMock()
	return NewClientWith(rdb), mock
}

func TestReserveInventory_Granted(t *testing.T) {
	client, mock := setupMockClient()
	defer mock.ClearExpect()

	mock.ExpectEvalSha(client.reserveScript.Hash(), []string{"inventory:42"}, 3).SetVal(int64(1))

	granted, err := client.ReserveInventory(context.Background(), 42, 3)
	require.NoError(t, err)
	assert.True(t, granted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveInventory_Insufficient(t *testing.T) {
	client, mock := setupMockClient()
	defer mock.ClearExpect()

	mock.ExpectEvalSha(client.reserveScript.Hash(), []string{"inventory:42"}, 10).SetVal(int64(0))

	granted, err := client.ReserveInventory(context.Background(), 42, 10)
	require.NoError(t, err)
	assert.False(t, granted)
}

func TestReleaseInventory(t *testing.T) {
	client, mock := setupMockClient()
	defer mock.ClearExpect()

	mock.ExpectEvalSha(client.releaseScript.Hash(), []string{"inventory:7"}, 2).SetVal(int64(1))

	err := client.ReleaseInventory(context.Background(), 7, 2)
	assert.NoError(t, err)
}

func TestReleaseInventoryLogsDrift(t *testing.T) {
	client, mock := setupMockClient()
	defer mock.ClearExpect()

	core, logs := observer.New(zap.ErrorLevel)
	client.logger = zap.New(core)

	// Mirror holds fewer reserved units than the release asks for.
	mock.ExpectEvalSha(client.releaseScript.Hash(), []string{"inventory:7"}, 2).SetVal(int64(0))

	err := client.ReleaseInventory(context.Background(), 7, 2)
	require.NoError(t, err, "drift is best-effort mirror state, not a caller error")
	require.Equal(t, 1, logs.Len())
	assert.Contains(t, logs.All()[0].Message, "drift")
}

func TestCommitInventoryLogsDrift(t *testing.T) {
	client, mock := setupMockClient()
	defer mock.ClearExpect()

	core, logs := observer.New(zap.ErrorLevel)
	client.logger = zap.New(core)

	mock.ExpectEvalSha(client.commitScript.Hash(), []string{"inventory:7"}, 3).SetVal(int64(0))

	err := client.CommitInventory(context.Background(), 7, 3)
	require.NoError(t, err)
	require.Equal(t, 1, logs.Len())
	assert.Contains(t, logs.All()[0].Message, "drift")
}

func TestInitInventory(t *testing.T) {
	client, mock := setupMockClient()
	defer mock.ClearExpect()

	mock.ExpectHSet("inventory:5", "available", 100).SetVal(1)
	mock.ExpectHSet("inventory:5", "reserved", 0).SetVal(1)

	err := client.InitInventory(context.Background(), 5, 100, 0)
	assert.NoError(t, err)
}

func TestGetInventory_Missing(t *testing.T) {
	client, mock := setupMockClient()
	defer mock.ClearExpect()

	mock.ExpectHGetAll("inventory:9").SetVal(map[string]string{})

	_, _, err := client.GetInventory(context.Background(), 9)
	assert.Error(t, err)
}
