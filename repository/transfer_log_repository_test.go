package repository

import (
	"context"
	"testing"
	"time"

	"cashdesk/models"
	"cashdesk/repository/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransferLogRepository(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	ctx := context.Background()
	accounts := NewAccountRepository(testDB.DB)
	transferLogs := NewTransferLogRepository(testDB.DB)

	owner := testutil.CreateTestOwner("acme")
	require.NoError(t, accounts.Create(ctx, owner))
	agentA := testutil.CreateTestAgent("north", owner.ID)
	require.NoError(t, accounts.Create(ctx, agentA))
	agentB := testutil.CreateTestAgent("south", owner.ID)
	require.NoError(t, accounts.Create(ctx, agentB))

	record := func(from, to, amount int64) {
		entry := &models.TransferLog{
			TransactionID: uuid.NewString(),
			FromAccountID: from,
			ToAccountID:   to,
			Amount:        amount,
			Kind:          models.TransactionKindCreditTransfer,
		}
		require.NoError(t, transferLogs.Record(ctx, entry))
		assert.NotZero(t, entry.ID)
	}

	record(owner.ID, agentA.ID, 100000)
	record(owner.ID, agentB.ID, 50000)
	record(agentA.ID, owner.ID, 20000)

	t.Run("list newest first", func(t *testing.T) {
		logs, err := transferLogs.List(ctx, 10, 0)
		require.NoError(t, err)
		require.Len(t, logs, 3)
		assert.Equal(t, int64(20000), logs[0].Amount)
		assert.Equal(t, int64(100000), logs[2].Amount)
	})

	t.Run("list with offset", func(t *testing.T) {
		logs, err := transferLogs.List(ctx, 10, 2)
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, int64(100000), logs[0].Amount)
	})

	t.Run("list by account covers both sides", func(t *testing.T) {
		logs, err := transferLogs.ListByAccount(ctx, agentA.ID, 10)
		require.NoError(t, err)
		require.Len(t, logs, 2)

		logs, err = transferLogs.ListByAccount(ctx, agentB.ID, 10)
		require.NoError(t, err)
		require.Len(t, logs, 1)
	})

	t.Run("totals within range", func(t *testing.T) {
		totals, err := transferLogs.Totals(ctx, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(3), totals.Count)
		assert.Equal(t, int64(170000), totals.TotalAmount)
	})

	t.Run("totals outside range", func(t *testing.T) {
		totals, err := transferLogs.Totals(ctx, time.Now().Add(-2*time.Hour), time.Now().Add(-time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(0), totals.Count)
		assert.Equal(t, int64(0), totals.TotalAmount)
	})
}
