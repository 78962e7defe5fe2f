package settlement

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"cashdesk/models"
	"cashdesk/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubWallet records SettleBet calls
type stubWallet struct {
	requests []service.SettleBetRequest
	err      error
	errByRef map[string]error
}

func (s *stubWallet) SettleBet(ctx context.Context, req service.SettleBetRequest) (*models.Settlement, error) {
	s.requests = append(s.requests, req)
	if err, ok := s.errByRef[req.BetRef]; ok {
		return nil, err
	}
	if s.err != nil {
		return nil, s.err
	}
	return &models.Settlement{
		BetRef:       req.BetRef,
		StakeReceipt: &models.Receipt{TransactionID: "tx-stake", Kind: models.TransactionKindBetStake},
	}, nil
}

func (s *stubWallet) Deposit(ctx context.Context, req service.DepositRequest) (*models.Receipt, error) {
	return nil, nil
}

func (s *stubWallet) Withdraw(ctx context.Context, req service.WithdrawRequest) (*models.Receipt, error) {
	return nil, nil
}

func (s *stubWallet) Transfer(ctx context.Context, req service.TransferRequest) (*models.Receipt, error) {
	return nil, nil
}

func (s *stubWallet) Balance(ctx context.Context, accountID int64) (int64, error) {
	return 0, nil
}

func (s *stubWallet) Statement(ctx context.Context, accountID int64, from, to time.Time) ([]*models.LedgerEntry, error) {
	return nil, nil
}

func encode(t *testing.T, event BetOutcomeEvent) []byte {
	t.Helper()
	data, err := json.Marshal(event)
	require.NoError(t, err)
	return data
}

func TestAdapter_Handle_Win(t *testing.T) {
	wallet := &stubWallet{}
	adapter := NewAdapter(wallet)

	err := adapter.Handle(context.Background(), encode(t, BetOutcomeEvent{
		PlayerID:     7,
		StakeAmount:  10000,
		Outcome:      OutcomeWin,
		PayoutAmount: 18000,
		BetRef:       "bet-42",
	}))

	require.NoError(t, err)
	require.Len(t, wallet.requests, 1)
	assert.Equal(t, int64(7), wallet.requests[0].PlayerID)
	assert.Equal(t, int64(10000), wallet.requests[0].StakeAmount)
	assert.Equal(t, int64(18000), wallet.requests[0].PayoutAmount)
	assert.Equal(t, "bet-42", wallet.requests[0].BetRef)
}

func TestAdapter_Handle_Lose(t *testing.T) {
	wallet := &stubWallet{}
	adapter := NewAdapter(wallet)

	// A stray payoutAmount on a losing outcome is ignored
	err := adapter.Handle(context.Background(), encode(t, BetOutcomeEvent{
		PlayerID:     7,
		StakeAmount:  10000,
		Outcome:      OutcomeLose,
		PayoutAmount: 5000,
		BetRef:       "bet-43",
	}))

	require.NoError(t, err)
	require.Len(t, wallet.requests, 1)
	assert.Equal(t, int64(0), wallet.requests[0].PayoutAmount)
}

func TestAdapter_Handle_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"invalid json", []byte(`{not json`)},
		{"missing bet ref", []byte(`{"playerId":7,"stakeAmount":100,"outcome":"lose"}`)},
		{"missing player", []byte(`{"stakeAmount":100,"outcome":"lose","betRef":"b"}`)},
		{"zero stake", []byte(`{"playerId":7,"stakeAmount":0,"outcome":"lose","betRef":"b"}`)},
		{"unknown outcome", []byte(`{"playerId":7,"stakeAmount":100,"outcome":"push","betRef":"b"}`)},
		{"win without payout", []byte(`{"playerId":7,"stakeAmount":100,"outcome":"win","betRef":"b"}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wallet := &stubWallet{}
			adapter := NewAdapter(wallet)

			err := adapter.Handle(context.Background(), tt.payload)
			require.Error(t, err)
			assert.True(t, IsMalformed(err))
			assert.Empty(t, wallet.requests)
		})
	}
}

func TestAdapter_Handle_WalletError(t *testing.T) {
	wallet := &stubWallet{err: fmt.Errorf("account 7: %w", service.ErrUnknownAccount)}
	adapter := NewAdapter(wallet)

	err := adapter.Handle(context.Background(), encode(t, BetOutcomeEvent{
		PlayerID:    7,
		StakeAmount: 10000,
		Outcome:     OutcomeLose,
		BetRef:      "bet-44",
	}))

	require.Error(t, err)
	assert.False(t, IsMalformed(err))
	assert.ErrorIs(t, err, service.ErrUnknownAccount)
}
