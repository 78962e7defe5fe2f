package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cashdesk/models"
	"cashdesk/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubAccountService implements service.AccountService with overridable funcs
type stubAccountService struct {
	resolve       func(ctx context.Context, accountID int64) (*models.Account, error)
	createAccount func(ctx context.Context, req service.CreateAccountRequest) (*models.Account, error)
	suspend       func(ctx context.Context, accountID int64) error
	children      func(ctx context.Context, accountID int64) ([]*models.Account, error)
}

func (s *stubAccountService) Resolve(ctx context.Context, accountID int64) (*models.Account, error) {
	return s.resolve(ctx, accountID)
}

func (s *stubAccountService) ParentOf(ctx context.Context, accountID int64) (*models.Account, error) {
	return nil, nil
}

func (s *stubAccountService) TypeOf(ctx context.Context, accountID int64) (models.AccountType, error) {
	account, err := s.resolve(ctx, accountID)
	if err != nil {
		return "", err
	}
	return account.Type, nil
}

func (s *stubAccountService) HouseAccount(ctx context.Context) (*models.Account, error) {
	return nil, nil
}

func (s *stubAccountService) CreateAccount(ctx context.Context, req service.CreateAccountRequest) (*models.Account, error) {
	return s.createAccount(ctx, req)
}

func (s *stubAccountService) Suspend(ctx context.Context, accountID int64) error {
	return s.suspend(ctx, accountID)
}

func (s *stubAccountService) Reinstate(ctx context.Context, accountID int64) error {
	return s.suspend(ctx, accountID)
}

func (s *stubAccountService) Children(ctx context.Context, accountID int64) ([]*models.Account, error) {
	return s.children(ctx, accountID)
}

// stubWalletService implements service.WalletService with overridable funcs
type stubWalletService struct {
	deposit   func(ctx context.Context, req service.DepositRequest) (*models.Receipt, error)
	withdraw  func(ctx context.Context, req service.WithdrawRequest) (*models.Receipt, error)
	transfer  func(ctx context.Context, req service.TransferRequest) (*models.Receipt, error)
	settleBet func(ctx context.Context, req service.SettleBetRequest) (*models.Settlement, error)
	balance   func(ctx context.Context, accountID int64) (int64, error)
	statement func(ctx context.Context, accountID int64, from, to time.Time) ([]*models.LedgerEntry, error)
}

func (s *stubWalletService) Deposit(ctx context.Context, req service.DepositRequest) (*models.Receipt, error) {
	return s.deposit(ctx, req)
}

func (s *stubWalletService) Withdraw(ctx context.Context, req service.WithdrawRequest) (*models.Receipt, error) {
	return s.withdraw(ctx, req)
}

func (s *stubWalletService) Transfer(ctx context.Context, req service.TransferRequest) (*models.Receipt, error) {
	return s.transfer(ctx, req)
}

func (s *stubWalletService) SettleBet(ctx context.Context, req service.SettleBetRequest) (*models.Settlement, error) {
	return s.settleBet(ctx, req)
}

func (s *stubWalletService) Balance(ctx context.Context, accountID int64) (int64, error) {
	return s.balance(ctx, accountID)
}

func (s *stubWalletService) Statement(ctx context.Context, accountID int64, from, to time.Time) ([]*models.LedgerEntry, error) {
	return s.statement(ctx, accountID, from, to)
}

// stubTransferLogs implements service.TransferLogRepository
type stubTransferLogs struct {
	list func(ctx context.Context, limit, offset int) ([]*models.TransferLog, error)
}

func (s *stubTransferLogs) Record(ctx context.Context, entry *models.TransferLog) error {
	return nil
}

func (s *stubTransferLogs) List(ctx context.Context, limit, offset int) ([]*models.TransferLog, error) {
	return s.list(ctx, limit, offset)
}

func (s *stubTransferLogs) ListByAccount(ctx context.Context, accountID int64, limit int) ([]*models.TransferLog, error) {
	return nil, nil
}

func (s *stubTransferLogs) Totals(ctx context.Context, from, to time.Time) (*models.TransferTotals, error) {
	return &models.TransferTotals{}, nil
}

func newTestRouter(accounts *stubAccountService, wallet *stubWalletService, logs *stubTransferLogs) http.Handler {
	if accounts == nil {
		accounts = &stubAccountService{}
	}
	if wallet == nil {
		wallet = &stubWalletService{}
	}
	if logs == nil {
		logs = &stubTransferLogs{
			list: func(ctx context.Context, limit, offset int) ([]*models.TransferLog, error) {
				return nil, nil
			},
		}
	}
	return NewRouter(accounts, wallet, logs)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(nil, nil, nil)

	rec := doJSON(t, router, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateAccountHandler(t *testing.T) {
	accounts := &stubAccountService{
		createAccount: func(ctx context.Context, req service.CreateAccountRequest) (*models.Account, error) {
			return &models.Account{
				ID:       7,
				Username: req.Username,
				Type:     req.Type,
				ParentID: req.ParentID,
				Status:   models.AccountStatusActive,
			}, nil
		},
	}
	router := newTestRouter(accounts, nil, nil)

	rec := doJSON(t, router, http.MethodPost, "/accounts", map[string]any{
		"username": "north",
		"type":     "agent",
		"parentId": 1,
	})

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp accountResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(7), resp.ID)
	assert.Equal(t, "agent", resp.Type)
	require.NotNil(t, resp.ParentID)
	assert.Equal(t, int64(1), *resp.ParentID)
}

func TestCreateAccountHandler_InvalidHierarchy(t *testing.T) {
	accounts := &stubAccountService{
		createAccount: func(ctx context.Context, req service.CreateAccountRequest) (*models.Account, error) {
			return nil, fmt.Errorf("owner cannot own player: %w", service.ErrInvalidHierarchy)
		},
	}
	router := newTestRouter(accounts, nil, nil)

	rec := doJSON(t, router, http.MethodPost, "/accounts", map[string]any{
		"username": "alice",
		"type":     "player",
		"parentId": 1,
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetBalanceHandler(t *testing.T) {
	wallet := &stubWalletService{
		balance: func(ctx context.Context, accountID int64) (int64, error) {
			return 120000, nil
		},
	}
	router := newTestRouter(nil, wallet, nil)

	rec := doJSON(t, router, http.MethodGet, "/accounts/3/balance", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, float64(120000), resp["balance"])
}

func TestGetBalanceHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"unknown account", service.ErrUnknownAccount, http.StatusNotFound},
		{"suspended", service.ErrAccountSuspended, http.StatusForbidden},
		{"internal", fmt.Errorf("connection refused"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wallet := &stubWalletService{
				balance: func(ctx context.Context, accountID int64) (int64, error) {
					return 0, fmt.Errorf("account %d: %w", accountID, tt.err)
				},
			}
			router := newTestRouter(nil, wallet, nil)

			rec := doJSON(t, router, http.MethodGet, "/accounts/3/balance", nil)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestGetBalanceHandler_BadAccountID(t *testing.T) {
	router := newTestRouter(nil, &stubWalletService{}, nil)

	rec := doJSON(t, router, http.MethodGet, "/accounts/zero/balance", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDepositHandler(t *testing.T) {
	var got service.DepositRequest
	wallet := &stubWalletService{
		deposit: func(ctx context.Context, req service.DepositRequest) (*models.Receipt, error) {
			got = req
			return &models.Receipt{
				TransactionID:  "tx-1",
				IdempotencyKey: req.IdempotencyKey,
				Kind:           models.TransactionKindCapitalDeposit,
				ToAccountID:    &req.AccountID,
				Amount:         req.Amount,
			}, nil
		},
	}
	router := newTestRouter(nil, wallet, nil)

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(map[string]any{
		"amount":         50000,
		"idempotencyKey": "seed-1",
	}))
	req := httptest.NewRequest(http.MethodPost, "/accounts/1/deposit", &buf)
	req.Header.Set("X-Acting-Account", "42")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), got.AccountID)
	assert.Equal(t, int64(50000), got.Amount)
	require.NotNil(t, got.InitiatedBy)
	assert.Equal(t, int64(42), *got.InitiatedBy)

	var resp receiptResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "tx-1", resp.TransactionID)
	assert.False(t, resp.Duplicate)
}

func TestWithdrawHandler_InsufficientFunds(t *testing.T) {
	wallet := &stubWalletService{
		withdraw: func(ctx context.Context, req service.WithdrawRequest) (*models.Receipt, error) {
			return nil, fmt.Errorf("have 3000, need 5000: %w", service.ErrInsufficientFunds)
		},
	}
	router := newTestRouter(nil, wallet, nil)

	rec := doJSON(t, router, http.MethodPost, "/accounts/2/withdraw", map[string]any{
		"amount": 5000,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTransferHandler(t *testing.T) {
	wallet := &stubWalletService{
		transfer: func(ctx context.Context, req service.TransferRequest) (*models.Receipt, error) {
			return &models.Receipt{
				TransactionID:  "tx-2",
				IdempotencyKey: req.IdempotencyKey,
				Kind:           models.TransactionKindCreditTransfer,
				FromAccountID:  &req.FromAccountID,
				ToAccountID:    &req.ToAccountID,
				Amount:         req.Amount,
				Duplicate:      req.IdempotencyKey == "replayed",
			}, nil
		},
	}
	router := newTestRouter(nil, wallet, nil)

	rec := doJSON(t, router, http.MethodPost, "/transfers", map[string]any{
		"fromAccountId":  1,
		"toAccountId":    2,
		"amount":         100000,
		"idempotencyKey": "op-1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp receiptResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "tx-2", resp.TransactionID)
	assert.False(t, resp.Duplicate)

	t.Run("replay is flagged", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/transfers", map[string]any{
			"fromAccountId":  1,
			"toAccountId":    2,
			"amount":         100000,
			"idempotencyKey": "replayed",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp receiptResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Duplicate)
	})
}

func TestTransferHandler_Unauthorized(t *testing.T) {
	wallet := &stubWalletService{
		transfer: func(ctx context.Context, req service.TransferRequest) (*models.Receipt, error) {
			return nil, fmt.Errorf("transfer %d -> %d: %w", req.FromAccountID, req.ToAccountID, service.ErrUnrelatedAccounts)
		},
	}
	router := newTestRouter(nil, wallet, nil)

	rec := doJSON(t, router, http.MethodPost, "/transfers", map[string]any{
		"fromAccountId": 4,
		"toAccountId":   8,
		"amount":        10000,
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSettleBetHandler(t *testing.T) {
	wallet := &stubWalletService{
		settleBet: func(ctx context.Context, req service.SettleBetRequest) (*models.Settlement, error) {
			settlement := &models.Settlement{
				BetRef:       req.BetRef,
				StakeReceipt: &models.Receipt{TransactionID: "tx-stake", Kind: models.TransactionKindBetStake, Amount: req.StakeAmount},
			}
			if req.PayoutAmount > 0 {
				settlement.PayoutReceipt = &models.Receipt{TransactionID: "tx-payout", Kind: models.TransactionKindBetPayout, Amount: req.PayoutAmount}
			}
			return settlement, nil
		},
	}
	router := newTestRouter(nil, wallet, nil)

	rec := doJSON(t, router, http.MethodPost, "/settlements", map[string]any{
		"playerId":     7,
		"stakeAmount":  10000,
		"payoutAmount": 18000,
		"betRef":       "bet-42",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp, "stakeReceipt")
	assert.Contains(t, resp, "payoutReceipt")
}

func TestSettleBetHandler_MissingBetRef(t *testing.T) {
	router := newTestRouter(nil, &stubWalletService{}, nil)

	rec := doJSON(t, router, http.MethodPost, "/settlements", map[string]any{
		"playerId":    7,
		"stakeAmount": 10000,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListTransfersHandler(t *testing.T) {
	logs := &stubTransferLogs{
		list: func(ctx context.Context, limit, offset int) ([]*models.TransferLog, error) {
			assert.Equal(t, 10, limit)
			assert.Equal(t, 5, offset)
			return []*models.TransferLog{
				{ID: 3, TransactionID: "tx-3", FromAccountID: 1, ToAccountID: 2, Amount: 100, Kind: models.TransactionKindCreditTransfer},
			}, nil
		},
	}
	router := newTestRouter(nil, nil, logs)

	rec := doJSON(t, router, http.MethodGet, "/transfers?limit=10&offset=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []transferLogResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "tx-3", resp[0].TransactionID)
}

func TestGetStatementHandler_BadTimestamps(t *testing.T) {
	router := newTestRouter(nil, &stubWalletService{}, nil)

	rec := doJSON(t, router, http.MethodGet, "/accounts/2/statement?from=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
