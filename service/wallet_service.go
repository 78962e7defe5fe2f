package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cashdesk/events"
	"cashdesk/models"

	"github.com/google/uuid"
)

// walletService implements the WalletService interface. Every mutating
// operation runs inside one unit of work: account rows are locked in
// ascending id order, the balance precondition is checked against the locked
// row, and the receipt, materialized balances, ledger entries and transfer
// log are written together or not at all.
type walletService struct {
	uowFactory UnitOfWorkFactory
	authorizer TransferAuthorizer
}

// NewWalletService creates a new wallet service
func NewWalletService(uowFactory UnitOfWorkFactory, authorizer TransferAuthorizer) WalletService {
	return &walletService{
		uowFactory: uowFactory,
		authorizer: authorizer,
	}
}

// Deposit credits an account with new capital. There is no source account:
// this is capital injection, used by bootstrap seeding and owner top-ups.
func (s *walletService) Deposit(ctx context.Context, req DepositRequest) (*models.Receipt, error) {
	kind := req.Kind
	if kind == "" {
		kind = models.TransactionKindCapitalDeposit
	}
	if !models.ValidTransactionKind(kind) || kind.IsPaired() {
		return nil, fmt.Errorf("kind %q is not a deposit kind", kind)
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("deposit of %d: %w", req.Amount, ErrInvalidAmount)
	}

	key := req.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}
	if existing, err := s.findExisting(ctx, key); err != nil || existing != nil {
		return existing, err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	locked, err := uow.AccountRepository().LockForUpdate(ctx, req.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}
	account, ok := locked[req.AccountID]
	if !ok {
		return nil, fmt.Errorf("account %d: %w", req.AccountID, ErrUnknownAccount)
	}
	if !account.IsActive() {
		return nil, fmt.Errorf("account %d: %w", req.AccountID, ErrAccountSuspended)
	}

	receipt := &models.Receipt{
		TransactionID:  uuid.NewString(),
		IdempotencyKey: key,
		Kind:           kind,
		ToAccountID:    &req.AccountID,
		Amount:         req.Amount,
		Note:           req.Note,
		InitiatedBy:    req.InitiatedBy,
	}
	if err := uow.ReceiptRepository().Insert(ctx, receipt); err != nil {
		if errors.Is(err, ErrDuplicateOperation) {
			uow.Rollback()
			return s.originalReceipt(ctx, key)
		}
		return nil, fmt.Errorf("failed to record receipt: %w", err)
	}

	if err := uow.AccountRepository().AddBalance(ctx, req.AccountID, req.Amount); err != nil {
		return nil, fmt.Errorf("failed to credit account: %w", err)
	}

	entry := &models.LedgerEntry{
		AccountID:     req.AccountID,
		Amount:        req.Amount,
		Kind:          kind,
		TransactionID: receipt.TransactionID,
		Note:          req.Note,
	}
	before := map[int64]int64{req.AccountID: account.Balance}
	if err := WriteLedgerEntries(ctx, uow, []*models.LedgerEntry{entry}, before); err != nil {
		return nil, fmt.Errorf("failed to write ledger entry: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return receipt, nil
}

// Withdraw debits an account, failing with ErrInsufficientFunds when the
// balance precondition does not hold. No partial effect is ever persisted.
func (s *walletService) Withdraw(ctx context.Context, req WithdrawRequest) (*models.Receipt, error) {
	kind := req.Kind
	if kind == "" {
		kind = models.TransactionKindCapitalWithdrawal
	}
	if !models.ValidTransactionKind(kind) || kind.IsPaired() {
		return nil, fmt.Errorf("kind %q is not a withdrawal kind", kind)
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("withdrawal of %d: %w", req.Amount, ErrInvalidAmount)
	}

	key := req.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}
	if existing, err := s.findExisting(ctx, key); err != nil || existing != nil {
		return existing, err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	locked, err := uow.AccountRepository().LockForUpdate(ctx, req.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}
	account, ok := locked[req.AccountID]
	if !ok {
		return nil, fmt.Errorf("account %d: %w", req.AccountID, ErrUnknownAccount)
	}
	if !account.IsActive() {
		return nil, fmt.Errorf("account %d: %w", req.AccountID, ErrAccountSuspended)
	}
	if account.Balance < req.Amount {
		return nil, fmt.Errorf("have %d, need %d: %w", account.Balance, req.Amount, ErrInsufficientFunds)
	}

	receipt := &models.Receipt{
		TransactionID:  uuid.NewString(),
		IdempotencyKey: key,
		Kind:           kind,
		FromAccountID:  &req.AccountID,
		Amount:         req.Amount,
		Note:           req.Note,
		InitiatedBy:    req.InitiatedBy,
	}
	if err := uow.ReceiptRepository().Insert(ctx, receipt); err != nil {
		if errors.Is(err, ErrDuplicateOperation) {
			uow.Rollback()
			return s.originalReceipt(ctx, key)
		}
		return nil, fmt.Errorf("failed to record receipt: %w", err)
	}

	if err := uow.AccountRepository().DeductBalance(ctx, req.AccountID, req.Amount); err != nil {
		return nil, fmt.Errorf("failed to debit account: %w", err)
	}

	entry := &models.LedgerEntry{
		AccountID:     req.AccountID,
		Amount:        -req.Amount,
		Kind:          kind,
		TransactionID: receipt.TransactionID,
		Note:          req.Note,
	}
	before := map[int64]int64{req.AccountID: account.Balance}
	if err := WriteLedgerEntries(ctx, uow, []*models.LedgerEntry{entry}, before); err != nil {
		return nil, fmt.Errorf("failed to write ledger entry: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return receipt, nil
}

// Transfer atomically moves amount one hop along a parent-child edge.
// This is the only way balance moves between two existing accounts; cash-in,
// cash-out and settlement flows all compose from it.
func (s *walletService) Transfer(ctx context.Context, req TransferRequest) (*models.Receipt, error) {
	return s.executeTransfer(ctx, transferParams{
		from:        req.FromAccountID,
		to:          req.ToAccountID,
		amount:      req.Amount,
		kind:        models.TransactionKindCreditTransfer,
		key:         req.IdempotencyKey,
		note:        req.Note,
		initiatedBy: req.InitiatedBy,
		authorize:   true,
	})
}

// SettleBet converts a bet outcome into wallet movements: the stake leg
// debits the player into the house account, the payout leg (when the bet
// paid out) credits the player back from the house. Both legs are ordinary
// transfers keyed off the bet ref, so redelivered outcomes are no-ops.
func (s *walletService) SettleBet(ctx context.Context, req SettleBetRequest) (*models.Settlement, error) {
	if req.BetRef == "" {
		return nil, fmt.Errorf("bet ref is required")
	}
	if req.StakeAmount <= 0 {
		return nil, fmt.Errorf("stake of %d: %w", req.StakeAmount, ErrInvalidAmount)
	}
	if req.PayoutAmount < 0 {
		return nil, fmt.Errorf("payout of %d: %w", req.PayoutAmount, ErrInvalidAmount)
	}

	house, err := s.houseAccount(ctx)
	if err != nil {
		return nil, err
	}

	settledEvent := events.BetSettledEvent{
		BetRef:       req.BetRef,
		PlayerID:     req.PlayerID,
		StakeAmount:  req.StakeAmount,
		PayoutAmount: req.PayoutAmount,
	}

	stakeParams := transferParams{
		from:   req.PlayerID,
		to:     house.ID,
		amount: req.StakeAmount,
		kind:   models.TransactionKindBetStake,
		key:    req.BetRef + ":stake",
		note:   "bet " + req.BetRef,
	}
	if req.PayoutAmount == 0 {
		stakeParams.extraEvents = []events.Event{settledEvent}
	}

	stakeReceipt, err := s.executeTransfer(ctx, stakeParams)
	if err != nil {
		return nil, fmt.Errorf("failed to debit stake for bet %s: %w", req.BetRef, err)
	}

	settlement := &models.Settlement{
		BetRef:       req.BetRef,
		StakeReceipt: stakeReceipt,
	}

	if req.PayoutAmount > 0 {
		payoutReceipt, err := s.executeTransfer(ctx, transferParams{
			from:        house.ID,
			to:          req.PlayerID,
			amount:      req.PayoutAmount,
			kind:        models.TransactionKindBetPayout,
			key:         req.BetRef + ":payout",
			note:        "bet " + req.BetRef,
			extraEvents: []events.Event{settledEvent},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to credit payout for bet %s: %w", req.BetRef, err)
		}
		settlement.PayoutReceipt = payoutReceipt
	}

	return settlement, nil
}

// Balance returns the current spendable amount for an account
func (s *walletService) Balance(ctx context.Context, accountID int64) (int64, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	account, err := uow.AccountRepository().GetByID(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("failed to get account: %w", err)
	}
	if account == nil {
		return 0, fmt.Errorf("account %d: %w", accountID, ErrUnknownAccount)
	}

	return account.Balance, nil
}

// Statement returns an account's ledger entries within a date range,
// ordered by append time ascending.
func (s *walletService) Statement(ctx context.Context, accountID int64, from, to time.Time) ([]*models.LedgerEntry, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	account, err := uow.AccountRepository().GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if account == nil {
		return nil, fmt.Errorf("account %d: %w", accountID, ErrUnknownAccount)
	}

	entries, err := uow.LedgerRepository().GetByDateRange(ctx, accountID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entries: %w", err)
	}

	return entries, nil
}

// transferParams carries the internal inputs for one transfer leg.
// authorize is false for settlement legs: the system wallet takes part in
// those, and the hierarchy policy would otherwise reject it.
type transferParams struct {
	from        int64
	to          int64
	amount      int64
	kind        models.TransactionKind
	key         string
	note        string
	initiatedBy *int64
	authorize   bool
	extraEvents []events.Event
}

func (s *walletService) executeTransfer(ctx context.Context, p transferParams) (*models.Receipt, error) {
	if p.from == p.to {
		return nil, fmt.Errorf("account %d cannot transfer to itself: %w", p.from, ErrInvalidTransfer)
	}

	if p.key == "" {
		p.key = uuid.NewString()
	}
	// A previously-applied key resolves to the original receipt before any
	// further checks: a retried transfer must not fail the balance check it
	// already passed.
	if existing, err := s.findExisting(ctx, p.key); err != nil || existing != nil {
		return existing, err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	locked, err := uow.AccountRepository().LockForUpdate(ctx, p.from, p.to)
	if err != nil {
		return nil, fmt.Errorf("failed to lock accounts: %w", err)
	}
	fromAccount, ok := locked[p.from]
	if !ok {
		return nil, fmt.Errorf("account %d: %w", p.from, ErrUnknownAccount)
	}
	toAccount, ok := locked[p.to]
	if !ok {
		return nil, fmt.Errorf("account %d: %w", p.to, ErrUnknownAccount)
	}
	if !fromAccount.IsActive() {
		return nil, fmt.Errorf("account %d: %w", p.from, ErrAccountSuspended)
	}
	if !toAccount.IsActive() {
		return nil, fmt.Errorf("account %d: %w", p.to, ErrAccountSuspended)
	}

	if p.authorize {
		if err := s.authorizer.Authorize(fromAccount, toAccount); err != nil {
			return nil, fmt.Errorf("transfer %d -> %d: %w", p.from, p.to, err)
		}
	}

	if p.amount <= 0 {
		return nil, fmt.Errorf("transfer of %d: %w", p.amount, ErrInvalidAmount)
	}
	if fromAccount.Balance < p.amount {
		return nil, fmt.Errorf("have %d, need %d: %w", fromAccount.Balance, p.amount, ErrInsufficientFunds)
	}

	receipt := &models.Receipt{
		TransactionID:  uuid.NewString(),
		IdempotencyKey: p.key,
		Kind:           p.kind,
		FromAccountID:  &p.from,
		ToAccountID:    &p.to,
		Amount:         p.amount,
		Note:           p.note,
		InitiatedBy:    p.initiatedBy,
	}
	if err := uow.ReceiptRepository().Insert(ctx, receipt); err != nil {
		if errors.Is(err, ErrDuplicateOperation) {
			// Lost the race against a concurrent retry; its receipt wins.
			uow.Rollback()
			return s.originalReceipt(ctx, p.key)
		}
		return nil, fmt.Errorf("failed to record receipt: %w", err)
	}

	if err := uow.AccountRepository().DeductBalance(ctx, p.from, p.amount); err != nil {
		return nil, fmt.Errorf("failed to debit sender: %w", err)
	}
	if err := uow.AccountRepository().AddBalance(ctx, p.to, p.amount); err != nil {
		return nil, fmt.Errorf("failed to credit recipient: %w", err)
	}

	entries := []*models.LedgerEntry{
		{
			AccountID:     p.from,
			Amount:        -p.amount,
			Kind:          p.kind,
			TransactionID: receipt.TransactionID,
			Note:          p.note,
		},
		{
			AccountID:     p.to,
			Amount:        p.amount,
			Kind:          p.kind,
			TransactionID: receipt.TransactionID,
			Note:          p.note,
		},
	}
	before := map[int64]int64{
		p.from: fromAccount.Balance,
		p.to:   toAccount.Balance,
	}
	if err := WriteLedgerEntries(ctx, uow, entries, before); err != nil {
		return nil, fmt.Errorf("failed to write ledger entries: %w", err)
	}

	if err := uow.TransferLogRepository().Record(ctx, &models.TransferLog{
		TransactionID: receipt.TransactionID,
		FromAccountID: p.from,
		ToAccountID:   p.to,
		Amount:        p.amount,
		Kind:          p.kind,
		Note:          p.note,
	}); err != nil {
		return nil, fmt.Errorf("failed to record transfer log: %w", err)
	}

	uow.EventBus().Publish(events.TransferCompletedEvent{
		TransactionID: receipt.TransactionID,
		FromAccountID: p.from,
		ToAccountID:   p.to,
		Amount:        p.amount,
		Kind:          p.kind,
	})
	for _, ev := range p.extraEvents {
		uow.EventBus().Publish(ev)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return receipt, nil
}

// findExisting looks up a previously-applied idempotency key. A hit is
// returned with Duplicate set so callers can tell a replay from a fresh
// application.
func (s *walletService) findExisting(ctx context.Context, key string) (*models.Receipt, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	receipt, err := uow.ReceiptRepository().GetByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to look up idempotency key: %w", err)
	}
	if receipt != nil {
		receipt.Duplicate = true
	}

	return receipt, nil
}

func (s *walletService) originalReceipt(ctx context.Context, key string) (*models.Receipt, error) {
	receipt, err := s.findExisting(ctx, key)
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, fmt.Errorf("idempotency key %q: %w", key, ErrDuplicateOperation)
	}
	return receipt, nil
}

func (s *walletService) houseAccount(ctx context.Context) (*models.Account, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	house, err := uow.AccountRepository().GetSystemWallet(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get system wallet: %w", err)
	}
	if house == nil {
		return nil, fmt.Errorf("system wallet not provisioned: %w", ErrUnknownAccount)
	}

	return house, nil
}
