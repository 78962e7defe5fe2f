package service

import (
	"context"
	"time"

	"cashdesk/events"
	"cashdesk/models"
)

// AccountRepository defines the interface for account data access
type AccountRepository interface {
	// GetByID retrieves an account by id, returning nil when not found
	GetByID(ctx context.Context, id int64) (*models.Account, error)

	// GetByUsername retrieves an account by its unique username
	GetByUsername(ctx context.Context, username string) (*models.Account, error)

	// GetSystemWallet retrieves the house system-wallet account
	GetSystemWallet(ctx context.Context) (*models.Account, error)

	// GetChildren returns the direct children of an account
	GetChildren(ctx context.Context, parentID int64) ([]*models.Account, error)

	// Create inserts a new account and fills in its id and timestamps
	Create(ctx context.Context, account *models.Account) error

	// LockForUpdate locks the given account rows in ascending id order and
	// returns them keyed by id. Missing ids are absent from the map.
	LockForUpdate(ctx context.Context, ids ...int64) (map[int64]*models.Account, error)

	// AddBalance credits an account's materialized balance
	AddBalance(ctx context.Context, id int64, amount int64) error

	// DeductBalance debits an account's materialized balance, failing with
	// ErrInsufficientFunds when the balance would go negative
	DeductBalance(ctx context.Context, id int64, amount int64) error

	// UpdateStatus changes an account's status
	UpdateStatus(ctx context.Context, id int64, status models.AccountStatus) error
}

// LedgerRepository defines the interface for the append-only ledger
type LedgerRepository interface {
	// Append writes a set of entries under their correlation ids,
	// all-or-nothing. Paired kinds must sum to zero across the set.
	Append(ctx context.Context, entries []*models.LedgerEntry) error

	// GetByAccount returns the most recent entries for an account
	GetByAccount(ctx context.Context, accountID int64, limit int) ([]*models.LedgerEntry, error)

	// GetByDateRange returns entries for an account ordered by append time
	GetByDateRange(ctx context.Context, accountID int64, from, to time.Time) ([]*models.LedgerEntry, error)

	// GetByTransactionID returns the entries under one correlation id
	GetByTransactionID(ctx context.Context, transactionID string) ([]*models.LedgerEntry, error)

	// RunningBalance sums all entries for an account
	RunningBalance(ctx context.Context, accountID int64) (int64, error)
}

// ReceiptRepository defines the interface for wallet-transaction receipts
type ReceiptRepository interface {
	// Insert records a receipt, failing with ErrDuplicateOperation when the
	// idempotency key has already been used
	Insert(ctx context.Context, receipt *models.Receipt) error

	// GetByIdempotencyKey retrieves a receipt by key, nil when not found
	GetByIdempotencyKey(ctx context.Context, key string) (*models.Receipt, error)

	// GetByTransactionID retrieves a receipt by correlation id, nil when not found
	GetByTransactionID(ctx context.Context, transactionID string) (*models.Receipt, error)
}

// TransferLogRepository defines the interface for the transfer reporting projection
type TransferLogRepository interface {
	// Record appends a transfer-log row
	Record(ctx context.Context, entry *models.TransferLog) error

	// List returns transfer-log rows, newest first
	List(ctx context.Context, limit, offset int) ([]*models.TransferLog, error)

	// ListByAccount returns transfer-log rows touching an account, newest first
	ListByAccount(ctx context.Context, accountID int64, limit int) ([]*models.TransferLog, error)

	// Totals aggregates transfer count and volume within a date range
	Totals(ctx context.Context, from, to time.Time) (*models.TransferTotals, error)
}

// AccountService defines directory and provisioning operations over accounts
type AccountService interface {
	// Resolve retrieves an account, failing with ErrUnknownAccount
	Resolve(ctx context.Context, accountID int64) (*models.Account, error)

	// ParentOf returns an account's parent, nil when it has none
	ParentOf(ctx context.Context, accountID int64) (*models.Account, error)

	// TypeOf returns an account's type
	TypeOf(ctx context.Context, accountID int64) (models.AccountType, error)

	// HouseAccount returns the system-wallet house account
	HouseAccount(ctx context.Context) (*models.Account, error)

	// CreateAccount provisions a new account, enforcing the parent-child
	// type matrix
	CreateAccount(ctx context.Context, req CreateAccountRequest) (*models.Account, error)

	// Suspend blocks an account from wallet mutations
	Suspend(ctx context.Context, accountID int64) error

	// Reinstate reactivates a suspended account
	Reinstate(ctx context.Context, accountID int64) error

	// Children returns the direct children of an account
	Children(ctx context.Context, accountID int64) ([]*models.Account, error)
}

// CreateAccountRequest carries the inputs for account provisioning
type CreateAccountRequest struct {
	Username    string
	DisplayName string
	Type        models.AccountType
	ParentID    *int64
}

// TransferAuthorizer decides whether a proposed transfer is permitted given
// the account-type hierarchy. A nil return means allow.
type TransferAuthorizer interface {
	Authorize(from, to *models.Account) error
}

// WalletService defines the atomic money-movement operations
type WalletService interface {
	// Deposit credits an account with new capital (no source account)
	Deposit(ctx context.Context, req DepositRequest) (*models.Receipt, error)

	// Withdraw debits an account, failing with ErrInsufficientFunds
	Withdraw(ctx context.Context, req WithdrawRequest) (*models.Receipt, error)

	// Transfer atomically moves amount between two related accounts
	Transfer(ctx context.Context, req TransferRequest) (*models.Receipt, error)

	// SettleBet debits the player's stake into the house account and, when
	// the bet paid out, credits the payout back. Idempotent per bet ref.
	SettleBet(ctx context.Context, req SettleBetRequest) (*models.Settlement, error)

	// Balance returns the current spendable amount for an account
	Balance(ctx context.Context, accountID int64) (int64, error)

	// Statement returns an account's ledger entries within a date range
	Statement(ctx context.Context, accountID int64, from, to time.Time) ([]*models.LedgerEntry, error)
}

// DepositRequest carries the inputs for a capital deposit
type DepositRequest struct {
	AccountID      int64
	Amount         int64
	Kind           models.TransactionKind
	IdempotencyKey string
	Note           string
	InitiatedBy    *int64
}

// WithdrawRequest carries the inputs for a withdrawal
type WithdrawRequest struct {
	AccountID      int64
	Amount         int64
	Kind           models.TransactionKind
	IdempotencyKey string
	Note           string
	InitiatedBy    *int64
}

// TransferRequest carries the inputs for an account-to-account transfer
type TransferRequest struct {
	FromAccountID  int64
	ToAccountID    int64
	Amount         int64
	IdempotencyKey string
	Note           string
	InitiatedBy    *int64
}

// SettleBetRequest carries a bet outcome to be converted into wallet movements
type SettleBetRequest struct {
	PlayerID     int64
	StakeAmount  int64
	PayoutAmount int64
	BetRef       string
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Repository getters
	AccountRepository() AccountRepository
	LedgerRepository() LedgerRepository
	ReceiptRepository() ReceiptRepository
	TransferLogRepository() TransferLogRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}
