package models

import (
	"time"
)

// TransactionKind tags the business reason behind a ledger movement
type TransactionKind string

const (
	TransactionKindCapitalDeposit    TransactionKind = "capital_deposit"
	TransactionKindCapitalWithdrawal TransactionKind = "capital_withdrawal"
	TransactionKindCreditTransfer    TransactionKind = "credit_transfer"
	TransactionKindBetStake          TransactionKind = "bet_stake"
	TransactionKindBetPayout         TransactionKind = "bet_payout"
	TransactionKindAdminAdjustment   TransactionKind = "admin_adjustment"
)

// ValidTransactionKind reports whether k is one of the closed set of kinds.
func ValidTransactionKind(k TransactionKind) bool {
	switch k {
	case TransactionKindCapitalDeposit, TransactionKindCapitalWithdrawal,
		TransactionKindCreditTransfer, TransactionKindBetStake,
		TransactionKindBetPayout, TransactionKindAdminAdjustment:
		return true
	}
	return false
}

// IsPaired reports whether entries of this kind always come as a
// zero-sum debit/credit pair under one correlation id.
func (k TransactionKind) IsPaired() bool {
	switch k {
	case TransactionKindCreditTransfer, TransactionKindBetStake, TransactionKindBetPayout:
		return true
	}
	return false
}

// LedgerEntry is a single signed balance movement. Entries are append-only:
// once written they are never updated or deleted.
type LedgerEntry struct {
	ID            int64           `db:"id"`
	AccountID     int64           `db:"account_id"`
	Amount        int64           `db:"amount"` // minor units, positive = credit
	Kind          TransactionKind `db:"kind"`
	TransactionID string          `db:"transaction_id"` // correlation id
	Note          string          `db:"note"`
	CreatedAt     time.Time       `db:"created_at"`
}

// Receipt is the durable record of one wallet operation, keyed by the
// caller-supplied idempotency key. Retries with the same key return the
// original receipt with Duplicate set.
type Receipt struct {
	TransactionID  string          `db:"id"`
	IdempotencyKey string          `db:"idempotency_key"`
	Kind           TransactionKind `db:"kind"`
	FromAccountID  *int64          `db:"from_account_id"`
	ToAccountID    *int64          `db:"to_account_id"`
	Amount         int64           `db:"amount"`
	Note           string          `db:"note"`
	InitiatedBy    *int64          `db:"initiated_by"`
	CreatedAt      time.Time       `db:"created_at"`

	Duplicate bool `db:"-"`
}

// Settlement is the outcome of settling one bet: the stake leg always runs,
// the payout leg only when the bet paid out.
type Settlement struct {
	BetRef        string
	StakeReceipt  *Receipt
	PayoutReceipt *Receipt
}
