package models

import "time"

// TransferLog is a denormalized reporting projection of transfer pairs,
// derived from ledger entries. It is never the source of truth.
type TransferLog struct {
	ID            int64           `db:"id"`
	TransactionID string          `db:"transaction_id"`
	FromAccountID int64           `db:"from_account_id"`
	ToAccountID   int64           `db:"to_account_id"`
	Amount        int64           `db:"amount"`
	Kind          TransactionKind `db:"kind"`
	Note          string          `db:"note"`
	CreatedAt     time.Time       `db:"created_at"`
}

// TransferTotals aggregates transfer volume for dashboard queries.
type TransferTotals struct {
	Count       int64
	TotalAmount int64
}
