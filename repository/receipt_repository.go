package repository

import (
	"context"
	"errors"
	"fmt"

	"cashdesk/database"
	"cashdesk/models"
	"cashdesk/service"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const receiptColumns = `id, idempotency_key, kind, from_account_id, to_account_id, amount, note, initiated_by, created_at`

// uniqueViolation is the postgres error code for a unique constraint breach
const uniqueViolation = "23505"

// ReceiptRepository implements the ReceiptRepository interface
type ReceiptRepository struct {
	q Queryable
}

// NewReceiptRepository creates a new receipt repository
func NewReceiptRepository(db *database.DB) *ReceiptRepository {
	return &ReceiptRepository{q: db.Pool}
}

func newReceiptRepository(tx Queryable) *ReceiptRepository {
	return &ReceiptRepository{q: tx}
}

func scanReceipt(row pgx.Row) (*models.Receipt, error) {
	var receipt models.Receipt
	err := row.Scan(
		&receipt.TransactionID,
		&receipt.IdempotencyKey,
		&receipt.Kind,
		&receipt.FromAccountID,
		&receipt.ToAccountID,
		&receipt.Amount,
		&receipt.Note,
		&receipt.InitiatedBy,
		&receipt.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

// Insert records a receipt. A second insert under the same idempotency key
// hits the unique constraint and is surfaced as ErrDuplicateOperation.
func (r *ReceiptRepository) Insert(ctx context.Context, receipt *models.Receipt) error {
	query := `
		INSERT INTO wallet_transactions (id, idempotency_key, kind, from_account_id, to_account_id, amount, note, initiated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`

	err := r.q.QueryRow(ctx, query,
		receipt.TransactionID,
		receipt.IdempotencyKey,
		receipt.Kind,
		receipt.FromAccountID,
		receipt.ToAccountID,
		receipt.Amount,
		receipt.Note,
		receipt.InitiatedBy,
	).Scan(&receipt.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("idempotency key %q: %w", receipt.IdempotencyKey, service.ErrDuplicateOperation)
		}
		return fmt.Errorf("failed to insert receipt %s: %w", receipt.TransactionID, err)
	}

	return nil
}

// GetByIdempotencyKey retrieves a receipt by key, nil when not found
func (r *ReceiptRepository) GetByIdempotencyKey(ctx context.Context, key string) (*models.Receipt, error) {
	query := `SELECT ` + receiptColumns + ` FROM wallet_transactions WHERE idempotency_key = $1`

	receipt, err := scanReceipt(r.q.QueryRow(ctx, query, key))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get receipt by key %q: %w", key, err)
	}

	return receipt, nil
}

// GetByTransactionID retrieves a receipt by correlation id, nil when not found
func (r *ReceiptRepository) GetByTransactionID(ctx context.Context, transactionID string) (*models.Receipt, error) {
	query := `SELECT ` + receiptColumns + ` FROM wallet_transactions WHERE id = $1`

	receipt, err := scanReceipt(r.q.QueryRow(ctx, query, transactionID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get receipt %s: %w", transactionID, err)
	}

	return receipt, nil
}
