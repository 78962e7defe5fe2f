package repository

import (
	"context"
	"fmt"
	"time"

	"cashdesk/database"
	"cashdesk/models"

	"github.com/jackc/pgx/v5"
)

const transferLogColumns = `id, transaction_id, from_account_id, to_account_id, amount, kind, note, created_at`

// TransferLogRepository implements the TransferLogRepository interface
type TransferLogRepository struct {
	q Queryable
}

// NewTransferLogRepository creates a new transfer log repository
func NewTransferLogRepository(db *database.DB) *TransferLogRepository {
	return &TransferLogRepository{q: db.Pool}
}

func newTransferLogRepository(tx Queryable) *TransferLogRepository {
	return &TransferLogRepository{q: tx}
}

func scanTransferLog(row pgx.Row) (*models.TransferLog, error) {
	var entry models.TransferLog
	err := row.Scan(
		&entry.ID,
		&entry.TransactionID,
		&entry.FromAccountID,
		&entry.ToAccountID,
		&entry.Amount,
		&entry.Kind,
		&entry.Note,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Record appends a transfer-log row
func (r *TransferLogRepository) Record(ctx context.Context, entry *models.TransferLog) error {
	query := `
		INSERT INTO transfer_logs (transaction_id, from_account_id, to_account_id, amount, kind, note)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		entry.TransactionID,
		entry.FromAccountID,
		entry.ToAccountID,
		entry.Amount,
		entry.Kind,
		entry.Note,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record transfer log for transaction %s: %w", entry.TransactionID, err)
	}

	return nil
}

// List returns transfer-log rows, newest first
func (r *TransferLogRepository) List(ctx context.Context, limit, offset int) ([]*models.TransferLog, error) {
	query := `
		SELECT ` + transferLogColumns + `
		FROM transfer_logs
		ORDER BY id DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.q.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfer logs: %w", err)
	}
	defer rows.Close()

	return collectTransferLogs(rows)
}

// ListByAccount returns transfer-log rows touching an account, newest first
func (r *TransferLogRepository) ListByAccount(ctx context.Context, accountID int64, limit int) ([]*models.TransferLog, error) {
	query := `
		SELECT ` + transferLogColumns + `
		FROM transfer_logs
		WHERE from_account_id = $1 OR to_account_id = $1
		ORDER BY id DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfer logs for account %d: %w", accountID, err)
	}
	defer rows.Close()

	return collectTransferLogs(rows)
}

// Totals aggregates transfer count and volume within [from, to)
func (r *TransferLogRepository) Totals(ctx context.Context, from, to time.Time) (*models.TransferTotals, error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(amount), 0)
		FROM transfer_logs
		WHERE created_at >= $1 AND created_at < $2
	`

	var totals models.TransferTotals
	if err := r.q.QueryRow(ctx, query, from, to).Scan(&totals.Count, &totals.TotalAmount); err != nil {
		return nil, fmt.Errorf("failed to aggregate transfer totals: %w", err)
	}

	return &totals, nil
}

func collectTransferLogs(rows pgx.Rows) ([]*models.TransferLog, error) {
	var entries []*models.TransferLog
	for rows.Next() {
		entry, err := scanTransferLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transfer log: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transfer logs: %w", err)
	}

	return entries, nil
}
