package repository

import (
	"context"
	"fmt"
	"time"

	"cashdesk/database"
	"cashdesk/models"

	"github.com/jackc/pgx/v5"
)

const ledgerColumns = `id, account_id, amount, kind, transaction_id, note, created_at`

// LedgerRepository implements the LedgerRepository interface
type LedgerRepository struct {
	q Queryable
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *database.DB) *LedgerRepository {
	return &LedgerRepository{q: db.Pool}
}

func newLedgerRepository(tx Queryable) *LedgerRepository {
	return &LedgerRepository{q: tx}
}

func scanLedgerEntry(row pgx.Row) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	err := row.Scan(
		&entry.ID,
		&entry.AccountID,
		&entry.Amount,
		&entry.Kind,
		&entry.TransactionID,
		&entry.Note,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Append writes a set of entries, all-or-nothing within the surrounding
// transaction. Paired kinds must sum to zero per correlation id; an
// unbalanced pair is refused before anything is written.
func (r *LedgerRepository) Append(ctx context.Context, entries []*models.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}

	sums := make(map[string]int64)
	for _, entry := range entries {
		if !models.ValidTransactionKind(entry.Kind) {
			return fmt.Errorf("unknown transaction kind %q", entry.Kind)
		}
		if entry.Kind.IsPaired() {
			sums[entry.TransactionID] += entry.Amount
		}
	}
	for transactionID, sum := range sums {
		if sum != 0 {
			return fmt.Errorf("entries for transaction %s sum to %d, want 0", transactionID, sum)
		}
	}

	query := `
		INSERT INTO ledger_entries (account_id, amount, kind, transaction_id, note)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	for _, entry := range entries {
		err := r.q.QueryRow(ctx, query,
			entry.AccountID,
			entry.Amount,
			entry.Kind,
			entry.TransactionID,
			entry.Note,
		).Scan(&entry.ID, &entry.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to append ledger entry for account %d: %w", entry.AccountID, err)
		}
	}

	return nil
}

// GetByAccount returns the most recent entries for an account
func (r *LedgerRepository) GetByAccount(ctx context.Context, accountID int64, limit int) ([]*models.LedgerEntry, error) {
	query := `
		SELECT ` + ledgerColumns + `
		FROM ledger_entries
		WHERE account_id = $1
		ORDER BY id DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entries for account %d: %w", accountID, err)
	}
	defer rows.Close()

	return collectLedgerEntries(rows)
}

// GetByDateRange returns entries for an account within [from, to), ordered
// by append time ascending.
func (r *LedgerRepository) GetByDateRange(ctx context.Context, accountID int64, from, to time.Time) ([]*models.LedgerEntry, error) {
	query := `
		SELECT ` + ledgerColumns + `
		FROM ledger_entries
		WHERE account_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY id
	`

	rows, err := r.q.Query(ctx, query, accountID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entries for account %d: %w", accountID, err)
	}
	defer rows.Close()

	return collectLedgerEntries(rows)
}

// GetByTransactionID returns the entries under one correlation id
func (r *LedgerRepository) GetByTransactionID(ctx context.Context, transactionID string) ([]*models.LedgerEntry, error) {
	query := `
		SELECT ` + ledgerColumns + `
		FROM ledger_entries
		WHERE transaction_id = $1
		ORDER BY id
	`

	rows, err := r.q.Query(ctx, query, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entries for transaction %s: %w", transactionID, err)
	}
	defer rows.Close()

	return collectLedgerEntries(rows)
}

// RunningBalance sums all entries for an account. For a consistent store this
// always equals the materialized accounts.balance.
func (r *LedgerRepository) RunningBalance(ctx context.Context, accountID int64) (int64, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE account_id = $1`

	var balance int64
	if err := r.q.QueryRow(ctx, query, accountID).Scan(&balance); err != nil {
		return 0, fmt.Errorf("failed to sum ledger entries for account %d: %w", accountID, err)
	}

	return balance, nil
}

func collectLedgerEntries(rows pgx.Rows) ([]*models.LedgerEntry, error) {
	var entries []*models.LedgerEntry
	for rows.Next() {
		entry, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledger entries: %w", err)
	}

	return entries, nil
}
