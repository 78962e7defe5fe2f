package repository

import (
	"context"
	"fmt"

	"cashdesk/database"
	"cashdesk/models"
	"cashdesk/service"

	"github.com/jackc/pgx/v5"
)

const accountColumns = `id, username, display_name, account_type, parent_id, status, balance, created_at, updated_at`

// AccountRepository implements the AccountRepository interface
type AccountRepository struct {
	q Queryable
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{q: db.Pool}
}

func newAccountRepository(tx Queryable) *AccountRepository {
	return &AccountRepository{q: tx}
}

func scanAccount(row pgx.Row) (*models.Account, error) {
	var account models.Account
	err := row.Scan(
		&account.ID,
		&account.Username,
		&account.DisplayName,
		&account.Type,
		&account.ParentID,
		&account.Status,
		&account.Balance,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// GetByID retrieves an account by id, returning nil when not found
func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	account, err := scanAccount(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %d: %w", id, err)
	}

	return account, nil
}

// GetByUsername retrieves an account by its unique username
func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE username = $1`

	account, err := scanAccount(r.q.QueryRow(ctx, query, username))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %q: %w", username, err)
	}

	return account, nil
}

// GetSystemWallet retrieves the house system-wallet account. A unique partial
// index guarantees there is at most one.
func (r *AccountRepository) GetSystemWallet(ctx context.Context) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_type = $1`

	account, err := scanAccount(r.q.QueryRow(ctx, query, models.AccountTypeSystemWallet))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get system wallet: %w", err)
	}

	return account, nil
}

// GetChildren returns the direct children of an account
func (r *AccountRepository) GetChildren(ctx context.Context, parentID int64) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE parent_id = $1 ORDER BY id`

	rows, err := r.q.Query(ctx, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get children of account %d: %w", parentID, err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}

	return accounts, nil
}

// Create inserts a new account and fills in its id and timestamps
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (username, display_name, account_type, parent_id, status, balance)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		account.Username,
		account.DisplayName,
		account.Type,
		account.ParentID,
		account.Status,
		account.Balance,
	).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create account %q: %w", account.Username, err)
	}

	return nil
}

// LockForUpdate locks the given account rows and returns them keyed by id.
// Rows are always acquired in ascending id order so two concurrent transfers
// over the same account pair cannot deadlock. Missing ids are absent from
// the map.
func (r *AccountRepository) LockForUpdate(ctx context.Context, ids ...int64) (map[int64]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = ANY($1) ORDER BY id FOR UPDATE`

	rows, err := r.q.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to lock accounts %v: %w", ids, err)
	}
	defer rows.Close()

	locked := make(map[int64]*models.Account, len(ids))
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		locked[account.ID] = account
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}

	return locked, nil
}

// AddBalance credits an account's materialized balance
func (r *AccountRepository) AddBalance(ctx context.Context, id int64, amount int64) error {
	query := `
		UPDATE accounts
		SET balance = balance + $1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.q.Exec(ctx, query, amount, id)
	if err != nil {
		return fmt.Errorf("failed to credit account %d: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("account %d: %w", id, service.ErrUnknownAccount)
	}

	return nil
}

// DeductBalance debits an account's materialized balance. The guarded WHERE
// clause backs up the service-level balance check: even if a caller skipped
// it, the row can never go negative.
func (r *AccountRepository) DeductBalance(ctx context.Context, id int64, amount int64) error {
	query := `
		UPDATE accounts
		SET balance = balance - $1, updated_at = NOW()
		WHERE id = $2 AND balance >= $1
	`

	result, err := r.q.Exec(ctx, query, amount, id)
	if err != nil {
		return fmt.Errorf("failed to debit account %d: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("account %d: %w", id, service.ErrInsufficientFunds)
	}

	return nil
}

// UpdateStatus changes an account's status
func (r *AccountRepository) UpdateStatus(ctx context.Context, id int64, status models.AccountStatus) error {
	query := `
		UPDATE accounts
		SET status = $1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.q.Exec(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update status of account %d: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("account %d: %w", id, service.ErrUnknownAccount)
	}

	return nil
}
