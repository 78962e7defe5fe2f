package repository

import (
	"context"
	"fmt"

	"cashdesk/database"
	"cashdesk/events"
	"cashdesk/service"

	"github.com/jackc/pgx/v5"
)

// unitOfWork implements the UnitOfWork interface. All repositories it hands
// out share one transaction; events published through the bus are held back
// until that transaction commits.
type unitOfWork struct {
	db  *database.DB
	tx  pgx.Tx
	ctx context.Context
	bus *events.TransactionalBus

	accountRepo     service.AccountRepository
	ledgerRepo      service.LedgerRepository
	receiptRepo     service.ReceiptRepository
	transferLogRepo service.TransferLogRepository
}

type unitOfWorkFactory struct {
	db  *database.DB
	bus *events.Bus
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory
func NewUnitOfWorkFactory(db *database.DB, bus *events.Bus) service.UnitOfWorkFactory {
	return &unitOfWorkFactory{
		db:  db,
		bus: bus,
	}
}

// Create creates a new UnitOfWork with its own transactional event buffer
func (f *unitOfWorkFactory) Create() service.UnitOfWork {
	return &unitOfWork{
		db:  f.db,
		bus: events.NewTransactionalBus(f.bus),
	}
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	u.tx = tx
	u.ctx = ctx

	u.accountRepo = newAccountRepository(tx)
	u.ledgerRepo = newLedgerRepository(tx)
	u.receiptRepo = newReceiptRepository(tx)
	u.transferLogRepo = newTransferLogRepository(tx)

	return nil
}

// Commit commits the transaction and flushes pending events
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	if err := u.tx.Commit(u.ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	u.tx = nil

	u.bus.Flush(u.ctx)

	return nil
}

// Rollback rolls back the transaction and discards pending events
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil // Nothing to rollback
	}

	err := u.tx.Rollback(u.ctx)
	if err != nil && err != pgx.ErrTxClosed {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}

	u.tx = nil

	u.bus.Discard()

	return nil
}

// AccountRepository returns the account repository for this unit of work
func (u *unitOfWork) AccountRepository() service.AccountRepository {
	if u.accountRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.accountRepo
}

// LedgerRepository returns the ledger repository for this unit of work
func (u *unitOfWork) LedgerRepository() service.LedgerRepository {
	if u.ledgerRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.ledgerRepo
}

// ReceiptRepository returns the receipt repository for this unit of work
func (u *unitOfWork) ReceiptRepository() service.ReceiptRepository {
	if u.receiptRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.receiptRepo
}

// TransferLogRepository returns the transfer log repository for this unit of work
func (u *unitOfWork) TransferLogRepository() service.TransferLogRepository {
	if u.transferLogRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.transferLogRepo
}

// EventBus returns the transactional event publisher for this unit of work
func (u *unitOfWork) EventBus() service.EventPublisher {
	return u.bus
}
