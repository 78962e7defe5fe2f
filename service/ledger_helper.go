package service

import (
	"context"
	"fmt"

	"cashdesk/events"
	"cashdesk/models"
)

// WriteLedgerEntries appends an entry set and emits one balance change event
// per entry. This is the single entry point for all ledger writes in the
// system; entries never reach the store any other way. Events are flushed
// only after the surrounding transaction commits.
func WriteLedgerEntries(ctx context.Context, uow UnitOfWork, entries []*models.LedgerEntry, balancesBefore map[int64]int64) error {
	if err := uow.LedgerRepository().Append(ctx, entries); err != nil {
		return fmt.Errorf("failed to append ledger entries: %w", err)
	}

	running := make(map[int64]int64, len(balancesBefore))
	for id, balance := range balancesBefore {
		running[id] = balance
	}

	for _, entry := range entries {
		before := running[entry.AccountID]
		after := before + entry.Amount
		running[entry.AccountID] = after

		uow.EventBus().Publish(events.BalanceChangeEvent{
			AccountID:     entry.AccountID,
			OldBalance:    before,
			NewBalance:    after,
			ChangeAmount:  entry.Amount,
			Kind:          entry.Kind,
			TransactionID: entry.TransactionID,
		})
	}

	return nil
}
