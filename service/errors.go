package service

import "errors"

// Business-rule failures surfaced to callers. None of these is a system
// fault: they are validation outcomes, returned typed and never partially
// applied. Infrastructure errors are wrapped with %w and left to the caller
// to retry.
var (
	// ErrUnknownAccount means a referenced account id does not resolve.
	ErrUnknownAccount = errors.New("unknown account")

	// ErrAccountSuspended means the account's status blocks wallet mutations.
	ErrAccountSuspended = errors.New("account suspended")

	// ErrInvalidAmount means a non-positive amount was supplied.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInsufficientFunds means the debit-side balance precondition failed.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrUnrelatedAccounts is the authorization denial for transfers outside
	// the one-hop parent-child edge.
	ErrUnrelatedAccounts = errors.New("accounts are not related")

	// ErrInvalidTransfer means the transfer is structurally invalid
	// (e.g. an account transferring to itself).
	ErrInvalidTransfer = errors.New("invalid transfer")

	// ErrInvalidHierarchy means a disallowed parent-child account pairing.
	ErrInvalidHierarchy = errors.New("invalid account hierarchy")

	// ErrDuplicateOperation means the idempotency key has already been
	// applied. The wallet engine resolves this to the original receipt, so
	// callers normally never see it.
	ErrDuplicateOperation = errors.New("duplicate operation")
)
