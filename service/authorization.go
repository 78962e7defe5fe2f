package service

import (
	"cashdesk/models"
)

// transferAuthorizer implements the TransferAuthorizer interface.
// Money only moves one hop along a parent-child edge of the ownership tree,
// in either direction: an owner funds its agents, an agent funds its players,
// and each may cash out back to its parent. The system wallet participates
// only in capital and settlement flows, never in ordinary transfers.
type transferAuthorizer struct{}

// NewTransferAuthorizer creates a new transfer authorizer
func NewTransferAuthorizer() TransferAuthorizer {
	return &transferAuthorizer{}
}

func (a *transferAuthorizer) Authorize(from, to *models.Account) error {
	if from.ID == to.ID {
		return ErrInvalidTransfer
	}
	if from.Type == models.AccountTypeSystemWallet || to.Type == models.AccountTypeSystemWallet {
		return ErrUnrelatedAccounts
	}

	switch {
	case from.Type == models.AccountTypeOwner && to.Type == models.AccountTypeAgent:
		if isParentOf(from, to) {
			return nil
		}
	case from.Type == models.AccountTypeAgent && to.Type == models.AccountTypeOwner:
		if isParentOf(to, from) {
			return nil
		}
	case from.Type == models.AccountTypeAgent && to.Type == models.AccountTypePlayer:
		if isParentOf(from, to) {
			return nil
		}
	case from.Type == models.AccountTypePlayer && to.Type == models.AccountTypeAgent:
		if isParentOf(to, from) {
			return nil
		}
	}

	return ErrUnrelatedAccounts
}

func isParentOf(parent, child *models.Account) bool {
	return child.ParentID != nil && *child.ParentID == parent.ID
}
