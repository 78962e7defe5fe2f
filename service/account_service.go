package service

import (
	"context"
	"fmt"

	"cashdesk/events"
	"cashdesk/models"
)

// accountService implements the AccountService interface
type accountService struct {
	uowFactory UnitOfWorkFactory
}

// NewAccountService creates a new account service
func NewAccountService(uowFactory UnitOfWorkFactory) AccountService {
	return &accountService{
		uowFactory: uowFactory,
	}
}

// Resolve retrieves an account by id
func (s *accountService) Resolve(ctx context.Context, accountID int64) (*models.Account, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	account, err := uow.AccountRepository().GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if account == nil {
		return nil, fmt.Errorf("account %d: %w", accountID, ErrUnknownAccount)
	}

	return account, nil
}

// ParentOf returns an account's parent, or nil for parentless accounts
func (s *accountService) ParentOf(ctx context.Context, accountID int64) (*models.Account, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	account, err := uow.AccountRepository().GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if account == nil {
		return nil, fmt.Errorf("account %d: %w", accountID, ErrUnknownAccount)
	}
	if account.ParentID == nil {
		return nil, nil
	}

	parent, err := uow.AccountRepository().GetByID(ctx, *account.ParentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get parent account: %w", err)
	}

	return parent, nil
}

// TypeOf returns an account's type
func (s *accountService) TypeOf(ctx context.Context, accountID int64) (models.AccountType, error) {
	account, err := s.Resolve(ctx, accountID)
	if err != nil {
		return "", err
	}
	return account.Type, nil
}

// HouseAccount returns the system-wallet house account
func (s *accountService) HouseAccount(ctx context.Context) (*models.Account, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	house, err := uow.AccountRepository().GetSystemWallet(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get system wallet: %w", err)
	}
	if house == nil {
		return nil, fmt.Errorf("system wallet not provisioned: %w", ErrUnknownAccount)
	}

	return house, nil
}

// CreateAccount provisions a new account under the fixed type hierarchy.
// The parent is assigned here and is immutable afterwards.
func (s *accountService) CreateAccount(ctx context.Context, req CreateAccountRequest) (*models.Account, error) {
	if req.Username == "" {
		return nil, fmt.Errorf("username is required")
	}
	if !models.ValidAccountType(req.Type) {
		return nil, fmt.Errorf("unknown account type %q", req.Type)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if models.RequiresParent(req.Type) {
		if req.ParentID == nil {
			return nil, fmt.Errorf("%s accounts need a parent: %w", req.Type, ErrInvalidHierarchy)
		}
		parent, err := uow.AccountRepository().GetByID(ctx, *req.ParentID)
		if err != nil {
			return nil, fmt.Errorf("failed to get parent account: %w", err)
		}
		if parent == nil {
			return nil, fmt.Errorf("parent account %d: %w", *req.ParentID, ErrUnknownAccount)
		}
		if !models.ValidateParentChild(parent.Type, req.Type) {
			return nil, fmt.Errorf("%s cannot own %s: %w", parent.Type, req.Type, ErrInvalidHierarchy)
		}
	} else if req.ParentID != nil {
		return nil, fmt.Errorf("%s accounts are parentless: %w", req.Type, ErrInvalidHierarchy)
	}

	account := &models.Account{
		Username:    req.Username,
		DisplayName: req.DisplayName,
		Type:        req.Type,
		ParentID:    req.ParentID,
		Status:      models.AccountStatusActive,
	}

	if err := uow.AccountRepository().Create(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	uow.EventBus().Publish(events.AccountCreatedEvent{
		AccountID:   account.ID,
		Username:    account.Username,
		AccountType: account.Type,
		ParentID:    account.ParentID,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return account, nil
}

// Suspend blocks an account from all wallet-mutating operations.
// Suspended accounts may still be read; they are never hard-deleted while
// ledger history references them.
func (s *accountService) Suspend(ctx context.Context, accountID int64) error {
	return s.setStatus(ctx, accountID, models.AccountStatusSuspended)
}

// Reinstate reactivates a suspended account
func (s *accountService) Reinstate(ctx context.Context, accountID int64) error {
	return s.setStatus(ctx, accountID, models.AccountStatusActive)
}

func (s *accountService) setStatus(ctx context.Context, accountID int64, status models.AccountStatus) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	account, err := uow.AccountRepository().GetByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to get account: %w", err)
	}
	if account == nil {
		return fmt.Errorf("account %d: %w", accountID, ErrUnknownAccount)
	}

	if err := uow.AccountRepository().UpdateStatus(ctx, accountID, status); err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Children returns the direct children of an account
func (s *accountService) Children(ctx context.Context, accountID int64) ([]*models.Account, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	children, err := uow.AccountRepository().GetChildren(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get children: %w", err)
	}

	return children, nil
}
