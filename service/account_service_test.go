package service

import (
	"context"
	"testing"

	"cashdesk/events"
	"cashdesk/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newAccountMocks() *walletMocks {
	return newWalletMocks()
}

func (m *walletMocks) accountService() AccountService {
	return NewAccountService(m.factory)
}

func TestAccountService_CreateAccount(t *testing.T) {
	tests := []struct {
		name       string
		req        CreateAccountRequest
		parent     *models.Account
		wantErr    error
		wantCreate bool
	}{
		{
			name:       "owner without parent",
			req:        CreateAccountRequest{Username: "acme", Type: models.AccountTypeOwner},
			wantCreate: true,
		},
		{
			name:       "agent under owner",
			req:        CreateAccountRequest{Username: "north", Type: models.AccountTypeAgent, ParentID: ptr(1)},
			parent:     &models.Account{ID: 1, Type: models.AccountTypeOwner},
			wantCreate: true,
		},
		{
			name:       "player under agent",
			req:        CreateAccountRequest{Username: "alice", Type: models.AccountTypePlayer, ParentID: ptr(2)},
			parent:     &models.Account{ID: 2, Type: models.AccountTypeAgent},
			wantCreate: true,
		},
		{
			name:    "agent without parent",
			req:     CreateAccountRequest{Username: "stray", Type: models.AccountTypeAgent},
			wantErr: ErrInvalidHierarchy,
		},
		{
			name:    "player under owner",
			req:     CreateAccountRequest{Username: "alice", Type: models.AccountTypePlayer, ParentID: ptr(1)},
			parent:  &models.Account{ID: 1, Type: models.AccountTypeOwner},
			wantErr: ErrInvalidHierarchy,
		},
		{
			name:    "agent under agent",
			req:     CreateAccountRequest{Username: "sub", Type: models.AccountTypeAgent, ParentID: ptr(2)},
			parent:  &models.Account{ID: 2, Type: models.AccountTypeAgent},
			wantErr: ErrInvalidHierarchy,
		},
		{
			name:    "owner with parent",
			req:     CreateAccountRequest{Username: "acme2", Type: models.AccountTypeOwner, ParentID: ptr(1)},
			wantErr: ErrInvalidHierarchy,
		},
		{
			name:    "unknown parent",
			req:     CreateAccountRequest{Username: "ghost", Type: models.AccountTypeAgent, ParentID: ptr(99)},
			wantErr: ErrUnknownAccount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newAccountMocks()
			svc := m.accountService()

			if tt.req.ParentID != nil && tt.req.Type != models.AccountTypeOwner {
				m.accounts.On("GetByID", mock.Anything, *tt.req.ParentID).Return(tt.parent, nil)
			}
			if tt.wantCreate {
				m.accounts.On("Create", mock.Anything, mock.MatchedBy(func(a *models.Account) bool {
					return a.Username == tt.req.Username &&
						a.Type == tt.req.Type &&
						a.Status == models.AccountStatusActive &&
						a.Balance == 0
				})).Return(nil).Run(func(args mock.Arguments) {
					args.Get(1).(*models.Account).ID = 42
				})
				m.uow.On("Commit").Return(nil)
			}

			account, err := svc.CreateAccount(context.Background(), tt.req)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				m.accounts.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, int64(42), account.ID)

			require.Len(t, m.bus.Published, 1)
			created, ok := m.bus.Published[0].(events.AccountCreatedEvent)
			require.True(t, ok)
			assert.Equal(t, int64(42), created.AccountID)
			assert.Equal(t, tt.req.Type, created.AccountType)
		})
	}
}

func TestAccountService_CreateAccount_MissingUsername(t *testing.T) {
	m := newAccountMocks()
	svc := m.accountService()

	_, err := svc.CreateAccount(context.Background(), CreateAccountRequest{Type: models.AccountTypeOwner})
	assert.Error(t, err)
}

func TestAccountService_Resolve(t *testing.T) {
	m := newAccountMocks()
	svc := m.accountService()

	owner := &models.Account{ID: 1, Username: "acme", Type: models.AccountTypeOwner}
	m.accounts.On("GetByID", mock.Anything, int64(1)).Return(owner, nil)
	m.accounts.On("GetByID", mock.Anything, int64(99)).Return(nil, nil)

	got, err := svc.Resolve(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, owner, got)

	_, err = svc.Resolve(context.Background(), 99)
	assert.ErrorIs(t, err, ErrUnknownAccount)
}

func TestAccountService_ParentOf(t *testing.T) {
	m := newAccountMocks()
	svc := m.accountService()

	owner := &models.Account{ID: 1, Type: models.AccountTypeOwner}
	agent := &models.Account{ID: 2, Type: models.AccountTypeAgent, ParentID: ptr(1)}
	m.accounts.On("GetByID", mock.Anything, int64(2)).Return(agent, nil)
	m.accounts.On("GetByID", mock.Anything, int64(1)).Return(owner, nil)

	parent, err := svc.ParentOf(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, owner, parent)

	parent, err = svc.ParentOf(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, parent)
}

func TestAccountService_HouseAccount_NotProvisioned(t *testing.T) {
	m := newAccountMocks()
	svc := m.accountService()

	m.accounts.On("GetSystemWallet", mock.Anything).Return(nil, nil)

	_, err := svc.HouseAccount(context.Background())
	assert.ErrorIs(t, err, ErrUnknownAccount)
}

func TestAccountService_SuspendAndReinstate(t *testing.T) {
	m := newAccountMocks()
	svc := m.accountService()

	agent := &models.Account{ID: 2, Type: models.AccountTypeAgent, Status: models.AccountStatusActive}
	m.accounts.On("GetByID", mock.Anything, int64(2)).Return(agent, nil)
	m.accounts.On("UpdateStatus", mock.Anything, int64(2), models.AccountStatusSuspended).Return(nil)
	m.accounts.On("UpdateStatus", mock.Anything, int64(2), models.AccountStatusActive).Return(nil)
	m.uow.On("Commit").Return(nil)

	require.NoError(t, svc.Suspend(context.Background(), 2))
	require.NoError(t, svc.Reinstate(context.Background(), 2))
	m.accounts.AssertExpectations(t)
}

func TestAccountService_Suspend_UnknownAccount(t *testing.T) {
	m := newAccountMocks()
	svc := m.accountService()

	m.accounts.On("GetByID", mock.Anything, int64(99)).Return(nil, nil)

	err := svc.Suspend(context.Background(), 99)
	assert.ErrorIs(t, err, ErrUnknownAccount)
	m.accounts.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestAccountService_Children(t *testing.T) {
	m := newAccountMocks()
	svc := m.accountService()

	kids := []*models.Account{
		{ID: 2, Type: models.AccountTypeAgent, ParentID: ptr(1)},
		{ID: 3, Type: models.AccountTypeAgent, ParentID: ptr(1)},
	}
	m.accounts.On("GetChildren", mock.Anything, int64(1)).Return(kids, nil)

	got, err := svc.Children(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, kids, got)
}
