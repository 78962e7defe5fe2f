package models

import (
	"time"
)

// AccountType represents the level of an account in the ownership tree
type AccountType string

const (
	AccountTypeOwner        AccountType = "owner"
	AccountTypeAgent        AccountType = "agent"
	AccountTypePlayer       AccountType = "player"
	AccountTypeSystemWallet AccountType = "system_wallet"
)

// AccountStatus represents whether an account may move money
type AccountStatus string

const (
	AccountStatusActive    AccountStatus = "active"
	AccountStatusSuspended AccountStatus = "suspended"
)

// Account represents a wallet-holding entity. Owners own agents, agents own
// players; the system wallet is a parentless house account. The parent is
// assigned at creation and never changes.
type Account struct {
	ID          int64         `db:"id"`
	Username    string        `db:"username"`
	DisplayName string        `db:"display_name"`
	Type        AccountType   `db:"account_type"`
	ParentID    *int64        `db:"parent_id"`
	Status      AccountStatus `db:"status"`
	Balance     int64         `db:"balance"` // minor currency units
	CreatedAt   time.Time     `db:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at"`
}

// IsActive reports whether the account may participate in wallet mutations.
func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}

// ValidAccountType reports whether t is one of the closed set of types.
func ValidAccountType(t AccountType) bool {
	switch t {
	case AccountTypeOwner, AccountTypeAgent, AccountTypePlayer, AccountTypeSystemWallet:
		return true
	}
	return false
}

// ValidateParentChild reports whether childType may be created under
// parentType. Owners and the system wallet are parentless; players and the
// system wallet cannot have children.
func ValidateParentChild(parentType, childType AccountType) bool {
	switch childType {
	case AccountTypeAgent:
		return parentType == AccountTypeOwner
	case AccountTypePlayer:
		return parentType == AccountTypeAgent
	}
	return false
}

// ChildType returns the only legal type for a new child of parentType.
// The second return value is false for leaf types.
func ChildType(parentType AccountType) (AccountType, bool) {
	switch parentType {
	case AccountTypeOwner:
		return AccountTypeAgent, true
	case AccountTypeAgent:
		return AccountTypePlayer, true
	}
	return "", false
}

// RequiresParent reports whether accounts of type t must reference a parent.
func RequiresParent(t AccountType) bool {
	return t == AccountTypeAgent || t == AccountTypePlayer
}
