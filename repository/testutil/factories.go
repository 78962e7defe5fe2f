package testutil

import (
	"cashdesk/models"
)

// CreateTestOwner creates an owner account with default values
func CreateTestOwner(username string) *models.Account {
	return &models.Account{
		Username: username,
		Type:     models.AccountTypeOwner,
		Status:   models.AccountStatusActive,
	}
}

// CreateTestAgent creates an agent account under the given owner
func CreateTestAgent(username string, ownerID int64) *models.Account {
	return &models.Account{
		Username: username,
		Type:     models.AccountTypeAgent,
		ParentID: &ownerID,
		Status:   models.AccountStatusActive,
	}
}

// CreateTestPlayer creates a player account under the given agent
func CreateTestPlayer(username string, agentID int64) *models.Account {
	return &models.Account{
		Username: username,
		Type:     models.AccountTypePlayer,
		ParentID: &agentID,
		Status:   models.AccountStatusActive,
	}
}

// CreateTestSystemWallet creates the house account
func CreateTestSystemWallet() *models.Account {
	return &models.Account{
		Username: "house",
		Type:     models.AccountTypeSystemWallet,
		Status:   models.AccountStatusActive,
	}
}
