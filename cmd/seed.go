package cmd

import (
	"context"
	"fmt"

	"cashdesk/config"
	"cashdesk/database"
	"cashdesk/events"
	"cashdesk/models"
	"cashdesk/repository"
	"cashdesk/service"

	log "github.com/sirupsen/logrus"
)

// Seed provisions the house system wallet and the bootstrap owner, and funds
// the owner with the configured opening capital. Safe to run repeatedly.
func Seed(ctx context.Context) error {
	cfg := config.Get()

	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	uowFactory := repository.NewUnitOfWorkFactory(db, events.NewBus())
	accountService := service.NewAccountService(uowFactory)
	walletService := service.NewWalletService(uowFactory, service.NewTransferAuthorizer())
	accounts := repository.NewAccountRepository(db)

	house, err := accounts.GetSystemWallet(ctx)
	if err != nil {
		return fmt.Errorf("failed to check system wallet: %w", err)
	}
	if house == nil {
		house, err = accountService.CreateAccount(ctx, service.CreateAccountRequest{
			Username:    "house",
			DisplayName: "House",
			Type:        models.AccountTypeSystemWallet,
		})
		if err != nil {
			return fmt.Errorf("failed to create system wallet: %w", err)
		}
		log.WithField("accountId", house.ID).Info("Created system wallet")
	} else {
		log.WithField("accountId", house.ID).Info("System wallet already provisioned")
	}

	owner, err := accounts.GetByUsername(ctx, cfg.BootstrapOwner)
	if err != nil {
		return fmt.Errorf("failed to check bootstrap owner: %w", err)
	}
	if owner == nil {
		owner, err = accountService.CreateAccount(ctx, service.CreateAccountRequest{
			Username: cfg.BootstrapOwner,
			Type:     models.AccountTypeOwner,
		})
		if err != nil {
			return fmt.Errorf("failed to create bootstrap owner: %w", err)
		}
		log.WithFields(log.Fields{
			"accountId": owner.ID,
			"username":  owner.Username,
		}).Info("Created bootstrap owner")
	}

	if cfg.BootstrapCapital > 0 {
		receipt, err := walletService.Deposit(ctx, service.DepositRequest{
			AccountID:      owner.ID,
			Amount:         cfg.BootstrapCapital,
			IdempotencyKey: "seed:" + owner.Username,
			Note:           "opening capital",
		})
		if err != nil {
			return fmt.Errorf("failed to deposit opening capital: %w", err)
		}
		if receipt.Duplicate {
			log.Info("Opening capital already deposited")
		} else {
			log.WithFields(log.Fields{
				"accountId": owner.ID,
				"amount":    cfg.BootstrapCapital,
			}).Info("Deposited opening capital")
		}
	}

	return nil
}
