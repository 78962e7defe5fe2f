package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cashdesk/api"
	"cashdesk/config"
	"cashdesk/database"
	"cashdesk/events"
	"cashdesk/repository"
	"cashdesk/service"
	"cashdesk/settlement"

	log "github.com/sirupsen/logrus"
)

// Run initializes and starts the cash desk service
func Run(ctx context.Context) error {
	log.Info("Starting cash desk...")

	cfg := config.Get()

	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	eventBus := events.NewBus()
	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)

	accountService := service.NewAccountService(uowFactory)
	walletService := service.NewWalletService(uowFactory, service.NewTransferAuthorizer())
	transferLogs := repository.NewTransferLogRepository(db)

	// Balance changes are logged as they commit; downstream dashboards
	// subscribe to the same bus.
	eventBus.Subscribe(events.EventTypeBalanceChange, func(ctx context.Context, event events.Event) {
		change := event.(events.BalanceChangeEvent)
		log.WithFields(log.Fields{
			"accountId":     change.AccountID,
			"oldBalance":    change.OldBalance,
			"newBalance":    change.NewBalance,
			"kind":          change.Kind,
			"transactionId": change.TransactionID,
		}).Info("Balance changed")
	})

	server := api.NewServer(cfg.HTTPAddr, accountService, walletService, transferLogs)
	serverErr := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("HTTP API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	consumerErr := make(chan error, 1)
	if len(cfg.KafkaBrokers) > 0 {
		adapter := settlement.NewAdapter(walletService)
		consumer := settlement.NewConsumer(cfg.KafkaBrokers, cfg.BetOutcomeTopic, cfg.SettlementGroupID, adapter)
		go func() {
			log.WithFields(log.Fields{
				"brokers": cfg.KafkaBrokers,
				"topic":   cfg.BetOutcomeTopic,
				"groupId": cfg.SettlementGroupID,
			}).Info("Settlement consumer starting")
			if err := consumer.Run(ctx); err != nil {
				consumerErr <- err
			}
		}()
	} else {
		log.Warn("KAFKA_BROKERS not set; settlement consumer disabled")
	}

	log.WithField("environment", cfg.Environment).Info("Cash desk is running")

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		return fmt.Errorf("HTTP server failed: %w", err)
	case err := <-consumerErr:
		return fmt.Errorf("settlement consumer failed: %w", err)
	}

	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP server shutdown failed")
	}

	log.Info("Shutdown completed")
	return nil
}
