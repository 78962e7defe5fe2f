package api

import (
	"net/http"
	"time"

	"cashdesk/service"
)

// NewServer creates a configured *http.Server for the back-office API
func NewServer(addr string, accounts service.AccountService, wallet service.WalletService, transferLogs service.TransferLogRepository) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           NewRouter(accounts, wallet, transferLogs),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
