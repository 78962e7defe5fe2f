package api

import (
	"net/http"

	"cashdesk/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter constructs the back-office API router
func NewRouter(accounts service.AccountService, wallet service.WalletService, transferLogs service.TransferLogRepository) http.Handler {
	h := NewHandler(accounts, wallet, transferLogs)
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Post("/accounts", h.CreateAccountHandler)
	r.Get("/accounts/{accountId}", h.GetAccountHandler)
	r.Get("/accounts/{accountId}/children", h.GetChildrenHandler)
	r.Get("/accounts/{accountId}/balance", h.GetBalanceHandler)
	r.Get("/accounts/{accountId}/statement", h.GetStatementHandler)
	r.Post("/accounts/{accountId}/deposit", h.DepositHandler)
	r.Post("/accounts/{accountId}/withdraw", h.WithdrawHandler)
	r.Post("/accounts/{accountId}/suspend", h.SuspendHandler)
	r.Post("/accounts/{accountId}/reinstate", h.ReinstateHandler)

	r.Post("/transfers", h.TransferHandler)
	r.Get("/transfers", h.ListTransfersHandler)

	r.Post("/settlements", h.SettleBetHandler)

	return r
}
