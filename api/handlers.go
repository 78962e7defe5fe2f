package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"cashdesk/models"
	"cashdesk/service"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
)

// HandlerProvider wraps the account and wallet services and exposes HTTP handlers.
type HandlerProvider struct {
	accounts     service.AccountService
	wallet       service.WalletService
	transferLogs service.TransferLogRepository
}

// NewHandler returns a new handler provider
func NewHandler(accounts service.AccountService, wallet service.WalletService, transferLogs service.TransferLogRepository) *HandlerProvider {
	return &HandlerProvider{
		accounts:     accounts,
		wallet:       wallet,
		transferLogs: transferLogs,
	}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("Failed to encode JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps the service sentinel errors onto HTTP statuses
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrUnknownAccount):
		writeError(w, http.StatusNotFound, "account not found")
	case errors.Is(err, service.ErrAccountSuspended):
		writeError(w, http.StatusForbidden, "account suspended")
	case errors.Is(err, service.ErrUnrelatedAccounts):
		writeError(w, http.StatusForbidden, "accounts are not related")
	case errors.Is(err, service.ErrInsufficientFunds):
		writeError(w, http.StatusConflict, "insufficient funds")
	case errors.Is(err, service.ErrDuplicateOperation):
		writeError(w, http.StatusConflict, "duplicate operation")
	case errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidTransfer),
		errors.Is(err, service.ErrInvalidHierarchy):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.WithError(err).Error("Unhandled service error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func parseAccountID(r *http.Request) (int64, error) {
	idStr := chi.URLParam(r, "accountId")
	if idStr == "" {
		return 0, fmt.Errorf("missing accountId")
	}

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid accountId")
	}

	return id, nil
}

// actingAccount reads the optional X-Acting-Account header identifying the
// back-office caller, for the receipt audit trail.
func actingAccount(r *http.Request) *int64 {
	raw := r.Header.Get("X-Acting-Account")
	if raw == "" {
		return nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil
	}
	return &id
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// --- DTOs ---

type accountResponse struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName,omitempty"`
	Type        string `json:"type"`
	ParentID    *int64 `json:"parentId,omitempty"`
	Status      string `json:"status"`
	Balance     int64  `json:"balance"`
	CreatedAt   string `json:"createdAt"`
}

func toAccountResponse(a *models.Account) accountResponse {
	return accountResponse{
		ID:          a.ID,
		Username:    a.Username,
		DisplayName: a.DisplayName,
		Type:        string(a.Type),
		ParentID:    a.ParentID,
		Status:      string(a.Status),
		Balance:     a.Balance,
		CreatedAt:   a.CreatedAt.Format(time.RFC3339),
	}
}

type receiptResponse struct {
	TransactionID  string `json:"transactionId"`
	IdempotencyKey string `json:"idempotencyKey"`
	Kind           string `json:"kind"`
	FromAccountID  *int64 `json:"fromAccountId,omitempty"`
	ToAccountID    *int64 `json:"toAccountId,omitempty"`
	Amount         int64  `json:"amount"`
	Note           string `json:"note,omitempty"`
	Duplicate      bool   `json:"duplicate"`
	CreatedAt      string `json:"createdAt"`
}

func toReceiptResponse(r *models.Receipt) receiptResponse {
	return receiptResponse{
		TransactionID:  r.TransactionID,
		IdempotencyKey: r.IdempotencyKey,
		Kind:           string(r.Kind),
		FromAccountID:  r.FromAccountID,
		ToAccountID:    r.ToAccountID,
		Amount:         r.Amount,
		Note:           r.Note,
		Duplicate:      r.Duplicate,
		CreatedAt:      r.CreatedAt.Format(time.RFC3339),
	}
}

type ledgerEntryResponse struct {
	ID            int64  `json:"id"`
	AccountID     int64  `json:"accountId"`
	Amount        int64  `json:"amount"`
	Kind          string `json:"kind"`
	TransactionID string `json:"transactionId"`
	Note          string `json:"note,omitempty"`
	CreatedAt     string `json:"createdAt"`
}

type transferLogResponse struct {
	ID            int64  `json:"id"`
	TransactionID string `json:"transactionId"`
	FromAccountID int64  `json:"fromAccountId"`
	ToAccountID   int64  `json:"toAccountId"`
	Amount        int64  `json:"amount"`
	Kind          string `json:"kind"`
	Note          string `json:"note,omitempty"`
	CreatedAt     string `json:"createdAt"`
}

// --- Handlers ---

type createAccountRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Type        string `json:"type"`
	ParentID    *int64 `json:"parentId"`
}

// CreateAccountHandler handles POST /accounts
func (h *HandlerProvider) CreateAccountHandler(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	account, err := h.accounts.CreateAccount(r.Context(), service.CreateAccountRequest{
		Username:    req.Username,
		DisplayName: req.DisplayName,
		Type:        models.AccountType(req.Type),
		ParentID:    req.ParentID,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAccountResponse(account))
}

// GetAccountHandler handles GET /accounts/{accountId}
func (h *HandlerProvider) GetAccountHandler(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseAccountID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid accountId in path")
		return
	}

	account, err := h.accounts.Resolve(r.Context(), accountID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAccountResponse(account))
}

// GetChildrenHandler handles GET /accounts/{accountId}/children
func (h *HandlerProvider) GetChildrenHandler(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseAccountID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid accountId in path")
		return
	}

	if _, err := h.accounts.Resolve(r.Context(), accountID); err != nil {
		writeServiceError(w, err)
		return
	}

	children, err := h.accounts.Children(r.Context(), accountID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := make([]accountResponse, 0, len(children))
	for _, child := range children {
		resp = append(resp, toAccountResponse(child))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetBalanceHandler handles GET /accounts/{accountId}/balance
func (h *HandlerProvider) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseAccountID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid accountId in path")
		return
	}

	balance, err := h.wallet.Balance(r.Context(), accountID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"accountId": accountID,
		"balance":   balance,
	})
}

// GetStatementHandler handles GET /accounts/{accountId}/statement
func (h *HandlerProvider) GetStatementHandler(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseAccountID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid accountId in path")
		return
	}

	// Default window is the last 30 days
	to := time.Now()
	from := to.Add(-30 * 24 * time.Hour)
	if raw := r.URL.Query().Get("from"); raw != "" {
		from, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from timestamp")
			return
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		to, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to timestamp")
			return
		}
	}

	entries, err := h.wallet.Statement(r.Context(), accountID, from, to)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := make([]ledgerEntryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, ledgerEntryResponse{
			ID:            entry.ID,
			AccountID:     entry.AccountID,
			Amount:        entry.Amount,
			Kind:          string(entry.Kind),
			TransactionID: entry.TransactionID,
			Note:          entry.Note,
			CreatedAt:     entry.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type moveRequest struct {
	Amount         int64  `json:"amount"`
	IdempotencyKey string `json:"idempotencyKey"`
	Note           string `json:"note"`
}

// DepositHandler handles POST /accounts/{accountId}/deposit
func (h *HandlerProvider) DepositHandler(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseAccountID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid accountId in path")
		return
	}

	var req moveRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	receipt, err := h.wallet.Deposit(r.Context(), service.DepositRequest{
		AccountID:      accountID,
		Amount:         req.Amount,
		IdempotencyKey: req.IdempotencyKey,
		Note:           req.Note,
		InitiatedBy:    actingAccount(r),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toReceiptResponse(receipt))
}

// WithdrawHandler handles POST /accounts/{accountId}/withdraw
func (h *HandlerProvider) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseAccountID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid accountId in path")
		return
	}

	var req moveRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	receipt, err := h.wallet.Withdraw(r.Context(), service.WithdrawRequest{
		AccountID:      accountID,
		Amount:         req.Amount,
		IdempotencyKey: req.IdempotencyKey,
		Note:           req.Note,
		InitiatedBy:    actingAccount(r),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toReceiptResponse(receipt))
}

// SuspendHandler handles POST /accounts/{accountId}/suspend
func (h *HandlerProvider) SuspendHandler(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseAccountID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid accountId in path")
		return
	}

	if err := h.accounts.Suspend(r.Context(), accountID); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "suspended"})
}

// ReinstateHandler handles POST /accounts/{accountId}/reinstate
func (h *HandlerProvider) ReinstateHandler(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseAccountID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid accountId in path")
		return
	}

	if err := h.accounts.Reinstate(r.Context(), accountID); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "active"})
}

type transferRequest struct {
	FromAccountID  int64  `json:"fromAccountId"`
	ToAccountID    int64  `json:"toAccountId"`
	Amount         int64  `json:"amount"`
	IdempotencyKey string `json:"idempotencyKey"`
	Note           string `json:"note"`
}

// TransferHandler handles POST /transfers
func (h *HandlerProvider) TransferHandler(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	receipt, err := h.wallet.Transfer(r.Context(), service.TransferRequest{
		FromAccountID:  req.FromAccountID,
		ToAccountID:    req.ToAccountID,
		Amount:         req.Amount,
		IdempotencyKey: req.IdempotencyKey,
		Note:           req.Note,
		InitiatedBy:    actingAccount(r),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toReceiptResponse(receipt))
}

// ListTransfersHandler handles GET /transfers
func (h *HandlerProvider) ListTransfersHandler(w http.ResponseWriter, r *http.Request) {
	limit := 50
	offset := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 500 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		offset = parsed
	}

	logs, err := h.transferLogs.List(r.Context(), limit, offset)
	if err != nil {
		log.WithError(err).Error("Failed to list transfers")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := make([]transferLogResponse, 0, len(logs))
	for _, entry := range logs {
		resp = append(resp, transferLogResponse{
			ID:            entry.ID,
			TransactionID: entry.TransactionID,
			FromAccountID: entry.FromAccountID,
			ToAccountID:   entry.ToAccountID,
			Amount:        entry.Amount,
			Kind:          string(entry.Kind),
			Note:          entry.Note,
			CreatedAt:     entry.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type settleBetRequest struct {
	PlayerID     int64  `json:"playerId"`
	StakeAmount  int64  `json:"stakeAmount"`
	PayoutAmount int64  `json:"payoutAmount"`
	BetRef       string `json:"betRef"`
}

// SettleBetHandler handles POST /settlements, the manual counterpart of the
// streaming settlement consumer.
func (h *HandlerProvider) SettleBetHandler(w http.ResponseWriter, r *http.Request) {
	var req settleBetRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.BetRef == "" {
		writeError(w, http.StatusBadRequest, "betRef required")
		return
	}

	settlement, err := h.wallet.SettleBet(r.Context(), service.SettleBetRequest{
		PlayerID:     req.PlayerID,
		StakeAmount:  req.StakeAmount,
		PayoutAmount: req.PayoutAmount,
		BetRef:       req.BetRef,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := map[string]any{
		"betRef":       settlement.BetRef,
		"stakeReceipt": toReceiptResponse(settlement.StakeReceipt),
	}
	if settlement.PayoutReceipt != nil {
		resp["payoutReceipt"] = toReceiptResponse(settlement.PayoutReceipt)
	}
	writeJSON(w, http.StatusOK, resp)
}
