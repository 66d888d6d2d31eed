// Package httptransport is the thin HTTP layer over the ledger engine. It
// decodes requests, delegates to domain services, and translates domain
// errors into JSON envelopes; no business logic lives here.
package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"corebank/internal/audit"
	"corebank/internal/ledger/models"
	"corebank/internal/ledger/service"
	"corebank/internal/policy"
	"corebank/internal/report"
	id "corebank/pkg/domain"
	dErrors "corebank/pkg/domain-errors"
)

type Handler struct {
	engine    *service.Engine
	projector *report.Projector
	logger    *slog.Logger
}

func NewHandler(engine *service.Engine, projector *report.Projector, logger *slog.Logger) *Handler {
	return &Handler{engine: engine, projector: projector, logger: logger}
}

// Register wires the authenticated API routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/accounts", h.handleCreateAccount)
	r.Get("/accounts/mine", h.handleListMyAccounts)
	r.Get("/accounts/{number}", h.handleFindAccount)
	r.Put("/accounts/{id}/block", h.handleBlockAccount)

	r.Post("/transactions/deposit", h.handleDeposit)
	r.Post("/transactions/withdrawal", h.handleWithdrawal)
	r.Post("/transactions/transfer", h.handleTransfer)
	r.Put("/transactions/{id}/cancel", h.handleCancel)
	r.Get("/transactions", h.handleListTransactions)

	r.Get("/reports/transactions", h.handleReport)
	r.Get("/audit", h.handleListAudit)
}

type createAccountRequest struct {
	OwnerID string `json:"owner_id"`
	Type    string `json:"type"`
}

func (h *Handler) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	ownerID, err := id.ParseUserID(req.OwnerID)
	if err != nil {
		writeError(w, err)
		return
	}
	account, err := h.engine.CreateAccount(r.Context(), ownerID, models.AccountType(req.Type))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

func (h *Handler) handleListMyAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.engine.ListMyAccounts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if accounts == nil {
		accounts = []*models.Account{}
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (h *Handler) handleFindAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.engine.FindAccountByNumber(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (h *Handler) handleBlockAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := id.ParseAccountID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	account, err := h.engine.BlockAccount(r.Context(), accountID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

type movementRequest struct {
	AccountID string `json:"account_id"`
	Amount    string `json:"amount"`
}

func (h *Handler) handleDeposit(w http.ResponseWriter, r *http.Request) {
	h.handleMovement(w, r, h.engine.CreateDeposit)
}

func (h *Handler) handleWithdrawal(w http.ResponseWriter, r *http.Request) {
	h.handleMovement(w, r, h.engine.CreateWithdrawal)
}

func (h *Handler) handleMovement(w http.ResponseWriter, r *http.Request, create func(ctx context.Context, accountID id.AccountID, amount decimal.Decimal) (*models.Transaction, error)) {
	var req movementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	accountID, err := id.ParseAccountID(req.AccountID)
	if err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	tx, err := create(r.Context(), accountID, amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

type transferRequest struct {
	SourceAccountID          string `json:"source_account_id"`
	DestinationAccountNumber string `json:"destination_account_number"`
	Amount                   string `json:"amount"`
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	srcID, err := id.ParseAccountID(req.SourceAccountID)
	if err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	dstID, err := h.engine.ResolveAccountNumber(r.Context(), req.DestinationAccountNumber)
	if err != nil {
		writeError(w, err)
		return
	}
	tx, err := h.engine.CreateTransfer(r.Context(), srcID, dstID, amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	txID, err := id.ParseTransactionID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	tx, err := h.engine.Cancel(r.Context(), txID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (h *Handler) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	filter, err := transactionFilterFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	transactions, err := h.engine.ListTransactions(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if transactions == nil {
		transactions = []*models.Transaction{}
	}
	writeJSON(w, http.StatusOK, transactions)
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Authorize(r.Context(), policy.OpViewReport); err != nil {
		writeError(w, err)
		return
	}

	filter := report.Filter{
		Type:   models.TransactionType(r.URL.Query().Get("type")),
		Status: models.TransactionStatus(r.URL.Query().Get("status")),
	}
	var err error
	if filter.From, err = parseTimeParam(r, "from"); err != nil {
		writeError(w, err)
		return
	}
	if filter.To, err = parseTimeParam(r, "to"); err != nil {
		writeError(w, err)
		return
	}
	if raw := r.URL.Query().Get("operator_id"); raw != "" {
		if filter.OperatorID, err = id.ParseUserID(raw); err != nil {
			writeError(w, err)
			return
		}
	}

	seq, err := h.projector.Query(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	rows := []models.Transaction{}
	for tx := range seq {
		rows = append(rows, tx)
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *Handler) handleListAudit(w http.ResponseWriter, r *http.Request) {
	var filter audit.Filter
	var err error
	if raw := r.URL.Query().Get("actor_id"); raw != "" {
		if filter.ActorID, err = id.ParseUserID(raw); err != nil {
			writeError(w, err)
			return
		}
	}
	filter.Action = r.URL.Query().Get("action")
	if filter.Since, err = parseTimeParam(r, "since"); err != nil {
		writeError(w, err)
		return
	}
	if filter.Until, err = parseTimeParam(r, "until"); err != nil {
		writeError(w, err)
		return
	}

	records, err := h.engine.ListAuditRecords(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if records == nil {
		records = []audit.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func parseAmount(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, dErrors.New(dErrors.CodeInvalidAmount, "amount is required")
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, dErrors.New(dErrors.CodeInvalidAmount, "amount must be a decimal number")
	}
	return amount, nil
}

func parseTimeParam(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, dErrors.New(dErrors.CodeInvalidInput, name+" must be an RFC 3339 timestamp")
	}
	return t, nil
}

func transactionFilterFromQuery(r *http.Request) (models.TransactionFilter, error) {
	filter := models.TransactionFilter{
		Type:   models.TransactionType(r.URL.Query().Get("type")),
		Status: models.TransactionStatus(r.URL.Query().Get("status")),
	}
	var err error
	if filter.From, err = parseTimeParam(r, "from"); err != nil {
		return filter, err
	}
	if filter.To, err = parseTimeParam(r, "to"); err != nil {
		return filter, err
	}
	return filter, nil
}
