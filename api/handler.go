// Package api exposes a Ledger over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	ledger "github.com/xraph/bankledger"
	"github.com/xraph/bankledger/account"
	"github.com/xraph/bankledger/transfer"
)

// Metrics
var (
	httpReqTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bankledger_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bankledger_http_request_duration_seconds",
		Help:    "Request latency",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"method", "endpoint"})
)

// Handler serves the ledger's HTTP endpoints.
type Handler struct {
	ledger *ledger.Ledger
	logger *slog.Logger
}

func NewHandler(l *ledger.Ledger, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{ledger: l, logger: logger}
}

// Request and response bodies.
type (
	createAccountRequest struct {
		AccountID string `json:"account_id"`
		Timestamp int64  `json:"timestamp"`
	}

	amountRequest struct {
		Timestamp int64 `json:"timestamp"`
		Amount    int64 `json:"amount"`
	}

	transferRequest struct {
		Timestamp     int64  `json:"timestamp"`
		FromAccountID string `json:"from_account_id"`
		ToAccountID   string `json:"to_account_id"`
		Amount        int64  `json:"amount"`
	}

	timestampRequest struct {
		Timestamp int64 `json:"timestamp"`
	}

	balanceResponse struct {
		AccountID string `json:"account_id"`
		Balance   int64  `json:"balance"`
	}

	rankingResponse struct {
		Accounts   []string           `json:"accounts"`
		Activities []account.Activity `json:"activities"`
	}

	transferCreatedResponse struct {
		TransferID string `json:"transfer_id"`
		Recipient  string `json:"recipient"`
	}

	transferStatusResponse struct {
		TransferID string          `json:"transfer_id"`
		Status     transfer.Status `json:"status"`
	}
)

// ──────────────────────────────────────────────────
// Accounts
// ──────────────────────────────────────────────────

func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.ledger.CreateAccount(r.Context(), req.Timestamp, req.AccountID); err != nil {
		h.fail(w, err)
		return
	}

	w.Header().Set("Location", "/api/v1/accounts/"+req.AccountID)
	h.respondJSON(w, http.StatusCreated, map[string]string{"account_id": req.AccountID})
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	a, err := h.ledger.GetAccount(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, a)
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	history, err := h.ledger.History(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"transactions": history})
}

func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.moveFunds(w, r, h.ledger.Deposit)
}

func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	h.moveFunds(w, r, h.ledger.Pay)
}

// fundsOp is the shape shared by Ledger.Deposit and Ledger.Pay.
type fundsOp func(ctx context.Context, ts int64, accountID string, amount int64) (int64, error)

func (h *Handler) moveFunds(w http.ResponseWriter, r *http.Request, op fundsOp) {
	var req amountRequest
	if !h.decode(w, r, &req) {
		return
	}

	accountID := mux.Vars(r)["id"]
	balance, err := op(r.Context(), req.Timestamp, accountID, req.Amount)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, balanceResponse{AccountID: accountID, Balance: balance})
}

func (h *Handler) Rankings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	n, err := strconv.Atoi(q.Get("n"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "query parameter n must be an integer")
		return
	}
	var ts int64
	if raw := q.Get("timestamp"); raw != "" {
		if ts, err = strconv.ParseInt(raw, 10, 64); err != nil {
			h.respondError(w, http.StatusBadRequest, "query parameter timestamp must be an integer")
			return
		}
	}

	activities, err := h.ledger.TopAccounts(r.Context(), ts, n)
	if err != nil {
		h.fail(w, err)
		return
	}

	resp := rankingResponse{Accounts: make([]string, 0, len(activities)), Activities: activities}
	for _, a := range activities {
		resp.Accounts = append(resp.Accounts, a.String())
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// ──────────────────────────────────────────────────
// Transfers
// ──────────────────────────────────────────────────

func (h *Handler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !h.decode(w, r, &req) {
		return
	}

	key, err := h.ledger.Transfer(r.Context(), req.Timestamp, req.FromAccountID, req.ToAccountID, req.Amount)
	if err != nil {
		h.fail(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/accounts/%s/transfers/%s", req.ToAccountID, key))
	h.respondJSON(w, http.StatusCreated, transferCreatedResponse{TransferID: key, Recipient: req.ToAccountID})
}

func (h *Handler) GetTransfer(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	t, err := h.ledger.GetTransfer(r.Context(), vars["id"], vars["key"])
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, t)
}

func (h *Handler) AcceptTransfer(w http.ResponseWriter, r *http.Request) {
	var req timestampRequest
	if !h.decode(w, r, &req) {
		return
	}

	vars := mux.Vars(r)
	if err := h.ledger.AcceptTransfer(r.Context(), req.Timestamp, vars["id"], vars["key"]); err != nil {
		h.fail(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, transferStatusResponse{TransferID: vars["key"], Status: transfer.StatusAccepted})
}

func (h *Handler) RevokeTransfer(w http.ResponseWriter, r *http.Request) {
	var req timestampRequest
	if !h.decode(w, r, &req) {
		return
	}

	vars := mux.Vars(r)
	if err := h.ledger.RevokeTransfer(r.Context(), req.Timestamp, vars["id"], vars["key"]); err != nil {
		h.fail(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, transferStatusResponse{TransferID: vars["key"], Status: transfer.StatusRevoked})
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid JSON")
		return false
	}
	return true
}

// fail maps a ledger error onto an HTTP status.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	code := StatusFor(err)
	if code == http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err)
	}
	h.respondError(w, code, err.Error())
}

// StatusFor returns the HTTP status code for a ledger error.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrBalanceOverflow):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrTransferNotPending),
		errors.Is(err, ledger.ErrTransferExpired),
		errors.Is(err, ledger.ErrNotRecipient),
		errors.Is(err, ledger.ErrNotSender):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respondJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Warn("encode response", "error", err)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, code int, msg string) {
	h.respondJSON(w, code, map[string]string{"error": msg})
}
