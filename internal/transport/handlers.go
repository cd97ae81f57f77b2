// Package transport exposes the ledger's eight operations over HTTP/JSON
// and balance events over WebSocket (SPEC_FULL §4.5). Grounded on the
// teacher's internal/trade/service.go for handler shape (decode, validate,
// submit, encode) and internal/trade/ws_hub.go for the event-feed hub.
package transport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/atmx/ledgercore/internal/dispatch"
	"github.com/atmx/ledgercore/internal/fraud"
	"github.com/atmx/ledgercore/internal/ledger"
	"github.com/atmx/ledgercore/internal/metrics"
)

// submitOp runs fn through the dispatch pool and records SPEC_FULL §4.9's
// per-operation counters and latency histogram around it, the way the
// teacher's HTTP middleware records every request around statusWriter.
func submitOp[T any](op string, pool *dispatch.Pool, r *http.Request, fn func() (T, error)) (T, error) {
	start := time.Now()
	v, err := dispatch.Submit(r.Context(), pool, fn)
	metrics.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.OperationsTotal.WithLabelValues(op, outcome).Inc()
	return v, err
}

// Service holds the collaborators every handler needs: the ledger itself is
// never called directly from a handler goroutine — every call is submitted
// through the dispatch pool (SPEC_FULL §4.6).
type Service struct {
	ledger *ledger.Ledger
	pool   *dispatch.Pool
	hub    *Hub
	fraud  fraud.Analyzer
}

// NewService wires a transport Service around an already-constructed ledger,
// dispatch pool, event hub, and fraud analyzer. Pass a nil hub to disable
// the WebSocket feed, or a nil analyzer to fall back to fraud.NoopAnalyzer.
func NewService(l *ledger.Ledger, pool *dispatch.Pool, hub *Hub, analyzer fraud.Analyzer) *Service {
	if analyzer == nil {
		analyzer = fraud.NoopAnalyzer{}
	}
	return &Service{ledger: l, pool: pool, hub: hub, fraud: analyzer}
}

// CreateAccount handles POST /api/v1/accounts.
func (s *Service) CreateAccount(w http.ResponseWriter, r *http.Request) {
	correlationID := newCorrelationID()
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, correlationID, ledger.ErrInvalidArgument)
		return
	}

	_, err := submitOp("create_account", s.pool, r, func() (struct{}, error) {
		return struct{}{}, s.ledger.CreateAccount(req.Ts, req.AccountID)
	})
	if err != nil {
		writeError(w, correlationID, err)
		return
	}

	slog.Info("account created", "account_id", req.AccountID, "correlation_id", correlationID)
	writeJSON(w, http.StatusCreated, BalanceResponse{
		CorrelationID: correlationID,
		AccountID:     req.AccountID,
		Balance:       0,
		DisplayAmount: displayAmount(0),
	})
}

// Deposit handles POST /api/v1/accounts/{accountID}/deposit.
func (s *Service) Deposit(w http.ResponseWriter, r *http.Request) {
	correlationID := newCorrelationID()
	accountID := chi.URLParam(r, "accountID")

	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, correlationID, ledger.ErrInvalidArgument)
		return
	}

	risk := s.fraud.Analyze(fraud.Transaction{
		AccountID: accountID,
		Kind:      "deposit",
		Amount:    req.Amount,
		Ts:        req.Ts,
		Location:  r.Header.Get("X-Client-Region"),
	})
	if risk.IsFraudulent() {
		slog.Warn("deposit blocked by fraud analysis", "account_id", accountID, "risk_score", risk.RiskScore, "correlation_id", correlationID)
		writeError(w, correlationID, errFraudBlocked)
		return
	}

	balance, err := submitOp("deposit", s.pool, r, func() (int64, error) {
		return s.ledger.Deposit(req.Ts, accountID, req.Amount)
	})
	if err != nil {
		writeError(w, correlationID, err)
		return
	}

	s.broadcastBalance(accountID, req.Ts, req.Amount)
	writeJSON(w, http.StatusOK, BalanceResponse{
		CorrelationID: correlationID,
		AccountID:     accountID,
		Balance:       balance,
		DisplayAmount: displayAmount(balance),
	})
}

// Transfer handles POST /api/v1/transfer.
func (s *Service) Transfer(w http.ResponseWriter, r *http.Request) {
	correlationID := newCorrelationID()
	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, correlationID, ledger.ErrInvalidArgument)
		return
	}

	risk := s.fraud.Analyze(fraud.Transaction{
		AccountID: req.Source,
		Kind:      "transfer",
		Amount:    req.Amount,
		Ts:        req.Ts,
		Location:  r.Header.Get("X-Client-Region"),
	})
	if risk.IsFraudulent() {
		slog.Warn("transfer blocked by fraud analysis", "account_id", req.Source, "risk_score", risk.RiskScore, "correlation_id", correlationID)
		writeError(w, correlationID, errFraudBlocked)
		return
	}

	balance, err := submitOp("transfer", s.pool, r, func() (int64, error) {
		return s.ledger.Transfer(req.Ts, req.Source, req.Target, req.Amount)
	})
	if err != nil {
		writeError(w, correlationID, err)
		return
	}

	s.broadcastBalance(req.Source, req.Ts, -req.Amount)
	s.broadcastBalance(req.Target, req.Ts, req.Amount)
	writeJSON(w, http.StatusOK, BalanceResponse{
		CorrelationID: correlationID,
		AccountID:     req.Source,
		Balance:       balance,
		DisplayAmount: displayAmount(balance),
	})
}

// SchedulePayment handles POST /api/v1/accounts/{accountID}/schedule.
func (s *Service) SchedulePayment(w http.ResponseWriter, r *http.Request) {
	correlationID := newCorrelationID()
	accountID := chi.URLParam(r, "accountID")

	var req SchedulePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, correlationID, ledger.ErrInvalidArgument)
		return
	}

	paymentID, err := submitOp("schedule_payment", s.pool, r, func() (string, error) {
		return s.ledger.SchedulePayment(req.Ts, accountID, req.Amount, req.Delay)
	})
	if err != nil {
		writeError(w, correlationID, err)
		return
	}

	writeJSON(w, http.StatusCreated, SchedulePaymentResponse{
		CorrelationID: correlationID,
		PaymentID:     paymentID,
	})
}

// CancelPayment handles POST /api/v1/payments/{paymentID}/cancel.
func (s *Service) CancelPayment(w http.ResponseWriter, r *http.Request) {
	correlationID := newCorrelationID()
	paymentID := chi.URLParam(r, "paymentID")

	var req CancelPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, correlationID, ledger.ErrInvalidArgument)
		return
	}

	_, err := submitOp("cancel_payment", s.pool, r, func() (struct{}, error) {
		return struct{}{}, s.ledger.CancelPayment(req.Ts, req.AccountID, paymentID)
	})
	if err != nil {
		writeError(w, correlationID, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"correlation_id": correlationID, "payment_id": paymentID})
}

// MergeAccounts handles POST /api/v1/merge.
func (s *Service) MergeAccounts(w http.ResponseWriter, r *http.Request) {
	correlationID := newCorrelationID()
	var req MergeAccountsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, correlationID, ledger.ErrInvalidArgument)
		return
	}

	_, err := submitOp("merge_accounts", s.pool, r, func() (struct{}, error) {
		return struct{}{}, s.ledger.MergeAccounts(req.Ts, req.Parent, req.Child)
	})
	if err != nil {
		writeError(w, correlationID, err)
		return
	}

	slog.Info("accounts merged", "parent", req.Parent, "child", req.Child, "correlation_id", correlationID)
	writeJSON(w, http.StatusOK, map[string]string{"correlation_id": correlationID})
}

// GetBalance handles GET /api/v1/accounts/{accountID}/balance?ts=&t_at=.
func (s *Service) GetBalance(w http.ResponseWriter, r *http.Request) {
	correlationID := newCorrelationID()
	accountID := chi.URLParam(r, "accountID")

	ts := parseInt64Query(r, "ts")
	tAt := ts
	if r.URL.Query().Has("t_at") {
		tAt = parseInt64Query(r, "t_at")
	}

	balance, err := submitOp("get_balance", s.pool, r, func() (int64, error) {
		return s.ledger.GetBalance(ts, accountID, tAt)
	})
	if err != nil {
		writeError(w, correlationID, err)
		return
	}

	writeJSON(w, http.StatusOK, BalanceResponse{
		CorrelationID: correlationID,
		AccountID:     accountID,
		Balance:       balance,
		DisplayAmount: displayAmount(balance),
	})
}

// TopSpenders handles GET /api/v1/top-spenders?ts=&n=.
func (s *Service) TopSpenders(w http.ResponseWriter, r *http.Request) {
	correlationID := newCorrelationID()
	ts := parseInt64Query(r, "ts")
	n := int(parseInt64Query(r, "n"))

	spenders, err := submitOp("top_spenders", s.pool, r, func() ([]string, error) {
		return s.ledger.TopSpenders(ts, n), nil
	})
	if err != nil {
		writeError(w, correlationID, err)
		return
	}

	writeJSON(w, http.StatusOK, TopSpendersResponse{CorrelationID: correlationID, Spenders: spenders})
}

func (s *Service) broadcastBalance(accountID string, ts, delta int64) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(WSMessage{
		Type:      "balance_event",
		AccountID: accountID,
		Ts:        ts,
		Delta:     delta,
	})
}

func parseInt64Query(r *http.Request, key string) int64 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0
	}
	var v int64
	for _, c := range raw {
		if c < '0' || c > '9' {
			return 0
		}
		v = v*10 + int64(c-'0')
	}
	return v
}
