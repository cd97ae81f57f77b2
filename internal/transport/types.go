package transport

import "github.com/shopspring/decimal"

// cents is the fixed-point scale every wire amount is rendered at: minor
// units in, major-unit decimal.Decimal out, per SPEC_FULL §3.1. Never fed
// back into the ledger core — display only.
var cents = decimal.NewFromInt(100)

func displayAmount(minorUnits int64) decimal.Decimal {
	return decimal.NewFromInt(minorUnits).Div(cents)
}

// CreateAccountRequest is the JSON body for POST /api/v1/accounts.
type CreateAccountRequest struct {
	Ts        int64  `json:"ts"`
	AccountID string `json:"account_id"`
}

// DepositRequest is the JSON body for POST /api/v1/accounts/{accountID}/deposit.
type DepositRequest struct {
	Ts     int64 `json:"ts"`
	Amount int64 `json:"amount"`
}

// BalanceResponse is returned by deposit, transfer, and balance queries.
type BalanceResponse struct {
	CorrelationID string          `json:"correlation_id"`
	AccountID     string          `json:"account_id"`
	Balance       int64           `json:"balance"`
	DisplayAmount decimal.Decimal `json:"display_amount"`
}

// TransferRequest is the JSON body for POST /api/v1/transfer.
type TransferRequest struct {
	Ts     int64  `json:"ts"`
	Source string `json:"source"`
	Target string `json:"target"`
	Amount int64  `json:"amount"`
}

// SchedulePaymentRequest is the JSON body for POST /api/v1/accounts/{accountID}/schedule.
type SchedulePaymentRequest struct {
	Ts     int64 `json:"ts"`
	Amount int64 `json:"amount"`
	Delay  int64 `json:"delay"`
}

// SchedulePaymentResponse is returned by SchedulePayment.
type SchedulePaymentResponse struct {
	CorrelationID string `json:"correlation_id"`
	PaymentID     string `json:"payment_id"`
}

// CancelPaymentRequest is the JSON body for POST /api/v1/payments/{paymentID}/cancel.
type CancelPaymentRequest struct {
	Ts        int64  `json:"ts"`
	AccountID string `json:"account_id"`
}

// MergeAccountsRequest is the JSON body for POST /api/v1/merge.
type MergeAccountsRequest struct {
	Ts     int64  `json:"ts"`
	Parent string `json:"parent"`
	Child  string `json:"child"`
}

// TopSpendersResponse is returned by GET /api/v1/top-spenders.
type TopSpendersResponse struct {
	CorrelationID string   `json:"correlation_id"`
	Spenders      []string `json:"spenders"`
}

// errorResponse is the JSON body for every non-2xx response.
type errorResponse struct {
	CorrelationID string `json:"correlation_id"`
	Error         string `json:"error"`
}
