package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/atmx/ledgercore/internal/ledger"
)

// errUnauthorized is returned by RequireSession for a missing or invalid
// bearer token; it has no ledger sentinel equivalent since the core has no
// notion of a caller.
var errUnauthorized = errors.New("transport: missing or invalid bearer token")

// errFraudBlocked is returned when the configured fraud.Analyzer recommends
// BLOCK for a deposit or transfer; it never reaches the ledger core.
var errFraudBlocked = errors.New("transport: transaction blocked by fraud analysis")

// statusFor maps a ledger sentinel error to the HTTP status the spec's
// external-interfaces table implies for it (SPEC_FULL §6): not-found
// conditions are 404, invalid input is 400, state conflicts (insufficient
// funds, duplicate account, terminal payment) are 409.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, errFraudBlocked):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrDuplicateAccount),
		errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrAlreadyTerminal):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, correlationID string, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(err))
	json.NewEncoder(w).Encode(errorResponse{CorrelationID: correlationID, Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func newCorrelationID() string {
	return uuid.NewString()
}
