package ledger

import "errors"

// Error kinds returned by core operations. These are sentinels, not
// exception types — every operation except TopSpenders returns a value and
// an error (or just an error) at its boundary, and callers are expected to
// use errors.Is against these.
var (
	// ErrNotFound is returned when a referenced account or payment does not
	// exist or is not active.
	ErrNotFound = errors.New("ledger: not found")

	// ErrDuplicateAccount is returned by CreateAccount when id already
	// names an active account.
	ErrDuplicateAccount = errors.New("ledger: account already active")

	// ErrInvalidArgument is returned for non-positive amounts, negative
	// delays, and source == target. TopSpenders has no error result and
	// returns an empty list for n <= 0.
	ErrInvalidArgument = errors.New("ledger: invalid argument")

	// ErrInsufficientFunds is returned when a transfer would take the source
	// balance negative. A drained scheduled payment the owner cannot cover
	// is skipped without an error.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")

	// ErrAlreadyTerminal is returned when canceling a payment that is
	// already canceled or already processed.
	ErrAlreadyTerminal = errors.New("ledger: payment already terminal")
)
