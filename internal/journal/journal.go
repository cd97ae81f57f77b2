// Package journal durably records the balance events the ledger core emits
// after each mutating operation commits. It is the named "durable storage
// collaborator" of spec §6 — the core never imports this package, and this
// package satisfies the core's Sink interface without importing the core.
package journal

import (
	"context"

	"github.com/atmx/ledgercore/internal/model"
)

// Record is one durable journal row: a balance event plus the metadata
// needed to replay or audit it later.
type Record struct {
	Seq       int64             `json:"seq"`
	AccountID string            `json:"account_id"`
	Ts        int64             `json:"ts"`
	Delta     int64             `json:"delta"`
	Event     model.BalanceEvent `json:"-"`
}

// Journal is the persistence interface for balance events. MemoryJournal is
// the in-process implementation used by tests and by cmd/server when no
// database URL is configured; PostgresJournal is the source of truth in
// cmd/server otherwise.
type Journal interface {
	// Append records one balance event. It must never block the caller on
	// anything slower than an in-process enqueue — see Append's
	// implementations for how each honors that.
	Append(ev model.BalanceEvent)

	// Replay returns every recorded event for accountID in append order, for
	// audit tooling.
	Replay(ctx context.Context, accountID string) ([]Record, error)

	// Close releases any background resources. Safe to call once during
	// shutdown.
	Close()
}
