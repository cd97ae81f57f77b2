// Package model defines the domain types shared between the ledger core
// and its surrounding collaborators (transport, journal, metrics). These
// are plain snapshots — copies, never the ledger's own internal pointers —
// so that a collaborator can never mutate core state through them.
package model

// Account is a point-in-time, read-only snapshot of one account id.
type Account struct {
	ID            string `json:"id"`
	Balance       int64  `json:"balance"`
	OutgoingTotal int64  `json:"outgoing_total"`
	Active        bool   `json:"active"`
}

// BalanceEvent is an immutable append-only ledger entry: account id moved
// by delta at logical time ts. A creation sentinel has delta == 0.
type BalanceEvent struct {
	AccountID string `json:"account_id"`
	Ts        int64  `json:"ts"`
	Delta     int64  `json:"delta"`
}

// ScheduledPayment is a point-in-time snapshot of one scheduled payment.
type ScheduledPayment struct {
	PaymentID        string `json:"payment_id"`
	AccountID        string `json:"account_id"`
	Amount           int64  `json:"amount"`
	DueTs            int64  `json:"due_ts"`
	CreationOrdinal  int64  `json:"creation_ordinal"`
	Canceled         bool   `json:"canceled"`
	Processed        bool   `json:"processed"`
}

// MergeEdge records that ChildID's balance, outgoing total, and pending
// payments were absorbed by ParentID at logical time Ts.
type MergeEdge struct {
	ChildID  string `json:"child_id"`
	ParentID string `json:"parent_id"`
	Ts       int64  `json:"ts"`
}
