package ledger

import (
	"sync"

	"github.com/atmx/ledgercore/internal/model"
)

// lifetime is the interval from createdTs through closedTs (inclusive of
// closedTs for queries, see covers) during which an account id referred to
// a live account. closed == false means the lifetime is still open.
type lifetime struct {
	createdTs int64
	closed    bool
	closedTs  int64
}

// covers reports whether this lifetime was the live one at logical time t.
// A merge completed at closedTs keeps the child visible through t == closedTs
// and makes it disappear for any t > closedTs (spec §4.1 GetBalance).
func (lt lifetime) covers(t int64) bool {
	if t < lt.createdTs {
		return false
	}
	return !lt.closed || t <= lt.closedTs
}

// accountState is the ledger's permanent, never-removed record for one
// account id. Re-creating a merged-away id reuses the same accountState and
// simply opens a new lifetime — this is what lets GetBalance answer queries
// about an id across recycling (spec §3, O5).
//
// mu is the per-account guard of the concurrency envelope (§4.4): it
// protects everything below it. It never needs to be held together with
// another account's mu except in Transfer and MergeAccounts, which always
// acquire guards in lexicographic id order to avoid deadlock.
type accountState struct {
	mu sync.RWMutex

	id            string
	balance       int64
	outgoingTotal int64
	active        bool

	lifetimes []lifetime
	events    []model.BalanceEvent // temporal index: append-only, never reordered

	mergeEdge *model.MergeEdge // set when this id is a merged-away child
}

// currentLifetime returns a pointer to the open lifetime, or nil if none.
// Caller must hold mu.
func (a *accountState) currentLifetime() *lifetime {
	if len(a.lifetimes) == 0 {
		return nil
	}
	last := &a.lifetimes[len(a.lifetimes)-1]
	if last.closed {
		return nil
	}
	return last
}

// open starts a new lifetime at ts, reusing this accountState for a
// recycled id. Caller must hold mu exclusively.
func (a *accountState) open(ts int64) {
	a.lifetimes = append(a.lifetimes, lifetime{createdTs: ts})
	a.balance = 0
	a.outgoingTotal = 0
	a.active = true
	a.mergeEdge = nil
	a.events = append(a.events, model.BalanceEvent{AccountID: a.id, Ts: ts, Delta: 0})
}

// close closes the open lifetime at ts. Caller must hold mu exclusively.
func (a *accountState) close(ts int64) {
	lt := a.currentLifetime()
	if lt == nil {
		return
	}
	lt.closed = true
	lt.closedTs = ts
	a.active = false
}

// record appends a balance event and updates the live balance. Caller must
// hold mu exclusively.
func (a *accountState) record(ts, delta int64) {
	a.balance += delta
	a.events = append(a.events, model.BalanceEvent{AccountID: a.id, Ts: ts, Delta: delta})
}

// balanceAt reconstructs the balance at logical time tAt, or reports that no
// lifetime of this id covered tAt. Caller must hold at least a read lock.
//
// Per §4.3, implementers only need a linear scan to suffice *if* timestamps
// are supplied monotonically by callers; §5 explicitly permits non-monotonic
// caller timestamps, so this scans every event rather than relying on any
// assumed order — correctness only requires summing deltas with ts <= tAt
// inside the lifetime that covered tAt, regardless of append order.
func (a *accountState) balanceAt(tAt int64) (int64, bool) {
	lt, ok := a.lifetimeCovering(tAt)
	if !ok {
		return 0, false
	}
	var sum int64
	for _, ev := range a.events {
		if ev.Ts >= lt.createdTs && ev.Ts <= tAt {
			sum += ev.Delta
		}
	}
	return sum, true
}

// lifetimeCovering returns the lifetime with the greatest createdTs <= tAt
// that also covers tAt, per the "maximal created_ts <= t_at" rule in §4.1.
func (a *accountState) lifetimeCovering(tAt int64) (lifetime, bool) {
	var best lifetime
	found := false
	for _, lt := range a.lifetimes {
		if lt.createdTs > tAt {
			continue
		}
		if !found || lt.createdTs > best.createdTs {
			best = lt
			found = true
		}
	}
	if !found {
		return lifetime{}, false
	}
	if !best.covers(tAt) {
		return lifetime{}, false
	}
	return best, true
}

// snapshot copies out the public view of this account. Caller must hold at
// least a read lock.
func (a *accountState) snapshot() model.Account {
	return model.Account{
		ID:            a.id,
		Balance:       a.balance,
		OutgoingTotal: a.outgoingTotal,
		Active:        a.active,
	}
}
