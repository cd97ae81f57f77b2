// Package ledger implements the in-memory, temporally-aware banking ledger
// core: account balances, outgoing totals, scheduled future payments, and
// account merges, with point-in-time balance queries and linearizable
// per-account concurrency.
//
// This package is deliberately free of I/O, context.Context, and every
// third-party dependency in the module — it is the core the rest of the
// repository (transport, dispatch, session, journal, metrics) surrounds.
package ledger

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/atmx/ledgercore/internal/model"
)

// Sink receives a durable-journal-worthy event as soon as a mutating
// operation has applied it, synchronously and while that operation still
// holds its locks. Implementations must therefore return quickly and do no
// I/O inline (§5 — no I/O while a core lock is held). It is the seam the
// journal collaborator attaches to. A nil Sink is a valid, no-op
// configuration.
type Sink interface {
	Append(ev model.BalanceEvent)
}

// Ledger is the single object exposing the eight operations of §6. Callers
// obtain one via New and never construct one directly.
type Ledger struct {
	// mu is the process-wide global guard of §4.4: it protects account-table
	// cardinality (creation/merge) and gates every per-account operation's
	// map lookup. CreateAccount/MergeAccounts take it exclusive; Deposit,
	// Transfer, GetBalance, SchedulePayment, CancelPayment, and TopSpenders
	// all take it shared for the duration of their own critical section, so
	// that drain_until's exclusive acquisition is guaranteed no per-account
	// operation is still in flight (see account.go / scheduler.go docs).
	mu       sync.RWMutex
	accounts map[string]*accountState

	sched *scheduler

	lastSeenTs atomic.Int64

	sink Sink
}

// New creates an empty ledger. Pass a nil Sink if no journal collaborator
// is configured.
func New(sink Sink) *Ledger {
	return &Ledger{
		accounts: make(map[string]*accountState),
		sched:    newScheduler(),
		sink:     sink,
	}
}

func (l *Ledger) publish(ev model.BalanceEvent) {
	if l.sink != nil {
		l.sink.Append(ev)
	}
}

// bumpLastSeen maintains last_seen_ts = max(last_seen_ts, ts) per §5, and
// returns the (possibly unchanged) maximum to drain against. It is
// lock-free: every operation calls this before taking any lock.
func (l *Ledger) bumpLastSeen(ts int64) int64 {
	for {
		cur := l.lastSeenTs.Load()
		if ts <= cur {
			return cur
		}
		if l.lastSeenTs.CompareAndSwap(cur, ts) {
			return ts
		}
	}
}

// drain runs the scheduler's drain_until as its own self-contained
// transaction, acquiring the global guard exclusive and the scheduler guard,
// then releasing both before returning. Every mutating (and, per §4.1,
// every read) operation calls this first, per the preamble rule.
func (l *Ledger) drain(ts int64) {
	now := l.bumpLastSeen(ts)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sched.drainUntil(now, l.applyScheduledDebit)
}

// applyScheduledDebit is the scheduler's callback for a due, non-canceled
// payment. Caller (drain) already holds l.mu exclusively, so no concurrent
// per-account operation can be in flight; it still takes the account's own
// guard for clarity and defense in depth.
func (l *Ledger) applyScheduledDebit(accountID string, amount, dueTs int64) {
	a, ok := l.accounts[accountID]
	if !ok {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.active {
		return // owner not active: skip, consumed (§4.2)
	}
	if a.balance < amount {
		return // insufficient funds: skip, consumed (§4.2 / O3)
	}
	a.balance -= amount
	a.outgoingTotal += amount
	ev := model.BalanceEvent{AccountID: accountID, Ts: dueTs, Delta: -amount}
	a.events = append(a.events, ev)
	l.publish(ev)
}

// lookupLocked finds an account under the already-held global guard.
// Caller must hold l.mu (shared or exclusive).
func (l *Ledger) lookupLocked(id string) (*accountState, bool) {
	a, ok := l.accounts[id]
	return a, ok
}

// CreateAccount implements spec §4.1. Drains, then opens a new lifetime for
// id unless one is already active.
func (l *Ledger) CreateAccount(ts int64, id string) error {
	l.drain(ts)

	l.mu.Lock()
	defer l.mu.Unlock()

	a, ok := l.accounts[id]
	if !ok {
		a = &accountState{id: id}
		l.accounts[id] = a
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.active {
		return ErrDuplicateAccount
	}
	a.open(ts)
	l.publish(model.BalanceEvent{AccountID: id, Ts: ts, Delta: 0})
	return nil
}

// Deposit implements spec §4.1.
func (l *Ledger) Deposit(ts int64, id string, amount int64) (int64, error) {
	l.drain(ts)

	if amount <= 0 {
		return 0, ErrInvalidArgument
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	a, ok := l.lookupLocked(id)
	if !ok {
		return 0, ErrNotFound
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.active {
		return 0, ErrNotFound
	}
	a.record(ts, amount)
	l.publish(model.BalanceEvent{AccountID: id, Ts: ts, Delta: amount})
	return a.balance, nil
}

// Transfer implements spec §4.1. Locks both accounts in lexicographic id
// order to avoid deadlock against a concurrent reverse transfer.
func (l *Ledger) Transfer(ts int64, src, dst string, amount int64) (int64, error) {
	l.drain(ts)

	if amount <= 0 || src == dst {
		return 0, ErrInvalidArgument
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	srcAcc, ok := l.lookupLocked(src)
	if !ok {
		return 0, ErrNotFound
	}
	dstAcc, ok := l.lookupLocked(dst)
	if !ok {
		return 0, ErrNotFound
	}

	first, second := srcAcc, dstAcc
	if dst < src {
		first, second = dstAcc, srcAcc
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	if !srcAcc.active || !dstAcc.active {
		return 0, ErrNotFound
	}
	if srcAcc.balance < amount {
		return 0, ErrInsufficientFunds
	}

	srcAcc.record(ts, -amount)
	dstAcc.record(ts, amount)
	srcAcc.outgoingTotal += amount

	l.publish(model.BalanceEvent{AccountID: src, Ts: ts, Delta: -amount})
	l.publish(model.BalanceEvent{AccountID: dst, Ts: ts, Delta: amount})

	return srcAcc.balance, nil
}

// SchedulePayment implements spec §4.1. Per O1, the payment is never
// executed at schedule time, even when delay == 0.
func (l *Ledger) SchedulePayment(ts int64, id string, amount, delay int64) (string, error) {
	l.drain(ts)

	if amount <= 0 || delay < 0 {
		return "", ErrInvalidArgument
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	a, ok := l.lookupLocked(id)
	if !ok {
		return "", ErrNotFound
	}

	a.mu.Lock()
	active := a.active
	a.mu.Unlock()
	if !active {
		return "", ErrNotFound
	}

	paymentID, ordinal := l.sched.nextPaymentID()
	l.sched.enqueue(paymentID, id, amount, ts+delay, ordinal)
	return paymentID, nil
}

// CancelPayment implements spec §4.1. Drain runs first (O2): a payment that
// became due at exactly ts may already have been processed by the time the
// cancel check runs, and that is the correct outcome.
func (l *Ledger) CancelPayment(ts int64, id, paymentID string) error {
	l.drain(ts)

	l.mu.RLock()
	defer l.mu.RUnlock()

	sp, ok := l.sched.lookup(paymentID)
	if !ok {
		return ErrNotFound
	}
	if sp.accountID != id {
		return ErrNotFound
	}
	return l.sched.cancel(paymentID)
}

// MergeAccounts implements spec §4.1: a absorbs b.
func (l *Ledger) MergeAccounts(ts int64, a, b string) error {
	l.drain(ts)

	if a == b {
		return ErrInvalidArgument
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	parentAcc, ok := l.lookupLocked(a)
	if !ok {
		return ErrNotFound
	}
	childAcc, ok := l.lookupLocked(b)
	if !ok {
		return ErrNotFound
	}

	first, second := parentAcc, childAcc
	if b < a {
		first, second = childAcc, parentAcc
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	if !parentAcc.active || !childAcc.active {
		return ErrNotFound
	}

	movedBalance := childAcc.balance
	parentAcc.record(ts, movedBalance)
	childAcc.record(ts, -movedBalance)
	l.publish(model.BalanceEvent{AccountID: a, Ts: ts, Delta: movedBalance})
	l.publish(model.BalanceEvent{AccountID: b, Ts: ts, Delta: -movedBalance})

	parentAcc.outgoingTotal += childAcc.outgoingTotal
	childAcc.outgoingTotal = 0

	childAcc.mergeEdge = &model.MergeEdge{ChildID: b, ParentID: a, Ts: ts}
	childAcc.close(ts)

	l.sched.rehome(b, a)

	return nil
}

// GetBalance implements spec §4.1.
func (l *Ledger) GetBalance(ts int64, id string, tAt int64) (int64, error) {
	l.drain(ts)

	l.mu.RLock()
	defer l.mu.RUnlock()

	a, ok := l.lookupLocked(id)
	if !ok {
		return 0, ErrNotFound
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	bal, ok := a.balanceAt(tAt)
	if !ok {
		return 0, ErrNotFound
	}
	return bal, nil
}

// TopSpenders implements spec §4.1: the n largest active accounts by
// outgoing_total, descending, tied by id ascending.
func (l *Ledger) TopSpenders(ts int64, n int) []string {
	l.drain(ts)

	if n <= 0 {
		return []string{}
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	type entry struct {
		id    string
		total int64
	}
	entries := make([]entry, 0, len(l.accounts))
	for id, a := range l.accounts {
		a.mu.RLock()
		if a.active {
			entries = append(entries, entry{id: id, total: a.outgoingTotal})
		}
		a.mu.RUnlock()
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].total != entries[j].total {
			return entries[i].total > entries[j].total
		}
		return entries[i].id < entries[j].id
	})

	if n > len(entries) {
		n = len(entries)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = formatTopSpender(entries[i].id, entries[i].total)
	}
	return out
}

func formatTopSpender(id string, total int64) string {
	return id + "(" + itoa(total) + ")"
}

// itoa avoids importing strconv for a single call site used only here and
// in the package's tests; kept trivial and allocation-light.
func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Snapshot returns a read-only view of every account, for metrics and the
// journal's replay tooling. It does not count as a core operation: it takes
// no timestamp and does not drain.
func (l *Ledger) Snapshot() []model.Account {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.Account, 0, len(l.accounts))
	for _, a := range l.accounts {
		a.mu.RLock()
		out = append(out, a.snapshot())
		a.mu.RUnlock()
	}
	return out
}

// PendingScheduledPayments reports the current scheduler backlog size, for
// metrics (internal/metrics reads this on a timer).
func (l *Ledger) PendingScheduledPayments() int {
	return l.sched.pendingCount()
}
