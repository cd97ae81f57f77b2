package ledger

import (
	"container/heap"
	"fmt"
	"sync"
	"sync/atomic"
)

// scheduledPayment is the scheduler's private record of one payment. It is
// never copied out of the scheduler.
type scheduledPayment struct {
	paymentID string
	accountID string
	amount    int64
	dueTs     int64
	ordinal   int64
	canceled  bool
	processed bool

	heapIndex int
}

// paymentHeap orders pending entries by (due_ts asc, creation_ordinal asc)
// per invariant I4. It holds every payment not yet drained, including
// canceled ones still waiting to be popped past — drainUntil simply skips
// (and marks processed) anything already terminal when it reaches the
// front of the heap.
type paymentHeap []*scheduledPayment

func (h paymentHeap) Len() int { return len(h) }
func (h paymentHeap) Less(i, j int) bool {
	if h[i].dueTs != h[j].dueTs {
		return h[i].dueTs < h[j].dueTs
	}
	return h[i].ordinal < h[j].ordinal
}
func (h paymentHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}
func (h *paymentHeap) Push(x any) {
	sp := x.(*scheduledPayment)
	sp.heapIndex = len(*h)
	*h = append(*h, sp)
}
func (h *paymentHeap) Pop() any {
	old := *h
	n := len(old)
	sp := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return sp
}

// scheduler is the logical-time due-payment queue of spec §4.2. It is
// guarded by its own mutex rather than the ledger's global guard — see
// SPEC_FULL §4.4/§9 (O6) for why: SchedulePayment/CancelPayment hold the
// global guard only shared, so the scheduler must be able to protect itself
// without needing the global guard exclusive.
type scheduler struct {
	mu      sync.Mutex
	pq      paymentHeap
	byID    map[string]*scheduledPayment
	ordinal atomic.Int64
}

func newScheduler() *scheduler {
	return &scheduler{byID: make(map[string]*scheduledPayment)}
}

// nextPaymentID allocates a strictly increasing creation ordinal and formats
// the payment id, per invariant I7. Lock-free: it is the one piece of
// scheduler state that never needs mutual exclusion with anything else.
func (s *scheduler) nextPaymentID() (string, int64) {
	ordinal := s.ordinal.Add(1)
	return fmt.Sprintf("payment%d", ordinal), ordinal
}

// enqueue registers a new scheduled payment.
func (s *scheduler) enqueue(paymentID, accountID string, amount, dueTs, ordinal int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp := &scheduledPayment{
		paymentID: paymentID,
		accountID: accountID,
		amount:    amount,
		dueTs:     dueTs,
		ordinal:   ordinal,
	}
	s.byID[paymentID] = sp
	heap.Push(&s.pq, sp)
}

// lookup returns the live scheduler record for a payment id, if any.
func (s *scheduler) lookup(paymentID string) (*scheduledPayment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp, ok := s.byID[paymentID]
	return sp, ok
}

// cancel marks a pending payment canceled. It does not remove it from the
// heap — drainUntil does that logical removal when the entry is popped.
func (s *scheduler) cancel(paymentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp, ok := s.byID[paymentID]
	if !ok {
		return ErrNotFound
	}
	if sp.canceled || sp.processed {
		return ErrAlreadyTerminal
	}
	sp.canceled = true
	return nil
}

// rehome repoints every still-pending payment owned by oldOwner to newOwner.
// Called by MergeAccounts while the ledger's global guard is held exclusive,
// so no concurrent SchedulePayment/CancelPayment can observe a half-updated
// view.
func (s *scheduler) rehome(oldOwner, newOwner string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sp := range s.byID {
		if !sp.canceled && !sp.processed && sp.accountID == oldOwner {
			sp.accountID = newOwner
		}
	}
}

// drainUntil pops every entry whose due_ts <= now, in (due_ts, ordinal)
// order, and applies it via apply. apply is called with both the lock held
// by the caller of drainUntil (the ledger's global exclusive guard) and the
// scheduler's own mutex, so apply must not re-enter the scheduler.
//
// Canceled entries are marked processed and skipped without calling apply.
// apply itself decides whether funds move; drainUntil marks processed
// unconditionally afterward, matching §4.2's "in both success and skip
// paths, mark processed = true".
func (s *scheduler) drainUntil(now int64, apply func(accountID string, amount, dueTs int64)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.pq.Len() > 0 && s.pq[0].dueTs <= now {
		sp := heap.Pop(&s.pq).(*scheduledPayment)
		if sp.processed {
			continue // already logically removed (defensive; shouldn't occur)
		}
		if !sp.canceled {
			apply(sp.accountID, sp.amount, sp.dueTs)
		}
		sp.processed = true
	}
}

// pendingDueBefore reports whether any pending (non-terminal) payment has
// due_ts <= ts — invariant I5/P4 should always
// observe false immediately after any mutating operation.
func (s *scheduler) pendingDueBefore(ts int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sp := range s.pq {
		if !sp.processed && !sp.canceled && sp.dueTs <= ts {
			return true
		}
	}
	return false
}

// pendingCount returns the number of non-terminal entries, for metrics.
func (s *scheduler) pendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sp := range s.pq {
		if !sp.processed && !sp.canceled {
			n++
		}
	}
	return n
}
