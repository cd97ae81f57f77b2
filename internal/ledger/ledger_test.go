package ledger

import (
	"errors"
	"sync"
	"testing"
)

func TestCreateAccountDuplicate(t *testing.T) {
	l := New(nil)
	if err := l.CreateAccount(1, "alice"); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if err := l.CreateAccount(2, "alice"); !errors.Is(err, ErrDuplicateAccount) {
		t.Fatalf("want ErrDuplicateAccount, got %v", err)
	}
}

func TestDepositAccumulates(t *testing.T) {
	l := New(nil)
	mustCreate(t, l, 0, "alice")
	bal, err := l.Deposit(1, "alice", 100)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if bal != 100 {
		t.Fatalf("balance = %d, want 100", bal)
	}
	bal, err = l.Deposit(2, "alice", 50)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if bal != 150 {
		t.Fatalf("balance = %d, want 150", bal)
	}
}

func TestDepositInvalidAmount(t *testing.T) {
	l := New(nil)
	mustCreate(t, l, 0, "alice")
	if _, err := l.Deposit(1, "alice", 0); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("want ErrInvalidArgument, got %v", err)
	}
	if _, err := l.Deposit(1, "alice", -5); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("want ErrInvalidArgument, got %v", err)
	}
}

func TestDepositUnknownAccount(t *testing.T) {
	l := New(nil)
	if _, err := l.Deposit(1, "ghost", 10); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestTransferMovesFunds(t *testing.T) {
	l := New(nil)
	mustCreate(t, l, 0, "alice")
	mustCreate(t, l, 0, "bob")
	mustDeposit(t, l, 1, "alice", 100)

	bal, err := l.Transfer(2, "alice", "bob", 40)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if bal != 60 {
		t.Fatalf("src balance = %d, want 60", bal)
	}
	bobBal, err := l.GetBalance(3, "bob", 3)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if bobBal != 40 {
		t.Fatalf("dst balance = %d, want 40", bobBal)
	}
}

func TestTransferInsufficientFunds(t *testing.T) {
	l := New(nil)
	mustCreate(t, l, 0, "alice")
	mustCreate(t, l, 0, "bob")
	if _, err := l.Transfer(1, "alice", "bob", 1); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("want ErrInsufficientFunds, got %v", err)
	}
}

func TestTransferSameAccountRejected(t *testing.T) {
	l := New(nil)
	mustCreate(t, l, 0, "alice")
	if _, err := l.Transfer(1, "alice", "alice", 1); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("want ErrInvalidArgument, got %v", err)
	}
}

func TestSchedulePaymentDrainsOnDue(t *testing.T) {
	l := New(nil)
	mustCreate(t, l, 0, "alice")
	mustDeposit(t, l, 1, "alice", 100)

	paymentID, err := l.SchedulePayment(2, "alice", 30, 10)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if paymentID == "" {
		t.Fatal("expected non-empty payment id")
	}

	// Before due: balance unaffected.
	bal, err := l.GetBalance(5, "alice", 5)
	if err != nil || bal != 100 {
		t.Fatalf("balance before due = %d, %v; want 100, nil", bal, err)
	}

	// Advancing past due_ts (2+10=12) drains the payment.
	bal, err = l.GetBalance(13, "alice", 13)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if bal != 70 {
		t.Fatalf("balance after due = %d, want 70", bal)
	}
}

func TestSchedulePaymentZeroDelayNotAppliedImmediately(t *testing.T) {
	l := New(nil)
	mustCreate(t, l, 0, "alice")
	mustDeposit(t, l, 1, "alice", 100)

	// Same call: delay 0 still only becomes due, never applied inline.
	if _, err := l.SchedulePayment(5, "alice", 20, 0); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	// Snapshot does not drain, so it shows the state SchedulePayment left.
	var bal int64 = -1
	for _, a := range l.Snapshot() {
		if a.ID == "alice" {
			bal = a.Balance
		}
	}
	if bal != 100 {
		t.Fatalf("balance = %d, want 100 (payment not applied at schedule time)", bal)
	}

	// The next operation with ts >= due_ts (5) drains it.
	bal, err := l.GetBalance(5, "alice", 5)
	if err != nil || bal != 80 {
		t.Fatalf("balance at ts=5 = %d, %v; want 80, nil", bal, err)
	}

	bal, err = l.GetBalance(6, "alice", 6)
	if err != nil || bal != 80 {
		t.Fatalf("balance at ts=6 = %d, %v; want 80, nil", bal, err)
	}
}

func TestCancelPaymentBeforeDue(t *testing.T) {
	l := New(nil)
	mustCreate(t, l, 0, "alice")
	mustDeposit(t, l, 1, "alice", 100)

	paymentID, err := l.SchedulePayment(2, "alice", 30, 100)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if err := l.CancelPayment(3, "alice", paymentID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := l.CancelPayment(4, "alice", paymentID); !errors.Is(err, ErrAlreadyTerminal) {
		t.Fatalf("want ErrAlreadyTerminal, got %v", err)
	}

	bal, err := l.GetBalance(200, "alice", 200)
	if err != nil || bal != 100 {
		t.Fatalf("balance = %d, %v; want 100 (canceled payment never applied)", bal, err)
	}
}

func TestCancelPaymentAlreadyDue(t *testing.T) {
	l := New(nil)
	mustCreate(t, l, 0, "alice")
	mustDeposit(t, l, 1, "alice", 100)

	paymentID, err := l.SchedulePayment(2, "alice", 30, 5)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	// Drive logical time past due_ts first so the drain at the top of
	// CancelPayment processes the payment before the cancel check runs.
	if _, err := l.GetBalance(10, "alice", 10); err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if err := l.CancelPayment(10, "alice", paymentID); !errors.Is(err, ErrAlreadyTerminal) {
		t.Fatalf("want ErrAlreadyTerminal, got %v", err)
	}
}

func TestMergeAccountsCombinesState(t *testing.T) {
	l := New(nil)
	mustCreate(t, l, 0, "alice")
	mustCreate(t, l, 0, "bob")
	mustDeposit(t, l, 1, "alice", 100)
	mustDeposit(t, l, 1, "bob", 40)
	if _, err := l.Transfer(2, "bob", "alice", 10); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	if err := l.MergeAccounts(5, "alice", "bob"); err != nil {
		t.Fatalf("merge: %v", err)
	}

	bal, err := l.GetBalance(6, "alice", 6)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if bal != 140 {
		t.Fatalf("alice balance after merge = %d, want 140", bal)
	}

	if _, err := l.Deposit(6, "bob", 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("bob should no longer accept deposits, got err=%v", err)
	}
}

func TestMergeAccountsHistoricalVisibility(t *testing.T) {
	l := New(nil)
	mustCreate(t, l, 0, "alice")
	mustCreate(t, l, 0, "bob")
	mustDeposit(t, l, 1, "bob", 40)

	if err := l.MergeAccounts(10, "alice", "bob"); err != nil {
		t.Fatalf("merge: %v", err)
	}

	// bob is visible up to and including the merge timestamp.
	if _, err := l.GetBalance(11, "bob", 10); err != nil {
		t.Fatalf("bob should be visible at t=10 (merge ts): %v", err)
	}
	// bob disappears strictly after the merge timestamp.
	if _, err := l.GetBalance(11, "bob", 11); !errors.Is(err, ErrNotFound) {
		t.Fatalf("bob should be gone at t=11, got err=%v", err)
	}
}

func TestMergeRehomesPendingPayments(t *testing.T) {
	l := New(nil)
	mustCreate(t, l, 0, "alice")
	mustCreate(t, l, 0, "bob")
	mustDeposit(t, l, 1, "bob", 100)

	paymentID, err := l.SchedulePayment(2, "bob", 30, 50)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if err := l.MergeAccounts(5, "alice", "bob"); err != nil {
		t.Fatalf("merge: %v", err)
	}

	// The payment now debits alice, the new owner, when it comes due.
	bal, err := l.GetBalance(60, "alice", 60)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if bal != 70 { // 100 inherited from bob, minus the 30 rehomed payment
		t.Fatalf("alice balance = %d, want 70", bal)
	}

	if err := l.CancelPayment(60, "alice", paymentID); !errors.Is(err, ErrAlreadyTerminal) {
		t.Fatalf("want ErrAlreadyTerminal (already processed), got %v", err)
	}
}

func TestAccountIDRecycling(t *testing.T) {
	l := New(nil)
	mustCreate(t, l, 0, "alice")
	mustDeposit(t, l, 1, "alice", 100)
	mustCreate(t, l, 2, "shell") // merge target to close "alice"
	if err := l.MergeAccounts(3, "shell", "alice"); err != nil {
		t.Fatalf("merge: %v", err)
	}

	// alice can be recreated after being merged away.
	if err := l.CreateAccount(10, "alice"); err != nil {
		t.Fatalf("recreate alice: %v", err)
	}
	bal, err := l.GetBalance(11, "alice", 11)
	if err != nil || bal != 0 {
		t.Fatalf("new alice balance = %d, %v; want 0, nil", bal, err)
	}

	// The old alice's history at t=1 is still reachable.
	bal, err = l.GetBalance(11, "alice", 1)
	if err != nil || bal != 100 {
		t.Fatalf("historical alice at t=1 = %d, %v; want 100, nil", bal, err)
	}
}

func TestTopSpendersOrdering(t *testing.T) {
	l := New(nil)
	mustCreate(t, l, 0, "alice")
	mustCreate(t, l, 0, "bob")
	mustCreate(t, l, 0, "carol")
	mustDeposit(t, l, 1, "alice", 100)
	mustDeposit(t, l, 1, "bob", 100)
	mustDeposit(t, l, 1, "carol", 100)

	if _, err := l.Transfer(2, "alice", "bob", 50); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if _, err := l.Transfer(2, "carol", "bob", 50); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	top := l.TopSpenders(3, 2)
	if len(top) != 2 {
		t.Fatalf("len(top) = %d, want 2", len(top))
	}
	// alice and carol tie at outgoing_total=50; alice sorts first by id.
	if top[0] != "alice(50)" {
		t.Fatalf("top[0] = %q, want alice(50)", top[0])
	}
}

func TestTopSpendersExcludesInactive(t *testing.T) {
	l := New(nil)
	mustCreate(t, l, 0, "alice")
	mustCreate(t, l, 0, "bob")
	mustDeposit(t, l, 1, "alice", 100)
	if _, err := l.Transfer(2, "alice", "bob", 50); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if err := l.MergeAccounts(3, "bob", "alice"); err != nil {
		t.Fatalf("merge: %v", err)
	}

	top := l.TopSpenders(4, 5)
	for _, s := range top {
		if s == "alice(50)" {
			t.Fatalf("merged-away alice should not appear in TopSpenders, got %v", top)
		}
	}
}

// TestConcurrentDepositsDistinctAccounts exercises S6: many goroutines
// depositing concurrently into distinct accounts must never lose an update.
func TestConcurrentDepositsDistinctAccounts(t *testing.T) {
	l := New(nil)
	const n = 1000
	ids := make([]string, n)
	for i := range ids {
		ids[i] = idFor(i)
		mustCreate(t, l, 0, ids[i])
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id string, ts int64) {
			defer wg.Done()
			if _, err := l.Deposit(ts, id, 7); err != nil {
				t.Errorf("deposit %s: %v", id, err)
			}
		}(ids[i], int64(i+1))
	}
	wg.Wait()

	for _, id := range ids {
		bal, err := l.GetBalance(int64(n+1), id, int64(n+1))
		if err != nil {
			t.Fatalf("get balance %s: %v", id, err)
		}
		if bal != 7 {
			t.Fatalf("balance[%s] = %d, want 7", id, bal)
		}
	}
}

func TestConcurrentTransfersSameAccountPair(t *testing.T) {
	l := New(nil)
	mustCreate(t, l, 0, "alice")
	mustCreate(t, l, 0, "bob")
	mustDeposit(t, l, 1, "alice", 1000)
	mustDeposit(t, l, 1, "bob", 1000)

	var wg sync.WaitGroup
	const rounds = 200
	for i := 0; i < rounds; i++ {
		wg.Add(2)
		ts := int64(i + 2)
		go func(ts int64) {
			defer wg.Done()
			l.Transfer(ts, "alice", "bob", 1)
		}(ts)
		go func(ts int64) {
			defer wg.Done()
			l.Transfer(ts, "bob", "alice", 1)
		}(ts)
	}
	wg.Wait()

	aliceBal, err := l.GetBalance(int64(rounds+3), "alice", int64(rounds+3))
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	bobBal, err := l.GetBalance(int64(rounds+3), "bob", int64(rounds+3))
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if aliceBal+bobBal != 2000 {
		t.Fatalf("total balance = %d, want 2000 (no funds created or destroyed)", aliceBal+bobBal)
	}
}

func mustCreate(t *testing.T, l *Ledger, ts int64, id string) {
	t.Helper()
	if err := l.CreateAccount(ts, id); err != nil {
		t.Fatalf("create %s: %v", id, err)
	}
}

func mustDeposit(t *testing.T, l *Ledger, ts int64, id string, amount int64) {
	t.Helper()
	if _, err := l.Deposit(ts, id, amount); err != nil {
		t.Fatalf("deposit %s: %v", id, err)
	}
}

func idFor(i int) string {
	return "acct-" + itoa(int64(i))
}
