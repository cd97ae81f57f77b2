package fraud

import "testing"

func TestNoopAnalyzerAlwaysAllows(t *testing.T) {
	var a Analyzer = NoopAnalyzer{}
	result := a.Analyze(Transaction{AccountID: "alice", Kind: "deposit", Amount: 1_000_000, Ts: 1})
	if result.IsFraudulent() || result.NeedsReview() {
		t.Fatalf("expected ALLOW, got %+v", result)
	}
	if result.Recommendation != "ALLOW" {
		t.Fatalf("recommendation = %q, want ALLOW", result.Recommendation)
	}
}

func TestMonitorFlagsAmountFarAboveHistory(t *testing.T) {
	m := NewMonitor()
	for ts := int64(0); ts < 5; ts++ {
		m.Analyze(Transaction{AccountID: "alice", Kind: "deposit", Amount: 100, Ts: ts})
	}

	result := m.Analyze(Transaction{AccountID: "alice", Kind: "deposit", Amount: 100_000, Ts: 5})
	if !result.IsFraudulent() {
		t.Fatalf("expected a deposit 1000x the account's average to be flagged, got %+v", result)
	}
	if result.Recommendation != "BLOCK" {
		t.Fatalf("recommendation = %q, want BLOCK", result.Recommendation)
	}
}

func TestMonitorAllowsSteadyTransactions(t *testing.T) {
	m := NewMonitor()
	var last Result
	for ts := int64(0); ts < 3; ts++ {
		last = m.Analyze(Transaction{AccountID: "bob", Kind: "deposit", Amount: 500, Ts: ts})
	}
	if last.IsFraudulent() {
		t.Fatalf("expected steady deposits to be allowed, got %+v", last)
	}
}

func TestMonitorOnAlertFires(t *testing.T) {
	m := NewMonitor()
	var fired bool
	m.OnAlert(func(tx Transaction, r Result) { fired = true })

	for ts := int64(0); ts < 5; ts++ {
		m.Analyze(Transaction{AccountID: "carol", Kind: "deposit", Amount: 100, Ts: ts})
	}
	m.Analyze(Transaction{AccountID: "carol", Kind: "deposit", Amount: 500_000, Ts: 5})

	if !fired {
		t.Fatal("expected OnAlert callback to fire for a fraudulent transaction")
	}
}

func TestMonitorStatsTrackAnalyzedAndAlerts(t *testing.T) {
	m := NewMonitor()
	for ts := int64(0); ts < 5; ts++ {
		m.Analyze(Transaction{AccountID: "dave", Kind: "deposit", Amount: 100, Ts: ts})
	}
	m.Analyze(Transaction{AccountID: "dave", Kind: "deposit", Amount: 900_000, Ts: 5})

	stats := m.Stats()
	if stats.TransactionsAnalyzed != 6 {
		t.Fatalf("TransactionsAnalyzed = %d, want 6", stats.TransactionsAnalyzed)
	}
	if stats.FraudAlertsGenerated != 1 {
		t.Fatalf("FraudAlertsGenerated = %d, want 1", stats.FraudAlertsGenerated)
	}
}

func TestEvictionDropsTransactionsOutsideWindow(t *testing.T) {
	m := NewMonitor()
	m.windowSecs = 10
	m.Analyze(Transaction{AccountID: "erin", Kind: "deposit", Amount: 100, Ts: 0})

	result := m.Analyze(Transaction{AccountID: "erin", Kind: "deposit", Amount: 100, Ts: 100})
	if result.IsFraudulent() {
		t.Fatalf("expected the first transaction to have aged out of the window, got %+v", result)
	}
	// Only the second transaction is left in the window after eviction.
	if got := len(m.histories["erin"].recent); got != 1 {
		t.Fatalf("len(recent) = %d, want 1 (ts=0 evicted)", got)
	}
}
