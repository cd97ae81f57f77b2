// Package fraud scores ledger mutations for fraud risk before they commit.
// It is the thin Go seam for the out-of-scope fraud-detection collaborator:
// grounded on the async risk-scoring agent in original_source/ai, but
// thinned to a synchronous, single-call Analyze. The original's lock-free
// queue and dedicated analysis thread exist to keep scoring off a caller's
// hot path when many writers can race; here Analyze runs inline on the
// transport handler's goroutine, under the Monitor's own mutex, before the
// ledger call is submitted to dispatch.
package fraud

import (
	"sync"
)

// Transaction is the fraud-relevant shape of a ledger mutation: deposits
// and transfers are scored, account creation and merges are not (there is
// no amount or counterparty to reason about).
type Transaction struct {
	AccountID string
	Kind      string // "deposit" or "transfer"
	Amount    int64
	Ts        int64
	Location  string // caller-supplied hint, e.g. a request's X-Client-Region header
}

// Result is a risk assessment for one Transaction.
type Result struct {
	RiskScore      float64 // 0.0 to 1.0
	RiskFactors    []string
	Recommendation string // "ALLOW", "REVIEW", "BLOCK"
	Confidence     int    // 0-100
}

// IsFraudulent reports whether the transaction should be blocked outright.
func (r Result) IsFraudulent() bool { return r.RiskScore > 0.7 }

// NeedsReview reports whether the transaction should be allowed but flagged.
func (r Result) NeedsReview() bool { return r.RiskScore > 0.4 && r.RiskScore <= 0.7 }

// Analyzer scores a Transaction for fraud risk. Transport calls Analyze
// synchronously before submitting a deposit or transfer to the ledger.
type Analyzer interface {
	Analyze(tx Transaction) Result
}

// NoopAnalyzer allows every transaction. It is the default collaborator
// when no scoring model is configured, the same role MemoryJournal plays
// for durability when no database is configured.
type NoopAnalyzer struct{}

// Analyze always returns an ALLOW recommendation with zero risk.
func (NoopAnalyzer) Analyze(Transaction) Result {
	return Result{Recommendation: "ALLOW"}
}

// Stats mirrors the original agent's running counters.
type Stats struct {
	TransactionsAnalyzed int64
	FraudAlertsGenerated int64
	AverageRiskScore     float64
}

const (
	defaultAmountAnomalyThreshold      = 3.0   // multiples of an account's running average
	defaultFrequencyAnomalyThreshold   = 5     // transactions per window before it's anomalous
	defaultVelocityThreshold           = 10000 // total minor-unit amount per window
	defaultLocationDiversityThreshold  = 0.8   // distinct locations per transaction in the window
	defaultWindowSeconds               = 3600  // logical-time units, not wall clock
)

type accountHistory struct {
	recent         []Transaction
	totalAmount    int64
	locationCounts map[string]int
}

// Monitor is a stateful Analyzer that scores transactions against each
// account's own recent history, the way the original agent's
// AccountHistory + four calculate*AnomalyScore methods do: an amount score
// (deviation from the account's running average), a frequency score (count
// within the window), a velocity score (total moved within the window),
// and a location score (how unfamiliar the claimed location is).
type Monitor struct {
	mu         sync.Mutex
	histories  map[string]*accountHistory
	onAlert    func(Transaction, Result)
	windowSecs int64

	amountAnomalyThreshold     float64
	frequencyAnomalyThreshold  int
	velocityThreshold          int64
	locationDiversityThreshold float64

	analyzed     int64
	alerts       int64
	totalRiskSum float64
}

// NewMonitor creates a Monitor with the original agent's default
// thresholds.
func NewMonitor() *Monitor {
	return &Monitor{
		histories:                  make(map[string]*accountHistory),
		windowSecs:                 defaultWindowSeconds,
		amountAnomalyThreshold:     defaultAmountAnomalyThreshold,
		frequencyAnomalyThreshold:  defaultFrequencyAnomalyThreshold,
		velocityThreshold:          defaultVelocityThreshold,
		locationDiversityThreshold: defaultLocationDiversityThreshold,
	}
}

// OnAlert registers a callback invoked whenever Analyze produces a
// fraudulent result, mirroring the original's setAlertCallback.
func (m *Monitor) OnAlert(cb func(Transaction, Result)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onAlert = cb
}

// Analyze scores tx against accountID's recent history and updates that
// history with tx before returning.
func (m *Monitor) Analyze(tx Transaction) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.histories[tx.AccountID]
	if !ok {
		h = &accountHistory{locationCounts: make(map[string]int)}
		m.histories[tx.AccountID] = h
	}
	h.evictBefore(tx.Ts - m.windowSecs)

	amountScore := m.amountAnomalyScore(h, tx)
	frequencyScore := m.frequencyAnomalyScore(h, tx)
	velocityScore := m.velocityAnomalyScore(h, tx)
	locationScore := m.locationAnomalyScore(h, tx)

	risk := 0.35*amountScore + 0.25*frequencyScore + 0.25*velocityScore + 0.15*locationScore
	if risk > 1.0 {
		risk = 1.0
	}

	var factors []string
	if amountScore > 0.5 {
		factors = append(factors, "amount deviates sharply from account history")
	}
	if frequencyScore > 0.5 {
		factors = append(factors, "transaction frequency exceeds recent norm")
	}
	if velocityScore > 0.5 {
		factors = append(factors, "cumulative amount moved exceeds velocity threshold")
	}
	if locationScore > 0.5 {
		factors = append(factors, "location unfamiliar for this account")
	}

	result := Result{
		RiskScore:      risk,
		RiskFactors:    factors,
		Confidence:     60 + len(h.recent)*4, // more history, more confidence, capped below
		Recommendation: "ALLOW",
	}
	if result.Confidence > 95 {
		result.Confidence = 95
	}
	switch {
	case result.IsFraudulent():
		result.Recommendation = "BLOCK"
	case result.NeedsReview():
		result.Recommendation = "REVIEW"
	}

	h.record(tx)

	m.analyzed++
	m.totalRiskSum += risk
	if result.IsFraudulent() {
		m.alerts++
		if m.onAlert != nil {
			m.onAlert(tx, result)
		}
	}

	return result
}

// Stats returns a snapshot of the monitor's running counters.
func (m *Monitor) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	avg := 0.0
	if m.analyzed > 0 {
		avg = m.totalRiskSum / float64(m.analyzed)
	}
	return Stats{
		TransactionsAnalyzed: m.analyzed,
		FraudAlertsGenerated: m.alerts,
		AverageRiskScore:     avg,
	}
}

// UpdateModels nudges thresholds toward the observed alert rate, a
// deliberately simple stand-in for the original's simulated model update:
// an unusually high alert rate loosens thresholds (fewer false positives),
// an unusually low one tightens them (catch more).
func (m *Monitor) UpdateModels() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.analyzed < 20 {
		return
	}
	rate := float64(m.alerts) / float64(m.analyzed)
	switch {
	case rate > 0.1:
		m.amountAnomalyThreshold *= 1.05
		m.velocityThreshold = int64(float64(m.velocityThreshold) * 1.05)
	case rate < 0.01:
		m.amountAnomalyThreshold *= 0.97
		m.velocityThreshold = int64(float64(m.velocityThreshold) * 0.97)
	}
}

func (h *accountHistory) evictBefore(cutoff int64) {
	if len(h.recent) == 0 {
		return
	}
	kept := h.recent[:0]
	for _, tx := range h.recent {
		if tx.Ts >= cutoff {
			kept = append(kept, tx)
			continue
		}
		h.totalAmount -= tx.Amount
		if tx.Location != "" {
			h.locationCounts[tx.Location]--
		}
	}
	h.recent = kept
}

func (h *accountHistory) record(tx Transaction) {
	h.recent = append(h.recent, tx)
	h.totalAmount += tx.Amount
	if tx.Location != "" {
		h.locationCounts[tx.Location]++
	}
}

func (m *Monitor) amountAnomalyScore(h *accountHistory, tx Transaction) float64 {
	if len(h.recent) == 0 {
		return 0
	}
	avg := float64(h.totalAmount) / float64(len(h.recent))
	if avg <= 0 {
		return 0
	}
	deviation := float64(tx.Amount) / avg
	if deviation <= 1 {
		return 0
	}
	score := (deviation - 1) / m.amountAnomalyThreshold
	return clamp01(score)
}

func (m *Monitor) frequencyAnomalyScore(h *accountHistory, _ Transaction) float64 {
	if m.frequencyAnomalyThreshold == 0 {
		return 0
	}
	return clamp01(float64(len(h.recent)) / float64(m.frequencyAnomalyThreshold))
}

func (m *Monitor) velocityAnomalyScore(h *accountHistory, tx Transaction) float64 {
	if m.velocityThreshold == 0 {
		return 0
	}
	return clamp01(float64(h.totalAmount+tx.Amount) / float64(m.velocityThreshold))
}

func (m *Monitor) locationAnomalyScore(h *accountHistory, tx Transaction) float64 {
	if tx.Location == "" || len(h.recent) == 0 {
		return 0
	}
	seen := h.locationCounts[tx.Location]
	if seen > 0 {
		return 0
	}
	distinct := len(h.locationCounts)
	diversity := float64(distinct) / float64(len(h.recent)+1)
	if diversity <= m.locationDiversityThreshold {
		return 0
	}
	return clamp01(diversity)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
