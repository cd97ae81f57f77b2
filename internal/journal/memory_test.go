package journal

import (
	"context"
	"testing"

	"github.com/atmx/ledgercore/internal/model"
)

func TestMemoryJournalReplayOrderAndFilter(t *testing.T) {
	j := NewMemoryJournal()
	j.Append(model.BalanceEvent{AccountID: "alice", Ts: 1, Delta: 100})
	j.Append(model.BalanceEvent{AccountID: "bob", Ts: 1, Delta: 50})
	j.Append(model.BalanceEvent{AccountID: "alice", Ts: 2, Delta: -20})

	records, err := j.Replay(context.Background(), "alice")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	if records[0].Seq >= records[1].Seq {
		t.Fatalf("records out of append order: %+v", records)
	}
	if records[0].Delta != 100 || records[1].Delta != -20 {
		t.Fatalf("unexpected deltas: %+v", records)
	}
}

func TestMemoryJournalReplayEmptyAccount(t *testing.T) {
	j := NewMemoryJournal()
	records, err := j.Replay(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
}
