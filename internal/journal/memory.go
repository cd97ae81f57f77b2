package journal

import (
	"context"
	"sync"

	"github.com/atmx/ledgercore/internal/model"
)

// MemoryJournal is an in-process, volatile Journal. It is the default when
// cmd/server runs without a configured Postgres URL, and what the journal
// package's own tests exercise.
type MemoryJournal struct {
	mu      sync.Mutex
	seq     int64
	records []Record
}

// NewMemoryJournal creates an empty in-process journal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

func (j *MemoryJournal) Append(ev model.BalanceEvent) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.seq++
	j.records = append(j.records, Record{
		Seq:       j.seq,
		AccountID: ev.AccountID,
		Ts:        ev.Ts,
		Delta:     ev.Delta,
		Event:     ev,
	})
}

func (j *MemoryJournal) Replay(_ context.Context, accountID string) ([]Record, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Record, 0, len(j.records))
	for _, r := range j.records {
		if r.AccountID == accountID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (j *MemoryJournal) Close() {}
