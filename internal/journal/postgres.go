package journal

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atmx/ledgercore/internal/model"
)

// PostgresJournal is the durable Journal backed by PostgreSQL. Append is
// called from inside the ledger's publish path while the calling operation
// still holds its locks, so it must never do the INSERT synchronously: a
// slow or stalled database must not add latency to a core operation. Instead Append enqueues onto a buffered channel and a single
// background goroutine drains it with pgxpool, mirroring how the teacher's
// WSHub.Broadcast enqueues onto a buffered channel rather than writing to
// every socket inline.
type PostgresJournal struct {
	pool *pgxpool.Pool

	queue chan model.BalanceEvent
	done  chan struct{}
	wg    sync.WaitGroup
}

// NewPostgresJournal starts the background writer and returns the journal.
// Call Close during shutdown to drain and stop it.
func NewPostgresJournal(pool *pgxpool.Pool) *PostgresJournal {
	j := &PostgresJournal{
		pool:  pool,
		queue: make(chan model.BalanceEvent, 4096),
		done:  make(chan struct{}),
	}
	j.wg.Add(1)
	go j.run()
	return j
}

func (j *PostgresJournal) run() {
	defer j.wg.Done()
	for {
		select {
		case ev := <-j.queue:
			j.write(ev)
		case <-j.done:
			// Drain whatever is left before exiting.
			for {
				select {
				case ev := <-j.queue:
					j.write(ev)
				default:
					return
				}
			}
		}
	}
}

func (j *PostgresJournal) write(ev model.BalanceEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := j.pool.Exec(ctx,
		`INSERT INTO balance_events (account_id, ts, delta, recorded_at)
		 VALUES ($1, $2, $3, $4)`,
		ev.AccountID, ev.Ts, ev.Delta, time.Now().UTC(),
	)
	if err != nil {
		slog.Error("journal: insert failed", "account_id", ev.AccountID, "err", err)
	}
}

// Append enqueues ev for the background writer. The ledger calls this while
// the operation that produced ev still holds its locks, so Append never
// blocks: a full queue (the database falling behind) drops the event and
// logs rather than stalling the ledger.
func (j *PostgresJournal) Append(ev model.BalanceEvent) {
	select {
	case j.queue <- ev:
	default:
		slog.Warn("journal: queue full, dropping event", "account_id", ev.AccountID)
	}
}

func (j *PostgresJournal) Replay(ctx context.Context, accountID string) ([]Record, error) {
	rows, err := j.pool.Query(ctx,
		`SELECT seq, account_id, ts, delta FROM balance_events WHERE account_id = $1 ORDER BY seq`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", accountID, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Seq, &r.AccountID, &r.Ts, &r.Delta); err != nil {
			return nil, fmt.Errorf("replay %s: %w", accountID, err)
		}
		r.Event = model.BalanceEvent{AccountID: r.AccountID, Ts: r.Ts, Delta: r.Delta}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close signals the background writer to drain and stop, then waits for it.
func (j *PostgresJournal) Close() {
	close(j.done)
	j.wg.Wait()
}
