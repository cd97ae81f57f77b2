// Command server runs ledgercore's HTTP/WebSocket transport over the
// in-memory ledger core, wired to PostgreSQL (or an in-process fallback)
// for durability and Redis for session bookkeeping. Grounded file-for-file
// on the teacher's cmd/server/main.go wiring sequence.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/atmx/ledgercore/internal/config"
	"github.com/atmx/ledgercore/internal/dispatch"
	"github.com/atmx/ledgercore/internal/fraud"
	"github.com/atmx/ledgercore/internal/journal"
	"github.com/atmx/ledgercore/internal/ledger"
	"github.com/atmx/ledgercore/internal/metrics"
	"github.com/atmx/ledgercore/internal/model"
	"github.com/atmx/ledgercore/internal/session"
	"github.com/atmx/ledgercore/internal/transport"
)

// fanoutSink implements ledger.Sink, forwarding every committed balance
// event to both the durable journal and the WebSocket hub. It exists
// because ledger.Ledger accepts exactly one Sink; cmd/server is the one
// place that needs to send an event to two collaborators at once.
type fanoutSink struct {
	journal journal.Journal
	hub     *transport.Hub
}

func (f fanoutSink) Append(ev model.BalanceEvent) {
	f.journal.Append(ev)
	if f.hub != nil {
		f.hub.Broadcast(transport.WSMessage{
			Type:      "balance_event",
			AccountID: ev.AccountID,
			Ts:        ev.Ts,
			Delta:     ev.Delta,
		})
	}
}

// reportLedgerGauges polls the ledger's account and scheduler backlog sizes
// on an interval and publishes them as Prometheus gauges, since neither is
// naturally observed from a single mutating call the way per-operation
// counters are.
func reportLedgerGauges(ctx context.Context, l *ledger.Ledger) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			active := 0
			for _, a := range l.Snapshot() {
				if a.Active {
					active++
				}
			}
			metrics.ActiveAccounts.Set(float64(active))
			metrics.ScheduledPaymentsPending.Set(float64(l.PendingScheduledPayments()))
		}
	}
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var j journal.Journal
	var cleanup []func()

	if cfg.DB.URL != "" {
		pool, err := pgxpool.New(ctx, cfg.DB.URL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		pj := journal.NewPostgresJournal(pool)
		cleanup = append(cleanup, pj.Close)
		j = pj
		slog.Info("connected to PostgreSQL journal")
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory journal (events will not persist)")
		j = journal.NewMemoryJournal()
	}
	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	var sessions *session.Store
	if cfg.Redis.URL != "" {
		opt, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "err", err)
			os.Exit(1)
		}
		rdb := redis.NewClient(opt)
		defer rdb.Close()
		sessions = session.New(rdb, cfg.Redis.SessionTTL)
		slog.Info("session store backed by Redis")
	} else {
		slog.Warn("REDIS_URL not set, running without session authentication")
	}

	hub := transport.NewHub()
	hubDone := make(chan struct{})
	go hub.Run(hubDone)
	defer close(hubDone)

	l := ledger.New(fanoutSink{journal: j, hub: hub})

	pool := dispatch.New(ctx, cfg.Dispatch.Workers, cfg.Dispatch.QueueDepth)

	go reportLedgerGauges(ctx, l)

	monitor := fraud.NewMonitor()
	monitor.OnAlert(func(tx fraud.Transaction, r fraud.Result) {
		slog.Warn("fraud alert", "account_id", tx.AccountID, "kind", tx.Kind, "risk_score", r.RiskScore, "recommendation", r.Recommendation)
	})

	svc := transport.NewService(l, pool, hub, monitor)

	var validator transport.SessionValidator
	if sessions != nil {
		validator = sessions
	}
	router := transport.NewRouter(svc, validator)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("ledgercore listening", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
	defer cancel()

	slog.Info("shutting down ledgercore...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("ledgercore stopped")
}
