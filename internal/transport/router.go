package transport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/atmx/ledgercore/internal/metrics"
)

// NewRouter builds the chi router exposing svc's handlers under /api/v1,
// plus /health and /metrics. Grounded on cmd/server/main.go's middleware
// stack (Logger, Recoverer, RequestID, RealIP, Timeout) and CORS handling.
// Pass a nil validator to run without session authentication.
func NewRouter(svc *Service, validator SessionValidator) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"ledgercore"}`))
	})

	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if svc.hub != nil {
			r.Get("/ws", svc.hub.HandleWS)
		}

		r.Use(RequireSession(validator))

		r.Post("/accounts", svc.CreateAccount)
		r.Post("/accounts/{accountID}/deposit", svc.Deposit)
		r.Get("/accounts/{accountID}/balance", svc.GetBalance)
		r.Post("/accounts/{accountID}/schedule", svc.SchedulePayment)

		r.Post("/transfer", svc.Transfer)
		r.Post("/merge", svc.MergeAccounts)
		r.Post("/payments/{paymentID}/cancel", svc.CancelPayment)

		r.Get("/top-spenders", svc.TopSpenders)
	})

	return r
}
