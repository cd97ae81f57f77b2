package transport

import (
	"context"
	"net/http"
	"strings"
)

// SessionValidator resolves a bearer token to the account id it was issued
// for. internal/session.Store satisfies this without transport importing
// session directly, avoiding a dependency edge the teacher's packages don't
// have between trade and store either.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (string, error)
}

type callerIDKey struct{}

// CallerID extracts the authenticated caller's account id set by
// RequireSession, if any.
func CallerID(r *http.Request) (string, bool) {
	id, ok := r.Context().Value(callerIDKey{}).(string)
	return id, ok
}

// RequireSession returns middleware that rejects requests without a valid
// "Authorization: Bearer <token>" header. Pass a nil validator to disable
// authentication entirely (e.g. local development without Redis).
func RequireSession(validator SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if validator == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				writeError(w, newCorrelationID(), errUnauthorized)
				return
			}
			accountID, err := validator.Validate(r.Context(), token)
			if err != nil {
				writeError(w, newCorrelationID(), errUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), callerIDKey{}, accountID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
