package middleware

import (
	"net/http"
	"strconv"

	"github.com/AnshRaj112/providerhub-backend/internal/apperrors"
	"github.com/AnshRaj112/providerhub-backend/internal/metrics"
)

var ErrTooManyMessages = apperrors.RateLimited("you are sending messages too quickly")

// MessageRateLimit throttles message sends per authenticated user. It must run after
// Authenticate; unauthenticated requests pass through to be rejected there.
func MessageRateLimit(l *KeyedLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFrom(r.Context())
			if !ok || r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}
			if !l.Allow(id.UserID.String()) {
				metrics.RecordRateLimited("chat_messages")
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.Burst()))
				w.Header().Set("X-RateLimit-Remaining", "0")
				apperrors.Write(w, ErrTooManyMessages)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
