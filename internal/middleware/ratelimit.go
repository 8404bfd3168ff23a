package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/AnshRaj112/providerhub-backend/internal/apperrors"
	"github.com/AnshRaj112/providerhub-backend/internal/metrics"
	"github.com/AnshRaj112/providerhub-backend/pkg/clientip"
)

// Counter is the fixed-window store behind CounterLimit. services.MemoryCounterStore
// and services.RedisCounterStore implement it.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, error)
}

type CounterLimitConfig struct {
	// Name labels the metric and prefixes the store key.
	Name   string
	Max    int
	Window time.Duration
}

// CounterLimit allows cfg.Max requests per client IP in each cfg.Window and answers 429
// afterwards. A failing store lets requests through.
func CounterLimit(store Counter, cfg CounterLimitConfig, log *logrus.Logger) func(http.Handler) http.Handler {
	limited := apperrors.RateLimited("too many attempts, please try again later")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			count, resetAt, err := store.Incr(r.Context(), cfg.Name+":"+clientip.RealClientIP(r), cfg.Window)
			if err != nil {
				log.WithError(err).WithField("limiter", cfg.Name).Warn("Rate limit store unavailable, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			remaining := cfg.Max - int(count)
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Max))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

			if count > int64(cfg.Max) {
				retryAfter := int(time.Until(resetAt).Seconds()) + 1
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				metrics.RecordRateLimited(cfg.Name)
				apperrors.Write(w, limited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
