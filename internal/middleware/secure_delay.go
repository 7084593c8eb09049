package middleware

import (
	"blogpress/internal/telemetry"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SecureDelay holds login responses until at least target has passed, plus
// up to a tenth of target of jitter, so a wrong email and a wrong password
// take the same time to answer.
func SecureDelay(target time.Duration, logger *slog.Logger, metrics *telemetry.Metrics) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			elapsed := time.Since(start)
			outcome := "accepted"
			if wrapped.statusCode >= http.StatusBadRequest {
				outcome = "rejected"
			}
			if metrics != nil {
				metrics.AuthWorkDuration.Record(r.Context(), elapsed.Seconds(),
					metric.WithAttributes(attribute.String("outcome", outcome)))
			}

			if elapsed > target {
				LoggerFrom(r.Context(), logger).Warn("login work outran its padding",
					"elapsed", elapsed, "target", target, "outcome", outcome)
				return
			}

			wait := target - elapsed
			if jitter := int64(target / 10); jitter > 0 {
				wait += time.Duration(rand.Int64N(jitter))
			}

			timer := time.NewTimer(wait)
			defer timer.Stop()

			select {
			case <-r.Context().Done():
			case <-timer.C:
			}
		})
	}
}
