package middleware

import (
	"blogpress/internal/telemetry"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/netip"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	cleanupFrequency = 1 * time.Minute
	inactiveLimit    = 3 * time.Minute
)

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter hands out one token bucket per client address.
type IPRateLimiter struct {
	ips          map[netip.Addr]*client
	mu           sync.Mutex
	rate         rate.Limit
	burst        int
	trustedProxy bool
	metrics      *telemetry.Metrics
	now          func() time.Time
}

var (
	ErrInvalidIP = errors.New("invalid IP")
)

func NewIPRateLimiter(ctx context.Context, rps float64, burst int, trustedProxy bool, metrics *telemetry.Metrics) *IPRateLimiter {
	l := &IPRateLimiter{
		ips:          make(map[netip.Addr]*client),
		rate:         rate.Limit(rps),
		burst:        burst,
		trustedProxy: trustedProxy,
		metrics:      metrics,
		now:          time.Now,
	}

	// cleanup stale entries
	go l.backgroundCleanup(ctx)
	return l
}

func (i *IPRateLimiter) backgroundCleanup(ctx context.Context) {
	ticker := time.NewTicker(cleanupFrequency)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			i.cleanup()
		}
	}
}

func (i *IPRateLimiter) cleanup() {
	i.mu.Lock()
	defer i.mu.Unlock()

	for ip, client := range i.ips {
		if i.now().Sub(client.lastSeen) > inactiveLimit {
			delete(i.ips, ip)
		}
	}
}

func (i *IPRateLimiter) getLimiter(ip string) (*rate.Limiter, error) {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return nil, ErrInvalidIP
	}
	addr = addr.Unmap()

	i.mu.Lock()
	defer i.mu.Unlock()

	c, ok := i.ips[addr]
	if !ok {
		c = &client{limiter: rate.NewLimiter(i.rate, i.burst)}
		i.ips[addr] = c
	}

	c.lastSeen = i.now()
	return c.limiter, nil
}

func (i *IPRateLimiter) Middleware(logger *slog.Logger) Middleware {
	getClientIP := clientIPFunc(i.trustedProxy)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := getClientIP(r)

			limiter, err := i.getLimiter(ip)
			if err != nil {
				logger.Warn("rejecting request without a usable client address", "remote", r.RemoteAddr)
				writeError(w, http.StatusBadRequest, "invalid ip address")
				return
			}

			if !limiter.Allow() {
				// peek at when the next token is available without consuming it
				reservation := limiter.Reserve()
				delay := reservation.Delay()
				reservation.Cancel()

				retrySeconds := max(1, int(delay.Seconds()))

				if i.metrics != nil {
					i.metrics.RateLimitHitsTotal.Add(r.Context(), 1)
				}

				w.Header().Set("Retry-After", strconv.Itoa(retrySeconds))
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(i.burst))
				w.Header().Set("X-RateLimit-Remaining", "0")

				writeError(w, http.StatusTooManyRequests, "Too many requests, please try again later.")
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(i.burst))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(limiter.Tokens())))
			next.ServeHTTP(w, r)
		})
	}
}
