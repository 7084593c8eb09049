package middleware

import (
	"net/http"
	"strings"
)

// SecurityHeaders sets the response headers every API answer carries.
type SecurityHeaders struct {
	isProd bool
	csp    string
}

func NewSecurityHeaders(isProd bool) *SecurityHeaders {
	// the API only ever answers JSON and image files
	directives := []string{
		"default-src 'none'",
		"img-src 'self' data:",
		"frame-ancestors 'none'",
		"base-uri 'none'",
		"form-action 'none'",
	}

	return &SecurityHeaders{
		isProd: isProd,
		csp:    strings.Join(directives, "; "),
	}
}

func (s *SecurityHeaders) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Content-Security-Policy", s.csp)

			if s.isProd {
				h.Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains; preload")
			}

			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			// uploads are embedded by the frontend on another origin
			h.Set("Cross-Origin-Resource-Policy", "cross-origin")

			next.ServeHTTP(w, r)
		})
	}
}
