package middleware

import (
	"log/slog"
	"net/http"
	"net/url"
	"slices"

	"github.com/justinas/nosurf"
)

type CSRF struct {
	isProd         bool
	allowedOrigins []string
}

func NewCSRF(isProd bool, allowedOrigins []string) *CSRF {
	return &CSRF{isProd: isProd, allowedOrigins: allowedOrigins}
}

func (c *CSRF) Middleware(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		csrfHandler := nosurf.New(next)

		csrfHandler.SetBaseCookie(http.Cookie{
			HttpOnly: true,
			Path:     "/",
			Secure:   c.isProd,
			SameSite: http.SameSiteLaxMode,
		})

		// the frontend is served from its own origin
		csrfHandler.SetIsAllowedOriginFunc(func(u *url.URL) bool {
			return slices.Contains(c.allowedOrigins, u.Scheme+"://"+u.Host)
		})

		csrfHandler.SetFailureHandler(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				logger.Warn("CSRF validation failed", "path", r.URL.Path, "ip", r.RemoteAddr, "reason", nosurf.Reason(r))
				writeError(w, http.StatusForbidden, "invalid CSRF token")
			}))

		return csrfHandler
	}
}

// CSRFToken returns the token the client must echo in X-CSRF-Token.
func CSRFToken(r *http.Request) string {
	return nosurf.Token(r)
}
