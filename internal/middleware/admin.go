package middleware

import (
	"context"
	"net/http"
)

type adminKey struct{}

// WithAdmin marks ctx as carrying an authenticated admin.
func WithAdmin(ctx context.Context, adminID int64) context.Context {
	return context.WithValue(ctx, adminKey{}, adminID)
}

// AdminID returns the admin attached by Authenticate, 0 for public requests.
func AdminID(ctx context.Context) int64 {
	id, _ := ctx.Value(adminKey{}).(int64)
	return id
}

func IsAdmin(ctx context.Context) bool {
	return AdminID(ctx) > 0
}

// Authenticate tags requests whose session belongs to an admin. It must
// run inside the session middleware.
func (s *Sessions) Authenticate() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id := s.AdminID(r.Context()); id > 0 {
				r = r.WithContext(WithAdmin(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin rejects requests Authenticate did not tag.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsAdmin(r.Context()) {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
