package middleware

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/alexedwards/scs/v2/memstore"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const adminIDKey = "adminID"

type Sessions struct {
	Manager *scs.SessionManager
}

// SessionStore picks where session data lives: the sessions table for
// sqlite, process memory otherwise.
func SessionStore(driver string, db *sql.DB) scs.Store {
	if driver == "sqlite" && db != nil {
		return sqlite3store.New(db)
	}
	return memstore.New()
}

func NewSessionManager(ttl time.Duration, secure bool, store scs.Store) *Sessions {
	sm := scs.New()

	sm.Lifetime = ttl
	sm.Store = store

	sm.Cookie.Name = "session_id"
	sm.Cookie.HttpOnly = true
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Secure = secure
	sm.Cookie.Persist = true

	return &Sessions{Manager: sm}
}

func (s *Sessions) Middleware(logger *slog.Logger, tracer trace.Tracer) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracer.Start(r.Context(), "middleware.Session")
			defer span.End()

			// tag span with cookie name
			span.SetAttributes(attribute.String("session.cookie", s.Manager.Cookie.Name))

			s.Manager.LoadAndSave(next).ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Login renews the session token and binds the session to an admin.
func (s *Sessions) Login(ctx context.Context, adminID int64) error {
	if err := s.Manager.RenewToken(ctx); err != nil {
		return err
	}
	s.Manager.Put(ctx, adminIDKey, adminID)
	return nil
}

func (s *Sessions) Logout(ctx context.Context) error {
	return s.Manager.Destroy(ctx)
}

// AdminID returns the admin bound to the session, 0 when there is none.
func (s *Sessions) AdminID(ctx context.Context) int64 {
	return s.Manager.GetInt64(ctx, adminIDKey)
}
