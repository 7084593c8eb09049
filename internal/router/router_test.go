package router

import (
	"blogpress/internal/cache"
	"blogpress/internal/config"
	"blogpress/internal/content"
	"blogpress/internal/handlers"
	"blogpress/internal/imaging"
	"blogpress/internal/middleware"
	"blogpress/internal/storage"
	"blogpress/internal/storage/sqldb"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2/memstore"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/crypto/bcrypt"
)

func newTestRouter(t *testing.T) (http.Handler, *storage.LocalStore) {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	cfg := config.DefaultConfig()
	cfg.Auth.SecureCookies = false

	store, err := sqldb.NewStore(sqldb.DriverSQLite, filepath.Join(t.TempDir(), "router.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Migrate(); err != nil {
		t.Fatalf("migration failed: %v", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.CreateAdmin(context.Background(), "admin@example.com", string(hash)); err != nil {
		t.Fatal(err)
	}

	local, err := storage.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { local.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	media := content.NewMediaStore(local, imaging.NewPipeline(local), cfg.Uploads.URLPrefix)
	sessions := middleware.NewSessionManager(time.Hour, false, memstore.New())

	h := &handlers.BlogHandler{
		Title:          cfg.App.Name,
		Posts:          content.NewPostService(store, media, cache.Nop{}, logger, nil),
		Categories:     content.NewCategoryService(store, cache.Nop{}, time.Minute, logger),
		Sections:       content.NewSectionService(store, cache.Nop{}, time.Minute, logger),
		Media:          media,
		Admins:         store,
		Sessions:       sessions,
		Logger:         logger,
		Uploads:        local.FS(),
		MaxUploadBytes: cfg.Uploads.MaxBytes,
	}

	r := NewRouter(RouterDependencies{
		Cfg:         cfg,
		Logger:      logger,
		BlogHandler: h,
		Uploads:     local.FS(),
		Limiter:     middleware.NewIPRateLimiter(ctx, 1000, 1000, false, nil),
		AuthLimiter: middleware.NewIPRateLimiter(ctx, 1000, 1000, false, nil),
		Tracer:      noop.NewTracerProvider().Tracer(""),
		Session:     sessions,
		CSRF:        middleware.NewCSRF(false, cfg.HTTP.AllowedOrigins),
		Headers:     middleware.NewSecurityHeaders(false),
	})

	return r, local
}

func TestRouterPublicRoutes(t *testing.T) {
	t.Parallel()

	r, local := newTestRouter(t)

	w, err := local.Create("blogs/photo.png")
	if err != nil {
		t.Fatal(err)
	}
	w.Write([]byte("png bytes"))
	w.Close()

	tests := []struct {
		name     string
		method   string
		target   string
		wantCode int
	}{
		{"healthz", "GET", "/healthz", http.StatusOK},
		{"metrics", "GET", "/metrics", http.StatusOK},
		{"api health", "GET", "/api/health", http.StatusOK},
		{"blog list", "GET", "/api/blogs", http.StatusOK},
		{"categories", "GET", "/api/categories", http.StatusOK},
		{"website content", "GET", "/api/website-content", http.StatusOK},
		{"upload", "GET", "/uploads/blogs/photo.png", http.StatusOK},
		{"upload listing hidden", "GET", "/uploads/blogs/", http.StatusNotFound},
		{"missing upload", "GET", "/uploads/blogs/nope.png", http.StatusNotFound},
		{"unknown route", "GET", "/api/nope", http.StatusNotFound},
		{"stats need admin", "GET", "/api/blogs/stats", http.StatusUnauthorized},
		{"session needs admin", "GET", "/api/admin/session", http.StatusUnauthorized},
		{"writes need csrf", "POST", "/api/categories", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.target, strings.NewReader("{}")))
			if rec.Code != tt.wantCode {
				t.Errorf("got %d, want %d: %s", rec.Code, tt.wantCode, rec.Body)
			}
		})
	}
}

func TestRouterSecurityHeaders(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)

	req := httptest.NewRequest("GET", "/api/blogs", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("got X-Frame-Options %q, want DENY", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("got Access-Control-Allow-Origin %q", got)
	}
}

// TestRouterAdminFlow walks the browser flow: fetch a CSRF token, log in,
// then write with the token and the session cookie.
func TestRouterAdminFlow(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)
	jar := map[string]*http.Cookie{}

	do := func(method, target, body, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("X-CSRF-Token", token)
		}
		for _, c := range jar {
			req.AddCookie(c)
		}

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		for _, c := range rec.Result().Cookies() {
			jar[c.Name] = c
		}
		return rec
	}

	rec := do("GET", "/api/admin/csrf", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("csrf: got %d, want %d", rec.Code, http.StatusOK)
	}
	var tok struct {
		Token string `json:"csrf_token"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&tok); err != nil || tok.Token == "" {
		t.Fatalf("no csrf token in response: %v", err)
	}

	rec = do("POST", "/api/admin/login", `{"email":"admin@example.com","password":"secret"}`, tok.Token)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: got %d, want %d: %s", rec.Code, http.StatusOK, rec.Body)
	}

	rec = do("POST", "/api/categories", `{"name":"Food"}`, tok.Token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create category: got %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body)
	}

	if rec := do("GET", "/api/blogs/stats", "", ""); rec.Code != http.StatusOK {
		t.Errorf("stats: got %d, want %d", rec.Code, http.StatusOK)
	}
}
