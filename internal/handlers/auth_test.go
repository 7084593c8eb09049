package handlers

import (
	"blogpress/internal/content"
	"blogpress/internal/middleware"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/crypto/bcrypt"
)

func TestLogin(t *testing.T) {
	t.Parallel()

	e := setup(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.store.CreateAdmin(context.Background(), "admin@example.com", string(hash)); err != nil {
		t.Fatal(err)
	}

	tracer := noop.NewTracerProvider().Tracer("")
	sessions := e.handler.Sessions

	mux := http.NewServeMux()
	mux.Handle("POST /api/admin/login", e.handler.HandleLogin())
	mux.Handle("GET /api/admin/session", middleware.RequireAdmin(e.handler.HandleSession()))
	mux.Handle("POST /api/admin/logout", middleware.RequireAdmin(e.handler.HandleLogout()))
	h := middleware.Chain(mux, sessions.Middleware(discardLogger, tracer), sessions.Authenticate())

	do := func(req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
		for _, c := range cookies {
			req.AddCookie(c)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{"malformed", `{`, http.StatusBadRequest},
		{"missing password", `{"email":"admin@example.com"}`, http.StatusBadRequest},
		{"unknown email", `{"email":"nobody@example.com","password":"correct horse"}`, http.StatusUnauthorized},
		{"wrong password", `{"email":"admin@example.com","password":"battery staple"}`, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		rec := do(httptest.NewRequest("POST", "/api/admin/login", strings.NewReader(tt.body)))
		if rec.Code != tt.wantCode {
			t.Errorf("%s: got %d, want %d", tt.name, rec.Code, tt.wantCode)
		}
	}

	if rec := do(httptest.NewRequest("GET", "/api/admin/session", nil)); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous session: got %d, want %d", rec.Code, http.StatusUnauthorized)
	}

	// email lookup ignores case and surrounding space
	rec := do(httptest.NewRequest("POST", "/api/admin/login", strings.NewReader(`{"email":" Admin@Example.com ","password":"correct horse"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("login: got %d, want %d: %s", rec.Code, http.StatusOK, rec.Body)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Error("login response leaks the password hash")
	}

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "session_id" {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("login did not set a session cookie")
	}

	rec = do(httptest.NewRequest("GET", "/api/admin/session", nil), cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("session: got %d, want %d", rec.Code, http.StatusOK)
	}
	if got := decode[sessionResponse](t, rec.Body); got.Admin == nil || got.Admin.Email != "admin@example.com" {
		t.Errorf("unexpected session %+v", got)
	}

	if rec := do(httptest.NewRequest("POST", "/api/admin/logout", nil), cookie); rec.Code != http.StatusOK {
		t.Fatalf("logout: got %d, want %d", rec.Code, http.StatusOK)
	}
	if rec := do(httptest.NewRequest("GET", "/api/admin/session", nil), cookie); rec.Code != http.StatusUnauthorized {
		t.Errorf("after logout: got %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()

	e := setup(t)

	rec := e.serve(httptest.NewRequest("GET", "/api/health", nil), false)
	if rec.Code != http.StatusOK {
		t.Fatalf("health: got %d, want %d", rec.Code, http.StatusOK)
	}
	if got := decode[healthResponse](t, rec.Body); got.Status != "OK" {
		t.Errorf("got status %q, want OK", got.Status)
	}

	ctx := context.Background()
	for key, body := range map[string]string{
		"blogs/a.png":              "1234",
		"blogs/b.jpg":              "123456",
		"blogs/compressed-c.png":   "12",
		"elsewhere/not-counted.md": "123456789",
	} {
		if err := e.local.Save(ctx, key, strings.NewReader(body)); err != nil {
			t.Fatalf("Save(%q): %v", key, err)
		}
	}

	rec = e.serve(httptest.NewRequest("GET", "/metrics", nil), false)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: got %d, want %d", rec.Code, http.StatusOK)
	}
	got := decode[metricsResponse](t, rec.Body)
	if got.Goroutines == 0 || got.Memory.Heap == "" {
		t.Errorf("metrics missing runtime figures: %+v", got)
	}
	if got.Uploads == nil {
		t.Fatal("metrics missing upload usage")
	}
	want := content.UploadUsage{Files: 2, Bytes: 10, Leftovers: 1}
	if got.Uploads.UploadUsage != want || got.Uploads.Size != "10 B" {
		t.Errorf("got uploads %+v, want %+v (10 B)", *got.Uploads, want)
	}

	e.store.Close()
	if rec := e.serve(httptest.NewRequest("GET", "/api/health", nil), false); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("health with closed db: got %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}

	rec = e.serve(httptest.NewRequest("GET", "/api/unknown", nil), false)
	if rec.Code != http.StatusNotFound || decode[errorResponse](t, rec.Body).Error == "" {
		t.Errorf("unknown route: got %d", rec.Code)
	}
}
