package router

import (
	"blogpress/internal/config"
	"blogpress/internal/handlers"
	"blogpress/internal/middleware"
	"blogpress/internal/telemetry"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
)

const authDelay = 500 * time.Millisecond

// RouterDependencies holds everything needed to register routes.
type RouterDependencies struct {
	Cfg         *config.Config
	Logger      *slog.Logger
	BlogHandler *handlers.BlogHandler
	Uploads     fs.FS // root of the upload store
	Limiter     *middleware.IPRateLimiter
	AuthLimiter *middleware.IPRateLimiter
	Tracer      trace.Tracer
	Metrics     *telemetry.Metrics
	Session     *middleware.Sessions
	CSRF        *middleware.CSRF
	Headers     *middleware.SecurityHeaders
}

func NewRouter(deps RouterDependencies) http.Handler {
	h := deps.BlogHandler
	admin := middleware.RequireAdmin

	appMux := http.NewServeMux()

	// uploaded images
	prefix := deps.Cfg.Uploads.URLPrefix + "/"
	appMux.Handle("GET "+prefix, http.StripPrefix(prefix, noListing(http.FileServerFS(deps.Uploads))))

	authStack := func(next http.Handler) http.Handler {
		next = middleware.SecureDelay(authDelay, deps.Logger, deps.Metrics)(next)
		next = deps.AuthLimiter.Middleware(deps.Logger)(next)
		return next
	}

	appMux.Handle("GET /api/health", h.HandleHealth())

	// auth
	appMux.Handle("GET /api/admin/csrf", h.HandleCSRFToken())
	appMux.Handle("POST /api/admin/login", authStack(h.HandleLogin()))
	appMux.Handle("POST /api/admin/logout", admin(h.HandleLogout()))
	appMux.Handle("GET /api/admin/session", admin(h.HandleSession()))

	// categories
	appMux.Handle("GET /api/categories", h.HandleListCategories())
	appMux.Handle("POST /api/categories", admin(h.HandleCreateCategory()))
	appMux.Handle("PUT /api/categories/{id}", admin(h.HandleUpdateCategory()))
	appMux.Handle("DELETE /api/categories/{id}", admin(h.HandleDeleteCategory()))

	// blogs
	appMux.Handle("GET /api/blogs", h.HandleListBlogs())
	appMux.Handle("GET /api/blogs/stats", admin(h.HandleStats()))
	appMux.Handle("GET /api/blogs/{slug}", h.HandleGetBlog())
	appMux.Handle("POST /api/blogs", admin(h.HandleCreateBlog()))
	appMux.Handle("PUT /api/blogs/{id}", admin(h.HandleUpdateBlog()))
	appMux.Handle("DELETE /api/blogs/{id}", admin(h.HandleDeleteBlog()))

	// website sections
	appMux.Handle("GET /api/website-content", h.HandleWebsiteContent())
	appMux.Handle("GET /api/website-content/{section}", h.HandleGetSection())
	appMux.Handle("PUT /api/website-content", admin(h.HandleUpsertSection()))
	appMux.Handle("PUT /api/website-content/{section}", admin(h.HandleUpsertSection()))

	appMux.Handle("/", h.HandleNotFound())

	middlewareStack := []middleware.Middleware{
		middleware.Recover(deps.Logger),
	}

	if deps.Cfg.Metrics.EnableTelemetry {
		// order matters so don't append
		middlewareStack = append(middlewareStack, middleware.Observability(deps.Tracer, deps.Metrics, deps.Logger))
	}

	middlewareStack = append(middlewareStack,
		deps.Headers.Middleware(),
		middleware.CORS(deps.Cfg.HTTP.AllowedOrigins),
		deps.Limiter.Middleware(deps.Logger),
		deps.Session.Middleware(deps.Logger, deps.Tracer),
		deps.Session.Authenticate(),
		deps.CSRF.Middleware(deps.Logger),
		middleware.Logger(deps.Logger), // Inner logger (shows simple text logs)
	)

	appHandler := middleware.Chain(appMux, middlewareStack...)

	rootMux := http.NewServeMux()

	rootMux.Handle("GET /metrics", h.HandleMetrics())

	// lightweight for docker keepalive
	rootMux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	rootMux.Handle("/", appHandler)

	return rootMux
}

// noListing hides directory indexes of the upload store.
func noListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
