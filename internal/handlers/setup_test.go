package handlers

import (
	"blogpress/internal/cache"
	"blogpress/internal/content"
	"blogpress/internal/imaging"
	"blogpress/internal/middleware"
	"blogpress/internal/storage"
	"blogpress/internal/storage/sqldb"
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2/memstore"
)

var discardLogger = slog.New(slog.DiscardHandler)

type testEnv struct {
	store   *sqldb.Store
	local   *storage.LocalStore
	handler *BlogHandler
	mux     *http.ServeMux
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	store, err := sqldb.NewStore(sqldb.DriverSQLite, filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.Migrate(); err != nil {
		t.Fatalf("migration failed: %v", err)
	}

	local, err := storage.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open upload dir: %v", err)
	}
	t.Cleanup(func() { local.Close() })

	media := content.NewMediaStore(local, imaging.NewPipeline(local), "/uploads")
	c := cache.Nop{}

	h := &BlogHandler{
		Title:          "blogpress",
		Posts:          content.NewPostService(store, media, c, discardLogger, nil),
		Categories:     content.NewCategoryService(store, c, time.Minute, discardLogger),
		Sections:       content.NewSectionService(store, c, time.Minute, discardLogger),
		Media:          media,
		Admins:         store,
		Sessions:       middleware.NewSessionManager(time.Hour, false, memstore.New()),
		Logger:         discardLogger,
		Uploads:        local.FS(),
		MaxUploadBytes: 64 << 10,
	}

	// the same patterns the router registers, minus the middleware stack
	mux := http.NewServeMux()
	mux.Handle("GET /api/health", h.HandleHealth())
	mux.Handle("GET /api/categories", h.HandleListCategories())
	mux.Handle("POST /api/categories", h.HandleCreateCategory())
	mux.Handle("PUT /api/categories/{id}", h.HandleUpdateCategory())
	mux.Handle("DELETE /api/categories/{id}", h.HandleDeleteCategory())
	mux.Handle("GET /api/blogs", h.HandleListBlogs())
	mux.Handle("GET /api/blogs/stats", h.HandleStats())
	mux.Handle("GET /api/blogs/{slug}", h.HandleGetBlog())
	mux.Handle("POST /api/blogs", h.HandleCreateBlog())
	mux.Handle("PUT /api/blogs/{id}", h.HandleUpdateBlog())
	mux.Handle("DELETE /api/blogs/{id}", h.HandleDeleteBlog())
	mux.Handle("GET /api/website-content", h.HandleWebsiteContent())
	mux.Handle("GET /api/website-content/{section}", h.HandleGetSection())
	mux.Handle("PUT /api/website-content", h.HandleUpsertSection())
	mux.Handle("PUT /api/website-content/{section}", h.HandleUpsertSection())
	mux.Handle("GET /metrics", h.HandleMetrics())
	mux.Handle("/", h.HandleNotFound())

	return &testEnv{store: store, local: local, handler: h, mux: mux}
}

// serve runs req through the mux, as an admin when admin is set.
func (e *testEnv) serve(req *http.Request, admin bool) *httptest.ResponseRecorder {
	if admin {
		req = req.WithContext(middleware.WithAdmin(req.Context(), 1))
	}
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) category(t *testing.T, name string) *storage.Category {
	t.Helper()

	c, err := e.handler.Categories.Create(context.Background(), name)
	if err != nil {
		t.Fatalf("create category %q: %v", name, err)
	}
	return c
}

func (e *testEnv) post(t *testing.T, categoryID int64, title, status string) *storage.Post {
	t.Helper()

	description := "<p>" + title + "</p>"
	w, err := e.handler.Posts.Create(context.Background(), content.PostInput{
		Title:       &title,
		Description: &description,
		CategoryID:  &categoryID,
		Status:      &status,
	})
	if err != nil {
		t.Fatalf("create post %q: %v", title, err)
	}
	return w.Post
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

type filePart struct {
	name string
	data []byte
}

func multipartRequest(t *testing.T, method, target string, fields map[string]string, file *filePart) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if file != nil {
		fw, err := mw.CreateFormFile("image", file.name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(file.data); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, r io.Reader) T {
	t.Helper()

	var v T
	if err := json.NewDecoder(r).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func gradientPNG(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}
