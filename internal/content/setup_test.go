package content

import (
	"blogpress/internal/imaging"
	"blogpress/internal/storage"
	"blogpress/internal/storage/sqldb"
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io/fs"
	"log/slog"
	"math/rand/v2"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

var discardLogger = slog.New(slog.DiscardHandler)

type testEnv struct {
	store      *sqldb.Store
	local      *storage.LocalStore
	media      *MediaStore
	mirror     *recordingMirror
	cache      *memCache
	posts      *PostService
	categories *CategoryService
	sections   *SectionService
}

func setup(t *testing.T, opts ...imaging.Option) *testEnv {
	t.Helper()

	store, err := sqldb.NewStore(sqldb.DriverSQLite, filepath.Join(t.TempDir(), "content.db"))
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

	mirror := &recordingMirror{}
	media := NewMediaStore(local, imaging.NewPipeline(local, opts...), "/uploads", WithMirror(mirror))
	c := newMemCache()

	return &testEnv{
		store:      store,
		local:      local,
		media:      media,
		mirror:     mirror,
		cache:      c,
		posts:      NewPostService(store, media, c, nil, nil),
		categories: NewCategoryService(store, c, time.Minute, nil),
		sections:   NewSectionService(store, c, time.Minute, nil),
	}
}

func (e *testEnv) category(t *testing.T, name string) *storage.Category {
	t.Helper()

	c, err := e.categories.Create(context.Background(), name)
	if err != nil {
		t.Fatalf("Create category %q: %v", name, err)
	}
	return c
}

func (e *testEnv) post(t *testing.T, categoryID int64, title, status string) *storage.Post {
	t.Helper()

	w, err := e.posts.Create(context.Background(), PostInput{
		Title:       ptr(title),
		Description: ptr("<p>body</p>"),
		CategoryID:  ptr(categoryID),
		Status:      ptr(status),
	})
	if err != nil {
		t.Fatalf("Create post %q: %v", title, err)
	}
	return w.Post
}

func (e *testEnv) stage(t *testing.T, name string, data []byte) *StagedUpload {
	t.Helper()

	s, err := e.media.Stage(context.Background(), name, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Stage(%q): %v", name, err)
	}
	return s
}

func (e *testEnv) exists(t *testing.T, key string) bool {
	t.Helper()

	_, err := e.local.Size(key)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("Size(%q): %v", key, err)
	}
	return err == nil
}

func ptr[T any](v T) *T { return &v }

// gradientPNG compresses well, so it stays under any sane ceiling.
func gradientPNG(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return encodePNG(t, img)
}

// noisePNG barely compresses at all.
func noisePNG(t *testing.T, w, h int) []byte {
	t.Helper()

	rng := rand.New(rand.NewPCG(1, 2))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(rng.IntN(256))
	}
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	return encodePNG(t, img)
}

func gradientJPEG(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 48, 48))
	for y := range 48 {
		for x := range 48 {
			img.Set(x, y, color.RGBA{R: uint8(x * 5), G: uint8(y * 5), B: 60, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("jpeg.Encode: %v", err)
	}
	return buf.Bytes()
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

type recordingMirror struct {
	mu   sync.Mutex
	jobs []ReplicationJob
}

func (m *recordingMirror) Enqueue(_ context.Context, job ReplicationJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, job)
	return nil
}

func (m *recordingMirror) recorded() []ReplicationJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ReplicationJob(nil), m.jobs...)
}

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{data: map[string][]byte{}}
}

func (m *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Set(_ context.Context, key string, val []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = val
	return nil
}

func (m *memCache) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memCache) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}
