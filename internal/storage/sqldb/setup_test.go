package sqldb

import (
	"blogpress/internal/storage"
	"context"
	"crypto/rand"
	"encoding/base64"
	"path/filepath"
	"testing"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test_blog.db")

	store, err := NewStore(DriverSQLite, dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.Migrate(); err != nil {
		t.Fatalf("migration failed: %v", err)
	}

	return store
}

func gen60CharString() string {
	hashBytes := make([]byte, 45)
	_, _ = rand.Read(hashBytes)
	return base64.RawURLEncoding.EncodeToString(hashBytes)
}

func mustCategory(t *testing.T, s *Store, name, slug string) *storage.Category {
	t.Helper()

	c, err := s.CreateCategory(context.Background(), name, slug)
	if err != nil {
		t.Fatalf("CreateCategory(%q) failed: %v", name, err)
	}
	return c
}

func mustPost(t *testing.T, s *Store, categoryID int64, slug string, status storage.Status) *storage.Post {
	t.Helper()

	p, err := s.CreatePost(context.Background(), &storage.Post{
		Title:       "Title " + slug,
		Slug:        slug,
		Description: "<p>body</p>",
		CategoryID:  categoryID,
		MetaTitle:   "Title " + slug,
		Status:      status,
	})
	if err != nil {
		t.Fatalf("CreatePost(%q) failed: %v", slug, err)
	}
	return p
}
