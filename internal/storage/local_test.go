package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"strings"
	"testing"
)

func TestLocalStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.Save(ctx, "blogs/a.jpg", strings.NewReader("hello")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	size, err := store.Size("blogs/a.jpg")
	if err != nil {
		t.Fatalf("Size failed: %v", err)
	}
	if size != 5 {
		t.Errorf("Size: got %d, want 5", size)
	}

	if err := store.Rename("blogs/a.jpg", "blogs/b.jpg"); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	if store.Exists(ctx, "blogs/a.jpg") {
		t.Error("old name still exists after rename")
	}

	rc, err := store.Open(ctx, "blogs/b.jpg")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	got, _ := io.ReadAll(rc)
	rc.Close()
	if string(got) != "hello" {
		t.Errorf("content: got %q, want %q", got, "hello")
	}

	if err := store.Delete(ctx, "blogs/b.jpg"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete(ctx, "blogs/b.jpg"); err != nil {
		t.Errorf("second Delete should be a no-op, got %v", err)
	}
	if _, err := store.Size("blogs/b.jpg"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Size after delete: got %v, want fs.ErrNotExist", err)
	}
}

func TestLocalStoreStaysInRoot(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	tests := []struct {
		name string
		key  string
		want string
	}{
		{name: "parent traversal", key: "../../etc/passwd", want: "etc/passwd"},
		{name: "absolute", key: "/blogs/x.png", want: "blogs/x.png"},
		{name: "dot segments", key: "blogs/./../blogs/y.png", want: "blogs/y.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := localName(tt.key); got != tt.want {
				t.Errorf("localName(%q): got %q, want %q", tt.key, got, tt.want)
			}
		})
	}

	if store.Exists(ctx, "../outside") {
		t.Error("Exists reported a file outside the root")
	}
}
