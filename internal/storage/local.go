package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
)

// LocalStore keeps uploaded files below a single directory. Every operation
// goes through an os.Root so no key can escape basePath.
type LocalStore struct {
	basePath string
	root     *os.Root
}

func NewLocalStorage(basePath string) (*LocalStore, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create upload dir %q: %w", basePath, err)
	}

	root, err := os.OpenRoot(basePath)
	if err != nil {
		return nil, fmt.Errorf("cannot open upload dir %q: %w", basePath, err)
	}

	return &LocalStore{basePath: basePath, root: root}, nil
}

func (l *LocalStore) BasePath() string {
	return l.basePath
}

// FS exposes the root for read-only serving (http.FileServerFS).
func (l *LocalStore) FS() fs.FS {
	return l.root.FS()
}

func (l *LocalStore) Close() error {
	return l.root.Close()
}

func (l *LocalStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	return l.root.Open(localName(key))
}

// Exists takes a key and returns true if the file exists and can be opened
func (l *LocalStore) Exists(_ context.Context, key string) bool {
	f, err := l.root.Open(localName(key))
	if err != nil {
		return false
	}

	defer f.Close()
	return true
}

func (l *LocalStore) Save(_ context.Context, key string, body io.ReadSeeker) error {
	w, err := l.Create(key)
	if err != nil {
		return err
	}

	if _, err := io.Copy(w, body); err != nil {
		w.Close()
		return fmt.Errorf("cannot write %q: %w", key, err)
	}

	return w.Close()
}

// Delete removes key. A key that is already gone is not an error.
func (l *LocalStore) Delete(_ context.Context, key string) error {
	if err := l.root.Remove(localName(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (l *LocalStore) Size(name string) (int64, error) {
	info, err := l.root.Stat(localName(name))
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%q is a directory", name)
	}
	return info.Size(), nil
}

func (l *LocalStore) Create(name string) (io.WriteCloser, error) {
	name = localName(name)

	if dir := filepath.Dir(name); dir != "." {
		if err := l.root.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	return l.root.Create(name)
}

func (l *LocalStore) Remove(name string) error {
	return l.root.Remove(localName(name))
}

func (l *LocalStore) Rename(oldname, newname string) error {
	return l.root.Rename(localName(oldname), localName(newname))
}

func localName(key string) string {
	return filepath.FromSlash(path.Clean("/" + key)[1:])
}
