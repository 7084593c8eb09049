package storage

import (
	"context"
	"io"
)

// Provider is a keyed blob store. Keys are slash separated and relative,
// e.g. "blogs/0193c7e2.jpg".
type Provider interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) bool
	Save(ctx context.Context, key string, body io.ReadSeeker) error
	Delete(ctx context.Context, key string) error
}

var (
	_ Provider = (*LocalStore)(nil)
	_ Provider = (*S3Store)(nil)
)
