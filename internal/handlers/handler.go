package handlers

import (
	"blogpress/internal/content"
	"blogpress/internal/middleware"
	"blogpress/internal/storage"
	"context"
	"io/fs"
	"log/slog"
)

// AdminStore is the part of the store the auth and health handlers use.
type AdminStore interface {
	GetAdminByEmail(ctx context.Context, email string) (*storage.Admin, error)
	GetAdminByID(ctx context.Context, id int64) (*storage.Admin, error)
	Ping(ctx context.Context) error
}

// BlogHandler holds the state shared by every API handler
type BlogHandler struct {
	Title      string
	Posts      *content.PostService
	Categories *content.CategoryService
	Sections   *content.SectionService
	Media      *content.MediaStore
	Admins     AdminStore
	Sessions   *middleware.Sessions
	Logger     *slog.Logger
	// Uploads is the upload store root, measured by /metrics.
	Uploads fs.FS
	// MaxUploadBytes caps the image part of a blog write.
	MaxUploadBytes int64
}
