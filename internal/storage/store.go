package storage

import (
	"context"
	"errors"
	"time"
)

type Store interface {
	// posts
	CreatePost(ctx context.Context, p *Post) (*Post, error)
	UpdatePost(ctx context.Context, p *Post) (*Post, error)
	DeletePost(ctx context.Context, id int64) error
	GetPostByID(ctx context.Context, id int64) (*Post, error)
	GetPostBySlug(ctx context.Context, slug string) (*Post, error)
	PostSlugExists(ctx context.Context, slug string, excludeID int64) (bool, error)
	ListPosts(ctx context.Context, f PostFilter) ([]*Post, error)
	CountPosts(ctx context.Context, f PostFilter) (int64, error)
	PostStats(ctx context.Context) (*DashboardStats, error)

	// slug history
	RecordSlugRedirect(ctx context.Context, oldSlug string, postID int64) error
	ResolveSlugRedirect(ctx context.Context, oldSlug string) (int64, error)

	// categories
	CreateCategory(ctx context.Context, name, slug string) (*Category, error)
	UpdateCategory(ctx context.Context, id int64, name, slug string) (*Category, error)
	DeleteCategory(ctx context.Context, id int64) error
	GetCategoryByID(ctx context.Context, id int64) (*Category, error)
	ListCategories(ctx context.Context) ([]*Category, error)
	CategorySlugExists(ctx context.Context, slug string, excludeID int64) (bool, error)
	CountPostsInCategory(ctx context.Context, categoryID int64) (int64, error)

	// website sections
	ListSections(ctx context.Context) ([]*Section, error)
	GetSection(ctx context.Context, name string) (*Section, error)
	UpsertSection(ctx context.Context, name, content string) (*Section, error)

	// admins
	CreateAdmin(ctx context.Context, email, passwordHash string) (*Admin, error)
	GetAdminByID(ctx context.Context, id int64) (*Admin, error)
	GetAdminByEmail(ctx context.Context, email string) (*Admin, error)

	Ping(ctx context.Context) error
	Close() error
}

var (
	ErrNotFound            = errors.New("record not found")
	ErrUniqueViolation     = errors.New("unique constraint violation")
	ErrCheckViolation      = errors.New("check constraint violation")
	ErrForeignKeyViolation = errors.New("foreign key constraint violation")
)

// Status is the publication state of a post. New posts start as drafts.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

// StatusFilter selects posts by status in list and count queries.
// StatusFilterAll disables the status predicate entirely.
type StatusFilter string

const (
	StatusFilterPublished StatusFilter = "published"
	StatusFilterDraft     StatusFilter = "draft"
	StatusFilterAll       StatusFilter = "all"
)

type PostFilter struct {
	Status       StatusFilter
	CategorySlug string
	Offset       int
	Limit        int
}

type Post struct {
	ID              int64     `db:"id" json:"id"`
	Title           string    `db:"title" json:"title"`
	Slug            string    `db:"slug" json:"slug"`
	Description     string    `db:"description" json:"description"`
	Tags            string    `db:"tags" json:"tags"`
	TagList         []string  `db:"-" json:"tag_list"`
	ImageURL        *string   `db:"image_url" json:"image_url"`
	CategoryID      int64     `db:"category_id" json:"category_id"`
	CategoryName    string    `db:"category_name" json:"category_name"`
	CategorySlug    string    `db:"category_slug" json:"category_slug"`
	MetaTitle       string    `db:"meta_title" json:"meta_title"`
	MetaDescription string    `db:"meta_description" json:"meta_description"`
	Status          Status    `db:"status" json:"status"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

type Category struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Slug      string    `db:"slug" json:"slug"`
	PostCount int64     `db:"post_count" json:"post_count"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Section is a named block of editable website text.
type Section struct {
	Name      string    `db:"section_name" json:"section_name"`
	Content   string    `db:"content" json:"content"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

type Admin struct {
	ID           int64     `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

type DashboardStats struct {
	TotalPosts      int64 `db:"total_posts" json:"totalBlogs"`
	PublishedPosts  int64 `db:"published_posts" json:"publishedBlogs"`
	DraftPosts      int64 `db:"draft_posts" json:"draftBlogs"`
	TotalCategories int64 `db:"total_categories" json:"totalCategories"`
}
