package sqldb

import (
	"blogpress/internal/storage"
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

const postColumns = `b.id, b.title, b.slug, b.description, b.tags, b.image_url, b.category_id,
		COALESCE(c.name, '') AS category_name, COALESCE(c.slug, '') AS category_slug,
		b.meta_title, b.meta_description, b.status, b.created_at, b.updated_at`

const postSource = `FROM blogs AS b
		LEFT JOIN categories AS c ON b.category_id = c.id`

// postWhere builds the predicate shared by ListPosts and CountPosts so a page
// and its total can never disagree about which posts are visible.
func postWhere(f storage.PostFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)

	switch f.Status {
	case storage.StatusFilterAll:
	case storage.StatusFilterDraft:
		conds = append(conds, "b.status = ?")
		args = append(args, storage.StatusDraft)
	default:
		conds = append(conds, "b.status = ?")
		args = append(args, storage.StatusPublished)
	}

	if f.CategorySlug != "" {
		conds = append(conds, "c.slug = ?")
		args = append(args, f.CategorySlug)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

func (s *Store) ListPosts(ctx context.Context, f storage.PostFilter) ([]*storage.Post, error) {
	where, args := postWhere(f)

	query := fmt.Sprintf(`SELECT %s
		%s
		%s
		ORDER BY b.created_at DESC, b.id DESC`, postColumns, postSource, where)

	if f.Limit > 0 {
		query += "\n\t\tLIMIT ? OFFSET ?"
		args = append(args, f.Limit, max(f.Offset, 0))
	}

	posts := []*storage.Post{}
	if err := s.db.SelectContext(ctx, &posts, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", mapSqlError(err))
	}

	return posts, nil
}

func (s *Store) CountPosts(ctx context.Context, f storage.PostFilter) (int64, error) {
	where, args := postWhere(f)
	query := fmt.Sprintf("SELECT COUNT(*) %s %s", postSource, where)

	var total int64
	if err := s.db.GetContext(ctx, &total, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count posts: %w", mapSqlError(err))
	}

	return total, nil
}

func (s *Store) GetPostByID(ctx context.Context, id int64) (*storage.Post, error) {
	return getPost(ctx, s.db, "b.id = ?", id)
}

func (s *Store) GetPostBySlug(ctx context.Context, slug string) (*storage.Post, error) {
	return getPost(ctx, s.db, "b.slug = ?", slug)
}

func getPost(ctx context.Context, q sqlx.QueryerContext, cond string, arg any) (*storage.Post, error) {
	query := fmt.Sprintf(`SELECT %s
		%s
		WHERE %s
		LIMIT 1`, postColumns, postSource, cond)

	var post storage.Post
	if err := sqlx.GetContext(ctx, q, &post, query, arg); err != nil {
		return nil, fmt.Errorf("cannot find post %v: %w", arg, mapSqlError(err))
	}

	return &post, nil
}

// PostSlugExists reports whether a post other than excludeID already uses slug.
// Pass excludeID 0 when no post should be excluded.
func (s *Store) PostSlugExists(ctx context.Context, slug string, excludeID int64) (bool, error) {
	query := `SELECT COUNT(*) FROM blogs WHERE slug = ? AND id <> ?`

	var n int64
	if err := s.db.GetContext(ctx, &n, query, slug, excludeID); err != nil {
		return false, fmt.Errorf("cannot check slug %q: %w", slug, mapSqlError(err))
	}

	return n > 0, nil
}

func (s *Store) CreatePost(ctx context.Context, p *storage.Post) (*storage.Post, error) {
	query := `INSERT INTO blogs
		(title, slug, description, tags, image_url, category_id, meta_title, meta_description, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	now := s.now()

	var post *storage.Post
	err := s.WithTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, query,
			p.Title, p.Slug, p.Description, p.Tags, p.ImageURL, p.CategoryID,
			p.MetaTitle, p.MetaDescription, p.Status, now, now)
		if err != nil {
			return mapSqlError(err)
		}

		id, err := res.LastInsertId()
		if err != nil {
			return err
		}

		post, err = getPost(ctx, tx, "b.id = ?", id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("could not create post %q: %w", p.Slug, err)
	}

	return post, nil
}

func (s *Store) UpdatePost(ctx context.Context, p *storage.Post) (*storage.Post, error) {
	query := `UPDATE blogs SET
		title = ?, slug = ?, description = ?, tags = ?, image_url = ?, category_id = ?,
		meta_title = ?, meta_description = ?, status = ?, updated_at = ?
		WHERE id = ?`

	var post *storage.Post
	err := s.WithTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, query,
			p.Title, p.Slug, p.Description, p.Tags, p.ImageURL, p.CategoryID,
			p.MetaTitle, p.MetaDescription, p.Status, s.now(), p.ID)
		if err != nil {
			return mapSqlError(err)
		}

		if rows, _ := res.RowsAffected(); rows == 0 {
			return storage.ErrNotFound
		}

		post, err = getPost(ctx, tx, "b.id = ?", p.ID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("could not update post %d: %w", p.ID, err)
	}

	return post, nil
}

func (s *Store) DeletePost(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM blogs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("could not delete post: %w", mapSqlError(err))
	}

	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}

	return nil
}

func (s *Store) PostStats(ctx context.Context) (*storage.DashboardStats, error) {
	query := `SELECT
		COUNT(*) AS total_posts,
		COALESCE(SUM(CASE WHEN status = 'published' THEN 1 ELSE 0 END), 0) AS published_posts,
		COALESCE(SUM(CASE WHEN status = 'draft' THEN 1 ELSE 0 END), 0) AS draft_posts,
		(SELECT COUNT(*) FROM categories) AS total_categories
		FROM blogs`

	var stats storage.DashboardStats
	if err := s.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("could not compute stats: %w", mapSqlError(err))
	}

	return &stats, nil
}

// RecordSlugRedirect points oldSlug at postID, replacing any earlier owner.
func (s *Store) RecordSlugRedirect(ctx context.Context, oldSlug string, postID int64) error {
	err := s.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM blog_slug_history WHERE old_slug = ?`, oldSlug); err != nil {
			return mapSqlError(err)
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO blog_slug_history (old_slug, blog_id, created_at) VALUES (?, ?, ?)`,
			oldSlug, postID, s.now())
		return mapSqlError(err)
	})
	if err != nil {
		return fmt.Errorf("could not record slug redirect %q: %w", oldSlug, err)
	}

	return nil
}

func (s *Store) ResolveSlugRedirect(ctx context.Context, oldSlug string) (int64, error) {
	var id int64
	err := s.db.GetContext(ctx, &id, `SELECT blog_id FROM blog_slug_history WHERE old_slug = ? LIMIT 1`, oldSlug)
	if err != nil {
		return 0, fmt.Errorf("no redirect for %q: %w", oldSlug, mapSqlError(err))
	}

	return id, nil
}
