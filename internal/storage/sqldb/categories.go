package sqldb

import (
	"blogpress/internal/storage"
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// post_count only counts published posts; it is shown on public pages.
const categorySelect = `SELECT c.id, c.name, c.slug, c.created_at,
		(SELECT COUNT(*) FROM blogs AS b WHERE b.category_id = c.id AND b.status = 'published') AS post_count
		FROM categories AS c`

func (s *Store) ListCategories(ctx context.Context) ([]*storage.Category, error) {
	query := categorySelect + "\n\t\tORDER BY c.name ASC"

	categories := []*storage.Category{}
	if err := s.db.SelectContext(ctx, &categories, query); err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", mapSqlError(err))
	}

	return categories, nil
}

func (s *Store) GetCategoryByID(ctx context.Context, id int64) (*storage.Category, error) {
	return getCategory(ctx, s.db, id)
}

func getCategory(ctx context.Context, q sqlx.QueryerContext, id int64) (*storage.Category, error) {
	query := categorySelect + "\n\t\tWHERE c.id = ?"

	var category storage.Category
	if err := sqlx.GetContext(ctx, q, &category, query, id); err != nil {
		return nil, fmt.Errorf("cannot find category id %d: %w", id, mapSqlError(err))
	}

	return &category, nil
}

func (s *Store) CategorySlugExists(ctx context.Context, slug string, excludeID int64) (bool, error) {
	query := `SELECT COUNT(*) FROM categories WHERE slug = ? AND id <> ?`

	var n int64
	if err := s.db.GetContext(ctx, &n, query, slug, excludeID); err != nil {
		return false, fmt.Errorf("cannot check category slug %q: %w", slug, mapSqlError(err))
	}

	return n > 0, nil
}

func (s *Store) CountPostsInCategory(ctx context.Context, categoryID int64) (int64, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM blogs WHERE category_id = ?`, categoryID); err != nil {
		return 0, fmt.Errorf("cannot count posts in category %d: %w", categoryID, mapSqlError(err))
	}

	return n, nil
}

func (s *Store) CreateCategory(ctx context.Context, name, slug string) (*storage.Category, error) {
	var category *storage.Category
	err := s.WithTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO categories (name, slug, created_at) VALUES (?, ?, ?)`,
			name, slug, s.now())
		if err != nil {
			return mapSqlError(err)
		}

		id, err := res.LastInsertId()
		if err != nil {
			return err
		}

		category, err = getCategory(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create category %q: %w", name, err)
	}

	return category, nil
}

func (s *Store) UpdateCategory(ctx context.Context, id int64, name, slug string) (*storage.Category, error) {
	var category *storage.Category
	err := s.WithTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE categories SET name = ?, slug = ? WHERE id = ?`, name, slug, id)
		if err != nil {
			return mapSqlError(err)
		}

		if rows, _ := res.RowsAffected(); rows == 0 {
			return storage.ErrNotFound
		}

		category, err = getCategory(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("cannot update category %d: %w", id, err)
	}

	return category, nil
}

func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("could not delete category: %w", mapSqlError(err))
	}

	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}

	return nil
}
