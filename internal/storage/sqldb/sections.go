package sqldb

import (
	"blogpress/internal/storage"
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

func (s *Store) ListSections(ctx context.Context) ([]*storage.Section, error) {
	query := `SELECT section_name, content, updated_at FROM website_content ORDER BY section_name`

	sections := []*storage.Section{}
	if err := s.db.SelectContext(ctx, &sections, query); err != nil {
		return nil, fmt.Errorf("failed to list sections: %w", mapSqlError(err))
	}

	return sections, nil
}

func (s *Store) GetSection(ctx context.Context, name string) (*storage.Section, error) {
	return getSection(ctx, s.db, name)
}

func getSection(ctx context.Context, q sqlx.QueryerContext, name string) (*storage.Section, error) {
	query := `SELECT section_name, content, updated_at FROM website_content WHERE section_name = ? LIMIT 1`

	var section storage.Section
	if err := sqlx.GetContext(ctx, q, &section, query, name); err != nil {
		return nil, fmt.Errorf("cannot find section %q: %w", name, mapSqlError(err))
	}

	return &section, nil
}

// UpsertSection writes content under name, creating the row on first write.
// The dialects disagree on upsert syntax so it runs as read-then-write in one transaction.
func (s *Store) UpsertSection(ctx context.Context, name, content string) (*storage.Section, error) {
	var section *storage.Section
	err := s.WithTx(ctx, func(tx *sqlx.Tx) error {
		now := s.now()

		_, err := getSection(ctx, tx, name)
		switch {
		case err == nil:
			_, err = tx.ExecContext(ctx,
				`UPDATE website_content SET content = ?, updated_at = ? WHERE section_name = ?`,
				content, now, name)
		case errors.Is(err, storage.ErrNotFound):
			_, err = tx.ExecContext(ctx,
				`INSERT INTO website_content (section_name, content, updated_at) VALUES (?, ?, ?)`,
				name, content, now)
		}
		if err != nil {
			return mapSqlError(err)
		}

		section, err = getSection(ctx, tx, name)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("cannot save section %q: %w", name, err)
	}

	return section, nil
}
