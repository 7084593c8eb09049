package sqldb

import (
	"blogpress/internal/storage"
	"context"
	"fmt"
	"strings"
)

func (s *Store) CreateAdmin(ctx context.Context, email, passwordHash string) (*storage.Admin, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO admins (email, password_hash, created_at) VALUES (?, ?, ?)`,
		email, passwordHash, s.now())
	if err != nil {
		return nil, fmt.Errorf("cannot create admin %q: %w", email, mapSqlError(err))
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("cannot create admin %q: %w", email, err)
	}

	return s.GetAdminByID(ctx, id)
}

func (s *Store) GetAdminByID(ctx context.Context, id int64) (*storage.Admin, error) {
	query := `SELECT id, email, password_hash, created_at FROM admins WHERE id = ? LIMIT 1`

	var admin storage.Admin
	if err := s.db.GetContext(ctx, &admin, query, id); err != nil {
		return nil, fmt.Errorf("cannot find admin id %d: %w", id, mapSqlError(err))
	}
	return &admin, nil
}

func (s *Store) GetAdminByEmail(ctx context.Context, email string) (*storage.Admin, error) {
	query := `SELECT id, email, password_hash, created_at FROM admins WHERE email = ? LIMIT 1`

	email = strings.ToLower(strings.TrimSpace(email))

	var admin storage.Admin
	if err := s.db.GetContext(ctx, &admin, query, email); err != nil {
		return nil, fmt.Errorf("cannot find admin %q: %w", email, mapSqlError(err))
	}
	return &admin, nil
}
