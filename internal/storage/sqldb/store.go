package sqldb

import (
	"blogpress/internal/storage"
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type Store struct {
	db     *sqlx.DB
	driver string
	now    func() time.Time
}

var _ storage.Store = (*Store)(nil)

// NewStore creates a new database store
func NewStore(driver, dsn string) (*Store, error) {
	db, err := NewDB(driver, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, driver: driver, now: utcNow}, nil
}

func utcNow() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Driver reports which SQL dialect the store speaks.
func (s *Store) Driver() string {
	return s.driver
}

// RawDB returns the underlying sql/DB that sqlx uses mostly for session manager
func (s *Store) RawDB() *sql.DB {
	return s.db.DB
}

func (s *Store) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

func mapSqlError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}

	// sqlite specific errors
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return storage.ErrUniqueViolation
		case sqlite3.SQLITE_CONSTRAINT_CHECK, sqlite3.SQLITE_CONSTRAINT_NOTNULL:
			return storage.ErrCheckViolation
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return storage.ErrForeignKeyViolation
		}
	}

	// mysql specific errors
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case 1062: // ER_DUP_ENTRY
			return storage.ErrUniqueViolation
		case 1048, 3819: // ER_BAD_NULL_ERROR, ER_CHECK_CONSTRAINT_VIOLATED
			return storage.ErrCheckViolation
		case 1451, 1452: // ER_ROW_IS_REFERENCED_2, ER_NO_REFERENCED_ROW_2
			return storage.ErrForeignKeyViolation
		}
	}

	return err
}
