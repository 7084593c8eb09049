package sqldb

import (
	"blogpress/migrations"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
)

const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// NewDB opens a connection pool for driver. For sqlite dsn is a file path
// (or ":memory:"); for mysql it is a go-sql-driver DSN.
func NewDB(driver, dsn string) (*sqlx.DB, error) {
	switch driver {
	case DriverSQLite:
		return newSQLite(dsn)
	case DriverMySQL:
		return newMySQL(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func newSQLite(path string) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)

	db, err := sqlx.Connect(DriverSQLite, dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open db: %w", err)
	}

	db.SetMaxOpenConns(1) // it's file based...
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return db, nil
}

func newMySQL(dsn string) (*sqlx.DB, error) {
	dsn, err := normalizeMySQLDSN(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Connect(DriverMySQL, dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open db: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// normalizeMySQLDSN forces the options the store relies on: DATETIME columns
// scan into time.Time in UTC, migrations may hold several statements, and
// RowsAffected counts matched rows rather than changed ones.
func normalizeMySQLDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid mysql dsn: %w", err)
	}

	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.MultiStatements = true
	cfg.ClientFoundRows = true
	if cfg.Params == nil {
		cfg.Params = map[string]string{}
	}
	if _, ok := cfg.Params["charset"]; !ok {
		cfg.Params["charset"] = "utf8mb4"
	}

	return cfg.FormatDSN(), nil
}

// Migrate applies the embedded migrations for the store's driver.
func (s *Store) Migrate() error {
	var (
		driver database.Driver
		err    error
	)

	// s.db is *sqlx.DB so s.db.DB is the underlying *sql.DB
	switch s.driver {
	case DriverSQLite:
		driver, err = migratesqlite.WithInstance(s.db.DB, &migratesqlite.Config{})
	case DriverMySQL:
		driver, err = migratemysql.WithInstance(s.db.DB, &migratemysql.Config{})
	default:
		err = fmt.Errorf("unsupported database driver %q", s.driver)
	}
	if err != nil {
		return fmt.Errorf("could not create migrations driver: %w", err)
	}

	src, err := iofs.New(migrations.FS, s.driver)
	if err != nil {
		return fmt.Errorf("could not open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, s.driver, driver)
	if err != nil {
		return fmt.Errorf("migration setup failed: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration exec failed: %w", err)
	}

	return nil
}

// _pragma=foreign_keys(1)        → Enable foreign key constraints
// _pragma=journal_mode(WAL)      → Write-Ahead Logging (better concurrency)
// _pragma=busy_timeout(5000)     → Wait 5s instead of failing on lock contention
