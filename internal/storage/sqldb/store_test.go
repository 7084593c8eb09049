package sqldb

import (
	"blogpress/internal/storage"
	"context"
	"strings"
	"testing"
)

func TestStoreImplementsInterface(t *testing.T) {
	t.Parallel()
	var _ storage.Store = (*Store)(nil)
}

func TestNewStore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		driver  string
		dsn     string
		wantErr bool
	}{
		{name: "sqlite in memory", driver: DriverSQLite, dsn: ":memory:"},
		{name: "unknown driver", driver: "postgres", dsn: "x", wantErr: true},
		{name: "bad mysql dsn", driver: DriverMySQL, dsn: "not a dsn", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store, err := NewStore(tt.driver, tt.dsn)
			if tt.wantErr {
				if err == nil {
					store.Close()
					t.Fatal("expected an error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewStore failed: %v", err)
			}
			defer store.Close()

			if err := store.Ping(context.Background()); err != nil {
				t.Fatalf("Ping failed: %v", err)
			}
		})
	}
}

func TestMigrateTwice(t *testing.T) {
	t.Parallel()
	store := setupTestStore(t)

	if err := store.Migrate(); err != nil {
		t.Fatalf("second Migrate should be a no-op, got %v", err)
	}
}

func TestNormalizeMySQLDSN(t *testing.T) {
	t.Parallel()

	got, err := normalizeMySQLDSN("blog:secret@tcp(db:3306)/blog")
	if err != nil {
		t.Fatalf("normalizeMySQLDSN failed: %v", err)
	}

	for _, want := range []string{"parseTime=true", "multiStatements=true", "clientFoundRows=true", "charset=utf8mb4"} {
		if !strings.Contains(got, want) {
			t.Errorf("normalized dsn %q is missing %q", got, want)
		}
	}
}
