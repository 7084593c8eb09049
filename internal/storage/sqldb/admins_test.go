package sqldb

import (
	"blogpress/internal/storage"
	"context"
	"errors"
	"testing"
)

func TestCreateAdmin(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := setupTestStore(t)

	tests := []struct {
		name    string
		email   string
		hash    string
		wantErr error
	}{
		{name: "valid", email: "Admin@Example.com", hash: gen60CharString()},
		{name: "duplicate with other case", email: "admin@example.COM", hash: gen60CharString(), wantErr: storage.ErrUniqueViolation},
		{name: "short hash", email: "other@example.com", hash: "short", wantErr: storage.ErrCheckViolation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.CreateAdmin(ctx, tt.email, tt.hash)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
		})
	}

	admin, err := store.GetAdminByEmail(ctx, "  ADMIN@example.com ")
	if err != nil {
		t.Fatalf("GetAdminByEmail failed: %v", err)
	}
	if admin.Email != "admin@example.com" {
		t.Errorf("email should be stored lower-cased, got %q", admin.Email)
	}

	byID, err := store.GetAdminByID(ctx, admin.ID)
	if err != nil {
		t.Fatalf("GetAdminByID failed: %v", err)
	}
	if byID.PasswordHash != admin.PasswordHash {
		t.Error("GetAdminByID and GetAdminByEmail disagree")
	}

	if _, err := store.GetAdminByID(ctx, 9999); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("missing admin: got %v, want %v", err, storage.ErrNotFound)
	}
}
