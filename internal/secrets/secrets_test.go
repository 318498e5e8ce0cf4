package secrets_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ductile-dev/ductile/internal/model"
	"github.com/ductile-dev/ductile/internal/secrets"
)

func newTestStore(t *testing.T) *secrets.FileStore {
	t.Helper()
	s, err := secrets.NewFileStore(filepath.Join(t.TempDir(), "secrets"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return s
}

func TestSaveAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	orgID := model.NewID()

	if err := s.Save(ctx, orgID, "TOK"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Get(ctx, orgID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "TOK" {
		t.Errorf("token = %q, want %q", got, "TOK")
	}
}

func TestGetMissingToken(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), model.NewID())
	if !errors.Is(err, secrets.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteThenSaveRotation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	orgID := model.NewID()

	// First rotation: delete of a missing token must succeed.
	if err := s.Delete(ctx, orgID); err != nil {
		t.Fatalf("Delete missing: %v", err)
	}
	if err := s.Save(ctx, orgID, "OLD"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Second rotation replaces the token.
	if err := s.Delete(ctx, orgID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Save(ctx, orgID, "NEW"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Get(ctx, orgID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "NEW" {
		t.Errorf("token = %q, want %q", got, "NEW")
	}
}

func TestTokenFilePermissions(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "secrets")
	s, err := secrets.NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()
	orgID := model.NewID()

	if err := s.Save(ctx, orgID, "TOK"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, orgID))
	if err != nil {
		t.Fatalf("Stat token file: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("token file mode = %o, want 600", perm)
	}
}

func TestRejectsPathTraversal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, bad := range []string{"", "../evil", "a/b", `a\b`} {
		if err := s.Save(ctx, bad, "TOK"); err == nil {
			t.Errorf("Save(%q) should fail", bad)
		}
	}
}
