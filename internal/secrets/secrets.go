// Package secrets stores per-org repository access tokens. Rotation is
// delete-then-save; tokens are never mutated in place.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when no token is stored for an org.
var ErrNotFound = errors.New("token not found")

// Store is the credential-persistence contract the provisioner depends on.
type Store interface {
	Save(ctx context.Context, orgID, token string) error
	Get(ctx context.Context, orgID string) (string, error)
	Delete(ctx context.Context, orgID string) error
}

// Compile-time interface satisfaction check.
var _ Store = (*FileStore)(nil)

// FileStore keeps one token file per org under a base directory.
// The directory is 0700 and token files 0600.
type FileStore struct {
	baseDir string
}

// NewFileStore creates the base directory if needed and returns a store.
func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, fmt.Errorf("create secrets directory: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

func (s *FileStore) path(orgID string) (string, error) {
	// Org ids are ULIDs; reject anything that could escape the base dir.
	if orgID == "" || strings.ContainsAny(orgID, `/\`) || strings.Contains(orgID, "..") {
		return "", fmt.Errorf("invalid org id %q", orgID)
	}
	return filepath.Join(s.baseDir, orgID), nil
}

// Save writes the token for an org, replacing any existing one.
func (s *FileStore) Save(_ context.Context, orgID, token string) error {
	p, err := s.path(orgID)
	if err != nil {
		return err
	}
	if err := os.WriteFile(p, []byte(token), 0o600); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}

// Get returns the stored token for an org.
func (s *FileStore) Get(_ context.Context, orgID string) (string, error) {
	p, err := s.path(orgID)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	return string(data), nil
}

// Delete removes the stored token for an org. Deleting a token that does not
// exist is not an error, so rotation works for first-time saves.
func (s *FileStore) Delete(_ context.Context, orgID string) error {
	p, err := s.path(orgID)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}
