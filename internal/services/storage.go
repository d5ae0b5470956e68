package services

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// ArtifactStore is the binary storage for uploaded resume documents. A ref is
// an opaque string; for the local backend it is a path under the upload root.
type ArtifactStore interface {
	Put(data []byte, filename string) (string, error)
	Get(ref string) ([]byte, error)
	Delete(ref string) bool
	Exists(ref string) bool
}

type localArtifactStore struct {
	uploadPath string
}

// NewLocalArtifactStore builds a filesystem-backed store rooted at uploadPath.
func NewLocalArtifactStore(uploadPath string) (ArtifactStore, error) {
	if err := os.MkdirAll(uploadPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &localArtifactStore{uploadPath: uploadPath}, nil
}

// Put writes data under a uuid-prefixed name so original filenames can never
// collide or traverse outside the root.
func (s *localArtifactStore) Put(data []byte, filename string) (string, error) {
	safeName := fmt.Sprintf("%s_%s", uuid.New().String(), filepath.Base(filename))
	path := filepath.Join(s.uploadPath, safeName)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to save file: %w", err)
	}

	return path, nil
}

func (s *localArtifactStore) Get(ref string) ([]byte, error) {
	data, err := os.ReadFile(ref)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", ref, err)
	}
	return data, nil
}

func (s *localArtifactStore) Delete(ref string) bool {
	return os.Remove(ref) == nil
}

func (s *localArtifactStore) Exists(ref string) bool {
	_, err := os.Stat(ref)
	return err == nil
}
