package msgstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// LocalFileStore stores blobs as files under a base directory. Key segments
// become subdirectories.
type LocalFileStore struct {
	basePath string
}

// NewLocalFileStore creates a LocalFileStore rooted at basePath, creating the
// directory if needed.
func NewLocalFileStore(basePath string) (*LocalFileStore, error) {
	if err := os.MkdirAll(basePath, 0o750); err != nil {
		return nil, fmt.Errorf("msgstore: create base directory: %w", err)
	}
	return &LocalFileStore{basePath: basePath}, nil
}

func (s *LocalFileStore) path(key string) (string, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.basePath, filepath.FromSlash(cleaned)), nil
}

// Put writes data atomically: a temp file in the target directory is renamed
// into place. The content type is not persisted locally.
func (s *LocalFileStore) Put(_ context.Context, key, _ string, data []byte) error {
	finalPath, err := s.path(key)
	if err != nil {
		return err
	}
	dir := filepath.Dir(finalPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("msgstore: create key directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(finalPath)+"-*")
	if err != nil {
		return fmt.Errorf("msgstore: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("msgstore: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("msgstore: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, finalPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("msgstore: rename temp file: %w", err)
	}
	return nil
}

// Get reads a blob. Returns ErrNotFound if the key does not exist.
func (s *LocalFileStore) Get(_ context.Context, key string) ([]byte, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("msgstore: read file: %w", err)
	}
	return data, nil
}

// Delete removes a blob. Missing keys are not an error.
func (s *LocalFileStore) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("msgstore: remove file: %w", err)
	}
	return nil
}
