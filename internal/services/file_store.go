package services

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore removes uploaded files
type FileStore interface {
	Remove(path string) error
}

// LocalFileStore keeps uploads under a directory on local disk
type LocalFileStore struct {
	dir string
}

// NewLocalFileStore creates a file store rooted at dir
func NewLocalFileStore(dir string) *LocalFileStore {
	return &LocalFileStore{dir: dir}
}

// Remove deletes an uploaded file. Paths are resolved inside the upload
// directory and a missing file is not an error.
func (s *LocalFileStore) Remove(path string) error {
	full := filepath.Join(s.dir, filepath.Clean("/"+path))
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove upload %s: %w", path, err)
	}
	return nil
}
