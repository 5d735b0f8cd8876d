package document

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DiskStorage lays content out as <root>/<documentID>/v<version>. Files are
// opened with O_EXCL so an already-written version path can never be
// overwritten, even by a buggy caller.
type DiskStorage struct {
	root string
}

func NewDiskStorage(root string) (*DiskStorage, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &DiskStorage{root: root}, nil
}

func (s *DiskStorage) versionPath(documentID string, version int) string {
	return filepath.Join(s.root, documentID, fmt.Sprintf("v%d", version))
}

func (s *DiskStorage) Save(documentID string, version int, content io.Reader) (string, int64, error) {
	dir := filepath.Join(s.root, documentID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", 0, fmt.Errorf("create document dir: %w", err)
	}

	path := s.versionPath(documentID, version)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return "", 0, fmt.Errorf("create version file: %w", err)
	}

	size, err := io.Copy(f, content)
	if err != nil {
		f.Close()
		os.Remove(path)
		return "", 0, fmt.Errorf("write version content: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", 0, fmt.Errorf("close version file: %w", err)
	}

	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		rel = path
	}
	return rel, size, nil
}

func (s *DiskStorage) Open(documentID string, version int) (io.ReadCloser, error) {
	f, err := os.Open(s.versionPath(documentID, version))
	if err != nil {
		return nil, fmt.Errorf("open version file: %w", err)
	}
	return f, nil
}

// Remove deletes an orphaned version file after a rolled-back transaction.
// It must never be called for a committed version.
func (s *DiskStorage) Remove(documentID string, version int) error {
	return os.Remove(s.versionPath(documentID, version))
}
