package storage

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// URLPrefix is the public path under which stored attachments are served.
const URLPrefix = "/uploads"

// AttachmentStore persists task attachments out-of-band and hands back the
// public path plus the original filename to record on the task.
type AttachmentStore interface {
	Save(file *multipart.FileHeader) (path, name string, err error)
	Remove(path string) error
}

// DiskStore writes attachments to a local directory. Files are named
// <unix-millis>-<original-name> so repeated uploads of the same file never
// collide; no deduplication or content inspection happens here.
type DiskStore struct {
	dir string
}

// Ensure DiskStore implements AttachmentStore
var _ AttachmentStore = (*DiskStore)(nil)

// NewDiskStore creates the upload directory if needed and returns a store.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

// Save copies one uploaded file to disk and returns its public path and the
// original filename.
func (s *DiskStore) Save(file *multipart.FileHeader) (string, string, error) {
	src, err := file.Open()
	if err != nil {
		return "", "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	original := filepath.Base(file.Filename)
	stored := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), original)

	dst, err := os.Create(filepath.Join(s.dir, stored))
	if err != nil {
		return "", "", fmt.Errorf("create attachment: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", "", fmt.Errorf("write attachment: %w", err)
	}

	return URLPrefix + "/" + stored, original, nil
}

// Remove deletes a previously stored attachment by its public path. Missing
// files are not an error; the task record is authoritative.
func (s *DiskStore) Remove(path string) error {
	if !strings.HasPrefix(path, URLPrefix+"/") {
		return nil
	}
	stored := strings.TrimPrefix(path, URLPrefix+"/")
	if err := os.Remove(filepath.Join(s.dir, filepath.Base(stored))); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove attachment: %w", err)
	}
	return nil
}
