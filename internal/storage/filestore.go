package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrTooLarge    = errors.New("file exceeds upload limit")
	ErrInvalidPath = errors.New("path escapes storage root")
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileStore keeps uploaded book files on the local filesystem under Root.
type FileStore struct {
	root     string
	maxBytes int64
}

// NewFileStore creates root if needed. maxBytes <= 0 disables the size limit.
func NewFileStore(root string, maxBytes int64) (*FileStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FileStore{root: abs, maxBytes: maxBytes}, nil
}

// Root returns the absolute storage directory.
func (s *FileStore) Root() string {
	return s.root
}

// Save writes r under a unique name derived from filename and returns the
// relative key to persist.
func (s *FileStore) Save(filename string, r io.Reader) (string, error) {
	key := uuid.NewString() + "_" + sanitize(filename)
	dst := filepath.Join(s.root, key)

	f, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", err
	}

	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	n, copyErr := io.Copy(f, src)
	closeErr := f.Close()
	if copyErr == nil && s.maxBytes > 0 && n > s.maxBytes {
		copyErr = ErrTooLarge
	}
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(dst)
		if copyErr != nil {
			return "", copyErr
		}
		return "", closeErr
	}
	return key, nil
}

// Path resolves a stored key to an absolute path inside the root.
func (s *FileStore) Path(key string) (string, error) {
	if key == "" || key == "." || key == ".." || key != filepath.Base(key) {
		return "", ErrInvalidPath
	}
	return filepath.Join(s.root, key), nil
}

// Remove deletes a stored file. Missing files are not an error.
func (s *FileStore) Remove(key string) error {
	p, err := s.Path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func sanitize(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "book.pdf"
	}
	if len(name) > 100 {
		name = name[len(name)-100:]
	}
	return name
}
