package media

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// allowedExtensions are the accepted audio upload formats.
var allowedExtensions = map[string]bool{
	".mp3": true, ".mp4": true, ".m4a": true, ".wav": true, ".aac": true, ".ogg": true,
}

// Store saves uploaded audio under a directory with collision-free names.
type Store struct {
	dir string
}

// NewStore creates the upload directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the upload directory.
func (s *Store) Dir() string { return s.dir }

// AllowedFilename reports whether the original filename has an accepted
// audio extension.
func AllowedFilename(name string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(name))]
}

// ContentTypeFor returns the MIME type for a stored filename.
func ContentTypeFor(name string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// Save writes the upload to disk under a fresh uuid-based name and returns
// the stored name.
func (s *Store) Save(originalName string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	storedName := uuid.New().String() + ext
	dest := filepath.Join(s.dir, storedName)
	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("write file: %w", err)
	}
	return storedName, nil
}

// Path returns the on-disk path for a stored name, rejecting anything that
// escapes the upload directory.
func (s *Store) Path(storedName string) (string, error) {
	if storedName != filepath.Base(storedName) || strings.HasPrefix(storedName, ".") {
		return "", fmt.Errorf("invalid file name")
	}
	p := filepath.Join(s.dir, storedName)
	if _, err := os.Stat(p); err != nil {
		return "", fmt.Errorf("stat file: %w", err)
	}
	return p, nil
}
