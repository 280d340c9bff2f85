package scan

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Previews holds temporary copies of uploaded images. Every Acquire must be
// paired with a Release once the preview is superseded or the session resets.
type Previews interface {
	// Acquire stores data and returns a reference to it
	Acquire(name string, data []byte) (ImageRef, error)

	// Get returns the data behind ref
	Get(ref ImageRef) ([]byte, error)

	// Release frees the preview
	Release(ref ImageRef) error
}

// LocalPreviews implements Previews on the local filesystem
type LocalPreviews struct {
	basePath string
}

// NewLocalPreviews creates a LocalPreviews rooted at basePath
func NewLocalPreviews(basePath string) (*LocalPreviews, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating preview directory: %w", err)
	}
	return &LocalPreviews{basePath: basePath}, nil
}

var (
	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	spaces      = regexp.MustCompile(`\s+`)
)

// sanitizeFilename strips special characters from phone-generated names and truncates them
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	base = unsafeChars.ReplaceAllString(base, "")
	base = spaces.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "image"
	}
	return base + ext
}

// Acquire writes data to a uniquely named file
func (l *LocalPreviews) Acquire(name string, data []byte) (ImageRef, error) {
	filename := fmt.Sprintf("%s_%s", uuid.NewString(), sanitizeFilename(name))
	if err := os.WriteFile(filepath.Join(l.basePath, filename), data, 0600); err != nil {
		return "", fmt.Errorf("writing preview: %w", err)
	}
	return ImageRef(filename), nil
}

// Path returns the filesystem location of ref
func (l *LocalPreviews) Path(ref ImageRef) string {
	return filepath.Join(l.basePath, filepath.Base(string(ref)))
}

// Get reads the preview back
func (l *LocalPreviews) Get(ref ImageRef) ([]byte, error) {
	data, err := os.ReadFile(l.Path(ref))
	if err != nil {
		return nil, fmt.Errorf("reading preview: %w", err)
	}
	return data, nil
}

// Release deletes the preview file
func (l *LocalPreviews) Release(ref ImageRef) error {
	if ref == "" {
		return nil
	}
	if err := os.Remove(l.Path(ref)); err != nil {
		return fmt.Errorf("deleting preview: %w", err)
	}
	return nil
}
