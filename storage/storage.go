// Package storage manages the image directory shared with the
// recognizer service. Both processes mount the same uploads root, so
// images travel between them by filename only.
package storage

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	studentPicsDir = "student_pics"
	classPicsDir   = "class_pics"
)

// Store is a handle on the uploads root.
type Store struct {
	root string
}

// New ensures the uploads layout exists under root and returns a handle.
func New(root string) (*Store, error) {
	for _, dir := range []string{studentPicsDir, classPicsDir} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return &Store{root: root}, nil
}

// Root returns the uploads root path.
func (s *Store) Root() string { return s.root }

// StudentPicsDir returns the directory holding registration images.
func (s *Store) StudentPicsDir() string { return filepath.Join(s.root, studentPicsDir) }

// ClassPicsDir returns the directory holding classroom snapshots.
func (s *Store) ClassPicsDir() string { return filepath.Join(s.root, classPicsDir) }

// SaveStudentImage stores a registration image as <usn>_<uuid><ext> and
// returns the bare filename for the recognizer. The USN prefix is what
// RemoveStudentImages matches on later.
func (s *Store) SaveStudentImage(usn, ext string, r io.Reader) (string, error) {
	ext = normalizeExt(ext)
	name := fmt.Sprintf("%s_%s%s", usn, uuid.New().String(), ext)
	path := filepath.Join(s.StudentPicsDir(), name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return name, nil
}

// RemoveStudentImage deletes a single stored registration image by name.
func (s *Store) RemoveStudentImage(name string) error {
	return os.Remove(filepath.Join(s.StudentPicsDir(), name))
}

// RemoveStudentImages deletes every stored image whose name starts with
// "<usn>_". A missing directory or zero matches is not an error; failed
// removals are logged and skipped. Returns the number of files removed.
func (s *Store) RemoveStudentImages(usn string) int {
	entries, err := os.ReadDir(s.StudentPicsDir())
	if err != nil {
		log.Printf("[storage] list student_pics for %s: %v", usn, err)
		return 0
	}
	prefix := usn + "_"
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		if err := os.Remove(filepath.Join(s.StudentPicsDir(), e.Name())); err != nil {
			log.Printf("[storage] remove %s: %v", e.Name(), err)
			continue
		}
		removed++
	}
	return removed
}

// SaveSnapshot stores classroom snapshot bytes under class_pics with the
// given filename.
func (s *Store) SaveSnapshot(name string, data []byte) error {
	path := filepath.Join(s.ClassPicsDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot %s: %w", name, err)
	}
	return nil
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ".jpg"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
