package rules

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	fileExt        = ".yaml"
	dirPermissions = 0o750
	filePermission = 0o644
)

// Static errors.
var (
	ErrNotFound   = errors.New("rule set not found")
	ErrInvalidKey = errors.New("invalid card key")
)

// FileStore keeps one RuleSet file per card key in a directory. Files are
// re-read on every call so edits take effect on the next request.
type FileStore struct {
	dir string
}

// NewFileStore creates a store rooted at dir. The directory is created lazily.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the store's root directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// Path returns the file location for key. Keys that could escape the
// directory are rejected.
func (s *FileStore) Path(key string) (string, error) {
	if key == "" || key == "." || key == ".." ||
		strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") ||
		strings.ContainsRune(key, 0) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(s.dir, key+fileExt), nil
}

// Exists reports whether a file exists for key.
func (s *FileStore) Exists(key string) bool {
	path, err := s.Path(key)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// ReadRaw returns the file content for key.
func (s *FileStore) ReadRaw(key string) ([]byte, error) {
	path, err := s.Path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read rule set %q: %w", key, err)
	}
	return data, nil
}

// Load reads and parses the RuleSet for key.
func (s *FileStore) Load(key string) (*RuleSet, error) {
	data, err := s.ReadRaw(key)
	if err != nil {
		return nil, err
	}
	rs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("rule set %q: %w", key, err)
	}
	return rs, nil
}

// Save writes rs for key in canonical form. The write goes through a temp
// file and rename so concurrent readers never observe a partial file.
func (s *FileStore) Save(key string, rs *RuleSet) error {
	path, err := s.Path(key)
	if err != nil {
		return err
	}
	data, err := Marshal(rs)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
		return fmt.Errorf("failed to create rule set directory: %w", err)
	}

	tmp := filepath.Join(filepath.Dir(path), "."+key+"."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, data, filePermission); err != nil {
		return fmt.Errorf("failed to write rule set %q: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to commit rule set %q: %w", key, err)
	}
	return nil
}

// EnsureDefault writes the built-in default RuleSet if no default file exists.
func (s *FileStore) EnsureDefault() error {
	if s.Exists(DefaultName) {
		return nil
	}
	return s.Save(DefaultName, Default())
}

// List returns the card keys that have a RuleSet file.
func (s *FileStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list rule sets: %w", err)
	}

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != fileExt {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, fileExt))
	}
	return keys, nil
}
