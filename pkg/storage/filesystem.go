package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ExportDir stores generated schedule exports on local disk. Files are
// bucketed into YYYYMM subdirectories so that accumulated exports stay
// inspectable and cleanup can prune whole months.
type ExportDir struct {
	baseDir string
}

// NewExportDir ensures the base directory exists and returns a handle.
func NewExportDir(baseDir string) (*ExportDir, error) {
	if baseDir == "" {
		baseDir = "./exports"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create exports directory: %w", err)
	}
	return &ExportDir{baseDir: baseDir}, nil
}

// Save writes the payload under the current month bucket and returns the
// relative path callers must pass to Open and Delete later.
func (s *ExportDir) Save(filename string, data []byte) (string, error) {
	rel := filepath.Join(monthBucket(time.Now().UTC()), filepath.Base(filename))
	path, err := s.resolve(rel)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("prepare export bucket: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write export file: %w", err)
	}
	return rel, nil
}

// Open returns a read-only handle for the stored export.
func (s *ExportDir) Open(relPath string) (*os.File, error) {
	path, err := s.resolve(relPath)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open export file: %w", err)
	}
	return file, nil
}

// Delete removes a stored export if present.
func (s *ExportDir) Delete(relPath string) error {
	path, err := s.resolve(relPath)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete export file: %w", err)
	}
	return nil
}

// CleanupOlderThan removes exports older than the provided TTL, prunes month
// buckets left empty, and returns the deleted relative paths.
func (s *ExportDir) CleanupOlderThan(ttl time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-ttl)
	deleted := make([]string, 0)
	buckets := make([]string, 0)
	err := filepath.WalkDir(s.baseDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != s.baseDir {
				buckets = append(buckets, path)
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		rel, err := filepath.Rel(s.baseDir, path)
		if err != nil {
			rel = path
		}
		deleted = append(deleted, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cleanup exports: %w", err)
	}
	for _, bucket := range buckets {
		// Fails on non-empty buckets, which is exactly what we want.
		_ = os.Remove(bucket)
	}
	return deleted, nil
}

// Path exposes the underlying absolute path (useful for debugging).
func (s *ExportDir) Path(relPath string) string {
	path, err := s.resolve(relPath)
	if err != nil {
		return ""
	}
	return path
}

// resolve joins the relative path under the base dir and rejects anything
// that would escape it.
func (s *ExportDir) resolve(relPath string) (string, error) {
	cleaned := filepath.Clean(relPath)
	if cleaned == "." || filepath.IsAbs(cleaned) || strings.HasPrefix(cleaned, "..") {
		return "", fmt.Errorf("invalid export path %q", relPath)
	}
	return filepath.Join(s.baseDir, cleaned), nil
}

func monthBucket(now time.Time) string {
	return now.Format("200601")
}
