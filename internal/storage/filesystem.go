package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrInvalidPath = errors.New("invalid path")
	ErrNotFound    = errors.New("not found")
)

// FileSystem reads and writes files below a base directory. Paths are always
// relative to that directory and may not escape it.
type FileSystem struct {
	baseDir string
}

// NewFileSystem roots a FileSystem at baseDir.
func NewFileSystem(baseDir string) *FileSystem {
	if abs, err := filepath.Abs(baseDir); err == nil {
		baseDir = abs
	}
	return &FileSystem{baseDir: filepath.Clean(baseDir)}
}

// BaseDir returns the absolute root.
func (f *FileSystem) BaseDir() string { return f.baseDir }

// sanitizePath validates and cleans the path to prevent directory traversal
func (f *FileSystem) sanitizePath(path string) (string, error) {
	cleaned := filepath.Clean(path)

	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q contains parent directory reference", ErrInvalidPath, path)
	}
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("%w: %q is absolute", ErrInvalidPath, path)
	}

	fullPath := filepath.Join(f.baseDir, cleaned)
	if !f.within(fullPath) {
		return "", fmt.Errorf("%w: %q is outside base directory", ErrInvalidPath, path)
	}
	return fullPath, nil
}

func (f *FileSystem) within(fullPath string) bool {
	return fullPath == f.baseDir || strings.HasPrefix(fullPath, f.baseDir+string(filepath.Separator))
}

func (f *FileSystem) Save(_ context.Context, path string, data []byte) error {
	fullPath, err := f.sanitizePath(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}

func (f *FileSystem) Load(_ context.Context, path string) ([]byte, error) {
	fullPath, err := f.sanitizePath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(fullPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// List returns the relative paths matching a glob pattern, sorted.
func (f *FileSystem) List(_ context.Context, pattern string) ([]string, error) {
	cleaned := filepath.Clean(pattern)
	if strings.HasPrefix(cleaned, "..") {
		return nil, fmt.Errorf("%w: pattern %q contains parent directory reference", ErrInvalidPath, pattern)
	}
	if filepath.IsAbs(cleaned) {
		return nil, fmt.Errorf("%w: pattern %q is absolute", ErrInvalidPath, pattern)
	}

	matches, err := filepath.Glob(filepath.Join(f.baseDir, cleaned))
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}

	var results []string
	for _, match := range matches {
		if !f.within(match) {
			continue
		}
		rel, err := filepath.Rel(f.baseDir, match)
		if err != nil {
			continue
		}
		results = append(results, filepath.ToSlash(rel))
	}
	return results, nil
}

func (f *FileSystem) Exists(_ context.Context, path string) bool {
	fullPath, err := f.sanitizePath(path)
	if err != nil {
		return false
	}
	_, err = os.Stat(fullPath)
	return err == nil
}
