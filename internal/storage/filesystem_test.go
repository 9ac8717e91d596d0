package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSystemSecurity(t *testing.T) {
	tempDir := t.TempDir()
	outsideFile := filepath.Join(filepath.Dir(tempDir), "outside.txt")
	require.NoError(t, os.WriteFile(outsideFile, []byte("secret"), 0o644))
	t.Cleanup(func() { os.Remove(outsideFile) })

	fs := NewFileSystem(tempDir)
	ctx := context.Background()

	t.Run("Save prevents directory traversal", func(t *testing.T) {
		tests := []struct {
			name string
			path string
			want bool
		}{
			{"normal path", "test.txt", true},
			{"subdirectory", "subdir/test.txt", true},
			{"dots in name", "notes..txt", true},
			{"parent traversal", "../test.txt", false},
			{"complex traversal", "subdir/../../test.txt", false},
			{"absolute path", "/etc/passwd", false},
			{"hidden traversal", "subdir/../../../etc/passwd", false},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := fs.Save(ctx, tt.path, []byte("test"))
				if tt.want {
					assert.NoError(t, err)
				} else {
					assert.ErrorIs(t, err, ErrInvalidPath)
				}
			})
		}
	})

	t.Run("Load prevents directory traversal", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(tempDir, "valid.txt"), []byte("valid"), 0o644))

		data, err := fs.Load(ctx, "valid.txt")
		require.NoError(t, err)
		assert.Equal(t, "valid", string(data))

		_, err = fs.Load(ctx, "../outside.txt")
		assert.ErrorIs(t, err, ErrInvalidPath)
		_, err = fs.Load(ctx, outsideFile)
		assert.ErrorIs(t, err, ErrInvalidPath)
	})

	t.Run("Load reports missing files", func(t *testing.T) {
		_, err := fs.Load(ctx, "missing.txt")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("List stays inside base", func(t *testing.T) {
		_, err := fs.List(ctx, "../*")
		assert.ErrorIs(t, err, ErrInvalidPath)

		files, err := fs.List(ctx, "subdir/*.txt")
		require.NoError(t, err)
		assert.Equal(t, []string{"subdir/test.txt"}, files)
	})

	t.Run("Exists stays inside base", func(t *testing.T) {
		assert.True(t, fs.Exists(ctx, "test.txt"))
		assert.False(t, fs.Exists(ctx, "missing.txt"))
		assert.False(t, fs.Exists(ctx, "../outside.txt"))
	})
}

func TestMemory(t *testing.T) {
	type item struct{ id, v string }
	m := NewMemory(func(i item) string { return i.id }, item{"b", "1"}, item{"a", "2"})
	m.Put(item{"b", "3"})

	got, ok := m.GetByID("b")
	require.True(t, ok)
	assert.Equal(t, "3", got.v)
	assert.True(t, m.Exists("a"))
	assert.False(t, m.Exists("c"))
	assert.Equal(t, []item{{"b", "3"}, {"a", "2"}}, m.GetAll())
	assert.Equal(t, 2, m.Len())
}
