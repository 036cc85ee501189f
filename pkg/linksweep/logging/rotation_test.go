package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotatingWriterCreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "logs", "app.log")
	w, err := NewRotatingWriter(path, RotationConfig{})
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	_, err = w.Write([]byte("hello\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))
}

func TestRotatingWriterSizeRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	w, err := NewRotatingWriter(path, RotationConfig{MaxSize: 32})
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	line := []byte("0123456789abcdef0123456789\n") // 27 bytes
	_, err = w.Write(line)
	require.NoError(t, err)
	// Second write would exceed MaxSize, forcing a rotation first.
	_, err = w.Write(line)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	var rotated int
	for _, e := range entries {
		if e.Name() != "app.log" && strings.HasPrefix(e.Name(), "app.") {
			rotated++
		}
	}
	assert.Equal(t, 1, rotated, "expected one rotated backup")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(line), string(data), "active file holds only the post-rotation write")
}

func TestRotatingWriterAppendsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	w, err := NewRotatingWriter(path, RotationConfig{})
	require.NoError(t, err)
	_, err = w.Write([]byte("first\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	w, err = NewRotatingWriter(path, RotationConfig{})
	require.NoError(t, err)
	_, err = w.Write([]byte("second\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\n", string(data))
}
