package iohandle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDirectoryHandleListsDotEntriesFirst(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("y"), 0o644))

	h, err := NewDirectoryHandle(dir)
	require.NoError(t, err)

	var got []string
	for {
		name, ok := h.Readdir()
		if !ok {
			break
		}
		got = append(got, name)
	}
	require.Len(t, got, 4)
	require.Equal(t, ".", got[0])
	require.Equal(t, "..", got[1])
	require.ElementsMatch(t, []string{"a.txt", "b.txt"}, got[2:])
}

func TestDirectoryHandleSeekdirTelldirRewinddir(t *testing.T) {
	dir := t.TempDir()
	h, err := NewDirectoryHandle(dir)
	require.NoError(t, err)

	name, ok := h.Readdir()
	require.True(t, ok)
	require.Equal(t, ".", name)
	mark := h.Telldir()
	require.Equal(t, 1, mark)

	name, ok = h.Readdir()
	require.True(t, ok)
	require.Equal(t, "..", name)

	h.Seekdir(mark)
	name, ok = h.Readdir()
	require.True(t, ok)
	require.Equal(t, "..", name)

	h.Rewinddir()
	name, ok = h.Readdir()
	require.True(t, ok)
	require.Equal(t, ".", name)
}

func TestDirectoryHandleClosedirStopsReaddir(t *testing.T) {
	dir := t.TempDir()
	h, err := NewDirectoryHandle(dir)
	require.NoError(t, err)
	require.NoError(t, h.Closedir())

	_, ok := h.Readdir()
	require.False(t, ok)
}
