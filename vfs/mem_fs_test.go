package vfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msg555/beakfs/unix"
)

func TestMemFilesystemBasicTree(t *testing.T) {
	fs := NewMemFilesystem()
	fs.AddDir("/a", FileStat{Mode: 0755})
	fs.AddFile("/a/b.txt", FileStat{Mode: 0644}, []byte("hello"))
	fs.AddSymlink("/a/link", FileStat{Mode: 0777}, "b.txt")

	st, err := fs.Lstat("/a/b.txt")
	require.NoError(t, err)
	assert.True(t, unix.S_ISREG(st.Mode))
	assert.EqualValues(t, 5, st.Size)

	entries, err := fs.Readdir("/a")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "b.txt", entries[0].Name)
	assert.Equal(t, "link", entries[1].Name)

	target, err := fs.Readlink("/a/link")
	require.NoError(t, err)
	assert.Equal(t, "b.txt", target)

	r, err := fs.Open("/a/b.txt")
	require.NoError(t, err)
	defer r.Close()
	buf := make([]byte, 5)
	n, err := r.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
}

func TestMemFilesystemNotFound(t *testing.T) {
	fs := NewMemFilesystem()
	_, err := fs.Lstat("/missing")
	require.Error(t, err)
}

func TestMemFilesystemHardlink(t *testing.T) {
	fs := NewMemFilesystem()
	fs.AddFile("/x", FileStat{Mode: 0644, Ino: 10}, []byte("data"))
	fs.LinkHardlink("/x", "/y")

	stX, err := fs.Lstat("/x")
	require.NoError(t, err)
	stY, err := fs.Lstat("/y")
	require.NoError(t, err)

	assert.EqualValues(t, 2, stX.Nlink)
	assert.EqualValues(t, 2, stY.Nlink)

	ry, err := fs.Open("/y")
	require.NoError(t, err)
	defer ry.Close()
	buf := make([]byte, 4)
	n, err := ry.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "data", string(buf[:n]))
}

func TestMemFilesystemReaddirNotADir(t *testing.T) {
	fs := NewMemFilesystem()
	fs.AddFile("/f", FileStat{Mode: 0644}, []byte("x"))
	_, err := fs.Readdir("/f")
	require.Error(t, err)
}
