package tarfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msg555/beakfs/vfs"
)

func buildTwoFileTar(t *testing.T) (*File, *Entry, *Entry) {
	t.Helper()
	fs := vfs.NewMemFilesystem()
	fs.AddFile("/a/x", vfs.FileStat{Mode: 0644}, []byte("hello"))
	fs.AddFile("/a/y", vfs.FileStat{Mode: 0644}, []byte("abc"))

	stX, err := fs.Lstat("/a/x")
	require.NoError(t, err)
	stY, err := fs.Lstat("/a/y")
	require.NoError(t, err)

	x := NewEntry(fs, "/a/x", nil, "x", stX, KindRegular, "")
	y := NewEntry(fs, "/a/y", nil, "y", stY, KindRegular, "")

	f := NewFile(SmallBucket, 0, []*Entry{x, y})
	return f, x, y
}

func TestFileLayoutOffsetsAreBlockAligned(t *testing.T) {
	f, x, y := buildTwoFileTar(t)
	entries := f.Entries()
	require.Len(t, entries, 2)
	assert.Same(t, x, entries[0])
	assert.Same(t, y, entries[1])

	// x: 512-byte header + 5 bytes content, rounds to two 512 blocks.
	assert.EqualValues(t, 1024, x.BlockedSize())
	// the file is exactly the two entries' blocked sizes laid end to end.
	assert.EqualValues(t, x.BlockedSize()+y.BlockedSize(), f.Size())
}

func TestFileCopyWalksHeadersAndContent(t *testing.T) {
	f, _, _ := buildTwoFileTar(t)

	buf := make([]byte, 512)
	n := f.Copy(buf, 0)
	require.Equal(t, 512, n)
	assert.Equal(t, "x", headerName(t, buf))

	buf = make([]byte, 8)
	n = f.Copy(buf, 512)
	require.Equal(t, 8, n)
	assert.Equal(t, "hello\x00\x00\x00", string(buf))

	buf = make([]byte, 512)
	n = f.Copy(buf, 1024)
	require.Equal(t, 512, n)
	assert.Equal(t, "y", headerName(t, buf))
}

func headerName(t *testing.T, block []byte) string {
	t.Helper()
	end := 0
	for end < 100 && block[end] != 0 {
		end++
	}
	return string(block[:end])
}

func TestFileCopyOffsetAtEndReturnsZero(t *testing.T) {
	f, _, _ := buildTwoFileTar(t)
	buf := make([]byte, 16)
	n := f.Copy(buf, f.Size())
	assert.Equal(t, 0, n)
}

func TestFileCopyClampsToRemainingSize(t *testing.T) {
	f, _, _ := buildTwoFileTar(t)
	buf := make([]byte, 10000)
	n := f.Copy(buf, f.Size()-10)
	assert.Equal(t, 10, n)
}

func TestDataHashStableAcrossRebuilds(t *testing.T) {
	f1, _, _ := buildTwoFileTar(t)
	f2, _, _ := buildTwoFileTar(t)
	assert.Equal(t, f1.ComputeDataHash(), f2.ComputeDataHash())
}

func TestDataHashChangesWithContent(t *testing.T) {
	fs := vfs.NewMemFilesystem()
	fs.AddFile("/a/x", vfs.FileStat{Mode: 0644}, []byte("hello"))
	st, _ := fs.Lstat("/a/x")
	e := NewEntry(fs, "/a/x", nil, "x", st, KindRegular, "")
	f1 := NewFile(SmallBucket, 0, []*Entry{e})
	h1 := f1.ComputeDataHash()

	fs2 := vfs.NewMemFilesystem()
	fs2.AddFile("/a/x", vfs.FileStat{Mode: 0644}, []byte("hellp"))
	st2, _ := fs2.Lstat("/a/x")
	e2 := NewEntry(fs2, "/a/x", nil, "x", st2, KindRegular, "")
	f2 := NewFile(SmallBucket, 0, []*Entry{e2})
	h2 := f2.ComputeDataHash()

	assert.NotEqual(t, h1, h2)
}
