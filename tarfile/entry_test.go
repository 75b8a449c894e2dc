package tarfile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msg555/beakfs/vfs"
)

func dirEntry(tarPath string) *Entry {
	return NewEntry(nil, "", nil, tarPath, vfs.FileStat{Mode: 0755}, KindDirectory, "")
}

func TestHeaderSizeNoLongNameAt100Bytes(t *testing.T) {
	e := dirEntry(strings.Repeat("a", 100))
	assert.EqualValues(t, 512, e.HeaderSize())
}

func TestHeaderSizeOneLongNameBlockAt101Bytes(t *testing.T) {
	e := dirEntry(strings.Repeat("a", 101))
	// one 'L' header block + one payload block (101 bytes rounds up to
	// one block) + the primary header block.
	assert.EqualValues(t, 3*512, e.HeaderSize())
}

func TestHeaderSizeTwoPayloadBlocksAt613Bytes(t *testing.T) {
	e := dirEntry(strings.Repeat("a", 613))
	// ceil(613/512) == 2 payload blocks, plus the 'L' header and the
	// primary header.
	assert.EqualValues(t, 4*512, e.HeaderSize())
}

func TestRegularEntrySizeAndBlockedSize(t *testing.T) {
	fs := vfs.NewMemFilesystem()
	fs.AddFile("/x", vfs.FileStat{Mode: 0644}, []byte("hello"))
	st, err := fs.Lstat("/x")
	require.NoError(t, err)

	e := NewEntry(fs, "/x", nil, "root/x", st, KindRegular, "")
	assert.EqualValues(t, 512, e.HeaderSize())
	assert.EqualValues(t, 512+5, e.Size())
	assert.EqualValues(t, 1024, e.BlockedSize())
}

func TestEntryCopyHeaderContentAndPad(t *testing.T) {
	fs := vfs.NewMemFilesystem()
	fs.AddFile("/x", vfs.FileStat{Mode: 0644}, []byte("hello"))
	st, err := fs.Lstat("/x")
	require.NoError(t, err)

	e := NewEntry(fs, "/x", nil, "root/x", st, KindRegular, "")
	buf := make([]byte, e.BlockedSize())
	n := e.Copy(buf, 0)
	assert.EqualValues(t, len(buf), n)

	// header occupies the first 512 bytes.
	assert.Equal(t, e.Header(), buf[:512])
	// content starts right after the header.
	assert.Equal(t, "hello", string(buf[512:517]))
	// the rest is NUL padding to the 512 boundary.
	for _, b := range buf[517:] {
		assert.EqualValues(t, 0, b)
	}
}

func TestEntryCopyPartialWindow(t *testing.T) {
	fs := vfs.NewMemFilesystem()
	fs.AddFile("/x", vfs.FileStat{Mode: 0644}, []byte("hello"))
	st, err := fs.Lstat("/x")
	require.NoError(t, err)
	e := NewEntry(fs, "/x", nil, "root/x", st, KindRegular, "")

	buf := make([]byte, 8)
	n := e.Copy(buf, 512)
	assert.Equal(t, 8, n)
	assert.Equal(t, "hello\x00\x00\x00", string(buf))
}

func TestHardlinkRewriteZeroesContent(t *testing.T) {
	fs := vfs.NewMemFilesystem()
	fs.AddFile("/orig", vfs.FileStat{Mode: 0644, Ino: 1}, []byte("data"))
	fs.AddFile("/other", vfs.FileStat{Mode: 0644, Ino: 1}, []byte("data"))
	origStat, _ := fs.Lstat("/orig")
	otherStat, _ := fs.Lstat("/other")

	orig := NewEntry(fs, "/orig", nil, "root/orig", origStat, KindRegular, "")
	link := NewEntry(fs, "/other", nil, "root/other", otherStat, KindRegular, "")

	link.RewriteAsHardlink(orig)
	assert.Equal(t, KindHardlink, link.Kind)
	assert.Equal(t, "root/orig", link.LinkTarget)
	assert.EqualValues(t, 0, link.ContentSize())
	assert.Equal(t, link.HeaderSize(), link.BlockedSize())
}

func TestRemovePrefixRebuildsHeader(t *testing.T) {
	e := dirEntry("storage/sub/dir")
	before := e.Header()
	e.RemovePrefix(len("storage/"))
	assert.Equal(t, "sub/dir", e.TarPath)
	after := e.Header()
	assert.NotEqual(t, before, after)
}

func TestDJB2HashDeterministic(t *testing.T) {
	assert.Equal(t, DJB2Hash("same"), DJB2Hash("same"))
	assert.NotEqual(t, DJB2Hash("a"), DJB2Hash("b"))
}
