package forward

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msg555/beakfs/vfs"
)

// Two small files directly under the scan root produce exactly one
// storage directory, one small-bucket tar, and a manifest index.
func TestTwoSmallFilesOneBucket(t *testing.T) {
	fs := vfs.NewMemFilesystem()
	fs.AddDir("/root", vfs.FileStat{Mode: 0755})
	fs.AddFile("/root/x", vfs.FileStat{Mode: 0644}, []byte("hello"))
	fs.AddFile("/root/y", vfs.FileStat{Mode: 0644}, []byte("abc"))

	cfg := DefaultConfig()
	tree, err := Build(fs, "/root", cfg)
	require.NoError(t, err)

	require.Len(t, tree.SDIndex, 1)
	sd := tree.SDIndex["/"]
	require.NotNil(t, sd)

	br := tree.Bucket["/"]
	require.NotNil(t, br)
	assert.Len(t, br.SmallMed, 1)
	assert.Empty(t, br.Large)

	s := NewServer(tree)
	names, err := s.Readdir("/")
	require.NoError(t, err)
	assert.Contains(t, names, br.SmallMed[0].Name())

	buf, err := s.Read("/"+br.SmallMed[0].Name(), 512, 0)
	require.NoError(t, err)
	require.Len(t, buf, 512)
}

// 1000 1 KiB files with default settings all fall under the small
// threshold and default target size, so the tar count collapses to 1.
func TestOneThousandSmallFilesOneTar(t *testing.T) {
	fs := vfs.NewMemFilesystem()
	fs.AddDir("/root", vfs.FileStat{Mode: 0755})
	content := make([]byte, 1024)
	for i := 0; i < 1000; i++ {
		fs.AddFile(nameFor(i), vfs.FileStat{Mode: 0644}, content)
	}

	cfg := DefaultConfig()
	tree, err := Build(fs, "/root", cfg)
	require.NoError(t, err)

	br := tree.Bucket["/"]
	require.NotNil(t, br)
	assert.Len(t, br.SmallMed, 1)
}

// The same 1000 files with a 10 KiB target size spread across many
// small tars.
func TestSmallTargetSizeSplitsIntoManyTars(t *testing.T) {
	fs := vfs.NewMemFilesystem()
	fs.AddDir("/root", vfs.FileStat{Mode: 0755})
	content := make([]byte, 1024)
	for i := 0; i < 1000; i++ {
		fs.AddFile(nameFor(i), vfs.FileStat{Mode: 0644}, content)
	}

	cfg := DefaultConfig()
	cfg.TargetSize = 10 << 10
	tree, err := Build(fs, "/root", cfg)
	require.NoError(t, err)

	br := tree.Bucket["/"]
	require.NotNil(t, br)
	assert.Greater(t, len(br.SmallMed), 1)
}

func nameFor(i int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	return "/root/" + string(letters[i%26]) + string(rune('0'+i/260)) + string(rune('0'+i/26%10))
}

func TestHardlinkBecomesHeaderOnly(t *testing.T) {
	fs := vfs.NewMemFilesystem()
	fs.AddDir("/root", vfs.FileStat{Mode: 0755})
	fs.AddFile("/root/orig", vfs.FileStat{Mode: 0644, Ino: 42}, []byte("data"))
	fs.LinkHardlink("/root/orig", "/root/other")

	cfg := DefaultConfig()
	tree, err := Build(fs, "/root", cfg)
	require.NoError(t, err)

	br := tree.Bucket["/"]
	require.NotNil(t, br)
	require.Len(t, br.SmallMed, 1)

	found := false
	for _, e := range br.SmallMed[0].Entries() {
		if e.TarPath == "other" {
			found = true
			assert.EqualValues(t, e.HeaderSize(), e.BlockedSize())
		}
	}
	assert.True(t, found)
}

func TestStorageDirectorySelectionByTriggerSize(t *testing.T) {
	fs := vfs.NewMemFilesystem()
	fs.AddDir("/root", vfs.FileStat{Mode: 0755})
	fs.AddDir("/root/a", vfs.FileStat{Mode: 0755})
	fs.AddDir("/root/a/b", vfs.FileStat{Mode: 0755})
	fs.AddDir("/root/a/b/c", vfs.FileStat{Mode: 0755})
	fs.AddFile("/root/a/b/c/big", vfs.FileStat{Mode: 0644}, make([]byte, 1<<20))

	cfg := DefaultConfig()
	cfg.TargetSize = 1 << 10
	cfg.TriggerSize = 1 << 10
	tree, err := Build(fs, "/root", cfg)
	require.NoError(t, err)

	// /root/a/b/c is over the trigger size, so it becomes a storage
	// directory of its own distinct from the root.
	assert.Greater(t, len(tree.SDIndex), 1)

	// The mount exposes each storage directory at its full relative
	// path, so every directory on the way down resolves too.
	s := NewServer(tree)
	names, err := s.Readdir("/")
	require.NoError(t, err)
	assert.Contains(t, names, "a")

	attr, err := s.GetAttr("/a/b")
	require.NoError(t, err)
	assert.True(t, attr.IsDir)

	names, err = s.Readdir("/a/b")
	require.NoError(t, err)
	assert.Contains(t, names, "c")

	names, err = s.Readdir("/a/b/c")
	require.NoError(t, err)
	mani := tree.Mani["/a/b/c"]
	require.NotNil(t, mani)
	assert.Contains(t, names, mani.Name())
}
