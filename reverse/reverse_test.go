package reverse

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msg555/beakfs/forward"
	"github.com/msg555/beakfs/tarfile"
	"github.com/msg555/beakfs/vfs"
)

func physJoin(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return dir + "/" + name
}

// materialize copies a forward.Tree's synthesized tar/manifest files into
// backing at each storage directory's scan-relative path, the same
// physical layout a real `cp -a` of a forward mount would produce (and
// the one the reverse Tree assumes).
func materialize(t *forward.Tree, sd *forward.StorageDir, backing *vfs.MemFilesystem) {
	physDir := sd.Entry.Path.String()
	if physDir != "/" {
		backing.AddDir(physDir, vfs.FileStat{Mode: 0755})
	}

	write := func(f *tarfile.File) {
		if f == nil {
			return
		}
		buf := make([]byte, f.Size())
		f.Copy(buf, 0)
		backing.AddFile(physJoin(physDir, f.Name()), vfs.FileStat{Mode: 0644, Mtime: vfs.Timespec{Sec: 1}}, buf)
	}

	key := sd.Entry.Path.String()
	if br, ok := t.Bucket[key]; ok {
		write(br.DirTar)
		for _, f := range br.SmallMed {
			write(f)
		}
		for _, f := range br.Large {
			write(f)
		}
	}
	write(t.Mani[key])

	for _, sub := range sd.SubDirs {
		materialize(t, sub, backing)
	}
}

// buildBacking scans source through forward.Build and writes the result
// into a fresh MemFilesystem standing in for the destination directory a
// `cp -a` of a forward mount would produce.
func buildBacking(t *testing.T, source *vfs.MemFilesystem, root string, cfg forward.Config) *vfs.MemFilesystem {
	ft, err := forward.Build(source, root, cfg)
	require.NoError(t, err)

	backing := vfs.NewMemFilesystem()
	materialize(ft, ft.SDIndex[ft.Root.Path.String()], backing)
	return backing
}

func TestRoundTripFlatFiles(t *testing.T) {
	source := vfs.NewMemFilesystem()
	source.AddDir("/root", vfs.FileStat{Mode: 0755})
	source.AddFile("/root/x", vfs.FileStat{Mode: 0644, Uid: 1000, Gid: 1000}, []byte("hello"))
	source.AddFile("/root/y", vfs.FileStat{Mode: 0600}, []byte("world!!"))

	backing := buildBacking(t, source, "/root", forward.DefaultConfig())

	tree := NewTree(backing, Config{})
	srv := NewServer(tree)

	attr, err := srv.GetAttr("/x")
	require.NoError(t, err)
	assert.EqualValues(t, 5, attr.Size)
	assert.EqualValues(t, os.Geteuid(), attr.Uid)
	assert.EqualValues(t, os.Getegid(), attr.Gid)

	buf, err := srv.Read("/x", 512, 0)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf))

	buf, err = srv.Read("/y", 512, 0)
	require.NoError(t, err)
	assert.Equal(t, "world!!", string(buf))

	entries, err := srv.Readdir("/")
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	assert.Contains(t, names, "x")
	assert.Contains(t, names, "y")
	assert.Contains(t, names, ".")
	assert.Contains(t, names, "..")
}

func TestRoundTripSymlink(t *testing.T) {
	source := vfs.NewMemFilesystem()
	source.AddDir("/root", vfs.FileStat{Mode: 0755})
	source.AddFile("/root/target", vfs.FileStat{Mode: 0644}, []byte("data"))
	source.AddSymlink("/root/link", vfs.FileStat{Mode: 0777}, "target")

	backing := buildBacking(t, source, "/root", forward.DefaultConfig())

	srv := NewServer(NewTree(backing, Config{}))
	target, err := srv.Readlink("/link")
	require.NoError(t, err)
	assert.Equal(t, "target", target)
}

func TestRoundTripHardlink(t *testing.T) {
	source := vfs.NewMemFilesystem()
	source.AddDir("/root", vfs.FileStat{Mode: 0755})
	source.AddFile("/root/orig", vfs.FileStat{Mode: 0644, Ino: 7}, []byte("shared content"))
	source.LinkHardlink("/root/orig", "/root/other")

	backing := buildBacking(t, source, "/root", forward.DefaultConfig())

	srv := NewServer(NewTree(backing, Config{}))

	buf, err := srv.Read("/other", 512, 0)
	require.NoError(t, err)
	assert.Equal(t, "shared content", string(buf))

	attr, err := srv.GetAttr("/other")
	require.NoError(t, err)
	assert.EqualValues(t, len("shared content"), attr.Size)
}

// A hard link whose target lives under a different storage directory is
// hoisted into their common ancestor's manifest; both names must still
// resolve and read the shared bytes.
func TestRoundTripHardlinkAcrossStorageDirs(t *testing.T) {
	source := vfs.NewMemFilesystem()
	source.AddDir("/root", vfs.FileStat{Mode: 0755})
	source.AddDir("/root/d1", vfs.FileStat{Mode: 0755})
	source.AddDir("/root/d2", vfs.FileStat{Mode: 0755})
	source.AddFile("/root/d1/first", vfs.FileStat{Mode: 0644, Ino: 9}, []byte("shared bytes"))
	source.LinkHardlink("/root/d1/first", "/root/d2/second")

	backing := buildBacking(t, source, "/root", forward.DefaultConfig())

	srv := NewServer(NewTree(backing, Config{}))

	buf, err := srv.Read("/d1/first", 512, 0)
	require.NoError(t, err)
	assert.Equal(t, "shared bytes", string(buf))

	buf, err = srv.Read("/d2/second", 512, 0)
	require.NoError(t, err)
	assert.Equal(t, "shared bytes", string(buf))

	entries, err := srv.Readdir("/d2")
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	assert.Contains(t, names, "second")
}

func TestRoundTripNestedStorageDirectory(t *testing.T) {
	source := vfs.NewMemFilesystem()
	source.AddDir("/root", vfs.FileStat{Mode: 0755})
	source.AddDir("/root/a", vfs.FileStat{Mode: 0755})
	source.AddDir("/root/a/b", vfs.FileStat{Mode: 0755})
	source.AddDir("/root/a/b/c", vfs.FileStat{Mode: 0755})
	source.AddFile("/root/a/b/c/big", vfs.FileStat{Mode: 0644}, make([]byte, 1<<20))

	cfg := forward.DefaultConfig()
	cfg.TargetSize = 1 << 10
	cfg.TriggerSize = 1 << 10
	backing := buildBacking(t, source, "/root", cfg)

	srv := NewServer(NewTree(backing, Config{}))

	attr, err := srv.GetAttr("/a/b/c/big")
	require.NoError(t, err)
	assert.EqualValues(t, 1<<20, attr.Size)

	entries, err := srv.Readdir("/a/b/c")
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	assert.Contains(t, names, "big")

	entries, err = srv.Readdir("/a")
	require.NoError(t, err)
	names = names[:0]
	for _, e := range entries {
		names = append(names, e.Name)
	}
	assert.Contains(t, names, "b")
}

func TestGetAttrUnknownPathIsNotFound(t *testing.T) {
	source := vfs.NewMemFilesystem()
	source.AddDir("/root", vfs.FileStat{Mode: 0755})
	source.AddFile("/root/x", vfs.FileStat{Mode: 0644}, []byte("hi"))

	backing := buildBacking(t, source, "/root", forward.DefaultConfig())
	srv := NewServer(NewTree(backing, Config{}))

	_, err := srv.GetAttr("/does-not-exist")
	assert.Error(t, err)
}

func TestNotABeakArchive(t *testing.T) {
	backing := vfs.NewMemFilesystem()
	backing.AddFile("/random", vfs.FileStat{Mode: 0644}, []byte("not a manifest"))

	srv := NewServer(NewTree(backing, Config{}))
	_, err := srv.GetAttr("/random")
	assert.Error(t, err)
}
