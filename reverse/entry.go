// Package reverse reconstructs the original source tree from the manifests
// and data tars a forward run produced, serving getattr/readdir/readlink/read
// against reconstructed state instead of walking a real directory.
// Manifests are parsed lazily, one storage directory at a time, mirroring the
// forward engine's own storage-directory boundaries.
package reverse

import (
	"github.com/msg555/beakfs/unix"
)

// syntheticDirMode is the mode given to placeholder directories bridging
// a gap in a manifest's ancestor chain.
const syntheticDirMode = unix.S_IFDIR | 0755

// Entry is one reconstructed source-tree object: a node built from a
// manifest file_line (or, for a storage directory's own root, a synthetic
// node with no file_line of its own).
type Entry struct {
	Name string

	Mode uint32 // full type + permission bits, decoded from the manifest's permission string
	Uid  uint32
	Gid  uint32
	Size int64

	MtimeSec  int64
	MtimeNsec int64

	Symlink string // target, set only when Mode's type bits are S_IFLNK

	// hardlinkPath is the full path (from the reverse mount's root) of the
	// original a hard-link entry points at, set only for entries whose
	// manifest line recorded type 'h'. Content and size for such an entry
	// are read through the resolved target instead of this entry's own
	// (header-only, zero-length) tar position.
	hardlinkPath string

	tarName    string // backing data tar holding this entry's content, empty for directories
	offset     int64
	storageDir string // physical directory (on the backing filesystem) owning tarName

	Parent   *Entry
	children map[string]*Entry
}

func (e *Entry) isDir() bool {
	return unix.S_ISDIR(e.Mode)
}

func (e *Entry) isSymlink() bool {
	return unix.S_ISLNK(e.Mode)
}

func (e *Entry) isHardlink() bool {
	return e.hardlinkPath != ""
}
