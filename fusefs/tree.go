// Package fusefs serves a forward.Server or reverse.Server over FUSE,
// dispatching raw bazil.org/fuse requests against path strings instead of
// the library's higher-level fs.Node/fs.Handle interfaces.
package fusefs

// Attr is the subset of stat information Tree.GetAttr returns, common to
// both the forward and reverse engines.
type Attr struct {
	Mode      uint32
	Size      int64
	Uid       uint32
	Gid       uint32
	MtimeSec  int64
	MtimeNsec int64
	Nlink     uint32
}

// DirEntry is one name Tree.Readdir yields.
type DirEntry struct {
	Name string
	Mode uint32
}

// Tree is the serving surface a mount dispatches onto: forward.Server and
// reverse.Server each get a thin adapter implementing it, so the dispatch
// loop is written once and shared by both mount kinds.
type Tree interface {
	GetAttr(path string) (Attr, error)
	Readdir(path string) ([]DirEntry, error)
	Readlink(path string) (string, error)
	Read(path string, size int, offset int64) ([]byte, error)
}
