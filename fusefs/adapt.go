package fusefs

import (
	"github.com/msg555/beakfs/forward"
	"github.com/msg555/beakfs/reverse"
	"github.com/msg555/beakfs/unix"
)

// forwardAdapter presents a forward.Server as a Tree. The forward engine
// only ever synthesizes directories and regular (tar) files, so Readlink
// always fails; every entry reports Uid/Gid 0 and an Nlink of 2 for
// directories, 1 for tar files.
type forwardAdapter struct {
	s *forward.Server
}

// NewForwardTree adapts srv for serving over FUSE.
func NewForwardTree(srv *forward.Server) Tree {
	return forwardAdapter{s: srv}
}

func (a forwardAdapter) GetAttr(path string) (Attr, error) {
	fa, err := a.s.GetAttr(path)
	if err != nil {
		return Attr{}, err
	}
	return forwardFuseAttr(fa), nil
}

func (a forwardAdapter) Readdir(path string) ([]DirEntry, error) {
	names, err := a.s.Readdir(path)
	if err != nil {
		return nil, err
	}
	out := make([]DirEntry, 0, len(names))
	for _, name := range names {
		mode := uint32(unix.S_IFDIR | 0500)
		if name != "." && name != ".." {
			fa, err := a.s.GetAttr(joinFusePath(path, name))
			if err == nil && !fa.IsDir {
				mode = unix.S_IFREG | 0400
			}
		}
		out = append(out, DirEntry{Name: name, Mode: mode})
	}
	return out, nil
}

func (a forwardAdapter) Readlink(path string) (string, error) {
	return "", FuseError{source: errNotASymlink, errno: unix.ENOSYS}
}

func (a forwardAdapter) Read(path string, size int, offset int64) ([]byte, error) {
	return a.s.Read(path, size, offset)
}

func forwardFuseAttr(fa forward.Attr) Attr {
	mode := uint32(unix.S_IFREG | 0400)
	nlink := uint32(1)
	if fa.IsDir {
		mode = unix.S_IFDIR | 0500
		nlink = 2
	}
	return Attr{
		Mode:     mode,
		Size:     fa.Size,
		MtimeSec: fa.Mtime,
		Nlink:    nlink,
	}
}

// reverseAdapter presents a reverse.Server as a Tree. Field shapes already
// match; this only renames the package the types come from.
type reverseAdapter struct {
	s *reverse.Server
}

// NewReverseTree adapts srv for serving over FUSE.
func NewReverseTree(srv *reverse.Server) Tree {
	return reverseAdapter{s: srv}
}

func (a reverseAdapter) GetAttr(path string) (Attr, error) {
	ra, err := a.s.GetAttr(path)
	if err != nil {
		return Attr{}, err
	}
	return Attr{
		Mode:      ra.Mode,
		Size:      ra.Size,
		Uid:       ra.Uid,
		Gid:       ra.Gid,
		MtimeSec:  ra.MtimeSec,
		MtimeNsec: ra.MtimeNsec,
		Nlink:     ra.Nlink,
	}, nil
}

func (a reverseAdapter) Readdir(path string) ([]DirEntry, error) {
	entries, err := a.s.Readdir(path)
	if err != nil {
		return nil, err
	}
	out := make([]DirEntry, len(entries))
	for i, e := range entries {
		out[i] = DirEntry{Name: e.Name, Mode: e.Mode}
	}
	return out, nil
}

func (a reverseAdapter) Readlink(path string) (string, error) {
	return a.s.Readlink(path)
}

func (a reverseAdapter) Read(path string, size int, offset int64) ([]byte, error) {
	return a.s.Read(path, size, offset)
}
