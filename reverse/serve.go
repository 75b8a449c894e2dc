package reverse

import (
	"io"
	"os"
	"sort"
	"sync"

	"github.com/msg555/beakfs/berrors"
)

// Attr is the subset of stat information the serve layer returns.
// Ownership is reported as the serving process's effective uid/gid: the
// mount belongs to whoever mounted it, regardless of which uids the
// manifest recorded.
type Attr struct {
	Mode      uint32
	Size      int64
	Uid       uint32
	Gid       uint32
	MtimeSec  int64
	MtimeNsec int64
	Nlink     uint32
}

// DirEntry is one name Readdir yields, with enough of its mode for a
// caller to fill in a dirent's file-type nibble without a further stat.
type DirEntry struct {
	Name string
	Mode uint32
}

// Server serves getattr/readdir/readlink/read against a Tree,
// serializing every request behind a single mutex. The lazy
// per-directory manifest loads this triggers are guarded by the Tree's
// own mutex, so two requests never race to parse the same manifest.
type Server struct {
	mu   sync.Mutex
	tree *Tree
}

// NewServer wraps tree for serving.
func NewServer(tree *Tree) *Server {
	return &Server{tree: tree}
}

// GetAttr resolves path, loading whatever storage-directory manifests
// the walk crosses, and returns its reconstructed attributes.
func (s *Server) GetAttr(path string) (Attr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.tree.resolve(path)
	if err != nil {
		return Attr{}, err
	}
	nlink := uint32(1)
	if e.isDir() {
		nlink = 2
	}
	return Attr{
		Mode:      e.Mode,
		Size:      e.Size,
		Uid:       uint32(os.Geteuid()),
		Gid:       uint32(os.Getegid()),
		MtimeSec:  e.MtimeSec,
		MtimeNsec: e.MtimeNsec,
		Nlink:     nlink,
	}, nil
}

// Readdir lists ".", "..", then every child name beneath path.
func (s *Server) Readdir(path string) ([]DirEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.tree.resolve(path)
	if err != nil {
		return nil, err
	}
	children, err := s.tree.children(path)
	if err != nil {
		return nil, err
	}

	out := []DirEntry{{Name: ".", Mode: e.Mode}, {Name: "..", Mode: e.Mode}}
	rest := make([]DirEntry, 0, len(children))
	for _, c := range children {
		rest = append(rest, DirEntry{Name: c.Name, Mode: c.Mode})
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].Name < rest[j].Name })
	return append(out, rest...), nil
}

// Readlink returns a symlink entry's target.
func (s *Server) Readlink(path string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.tree.resolve(path)
	if err != nil {
		return "", err
	}
	if !e.isSymlink() {
		return "", berrors.NotFound(path)
	}
	return e.Symlink, nil
}

// Read fills up to size bytes of path's content starting at offset,
// following a hard-link entry to its original's backing tar position
// first. Returns an empty slice, not an error, once offset reaches the
// entry's size.
func (s *Server) Read(path string, size int, offset int64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.tree.resolve(path)
	if err != nil {
		return nil, err
	}
	content, err := s.tree.resolveContent(e)
	if err != nil {
		return nil, err
	}
	if content.tarName == "" {
		return nil, berrors.NotFound(path)
	}

	if offset >= content.Size {
		return nil, nil
	}
	if offset+int64(size) > content.Size {
		size = int(content.Size - offset)
	}

	tarPath := joinPhysical(content.storageDir, content.tarName)
	f, err := s.tree.fs.Open(tarPath)
	if err != nil {
		return nil, berrors.UnderlyingIO(tarPath, err)
	}
	defer f.Close()

	buf := make([]byte, size)
	n, err := f.ReadAt(buf, content.offset+offset)
	if err != nil && err != io.EOF {
		return nil, berrors.UnderlyingIO(tarPath, err)
	}
	return buf[:n], nil
}
