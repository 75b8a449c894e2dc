package forward

import (
	"strings"
	"sync"

	"github.com/msg555/beakfs/berrors"
	"github.com/msg555/beakfs/tarfile"
)

// Server serves getattr/readdir/read against a built Tree, serializing
// every request behind a single mutex. No entry state changes during
// serve.
type Server struct {
	mu   sync.Mutex
	tree *Tree
}

// NewServer wraps tree for serving.
func NewServer(tree *Tree) *Server {
	return &Server{tree: tree}
}

// Attr is the subset of stat information the serve layer returns.
type Attr struct {
	IsDir bool
	Size  int64
	Mtime int64 // seconds
}

func splitDirAndName(path string) (dir, name string) {
	idx := strings.LastIndexByte(path, '/')
	if idx <= 0 {
		return "/", path[idx+1:]
	}
	return path[:idx], path[idx+1:]
}

func (s *Server) findFile(sdPath, name string) *tarfile.File {
	br, ok := s.tree.Bucket[sdPath]
	if ok {
		if br.DirTar != nil && br.DirTar.Name() == name {
			return br.DirTar
		}
		for _, f := range br.SmallMed {
			if f.Name() == name {
				return f
			}
		}
		for _, f := range br.Large {
			if f.Name() == name {
				return f
			}
		}
	}
	if mani, ok := s.tree.Mani[sdPath]; ok && mani.Name() == name {
		return mani
	}
	return nil
}

// GetAttr resolves path to a directory (storage or intermediate) or a
// tar file owned by a storage directory.
func (s *Server) GetAttr(path string) (Attr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d, ok := s.tree.Dirs[path]; ok {
		return Attr{IsDir: true, Mtime: d.Mtime}, nil
	}

	dir, name := splitDirAndName(path)
	d, ok := s.tree.Dirs[dir]
	if !ok || d.SD == nil {
		return Attr{}, berrors.NotFound(path)
	}
	f := s.findFile(dir, name)
	if f == nil {
		return Attr{}, berrors.NotFound(path)
	}
	return Attr{Size: f.Size(), Mtime: f.Mtime()}, nil
}

// Readdir lists ".", "..", every child directory name, then, for a
// storage directory, every tar file it owns plus its manifest index.
func (s *Server) Readdir(path string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.tree.Dirs[path]
	if !ok {
		return nil, berrors.NotFound(path)
	}

	names := []string{".", ".."}
	names = append(names, d.Children...)
	if d.SD == nil {
		return names, nil
	}
	if br, ok := s.tree.Bucket[path]; ok {
		if br.DirTar != nil {
			names = append(names, br.DirTar.Name())
		}
		for _, f := range br.SmallMed {
			names = append(names, f.Name())
		}
		for _, f := range br.Large {
			names = append(names, f.Name())
		}
	}
	if mani, ok := s.tree.Mani[path]; ok {
		names = append(names, mani.Name())
	}
	return names, nil
}

// Read fills buf (capped to size) from the tar file named by path's
// basename, starting at offset.
func (s *Server) Read(path string, size int, offset int64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir, name := splitDirAndName(path)
	d, ok := s.tree.Dirs[dir]
	if !ok || d.SD == nil {
		return nil, berrors.NotFound(path)
	}
	f := s.findFile(dir, name)
	if f == nil {
		return nil, berrors.NotFound(path)
	}

	if offset >= f.Size() {
		return nil, nil
	}
	if offset+int64(size) > f.Size() {
		size = int(f.Size() - offset)
	}
	buf := make([]byte, size)
	n := f.Copy(buf, offset)
	return buf[:n], nil
}
