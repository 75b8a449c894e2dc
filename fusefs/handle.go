package fusefs

import (
	"bazil.org/fuse"

	"github.com/msg555/beakfs/unix"
)

// fileHandle is whatever an open request hands back: either a snapshot
// of a directory's listing or a plain path to read through the tree.
type fileHandle interface {
	read(m *Mount, req *fuse.ReadRequest) ([]byte, error)
}

type dirEntryPath struct {
	name string
	mode uint32
	path string
}

// dirHandle holds a directory's listing, captured at open time, so a
// sequence of paged Readdir calls against the same handle always see a
// consistent snapshot even if the tree is reloaded concurrently.
type dirHandle struct {
	selfID  fuse.NodeID
	entries []dirEntryPath
}

func (h *dirHandle) read(m *Mount, req *fuse.ReadRequest) ([]byte, error) {
	if !req.Dir {
		return nil, FuseError{source: errNotImplemented, errno: unix.EISDIR}
	}
	idx := int(req.Offset)
	if idx >= len(h.entries) {
		return nil, nil
	}

	buf := make([]byte, req.Size)
	off := 0
	for idx < len(h.entries) {
		e := h.entries[idx]
		id := uint64(h.selfID)
		if e.name != "." && e.name != ".." {
			id = uint64(m.idForPath(e.path))
		}
		n := addDirEntry(buf[off:], e.name, id, uint64(idx+1), e.mode)
		if n == 0 {
			break
		}
		off += n
		idx++
	}
	return buf[:off], nil
}

// regHandle reads a regular file's content through the tree on demand;
// neither engine needs any per-handle state to serve a read.
type regHandle struct {
	path string
}

func (h *regHandle) read(m *Mount, req *fuse.ReadRequest) ([]byte, error) {
	return m.tree.Read(h.path, req.Size, int64(req.Offset))
}

func (m *Mount) openHandle(h fileHandle) fuse.HandleID {
	m.handleLock.Lock()
	defer m.handleLock.Unlock()
	m.lastHandleID++
	id := m.lastHandleID
	m.handleMap[id] = h
	return id
}

func (m *Mount) handleOpenRequest(req *fuse.OpenRequest) error {
	path, err := m.getPath(req.Node)
	if err != nil {
		return err
	}
	attr, err := m.tree.GetAttr(path)
	if err != nil {
		return err
	}

	var handle fileHandle
	if unix.S_ISDIR(attr.Mode) {
		entries, err := m.tree.Readdir(path)
		if err != nil {
			return err
		}
		dh := &dirHandle{selfID: req.Node}
		for _, e := range entries {
			childPath := path
			if e.Name != "." && e.Name != ".." {
				childPath = joinFusePath(path, e.Name)
			}
			dh.entries = append(dh.entries, dirEntryPath{name: e.Name, mode: e.Mode, path: childPath})
		}
		handle = dh
	} else {
		handle = &regHandle{path: path}
	}

	id := m.openHandle(handle)
	req.Respond(&fuse.OpenResponse{
		Handle: id,
		Flags:  fuse.OpenKeepCache,
	})
	return nil
}

func (m *Mount) handleReadRequest(req *fuse.ReadRequest) error {
	m.handleLock.RLock()
	handle, ok := m.handleMap[req.Handle]
	m.handleLock.RUnlock()
	if !ok {
		return FuseError{source: errUnknownHandle, errno: unix.EBADF}
	}

	data, err := handle.read(m, req)
	if err != nil {
		return err
	}
	req.Respond(&fuse.ReadResponse{Data: data})
	return nil
}

func (m *Mount) handleReleaseRequest(req *fuse.ReleaseRequest) error {
	m.handleLock.Lock()
	_, ok := m.handleMap[req.Handle]
	delete(m.handleMap, req.Handle)
	m.handleLock.Unlock()

	if !ok {
		return FuseError{source: errUnknownHandle, errno: unix.EBADF}
	}
	req.Respond()
	return nil
}
