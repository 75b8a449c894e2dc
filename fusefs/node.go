package fusefs

import (
	"bazil.org/fuse"

	"github.com/msg555/beakfs/unix"
)

// inodeRef tracks one allocated NodeID: the path it stands for and how
// many outstanding kernel references point at it.
type inodeRef struct {
	path     string
	refCount int64
}

func (m *Mount) getPath(id fuse.NodeID) (string, error) {
	m.inodeLock.RLock()
	defer m.inodeLock.RUnlock()

	ref, ok := m.inodeMap[id]
	if !ok {
		return "", errUnknownInode
	}
	return ref.path, nil
}

// idForPath returns the NodeID assigned to path, allocating one the first
// time path is looked up; every call bumps its reference count.
func (m *Mount) idForPath(path string) fuse.NodeID {
	m.inodeLock.Lock()
	defer m.inodeLock.Unlock()

	if id, ok := m.pathToID[path]; ok {
		m.inodeMap[id].refCount++
		return id
	}

	id := m.nextID
	m.nextID++
	m.pathToID[path] = id
	m.inodeMap[id] = &inodeRef{path: path, refCount: 1}
	return id
}

func (m *Mount) forget(id fuse.NodeID, n uint64) {
	m.inodeLock.Lock()
	defer m.inodeLock.Unlock()

	ref, ok := m.inodeMap[id]
	if !ok {
		return
	}
	ref.refCount -= int64(n)
	if ref.refCount <= 0 {
		delete(m.inodeMap, id)
		delete(m.pathToID, ref.path)
	}
}

func toFuseAttr(id fuse.NodeID, a Attr) fuse.Attr {
	return fuse.Attr{
		Valid:     DurationDefault,
		Inode:     uint64(id),
		Size:      uint64(a.Size),
		Blocks:    (uint64(a.Size) + 511) >> 9,
		Mtime:     secNsecToTime(a.MtimeSec, a.MtimeNsec),
		Ctime:     secNsecToTime(a.MtimeSec, a.MtimeNsec),
		Mode:      unix.UnixToFileStatMode(a.Mode),
		Nlink:     a.Nlink,
		Uid:       a.Uid,
		Gid:       a.Gid,
		BlockSize: 1024,
	}
}

func (m *Mount) handleForgetRequest(req *fuse.ForgetRequest) error {
	m.forget(req.Node, req.N)
	req.Respond()
	return nil
}

func (m *Mount) handleBatchForgetRequest(req *fuse.BatchForgetRequest) error {
	for _, f := range req.Forget {
		m.forget(f.NodeID, f.N)
	}
	req.Respond()
	return nil
}

func (m *Mount) handleLookupRequest(req *fuse.LookupRequest) error {
	parent, err := m.getPath(req.Node)
	if err != nil {
		return err
	}

	childPath := joinFusePath(parent, req.Name)
	attr, err := m.tree.GetAttr(childPath)
	if err != nil {
		return err
	}

	id := m.idForPath(childPath)
	req.Respond(&fuse.LookupResponse{
		Node:       id,
		Generation: 1,
		EntryValid: DurationDefault,
		Attr:       toFuseAttr(id, attr),
	})
	return nil
}

func (m *Mount) handleGetattrRequest(req *fuse.GetattrRequest) error {
	path, err := m.getPath(req.Node)
	if err != nil {
		return err
	}
	attr, err := m.tree.GetAttr(path)
	if err != nil {
		return err
	}
	req.Respond(&fuse.GetattrResponse{Attr: toFuseAttr(req.Node, attr)})
	return nil
}

func (m *Mount) handleReadlinkRequest(req *fuse.ReadlinkRequest) error {
	path, err := m.getPath(req.Node)
	if err != nil {
		return err
	}
	target, err := m.tree.Readlink(path)
	if err != nil {
		return err
	}
	req.Respond(target)
	return nil
}
