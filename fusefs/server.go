package fusefs

import (
	"io"
	"log"
	"sync"
	"time"

	"bazil.org/fuse"

	"github.com/msg555/beakfs/unix"
)

// DurationDefault is the attribute/entry cache lifetime handed back on
// every response; nothing in either engine mutates once a mount is
// serving, so there's no reason for the kernel to re-validate sooner.
const DurationDefault time.Duration = time.Hour

func joinFusePath(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return dir + "/" + name
}

func secNsecToTime(sec, nsec int64) time.Time {
	return time.Unix(sec, nsec)
}

// Mount serves a Tree over a FUSE connection, dispatching raw requests
// read off the connection, keyed by path string.
type Mount struct {
	conn       *fuse.Conn
	mountPoint string
	tree       Tree

	inodeLock sync.RWMutex
	inodeMap  map[fuse.NodeID]*inodeRef
	pathToID  map[string]fuse.NodeID
	nextID    fuse.NodeID

	handleLock   sync.RWMutex
	handleMap    map[fuse.HandleID]fileHandle
	lastHandleID fuse.HandleID
}

func newMount(mountPoint string, tree Tree, options ...fuse.MountOption) (*Mount, error) {
	options = append(options, fuse.ReadOnly())
	conn, err := fuse.Mount(mountPoint, options...)
	if err != nil {
		return nil, err
	}

	m := &Mount{
		conn:       conn,
		mountPoint: mountPoint,
		tree:       tree,
		inodeMap:   map[fuse.NodeID]*inodeRef{1: {path: "/", refCount: 1}},
		pathToID:   map[string]fuse.NodeID{"/": 1},
		nextID:     2,
		handleMap:  map[fuse.HandleID]fileHandle{},
	}

	go func() {
		err := m.serve()
		if err == io.EOF {
			log.Printf("connection unmounted at %q", mountPoint)
		} else {
			log.Printf("connection %q shutting down: %s", mountPoint, err)
		}
	}()

	return m, nil
}

// NewForwardMount mounts a forward-engine synthesis tree read-only at
// mountPoint.
func NewForwardMount(mountPoint string, tree Tree, options ...fuse.MountOption) (*Mount, error) {
	options = append(options, fuse.Subtype("beakfs-forward"))
	return newMount(mountPoint, tree, options...)
}

// NewReverseMount mounts a reverse-engine reconstruction read-only at
// mountPoint.
func NewReverseMount(mountPoint string, tree Tree, options ...fuse.MountOption) (*Mount, error) {
	options = append(options, fuse.Subtype("beakfs-reverse"))
	return newMount(mountPoint, tree, options...)
}

// Close requests the kernel unmount mountPoint; the serve loop exits
// once the resulting EOF reaches ReadRequest.
func (m *Mount) Close() error {
	return fuse.Unmount(m.mountPoint)
}

func (m *Mount) serve() error {
	for {
		req, err := m.conn.ReadRequest()
		if err != nil {
			return err
		}
		go m.handleRequest(req)
	}
}

func (m *Mount) handleRequest(req fuse.Request) {
	var err error

	switch r := req.(type) {
	case *fuse.AccessRequest:
		r.Respond()
	case *fuse.LookupRequest:
		err = m.handleLookupRequest(r)
	case *fuse.GetattrRequest:
		err = m.handleGetattrRequest(r)
	case *fuse.ReadlinkRequest:
		err = m.handleReadlinkRequest(r)
	case *fuse.OpenRequest:
		err = m.handleOpenRequest(r)
	case *fuse.ReadRequest:
		err = m.handleReadRequest(r)
	case *fuse.ReleaseRequest:
		err = m.handleReleaseRequest(r)
	case *fuse.ForgetRequest:
		err = m.handleForgetRequest(r)
	case *fuse.BatchForgetRequest:
		err = m.handleBatchForgetRequest(r)
	case *fuse.GetxattrRequest:
		r.Respond(&fuse.GetxattrResponse{})
	case *fuse.ListxattrRequest:
		r.Respond(&fuse.ListxattrResponse{})
	default:
		log.Printf("fusefs: unhandled request type %T", req)
		err = FuseError{source: errNotImplemented, errno: unix.ENOSYS}
	}

	if err != nil {
		req.RespondError(WrapIOError(err))
	}
}
