package reverse

import (
	"strconv"
	"strings"
	"sync"

	"github.com/msg555/beakfs/berrors"
	"github.com/msg555/beakfs/unix"
	"github.com/msg555/beakfs/vfs"
)

// Config carries the reverse engine's mount-time options.
type Config struct {
	// PointInTime selects which root manifest to load: "" or "@0" is the
	// newest, "@1" the next newest, and so on.
	PointInTime string
}

// sdNode tracks one storage directory's lazy-load state: its physical
// location on the backing filesystem and the Entry tree parsed out of
// its manifest, loaded at most once.
type sdNode struct {
	dir  string // physical path on the backing filesystem
	root *Entry

	loaded  bool
	loadErr error
}

// Tree reconstructs the original source tree by lazily parsing the
// manifest stashed at each storage-directory boundary. The backing
// filesystem mirrors the scanned tree's layout: every storage directory
// is a real directory at its scan-relative path, holding that storage
// directory's tar files, with plain directories in between.
type Tree struct {
	fs  vfs.FS
	cfg Config

	mu         sync.Mutex
	sds        map[string]*sdNode // physical dir path -> its node
	notStorage map[string]bool    // physical dirs probed and found manifest-less
}

// NewTree roots a reverse Tree at fsys's "/", the destination directory
// a forward mount's contents were copied into.
func NewTree(fsys vfs.FS, cfg Config) *Tree {
	t := &Tree{
		fs:         fsys,
		cfg:        cfg,
		sds:        map[string]*sdNode{},
		notStorage: map[string]bool{},
	}
	t.sds["/"] = &sdNode{dir: "/", root: &Entry{
		Name: "/",
		Mode: unix.S_IFDIR | 0555,
	}}
	return t
}

// loadRoot parses the mount root's manifest the first time it is
// needed, selecting the configured point in time among the manifests
// present. Both success and failure are cached, so a corrupt manifest
// fails the same way on every request without being re-read.
func (t *Tree) loadRoot(node *sdNode) error {
	if node.loaded {
		return node.loadErr
	}
	node.loaded = true

	candidates, err := findManifests(t.fs, node.dir)
	if err != nil || len(candidates) == 0 {
		node.loadErr = berrors.NotABeakArchive(node.dir)
		return node.loadErr
	}
	idx, err := parsePointInTime(t.cfg.PointInTime)
	if err != nil {
		node.loadErr = err
		return node.loadErr
	}
	if idx >= len(candidates) {
		node.loadErr = berrors.NotFound(t.cfg.PointInTime)
		return node.loadErr
	}

	manifestPath := joinPhysical(node.dir, candidates[idx].Name)
	pm, err := loadGz(t.fs, manifestPath)
	if err != nil {
		node.loadErr = err
		return node.loadErr
	}
	if err := buildEntryTree(node.root, node.dir, pm); err != nil {
		node.loadErr = berrors.ManifestCorrupt(manifestPath, err)
	}
	return node.loadErr
}

// openStorageDir probes the physical directory at physDir for a
// manifest of its own. It returns (nil, false, nil) for a plain
// directory with no manifest; probe results are cached either way. The
// new node's root entry copies outer's attributes, since a storage
// directory's own stat line lives in its parent's manifest, not its
// own.
func (t *Tree) openStorageDir(physDir string, outer *Entry) (*sdNode, bool, error) {
	if sub, ok := t.sds[physDir]; ok {
		return sub, true, sub.loadErr
	}
	if t.notStorage[physDir] {
		return nil, false, nil
	}

	manifests, err := findManifests(t.fs, physDir)
	if err != nil || len(manifests) == 0 {
		t.notStorage[physDir] = true
		return nil, false, nil
	}

	sub := &sdNode{dir: physDir, loaded: true, root: &Entry{
		Name:      outer.Name,
		Mode:      outer.Mode,
		Uid:       outer.Uid,
		Gid:       outer.Gid,
		MtimeSec:  outer.MtimeSec,
		MtimeNsec: outer.MtimeNsec,
		Parent:    outer.Parent,
	}}
	t.sds[physDir] = sub

	manifestPath := joinPhysical(physDir, manifests[0].Name)
	pm, err := loadGz(t.fs, manifestPath)
	if err != nil {
		sub.loadErr = err
		return sub, true, err
	}
	if err := buildEntryTree(sub.root, physDir, pm); err != nil {
		sub.loadErr = berrors.ManifestCorrupt(manifestPath, err)
	}
	return sub, true, sub.loadErr
}

// parsePointInTime parses the "@N" mount-selector syntax; an empty
// string selects the newest (@0).
func parsePointInTime(pit string) (int, error) {
	if pit == "" {
		return 0, nil
	}
	s := strings.TrimPrefix(pit, "@")
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, berrors.InvalidName(pit)
	}
	return n, nil
}

func splitPath(p string) []string {
	trimmed := strings.Trim(p, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// viewPos is one manifest's position during a path walk: the entry a
// partially consumed path resolves to within that manifest's tree.
type viewPos struct {
	node *sdNode
	e    *Entry
}

// resolveViews walks fullPath from the mount root, keeping a view into
// every manifest whose tree still contains the path walked so far. The
// outermost view is first; whenever the walk stands on a directory that
// carries its own manifest, that manifest is opened and pushed as a
// deeper, authoritative view. An entry hoisted into an ancestor's
// manifest (a cross-storage-directory hard link) stays reachable
// through the surviving outer view even though the nearer manifest
// never lists it.
func (t *Tree) resolveViews(fullPath string) ([]viewPos, error) {
	root := t.sds["/"]
	if err := t.loadRoot(root); err != nil {
		return nil, err
	}

	views := []viewPos{{node: root, e: root.root}}
	var walked []string
	for _, seg := range splitPath(fullPath) {
		if err := t.pushDeeperView(&views, walked); err != nil {
			return nil, err
		}

		var next []viewPos
		for _, v := range views {
			if child, ok := v.e.children[seg]; ok {
				next = append(next, viewPos{node: v.node, e: child})
			}
		}
		if len(next) == 0 {
			return nil, berrors.NotFound(fullPath)
		}
		views = next
		walked = append(walked, seg)
	}
	if err := t.pushDeeperView(&views, walked); err != nil {
		return nil, err
	}
	return views, nil
}

// pushDeeperView appends a view for walked's own manifest, when the
// deepest current view stands on a directory that is itself a storage
// directory on the backing filesystem.
func (t *Tree) pushDeeperView(views *[]viewPos, walked []string) error {
	deepest := (*views)[len(*views)-1]
	if len(walked) == 0 || !deepest.e.isDir() {
		return nil
	}
	physDir := joinPhysical("/", strings.Join(walked, "/"))
	if physDir == deepest.node.dir {
		return nil
	}
	sub, ok, err := t.openStorageDir(physDir, deepest.e)
	if err != nil {
		return err
	}
	if ok {
		*views = append(*views, viewPos{node: sub, e: sub.root})
	}
	return nil
}

// resolve returns fullPath's entry from the deepest manifest that
// contains it.
func (t *Tree) resolve(fullPath string) (*Entry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	views, err := t.resolveViews(fullPath)
	if err != nil {
		return nil, err
	}
	return views[len(views)-1].e, nil
}

// children returns the merged child set of the directory at fullPath:
// the nearest manifest's children plus anything an outer manifest
// recorded under the same directory (hoisted hard links). Deeper
// manifests win on a name collision.
func (t *Tree) children(fullPath string) ([]*Entry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	views, err := t.resolveViews(fullPath)
	if err != nil {
		return nil, err
	}
	if !views[len(views)-1].e.isDir() {
		return nil, berrors.NotFound(fullPath)
	}
	merged := map[string]*Entry{}
	for _, v := range views {
		for name, c := range v.e.children {
			merged[name] = c
		}
	}
	out := make([]*Entry, 0, len(merged))
	for _, c := range merged {
		out = append(out, c)
	}
	return out, nil
}

// resolveContent follows a hard-link entry to the original it points
// at, returning e itself for every other kind.
func (t *Tree) resolveContent(e *Entry) (*Entry, error) {
	if !e.isHardlink() {
		return e, nil
	}
	target, err := t.resolve(e.hardlinkPath)
	if err != nil {
		return nil, err
	}
	if target.isHardlink() {
		// the first name encountered for an inode always keeps its
		// content, so a link chain only appears in a corrupt manifest.
		return nil, berrors.ManifestCorrupt(e.hardlinkPath, errLinkChain)
	}
	return target, nil
}

var errLinkChain = errLinkChainType{}

type errLinkChainType struct{}

func (errLinkChainType) Error() string { return "hard link points at another hard link" }
