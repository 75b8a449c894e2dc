package forward

import (
	"sort"
	"strings"

	"github.com/msg555/beakfs/berrors"
	"github.com/msg555/beakfs/bmatch"
	"github.com/msg555/beakfs/bpath"
	"github.com/msg555/beakfs/tarfile"
)

func collectDirs(root *tarfile.Entry, out *[]*tarfile.Entry) {
	*out = append(*out, root)
	for _, c := range root.Children {
		if c.Kind == tarfile.KindDirectory {
			collectDirs(c, out)
		}
	}
}

// SelectStorageDirs decides which directories become storage
// directories, processing deepest-first so a directory's ChildrenSize is
// final (already adjusted by any promoted descendant) by the time it is
// evaluated.
func SelectStorageDirs(root *tarfile.Entry, cfg Config, triggerGlobs []*bmatch.Pattern) {
	var dirs []*tarfile.Entry
	collectDirs(root, &dirs)

	sort.Slice(dirs, func(i, j int) bool {
		return bpath.DepthFirstDeepestFirst(dirs[i].Path, dirs[j].Path)
	})

	triggerSize := cfg.effectiveTriggerSize()
	for _, d := range dirs {
		qualifies := d.Parent == nil ||
			d.Path.Depth() <= 1 ||
			d.Path.Depth() == cfg.Depth ||
			bmatch.MatchAny(triggerGlobs, d.Path.String()) ||
			d.ChildrenSize > triggerSize

		if !qualifies {
			continue
		}
		d.IsStorageDir = true
		for a := d.Parent; a != nil; a = a.Parent {
			a.ChildrenSize -= d.ChildrenSize
		}
	}
}

// StorageDir groups everything that rolls up into one manifest: the
// storage-directory entry itself, the sub-storage-directories visible
// beneath it, and every entry (file, symlink, intermediate directory)
// whose nearest storage-directory ancestor is this one.
type StorageDir struct {
	Entry    *tarfile.Entry
	Parent   *StorageDir
	SubDirs  []*StorageDir
	Attached []*tarfile.Entry
}

// AttachEntries walks the scanned tree and groups every entry under its
// nearest storage-directory ancestor, returning the root
// StorageDir, a path-keyed index of every StorageDir found, and a
// reverse index from every non-storage-dir entry to the StorageDir that
// owns it (needed by the hard-link post-grouping fix-up).
func AttachEntries(root *tarfile.Entry) (*StorageDir, map[string]*StorageDir, map[*tarfile.Entry]*StorageDir, error) {
	index := map[string]*StorageDir{}
	owner := map[*tarfile.Entry]*StorageDir{}
	rootSD := &StorageDir{Entry: root}
	index[root.Path.String()] = rootSD
	owner[root] = rootSD

	if err := attachRecurse(root, rootSD, index, owner); err != nil {
		return nil, nil, nil, err
	}
	return rootSD, index, owner, nil
}

func attachRecurse(dirEntry *tarfile.Entry, nearestSD *StorageDir, index map[string]*StorageDir, owner map[*tarfile.Entry]*StorageDir) error {
	for _, child := range dirEntry.Children {
		if child.Kind == tarfile.KindDirectory {
			childSD := nearestSD
			if child.IsStorageDir {
				childSD = &StorageDir{Entry: child, Parent: nearestSD}
				index[child.Path.String()] = childSD
				owner[child] = childSD
				nearestSD.SubDirs = append(nearestSD.SubDirs, childSD)
			} else {
				nearestSD.Attached = append(nearestSD.Attached, child)
				owner[child] = nearestSD
			}
			if err := attachRecurse(child, childSD, index, owner); err != nil {
				return err
			}
		} else {
			nearestSD.Attached = append(nearestSD.Attached, child)
			owner[child] = nearestSD
		}
	}
	return checkCaseCollisions(nearestSD)
}

// checkCaseCollisions fails if two attached entries (or sub-storage-dirs)
// of the same StorageDir fold to the same lowercase tarpath: the
// archive must round-trip on case-insensitive destination stores.
func checkCaseCollisions(sd *StorageDir) error {
	seen := map[string]string{}
	check := func(tarPath string) error {
		folded := strings.ToLower(tarPath)
		if prior, ok := seen[folded]; ok && prior != tarPath {
			return berrors.CaseCollision(prior, tarPath)
		}
		seen[folded] = tarPath
		return nil
	}
	for _, e := range sd.Attached {
		if err := check(e.TarPath); err != nil {
			return err
		}
	}
	for _, sub := range sd.SubDirs {
		if err := check(sub.Entry.TarPath); err != nil {
			return err
		}
	}
	return nil
}
