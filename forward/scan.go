package forward

import (
	"github.com/msg555/beakfs/bmatch"
	"github.com/msg555/beakfs/bpath"
	"github.com/msg555/beakfs/tarfile"
	"github.com/msg555/beakfs/unix"
	"github.com/msg555/beakfs/vfs"
)

// beakMarker is the sentinel child name that excludes a directory's
// subtree as a nested sub-backup.
const beakMarker = ".beak"

// Scanner walks a source tree through a vfs.FS, producing a tree of
// tarfile.Entry rooted at the scan root.
type Scanner struct {
	FS     vfs.FS
	Filter *bmatch.Chain

	// NonDirs collects every non-directory entry in scan order, the
	// input the hard-link pre-pass walks.
	NonDirs []*tarfile.Entry
}

// Scan walks root (a path understood by s.FS) and returns its entry
// tree. The root entry always has Path equal to bpath.Root().
func (s *Scanner) Scan(root string) (*tarfile.Entry, error) {
	rootStat, err := s.FS.Lstat(root)
	if err != nil {
		return nil, err
	}
	rootEntry := tarfile.NewEntry(s.FS, root, bpath.Root(), "", rootStat, tarfile.KindDirectory, "")
	if err := s.scanDir(rootEntry, root); err != nil {
		return nil, err
	}
	return rootEntry, nil
}

func kindForMode(mode uint32) (tarfile.Kind, bool) {
	switch {
	case unix.S_ISDIR(mode):
		return tarfile.KindDirectory, true
	case unix.S_ISREG(mode):
		return tarfile.KindRegular, true
	case unix.S_ISLNK(mode):
		return tarfile.KindSymlink, true
	case unix.S_ISFIFO(mode):
		return tarfile.KindFifo, true
	case unix.S_ISCHR(mode):
		return tarfile.KindCharDevice, true
	case unix.S_ISBLK(mode):
		return tarfile.KindBlockDevice, true
	case unix.S_ISSOCK(mode):
		return 0, false
	default:
		return 0, false
	}
}

// scanDir populates dirEntry's Children by reading absPath, recursing
// into subdirectories. dirEntry.ChildrenSize is left holding the total
// size of everything discovered beneath it (bottom-up).
func (s *Scanner) scanDir(dirEntry *tarfile.Entry, absPath string) error {
	children, err := s.FS.Readdir(absPath)
	if err != nil {
		return err
	}

	for _, child := range children {
		if child.Name == beakMarker {
			// A .beak marker anywhere in this directory means it's the root
			// of a nested sub-backup: stop descending and drop every other
			// child too.
			dirEntry.Children = nil
			dirEntry.ChildrenSize = 0
			return nil
		}
	}

	for _, child := range children {
		kind, ok := kindForMode(child.Stat.Mode)
		if !ok {
			continue // sockets and anything unrecognized are skipped
		}

		childPath := dirEntry.Path.Append(child.Name)
		childAbs := absPath + "/" + child.Name
		if s.Filter != nil && !s.Filter.Keep(childPath.String()) {
			continue
		}

		var linkTarget string
		if kind == tarfile.KindSymlink {
			linkTarget, err = s.FS.Readlink(childAbs)
			if err != nil {
				return err
			}
		}

		tarPath := childPath.String()
		if len(tarPath) > 0 && tarPath[0] == '/' {
			tarPath = tarPath[1:]
		}
		childEntry := tarfile.NewEntry(s.FS, childAbs, childPath, tarPath, child.Stat, kind, linkTarget)
		childEntry.Parent = dirEntry
		dirEntry.Children = append(dirEntry.Children, childEntry)

		if kind == tarfile.KindDirectory {
			if err := s.scanDir(childEntry, childAbs); err != nil {
				return err
			}
			dirEntry.ChildrenSize += childEntry.Size() + childEntry.ChildrenSize
		} else {
			s.NonDirs = append(s.NonDirs, childEntry)
			dirEntry.ChildrenSize += childEntry.Size()
		}
	}
	return nil
}
