package forward

import "github.com/msg555/beakfs/tarfile"

// LinkSet records, for every entry rewritten into a hard link, the
// original entry it points at. ResolveHardlinks returns one so the
// later post-grouping fix-up can still find each link's target even
// after Entry.LinkTarget has been overwritten with a tarpath string.
type LinkSet map[*tarfile.Entry]*tarfile.Entry

// ResolveHardlinks runs the hard-link pre-pass: for every
// non-directory entry with Nlink > 1, the first entry encountered for a
// given inode (in scan order, as collected by Scanner.NonDirs) keeps its
// content; every later entry sharing that inode is rewritten into a
// header-only hard-link record pointing at the original's tarpath.
func ResolveHardlinks(nonDirs []*tarfile.Entry) LinkSet {
	originals := map[uint64]*tarfile.Entry{}
	links := LinkSet{}
	for _, e := range nonDirs {
		if e.Stat.Nlink <= 1 {
			continue
		}
		if orig, ok := originals[e.Stat.Ino]; ok {
			e.RewriteAsHardlink(orig)
			links[e] = orig
		} else {
			originals[e.Stat.Ino] = e
		}
	}
	return links
}

// ancestorsOf returns sd and every StorageDir above it, root last.
func ancestorsOf(sd *StorageDir) []*StorageDir {
	var out []*StorageDir
	for s := sd; s != nil; s = s.Parent {
		out = append(out, s)
	}
	return out
}

// commonAncestor returns the deepest StorageDir that is an ancestor of
// (or equal to) both a and b.
func commonAncestor(a, b *StorageDir) *StorageDir {
	bAncestors := map[*StorageDir]bool{}
	for _, s := range ancestorsOf(b) {
		bAncestors[s] = true
	}
	for _, s := range ancestorsOf(a) {
		if bAncestors[s] {
			return s
		}
	}
	return nil
}

func removeFromAttached(sd *StorageDir, e *tarfile.Entry) {
	for i, c := range sd.Attached {
		if c == e {
			sd.Attached = append(sd.Attached[:i], sd.Attached[i+1:]...)
			return
		}
	}
}

// FixupHardlinkPlacement runs the post-grouping fix-up: a
// hard-link entry whose assigned storage directory differs from its
// target's is moved up to their nearest common-ancestor StorageDir, so
// the tar containing the link still reaches the target's tar tree under
// the same restore root.
func FixupHardlinkPlacement(links LinkSet, owner map[*tarfile.Entry]*StorageDir) {
	for link, target := range links {
		linkSD := owner[link]
		targetSD := owner[target]
		if linkSD == nil || targetSD == nil || linkSD == targetSD {
			continue
		}
		ancestor := commonAncestor(linkSD, targetSD)
		if ancestor == nil || ancestor == linkSD {
			continue
		}
		removeFromAttached(linkSD, link)
		ancestor.Attached = append(ancestor.Attached, link)
		owner[link] = ancestor
	}
}
