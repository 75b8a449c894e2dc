package forward

import (
	"sort"

	"github.com/msg555/beakfs/bmatch"
	"github.com/msg555/beakfs/tarfile"
	"github.com/msg555/beakfs/vfs"
)

// DirNode is one directory visible in the synthesized mount: every
// storage directory, plus the intermediate directories on the way down
// to a nested storage directory (those intermediates carry no tar files
// of their own, only further directories).
type DirNode struct {
	SD       *StorageDir // non-nil when this directory is a storage directory
	Mtime    int64
	Children []string // child directory names, sorted
}

// Tree is a fully scanned and grouped forward mount: the scanned entry
// tree plus, for every storage directory, its partitioned tar files and
// manifest index, ready to serve getattr/readdir/read.
type Tree struct {
	Root    *tarfile.Entry
	SDIndex map[string]*StorageDir
	Dirs    map[string]*DirNode
	Bucket  map[string]*BucketResult
	Mani    map[string]*tarfile.File
}

func compileChain(include, exclude []string) (*bmatch.Chain, error) {
	var c bmatch.Chain
	for _, p := range include {
		if err := c.AddInclude(p); err != nil {
			return nil, err
		}
	}
	for _, p := range exclude {
		if err := c.AddExclude(p); err != nil {
			return nil, err
		}
	}
	return &c, nil
}

// Build scans rootPath through fsys and groups the result into storage
// directories, ready to serve. The whole pipeline (scan, storage-dir
// selection, attachment, hard-link fix-up, partition, manifest) is
// single-threaded and runs to completion before a mount starts serving.
func Build(fsys vfs.FS, rootPath string, cfg Config) (*Tree, error) {
	chain, err := compileChain(cfg.Include, cfg.Exclude)
	if err != nil {
		return nil, err
	}
	triggerGlobs, err := bmatch.CompileAll(cfg.TriggerGlob)
	if err != nil {
		return nil, err
	}

	scanner := &Scanner{FS: fsys, Filter: chain}
	root, err := scanner.Scan(rootPath)
	if err != nil {
		return nil, err
	}

	SelectStorageDirs(root, cfg, triggerGlobs)

	rootSD, index, owner, err := AttachEntries(root)
	if err != nil {
		return nil, err
	}

	links := ResolveHardlinks(scanner.NonDirs)
	FixupHardlinkPlacement(links, owner)

	tree := &Tree{
		Root:    root,
		SDIndex: index,
		Bucket:  map[string]*BucketResult{},
		Mani:    map[string]*tarfile.File{},
	}

	var walk func(sd *StorageDir)
	walk = func(sd *StorageDir) {
		for _, sub := range sd.SubDirs {
			walk(sub)
		}
		br := PartitionBucket(sd, cfg)
		text := BuildManifestText(sd, br, cfg.Message)
		manifest := BuildManifestIndex(text, allDataFiles(br))
		key := sd.Entry.Path.String()
		tree.Bucket[key] = br
		tree.Mani[key] = manifest
	}
	walk(rootSD)

	tree.Dirs = buildDirNodes(tree)
	return tree, nil
}

// buildDirNodes lays out the mount's directory skeleton: every storage
// directory at its full scan-relative path, with the intermediate
// directories leading down to nested storage directories materialized
// as plain directories.
func buildDirNodes(tree *Tree) map[string]*DirNode {
	dirs := map[string]*DirNode{}
	node := func(path string, mtime int64) *DirNode {
		n, ok := dirs[path]
		if !ok {
			n = &DirNode{Mtime: mtime}
			dirs[path] = n
		}
		return n
	}
	addChild := func(n *DirNode, name string) {
		for _, c := range n.Children {
			if c == name {
				return
			}
		}
		n.Children = append(n.Children, name)
	}

	for key, sd := range tree.SDIndex {
		n := node(key, sd.Entry.Stat.Mtime.Sec)
		n.SD = sd
		if br, ok := tree.Bucket[key]; ok {
			for _, f := range allDataFiles(br) {
				if f.Mtime() > n.Mtime {
					n.Mtime = f.Mtime()
				}
			}
		}
		if sd.Parent == nil {
			continue
		}
		// Register the chain of directories from this storage directory
		// up to (but not including) its parent storage directory.
		stop := sd.Parent.Entry
		for e := sd.Entry; e != stop; e = e.Parent {
			parent := node(e.Parent.Path.String(), e.Parent.Stat.Mtime.Sec)
			addChild(parent, e.Path.Name().String())
		}
	}

	for _, n := range dirs {
		sort.Strings(n.Children)
	}
	return dirs
}
