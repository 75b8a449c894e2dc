package reverse

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/msg555/beakfs/berrors"
	"github.com/msg555/beakfs/vfs"
)

// manifestSuffix is the filename suffix every manifest index carries;
// see tarfile.File.Name's ManifestIndex case (type letter 'z', extension
// ".gz").
const manifestSuffix = ".gz"

func isManifestName(name string) bool {
	return strings.HasPrefix(name, "taz") && strings.HasSuffix(name, manifestSuffix)
}

// findManifests lists dir and returns every manifest-shaped entry,
// newest first by the backing filesystem's own mtime: the tar names
// carry content hashes, so the file mtime is what orders the points in
// time a directory has accumulated.
func findManifests(fsys vfs.FS, dir string) ([]vfs.DirEntry, error) {
	entries, err := fsys.Readdir(dir)
	if err != nil {
		return nil, err
	}
	var out []vfs.DirEntry
	for _, e := range entries {
		if isManifestName(e.Name) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Stat.Mtime.Sec != out[j].Stat.Mtime.Sec {
			return out[i].Stat.Mtime.Sec > out[j].Stat.Mtime.Sec
		}
		return out[i].Stat.Mtime.Nsec > out[j].Stat.Mtime.Nsec
	})
	return out, nil
}

// loadGz opens the manifest tar at manifestPath, asserts its shape
// (volume header "beak" then "beak-contents"), gunzips the second
// entry, and parses the resulting manifest text.
func loadGz(fsys vfs.FS, manifestPath string) (*parsedManifest, error) {
	stat, err := fsys.Lstat(manifestPath)
	if err != nil {
		return nil, berrors.UnderlyingIO(manifestPath, err)
	}
	f, err := fsys.Open(manifestPath)
	if err != nil {
		return nil, berrors.UnderlyingIO(manifestPath, err)
	}
	defer f.Close()

	tr := tar.NewReader(io.NewSectionReader(f, 0, stat.Size))

	hdr, err := tr.Next()
	if err != nil {
		return nil, wrapManifestCorrupt(manifestPath, fmt.Errorf("reading volume header: %w", err))
	}
	if hdr.Typeflag != 'V' || hdr.Name != "beak" {
		return nil, wrapManifestCorrupt(manifestPath, fmt.Errorf("expected volume header %q, got %q (type %q)", "beak", hdr.Name, hdr.Typeflag))
	}

	hdr, err = tr.Next()
	if err != nil {
		return nil, wrapManifestCorrupt(manifestPath, fmt.Errorf("reading contents entry: %w", err))
	}
	if hdr.Name != "beak-contents" {
		return nil, wrapManifestCorrupt(manifestPath, fmt.Errorf("expected entry %q, got %q", "beak-contents", hdr.Name))
	}

	gz, err := gzip.NewReader(tr)
	if err != nil {
		return nil, wrapManifestCorrupt(manifestPath, fmt.Errorf("gunzipping contents: %w", err))
	}
	defer gz.Close()
	text, err := io.ReadAll(gz)
	if err != nil {
		return nil, wrapManifestCorrupt(manifestPath, fmt.Errorf("reading contents: %w", err))
	}

	pm, err := parseManifestText(text)
	if err != nil {
		return nil, wrapManifestCorrupt(manifestPath, err)
	}
	return pm, nil
}

// flatPathParent returns the directory portion of a storage-dir-relative
// flat path (with its leading '/' already stripped), "" for a
// top-level name.
func flatPathParent(p string) string {
	idx := strings.LastIndexByte(p, '/')
	if idx < 0 {
		return ""
	}
	return p[:idx]
}

func flatPathName(p string) string {
	idx := strings.LastIndexByte(p, '/')
	if idx < 0 {
		return p
	}
	return p[idx+1:]
}

// buildEntryTree turns a parsedManifest's flat file_line list into a
// tree of Entry nodes hung off root, which represents the storage
// directory itself. Lines arrive ancestor-before-descendant, so a
// line's parent is normally already present; the exception is an entry
// hoisted out of a nested storage directory (a cross-directory hard
// link), whose intermediate directories belong to the nested manifest.
// Those gaps are bridged with synthetic directory nodes that a deeper
// manifest's real entries shadow at resolution time.
func buildEntryTree(root *Entry, storageDir string, pm *parsedManifest) error {
	byKey := map[string]*Entry{"": root}
	root.children = map[string]*Entry{}

	var maxChildSec, maxChildNsec int64
	for _, fl := range pm.lines {
		key := strings.TrimPrefix(fl.path, "/")
		parentKey := flatPathParent(key)
		parent := syntheticDirs(byKey, parentKey)

		e := &Entry{
			Name:       flatPathName(key),
			Mode:       fl.mode,
			Uid:        fl.uid,
			Gid:        fl.gid,
			Size:       fl.size,
			MtimeSec:   fl.mtimeSec,
			MtimeNsec:  fl.mtimeNsec,
			tarName:    fl.tarName,
			offset:     fl.offset,
			storageDir: storageDir,
			Parent:     parent,
		}
		if e.isDir() {
			e.children = map[string]*Entry{}
		} else if e.isSymlink() {
			e.Symlink = fl.linkInfo
		}
		if fl.linkInfo != "" && !e.isSymlink() {
			e.hardlinkPath = fl.linkInfo
		}

		if parent.children == nil {
			parent.children = map[string]*Entry{}
		}
		parent.children[e.Name] = e
		byKey[key] = e

		if parent == root {
			newer := fl.mtimeSec > maxChildSec || (fl.mtimeSec == maxChildSec && fl.mtimeNsec > maxChildNsec)
			if newer {
				maxChildSec, maxChildNsec = fl.mtimeSec, fl.mtimeNsec
			}
		}
	}

	root.MtimeSec, root.MtimeNsec = maxChildSec, maxChildNsec
	return nil
}

// syntheticDirs returns the entry at key, creating placeholder
// directory nodes (and their missing ancestors) as needed.
func syntheticDirs(byKey map[string]*Entry, key string) *Entry {
	if e, ok := byKey[key]; ok {
		return e
	}
	parent := syntheticDirs(byKey, flatPathParent(key))
	e := &Entry{
		Name:     flatPathName(key),
		Mode:     syntheticDirMode,
		Parent:   parent,
		children: map[string]*Entry{},
	}
	if parent.children == nil {
		parent.children = map[string]*Entry{}
	}
	parent.children[e.Name] = e
	byKey[key] = e
	return e
}

// joinPhysical joins a physical directory and a basename the same way
// every backing FS implementation expects: a clean '/'-separated path.
func joinPhysical(dir, name string) string {
	if dir == "" || dir == "/" {
		return "/" + name
	}
	return path.Join(dir, name)
}
