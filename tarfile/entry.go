// Package tarfile builds the synthetic tar byte stream the forward engine
// serves: one Entry per scanned filesystem object, grouped into Files that
// lay entries out contiguously with 512-byte blocking. Header bytes are
// produced by archive/tar.Writer rather than hand-rolled, so GNU long-name
// and long-link extension blocks come from the standard library's own
// framing instead of a reimplementation of it.
package tarfile

import (
	"archive/tar"
	"bytes"
	"sync"
	"time"

	"github.com/msg555/beakfs/bpath"
	"github.com/msg555/beakfs/vfs"
)

// Kind identifies what an Entry's tar record represents.
type Kind int

const (
	KindRegular Kind = iota
	KindDirectory
	KindSymlink
	KindFifo
	KindCharDevice
	KindBlockDevice
	KindHardlink
	KindManifestBlob
	KindVolumeHeader
)

// gnuTypeVolumeHeader is GNU tar's volume-header typeflag ('V'), used
// only by the manifest archive's first entry.
const gnuTypeVolumeHeader = 'V'

const blockSize = 512

func blockRound(n int64) int64 {
	return (n + blockSize - 1) &^ (blockSize - 1)
}

// Entry is one source-tree object lifted into a tar record.
type Entry struct {
	AbsPath string      // real path on the scanned filesystem; content is read through it for regular files only
	Path    *bpath.Path // path relative to the scan root
	TarPath string      // path as recorded in the tar, leading '/' stripped

	Stat vfs.FileStat
	Kind Kind

	// LinkTarget is the symlink target for KindSymlink. For KindHardlink
	// it is a snapshot taken at rewrite time; hardlinkOf is consulted
	// instead wherever the current tarpath is needed, since the target's
	// tarpath can still change under a later RemovePrefix.
	LinkTarget string

	// hardlinkOf is the original entry a KindHardlink entry points at.
	hardlinkOf *Entry

	// Blob holds in-memory content for KindManifestBlob entries (the
	// beak / beak-contents records of a manifest archive).
	Blob []byte

	Parent       *Entry
	Children     []*Entry
	ChildrenSize int64

	IsStorageDir bool
	AddedToDir   bool

	fs vfs.FS

	headerMu sync.Mutex
	header   []byte
}

// NewEntry constructs an Entry for a real filesystem object.
func NewEntry(fsys vfs.FS, absPath string, path *bpath.Path, tarPath string, stat vfs.FileStat, kind Kind, linkTarget string) *Entry {
	return &Entry{
		AbsPath:    absPath,
		Path:       path,
		TarPath:    tarPath,
		Stat:       stat,
		Kind:       kind,
		LinkTarget: linkTarget,
		fs:         fsys,
	}
}

// NewManifestBlobEntry constructs an Entry whose content is an in-memory
// buffer rather than a real file (the two records of a manifest archive).
func NewManifestBlobEntry(tarPath string, stat vfs.FileStat, blob []byte) *Entry {
	return &Entry{
		TarPath: tarPath,
		Stat:    stat,
		Kind:    KindManifestBlob,
		Blob:    blob,
	}
}

// NewVolumeHeaderEntry constructs the manifest archive's first entry: a
// zero-length GNU volume-header record named "beak".
func NewVolumeHeaderEntry(name string) *Entry {
	return &Entry{
		TarPath: name,
		Kind:    KindVolumeHeader,
	}
}

// TarpathHash is the DJB2 hash of the entry's current tarpath, used for
// bucket placement.
func (e *Entry) TarpathHash() uint32 {
	return DJB2Hash(e.TarPath)
}

func (e *Entry) typeflag() byte {
	switch e.Kind {
	case KindDirectory:
		return tar.TypeDir
	case KindSymlink:
		return tar.TypeSymlink
	case KindFifo:
		return tar.TypeFifo
	case KindCharDevice:
		return tar.TypeChar
	case KindBlockDevice:
		return tar.TypeBlock
	case KindHardlink:
		return tar.TypeLink
	case KindVolumeHeader:
		return gnuTypeVolumeHeader
	default:
		return tar.TypeReg
	}
}

// ContentSize is the number of content bytes following the header: the
// file's own size for a regular file or manifest blob, zero otherwise.
func (e *Entry) ContentSize() int64 {
	switch e.Kind {
	case KindRegular:
		return e.Stat.Size
	case KindManifestBlob:
		return int64(len(e.Blob))
	default:
		return 0
	}
}

func (e *Entry) buildHeader() []byte {
	hdr := &tar.Header{
		Name:     e.TarPath,
		Mode:     int64(e.Stat.Mode & 07777),
		Uid:      int(e.Stat.Uid),
		Gid:      int(e.Stat.Gid),
		Size:     e.ContentSize(),
		ModTime:  time.Unix(e.Stat.Mtime.Sec, e.Stat.Mtime.Nsec),
		Typeflag: e.typeflag(),
		Format:   tar.FormatGNU,
	}
	hdr.Linkname = e.LinkInfo()
	if e.Kind == KindCharDevice || e.Kind == KindBlockDevice {
		hdr.Devmajor = int64(e.Stat.Rdev >> 8)
		hdr.Devminor = int64(e.Stat.Rdev & 0xff)
	}

	var buf bytes.Buffer
	w := tar.NewWriter(&buf)
	// WriteHeader alone never errors for names/links within GNU's limits;
	// a write failure here means the in-memory buffer is broken.
	if err := w.WriteHeader(hdr); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// Header returns the entry's header block stream: the primary 512-byte
// header plus any GNU long-name/long-link extension blocks that precede
// it, computed once and cached.
func (e *Entry) Header() []byte {
	e.headerMu.Lock()
	defer e.headerMu.Unlock()
	if e.header == nil {
		e.header = e.buildHeader()
	}
	return e.header
}

// invalidateHeader drops the cached header so the next access rebuilds
// it; called after TarPath or link state changes.
func (e *Entry) invalidateHeader() {
	e.headerMu.Lock()
	e.header = nil
	e.headerMu.Unlock()
}

// HeaderSize is the number of bytes Header returns.
func (e *Entry) HeaderSize() int64 {
	return int64(len(e.Header()))
}

// Size is the entry's total logical length: header plus content.
func (e *Entry) Size() int64 {
	return e.HeaderSize() + e.ContentSize()
}

// BlockedSize is Size rounded up to the next 512-byte boundary.
func (e *Entry) BlockedSize() int64 {
	return blockRound(e.Size())
}

// RewriteAsHardlink turns e into a header-only hard-link record pointing
// at target's tarpath. Called during the hard-link pre-pass (forward
// package) for every non-original entry sharing an inode.
func (e *Entry) RewriteAsHardlink(target *Entry) {
	e.Kind = KindHardlink
	e.LinkTarget = target.TarPath
	e.hardlinkOf = target
	e.invalidateHeader()
}

// LinkInfo is the tar header's link field: a symlink's target, or a hard
// link's current (possibly since-reprefixed) target tarpath, resolved
// dynamically through hardlinkOf so a later RemovePrefix on the target
// is always reflected. Empty for every other kind.
func (e *Entry) LinkInfo() string {
	switch e.Kind {
	case KindSymlink:
		return e.LinkTarget
	case KindHardlink:
		if e.hardlinkOf != nil {
			return e.hardlinkOf.TarPath
		}
		return e.LinkTarget
	default:
		return ""
	}
}

// ManifestLinkInfo is what the manifest text's link-info column records:
// a symlink's target (same as LinkInfo), or, for a hard link, the
// original's full scan-root-relative Path string rather than its
// tarpath. A hard-link's tar-internal Linkname only resolves within its
// own storage-directory's tar collection; the reverse engine needs a
// coordinate that stays valid after the post-grouping fix-up moves the
// link to a different storage directory than its target, so the
// manifest records the one path that never changes with tar placement.
func (e *Entry) ManifestLinkInfo() string {
	switch e.Kind {
	case KindSymlink:
		return e.LinkTarget
	case KindHardlink:
		if e.hardlinkOf != nil && e.hardlinkOf.Path != nil {
			return e.hardlinkOf.Path.String()
		}
		return e.LinkTarget
	default:
		return ""
	}
}

// RemovePrefix strips the first n bytes of TarPath (storage-directory
// prefix removal at finalization) and invalidates the cached header so
// it is rebuilt with the new name, possibly changing its long-name block
// accounting.
func (e *Entry) RemovePrefix(n int) {
	e.TarPath = e.TarPath[n:]
	e.invalidateHeader()
}

// Copy fills dst with up to len(dst) bytes of the entry's tar byte
// stream starting at logical offset from, padding any trailing partial
// block with NUL. It returns the number of bytes written.
func (e *Entry) Copy(dst []byte, from int64) int {
	written := 0
	hdr := e.Header()
	headerLen := int64(len(hdr))

	if from < headerLen {
		n := copy(dst, hdr[from:])
		written += n
		dst = dst[n:]
		from += int64(n)
	}
	if len(dst) == 0 {
		return written
	}

	contentSize := e.ContentSize()
	contentOff := from - headerLen
	if contentOff < contentSize {
		remaining := contentSize - contentOff
		toRead := int64(len(dst))
		if toRead > remaining {
			toRead = remaining
		}
		n := e.readContent(dst[:toRead], contentOff)
		written += n
		dst = dst[n:]
		from += int64(n)
		if int64(n) < toRead {
			// short read: stop early rather than pad over missing data.
			return written
		}
	}
	if len(dst) == 0 {
		return written
	}

	blocked := e.BlockedSize()
	padAvail := blocked - from
	n := int64(len(dst))
	if n > padAvail {
		n = padAvail
	}
	if n < 0 {
		n = 0
	}
	for i := int64(0); i < n; i++ {
		dst[i] = 0
	}
	written += int(n)
	return written
}

func (e *Entry) readContent(dst []byte, off int64) int {
	if e.Kind == KindManifestBlob {
		return copy(dst, e.Blob[off:])
	}
	if e.Kind != KindRegular || e.fs == nil {
		return 0
	}
	r, err := e.fs.Open(e.AbsPath)
	if err != nil {
		return 0
	}
	defer r.Close()
	n, _ := r.ReadAt(dst, off)
	return n
}
