package tarfile

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
)

// ManifestVersion is the single manifest text format version the forward
// engine writes and the reverse engine accepts; anything else is
// ManifestCorrupt. There is no fallback to older manifest dialects.
const ManifestVersion = "1.0"

// BucketKind classifies a File by what it holds, matching the type-letter
// scheme embedded in its filename.
type BucketKind int

const (
	DirManifestData BucketKind = iota // type 'z'
	SmallBucket                       // type 'r'
	MediumBucket                      // type 'm'
	LargeSingle                       // type 'l'
	ManifestIndex                     // suffix '.gz'; Name renders it with letter 'z'
)

func (k BucketKind) letter() byte {
	switch k {
	case DirManifestData:
		return 'z'
	case SmallBucket:
		return 'r'
	case MediumBucket:
		return 'm'
	case LargeSingle:
		return 'l'
	default:
		return 0
	}
}

// offsetEntry pairs an Entry with its starting offset inside a File.
type offsetEntry struct {
	offset int64
	entry  *Entry
}

// File is an ordered collection of tar entries laid out contiguously
// with 512-byte blocking.
type File struct {
	Kind   BucketKind
	Serial uint32

	entries []offsetEntry
	size    int64
	mtime   int64 // latest entry mtime, seconds

	name string
	hash [32]byte
}

// NewFile lays out entries (already in tar-friendly order) contiguously,
// computing offsets and total size.
func NewFile(kind BucketKind, serial uint32, entries []*Entry) *File {
	f := &File{Kind: kind, Serial: serial}
	var off int64
	for _, e := range entries {
		f.entries = append(f.entries, offsetEntry{offset: off, entry: e})
		off += e.BlockedSize()
		if e.Stat.Mtime.Sec > f.mtime {
			f.mtime = e.Stat.Mtime.Sec
		}
	}
	f.size = off
	return f
}

// Size is the file's total byte length.
func (f *File) Size() int64 { return f.size }

// Mtime is the latest mtime (seconds) among the file's entries.
func (f *File) Mtime() int64 { return f.mtime }

// Entries returns the file's entries in layout order.
func (f *File) Entries() []*Entry {
	out := make([]*Entry, len(f.entries))
	for i, oe := range f.entries {
		out[i] = oe.entry
	}
	return out
}

// OffsetOf returns e's starting offset within the file, if present.
func (f *File) OffsetOf(e *Entry) (int64, bool) {
	for _, oe := range f.entries {
		if oe.entry == e {
			return oe.offset, true
		}
	}
	return 0, false
}

// ComputeDataHash hashes the concatenation of every entry's full tar
// byte range (header, content, and block padding). Hashing the realized
// bytes rather than just the header struct is what makes the hash
// change exactly when an entry's content changes, independent of every
// other entry in the file.
func (f *File) ComputeDataHash() [32]byte {
	h := sha256.New()
	buf := make([]byte, 32*1024)
	for _, oe := range f.entries {
		remaining := oe.entry.BlockedSize()
		var at int64
		for remaining > 0 {
			chunk := buf
			if int64(len(chunk)) > remaining {
				chunk = chunk[:remaining]
			}
			n := oe.entry.Copy(chunk, at)
			if n == 0 {
				break
			}
			h.Write(chunk[:n])
			at += int64(n)
			remaining -= int64(n)
		}
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	f.hash = out
	return out
}

// Hash returns the hash most recently computed by ComputeDataHash or
// ComputeIndexHash.
func (f *File) Hash() [32]byte { return f.hash }

// ComputeIndexHash hashes the manifest text plus every sibling data
// tar's hash, so the index's name changes iff any content in the
// storage directory changed.
func (f *File) ComputeIndexHash(manifestText []byte, siblingHashes [][32]byte) [32]byte {
	h := sha256.New()
	h.Write(manifestText)
	sorted := append([][32]byte(nil), siblingHashes...)
	sort.Slice(sorted, func(i, j int) bool {
		return hex.EncodeToString(sorted[i][:]) < hex.EncodeToString(sorted[j][:])
	})
	for _, sh := range sorted {
		h.Write(sh[:])
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	f.hash = out
	return out
}

// Name returns the file's content-addressed name:
// ta<type><8-hex-serial>_<32-hex-hash>_<decimal-size>.tar, or the .gz
// suffix for a ManifestIndex. The hash field is the first 16 bytes of
// the SHA-256, rendered as 32 hex digits.
func (f *File) Name() string {
	ext := "tar"
	if f.Kind == ManifestIndex {
		ext = "gz"
	}
	letter := f.Kind.letter()
	if letter == 0 {
		letter = 'z'
	}
	return fmt.Sprintf("ta%c%08x_%s_%d.%s", letter, f.Serial, hex.EncodeToString(f.hash[:16]), f.size, ext)
}

// find returns the index of the last offsetEntry whose offset is <= at.
func (f *File) find(at int64) int {
	return sort.Search(len(f.entries), func(i int) bool {
		return f.entries[i].offset > at
	}) - 1
}

// Copy binary-searches the offset table for the entry spanning offset,
// delegating to Entry.Copy for each entry the requested range touches,
// and returns the total bytes written.
func (f *File) Copy(dst []byte, offset int64) int {
	if offset >= f.size || len(f.entries) == 0 {
		return 0
	}
	idx := f.find(offset)
	if idx < 0 {
		idx = 0
	}

	written := 0
	for idx < len(f.entries) && len(dst) > 0 {
		oe := f.entries[idx]
		localOff := offset - oe.offset
		if localOff < 0 {
			localOff = 0
		}
		n := oe.entry.Copy(dst, localOff)
		if n == 0 {
			break
		}
		written += n
		dst = dst[n:]
		offset += int64(n)
		idx++
	}
	return written
}
