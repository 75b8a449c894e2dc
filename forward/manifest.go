package forward

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"sort"
	"time"

	"github.com/msg555/beakfs/tarfile"
	"github.com/msg555/beakfs/unix"
	"github.com/msg555/beakfs/vfs"
)

func permString(e *tarfile.Entry) string {
	var typeChar byte
	switch e.Kind {
	case tarfile.KindDirectory:
		typeChar = 'd'
	case tarfile.KindSymlink:
		typeChar = 'l'
	case tarfile.KindFifo:
		typeChar = 'p'
	case tarfile.KindCharDevice:
		typeChar = 'c'
	case tarfile.KindBlockDevice:
		typeChar = 'b'
	case tarfile.KindHardlink:
		typeChar = 'h'
	default:
		typeChar = '-'
	}
	mode := e.Stat.Mode
	bits := [9]byte{'r', 'w', 'x', 'r', 'w', 'x', 'r', 'w', 'x'}
	for i := 0; i < 9; i++ {
		shift := 8 - i
		if mode&(1<<uint(shift)) == 0 {
			bits[i] = '-'
		}
	}
	// setuid/setgid/sticky fold into the exec-bit position, upper-case
	// when the underlying exec bit is off, matching ls -l convention.
	if mode&unix.S_ISUID != 0 {
		bits[2] = foldSpecialBit(bits[2], 's', 'S')
	}
	if mode&unix.S_ISGID != 0 {
		bits[5] = foldSpecialBit(bits[5], 's', 'S')
	}
	if mode&unix.S_ISVTX != 0 {
		bits[8] = foldSpecialBit(bits[8], 't', 'T')
	}
	return string(typeChar) + string(bits[:])
}

func foldSpecialBit(execBit byte, withExec, withoutExec byte) byte {
	if execBit == 'x' {
		return withExec
	}
	return withoutExec
}

func collectUidsGids(entries []*tarfile.Entry) (uids, gids []uint32) {
	seenU, seenG := map[uint32]bool{}, map[uint32]bool{}
	for _, e := range entries {
		if !seenU[e.Stat.Uid] {
			seenU[e.Stat.Uid] = true
			uids = append(uids, e.Stat.Uid)
		}
		if !seenG[e.Stat.Gid] {
			seenG[e.Stat.Gid] = true
			gids = append(gids, e.Stat.Gid)
		}
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	sort.Slice(gids, func(i, j int) bool { return gids[i] < gids[j] })
	return uids, gids
}

func allDataFiles(br *BucketResult) []*tarfile.File {
	var files []*tarfile.File
	if br.DirTar != nil {
		files = append(files, br.DirTar)
	}
	files = append(files, br.SmallMed...)
	files = append(files, br.Large...)
	return files
}

// buildFileLine renders one manifest entry line. tarName/offset are
// empty/zero for directories, which have no backing tar position; for
// everything else offset points at the first content byte inside
// tarName, past the entry's header blocks, which is where the reverse
// engine preads.
func buildFileLine(e *tarfile.Entry, tarName string, offset int64) string {
	uidGid := fmt.Sprintf("%d/%d", e.Stat.Uid, e.Stat.Gid)
	size := e.Stat.Size
	if e.Kind == tarfile.KindDirectory {
		size = 0
	}
	mt := time.Unix(e.Stat.Mtime.Sec, e.Stat.Mtime.Nsec).UTC()
	readable := mt.Format("2006-01-02 15:04.05")
	secNanos := fmt.Sprintf("%d.%09d", e.Stat.Mtime.Sec, e.Stat.Mtime.Nsec)

	linkInfo := e.ManifestLinkInfo()

	offsetStr := ""
	if tarName != "" {
		offsetStr = fmt.Sprintf("%d", offset)
	}

	cols := []string{
		permString(e),
		uidGid,
		fmt.Sprintf("%d", size),
		readable,
		secNanos,
		"/" + e.TarPath,
		linkInfo,
		tarName,
		offsetStr,
	}
	out := cols[0]
	for _, c := range cols[1:] {
		out += "\x00" + c
	}
	return out
}

// manifestEntries returns every entry the manifest at sd describes: its
// attached entries plus one directory line per sub-storage-directory,
// in tar-friendly order. Listing the sub-storage-directories here is
// what lets a reader enumerate them without probing the backing store.
func manifestEntries(sd *StorageDir) []*tarfile.Entry {
	entries := append([]*tarfile.Entry(nil), sd.Attached...)
	for _, sub := range sd.SubDirs {
		entries = append(entries, sub.Entry)
	}
	tarFriendlySort(entries)
	return entries
}

// BuildManifestText renders the NUL-separated manifest text for sd,
// locating each entry's (tarName, offset) by searching br's partitioned
// tar files.
func BuildManifestText(sd *StorageDir, br *BucketResult, message string) []byte {
	files := allDataFiles(br)
	entries := manifestEntries(sd)
	uids, gids := collectUidsGids(entries)

	locate := func(e *tarfile.Entry) (string, int64) {
		if e.Kind == tarfile.KindDirectory {
			return "", 0
		}
		for _, f := range files {
			if off, ok := f.OffsetOf(e); ok {
				return f.Name(), off + e.HeaderSize()
			}
		}
		return "", 0
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "#beak %s\n", tarfile.ManifestVersion)
	fmt.Fprintf(&buf, "#message %s\n", message)
	fmt.Fprintf(&buf, "#uids %s\n", joinUint32(uids))
	fmt.Fprintf(&buf, "#gids %s\n", joinUint32(gids))
	fmt.Fprintf(&buf, "#files %d\n", len(entries))
	for _, e := range entries {
		tarName, off := locate(e)
		buf.WriteString(buildFileLine(e, tarName, off))
		buf.WriteByte(0)
	}
	fmt.Fprintf(&buf, "#tars %d\n", len(files))
	for _, f := range files {
		buf.WriteString(f.Name())
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

func joinUint32(vs []uint32) string {
	out := ""
	for i, v := range vs {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%d", v)
	}
	return out
}

// BuildManifestIndex gzips manifestText and wraps it, along with the
// "beak" volume header, into the two-entry manifest archive tar,
// hashing in the text plus every sibling data tar's hash so the index's
// own name changes iff any content in the storage directory changed.
func BuildManifestIndex(manifestText []byte, siblingFiles []*tarfile.File) *tarfile.File {
	var gz bytes.Buffer
	w := gzip.NewWriter(&gz)
	_, _ = w.Write(manifestText)
	_ = w.Close()

	var latest vfs.Timespec
	hashes := make([][32]byte, 0, len(siblingFiles))
	for _, sf := range siblingFiles {
		hashes = append(hashes, sf.Hash())
		if sf.Mtime() > latest.Sec {
			latest = vfs.Timespec{Sec: sf.Mtime()}
		}
	}

	volume := tarfile.NewVolumeHeaderEntry("beak")
	contents := tarfile.NewManifestBlobEntry("beak-contents", vfs.FileStat{Mode: 0100644, Mtime: latest}, gz.Bytes())

	f := tarfile.NewFile(tarfile.ManifestIndex, 0, []*tarfile.Entry{volume, contents})
	f.ComputeIndexHash(manifestText, hashes)
	return f
}
