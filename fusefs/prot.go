package fusefs

import (
	"github.com/msg555/beakfs/unix"
)

// direntAlign rounds x up to the FUSE_DIRENT_ALIGN boundary (8 bytes).
func direntAlign(x int) int {
	return (x + 7) &^ 7
}

// addDirEntry writes one raw fuse_dirent record into buf and returns its
// padded length, or 0 if buf is too small to hold it:
//
//	struct fuse_dirent {
//	  u64   ino;
//	  u64   off;
//	  u32   namelen;
//	  u32   type;
//	  char name[];
//	}
func addDirEntry(buf []byte, name string, inodeId uint64, offset uint64, inodeMode uint32) int {
	entryBaseLen := 24 + len(name)
	entryPadLen := direntAlign(entryBaseLen)
	if len(buf) < entryPadLen {
		return 0
	}

	unix.Hbo.PutUint64(buf[0:], inodeId)
	unix.Hbo.PutUint64(buf[8:], offset)
	unix.Hbo.PutUint32(buf[16:], uint32(len(name)))
	unix.Hbo.PutUint32(buf[20:], (inodeMode&unix.S_IFMT)>>12)

	copy(buf[24:], name)
	for i := entryBaseLen; i < entryPadLen; i++ {
		buf[i] = 0
	}

	return entryPadLen
}
