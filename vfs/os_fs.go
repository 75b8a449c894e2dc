package vfs

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/msg555/beakfs/unix"
)

// OSFilesystem is the real-OS FS implementation: every traversal goes
// through unix.Open/Getdents/Fstatat rather than os.ReadDir/os.Stat, so
// a directory is opened once and its children are statted relative to
// that file descriptor.
type OSFilesystem struct {
	root string
}

// NewOSFilesystem roots an OSFilesystem at the given real directory.
func NewOSFilesystem(root string) *OSFilesystem {
	return &OSFilesystem{root: root}
}

func (fs *OSFilesystem) resolve(path string) string {
	return filepath.Join(fs.root, path)
}

func statToFileStat(st *unix.Stat_t) FileStat {
	return FileStat{
		Mode:  st.Mode,
		Uid:   st.Uid,
		Gid:   st.Gid,
		Rdev:  uint64(st.Rdev),
		Size:  st.Size,
		Atime: Timespec{Sec: int64(st.Atim.Sec), Nsec: int64(st.Atim.Nsec)},
		Mtime: Timespec{Sec: int64(st.Mtim.Sec), Nsec: int64(st.Mtim.Nsec)},
		Ctime: Timespec{Sec: int64(st.Ctim.Sec), Nsec: int64(st.Ctim.Nsec)},
		Nlink: uint32(st.Nlink),
		Ino:   st.Ino,
	}
}

func (fs *OSFilesystem) Lstat(path string) (FileStat, error) {
	var st unix.Stat_t
	err := unix.Fstatat(unix.AT_FDCWD, fs.resolve(path), &st, unix.AT_SYMLINK_NOFOLLOW)
	if err != nil {
		return FileStat{}, err
	}
	return statToFileStat(&st), nil
}

func (fs *OSFilesystem) Readdir(path string) ([]DirEntry, error) {
	dirPath := fs.resolve(path)
	fd, err := unix.Open(dirPath, unix.O_RDONLY|unix.O_DIRECTORY, 0)
	if err != nil {
		return nil, err
	}
	defer unix.Close(fd)

	var entries []DirEntry
	buf := make([]byte, 1<<16)
	for {
		n, err := unix.Getdents(fd, buf)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			break
		}

		for pos := 0; pos < n; {
			ino := unix.Hbo.Uint64(buf[pos:])
			reclen := unix.Hbo.Uint16(buf[pos+16:])
			name := nullTerminatedString(buf[pos+19 : pos+int(reclen)])
			pos += int(reclen)

			if ino == 0 || name == "." || name == ".." {
				continue
			}

			var st unix.Stat_t
			err := unix.Fstatat(fd, name, &st, unix.AT_SYMLINK_NOFOLLOW)
			if err != nil {
				return nil, err
			}
			entries = append(entries, DirEntry{
				Name: name,
				Stat: statToFileStat(&st),
			})
		}
	}
	return entries, nil
}

func (fs *OSFilesystem) Readlink(path string) (string, error) {
	buf := make([]byte, unix.PATH_MAX)
	n, err := unix.Readlinkat(unix.AT_FDCWD, fs.resolve(path), buf)
	if err != nil {
		return "", err
	}
	return string(buf[:n]), nil
}

func (fs *OSFilesystem) Open(path string) (ReaderAtCloser, error) {
	return os.Open(fs.resolve(path))
}

func nullTerminatedString(data []byte) string {
	if idx := strings.IndexByte(string(data), 0); idx >= 0 {
		return string(data[:idx])
	}
	return string(data)
}
