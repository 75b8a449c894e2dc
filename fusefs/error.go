package fusefs

import (
	"errors"

	"bazil.org/fuse"

	"github.com/msg555/beakfs/berrors"
	"github.com/msg555/beakfs/unix"
)

var errNotASymlink = errors.New("not a symlink")
var errUnknownInode = errors.New("unknown inode")
var errUnknownHandle = errors.New("unknown file handle")
var errNotImplemented = errors.New("not implemented")

// FuseError pairs a cause with the errno a FUSE response should carry.
type FuseError struct {
	source error
	errno  unix.Errno
}

func (err FuseError) Error() string {
	return err.source.Error()
}

func (err FuseError) Errno() fuse.Errno {
	return fuse.Errno(err.errno)
}

// WrapIOError turns any error the forward/reverse serve layer returns
// into a FuseError, reading the errno off a *berrors.Error when present
// and defaulting to EIO otherwise.
func WrapIOError(err error) FuseError {
	if fe, ok := err.(FuseError); ok {
		return fe
	}
	if be, ok := err.(*berrors.Error); ok {
		return FuseError{source: err, errno: be.Errno}
	}
	return FuseError{source: err, errno: unix.EIO}
}
