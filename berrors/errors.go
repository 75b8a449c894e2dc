// Package berrors defines the error kinds surfaced by the forward and
// reverse engines, per the error handling design: scan-time errors are
// fatal, serve-time errors map to a small set of errno values, and a
// corrupt manifest only takes down its own point in time.
package berrors

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Kind identifies which of the documented error categories an error
// belongs to.
type Kind int

const (
	KindInvalidName Kind = iota
	KindInvalidGlob
	KindNotABeakArchive
	KindManifestCorrupt
	KindCaseCollision
	KindUnderlyingIO
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindInvalidName:
		return "InvalidName"
	case KindInvalidGlob:
		return "InvalidGlob"
	case KindNotABeakArchive:
		return "NotABeakArchive"
	case KindManifestCorrupt:
		return "ManifestCorrupt"
	case KindCaseCollision:
		return "CaseCollision"
	case KindUnderlyingIO:
		return "UnderlyingIO"
	case KindNotFound:
		return "NotFound"
	default:
		return "Unknown"
	}
}

// Error wraps an underlying cause with one of the documented Kinds and,
// where the kind has a defined syscall-level mapping, the errno that a
// FUSE serve layer should respond with.
type Error struct {
	Kind  Kind
	Errno unix.Errno
	msg   string
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.msg)
}

func (e *Error) Unwrap() error {
	return e.cause
}

func newErr(kind Kind, errno unix.Errno, msg string, cause error) *Error {
	return &Error{Kind: kind, Errno: errno, msg: msg, cause: cause}
}

func InvalidName(name string) *Error {
	return newErr(KindInvalidName, unix.EINVAL, fmt.Sprintf("atom name %q contains '/'", name), nil)
}

func InvalidGlob(pattern string, cause error) *Error {
	return newErr(KindInvalidGlob, unix.EINVAL, fmt.Sprintf("invalid glob %q", pattern), cause)
}

func NotABeakArchive(root string) *Error {
	return newErr(KindNotABeakArchive, unix.ENOENT, fmt.Sprintf("no manifest found walking up from %q", root), nil)
}

func ManifestCorrupt(path string, cause error) *Error {
	return newErr(KindManifestCorrupt, unix.EIO, fmt.Sprintf("manifest at %q is corrupt", path), cause)
}

func CaseCollision(a, b string) *Error {
	return newErr(KindCaseCollision, unix.EEXIST, fmt.Sprintf("case-insensitive collision between %q and %q", a, b), nil)
}

func UnderlyingIO(path string, cause error) *Error {
	return newErr(KindUnderlyingIO, unix.EIO, fmt.Sprintf("I/O failure on %q", path), cause)
}

func NotFound(path string) *Error {
	return newErr(KindNotFound, unix.ENOENT, fmt.Sprintf("no such path %q", path), nil)
}

// IsKind reports whether err is a *Error of the given Kind, so callers can
// write berrors.IsKind(err, berrors.KindNotFound) without type-asserting.
func IsKind(err error, kind Kind) bool {
	be, ok := err.(*Error)
	return ok && be.Kind == kind
}
