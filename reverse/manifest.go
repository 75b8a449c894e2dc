package reverse

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/msg555/beakfs/berrors"
	"github.com/msg555/beakfs/tarfile"
	"github.com/msg555/beakfs/unix"
)

// decodeType maps a manifest permission string's leading type character
// back to the S_IFMT bits permString (forward/manifest.go) encoded it
// from. A hard link always targets a regular file in this engine, so
// 'h' decodes the same as '-'.
func decodeType(c byte) (uint32, bool) {
	switch c {
	case 'd':
		return unix.S_IFDIR, true
	case 'l':
		return unix.S_IFLNK, true
	case 'p':
		return unix.S_IFIFO, true
	case 'c':
		return unix.S_IFCHR, true
	case 'b':
		return unix.S_IFBLK, true
	case 'h', '-':
		return unix.S_IFREG, true
	default:
		return 0, false
	}
}

// decodePermString is permString's inverse: a 10-byte
// "<type><rwxrwxrwx>" string, with setuid/setgid/sticky folded into the
// exec-bit slot, back into a full type+permission mode.
func decodePermString(s string) (uint32, error) {
	if len(s) != 10 {
		return 0, fmt.Errorf("permission string %q: want 10 bytes, got %d", s, len(s))
	}
	typeBits, ok := decodeType(s[0])
	if !ok {
		return 0, fmt.Errorf("permission string %q: unknown type byte %q", s, s[0])
	}

	shifts := [9]uint32{0400, 0200, 0100, 040, 020, 010, 04, 02, 01}
	var mode uint32
	for i := 0; i < 9; i++ {
		switch s[i+1] {
		case 'r', 'w', 'x':
			mode |= shifts[i]
		}
	}
	switch s[3] {
	case 's':
		mode |= unix.S_ISUID | 0100
	case 'S':
		mode |= unix.S_ISUID
	}
	switch s[6] {
	case 's':
		mode |= unix.S_ISGID | 010
	case 'S':
		mode |= unix.S_ISGID
	}
	switch s[9] {
	case 't':
		mode |= unix.S_ISVTX | 01
	case 'T':
		mode |= unix.S_ISVTX
	}
	return typeBits | mode, nil
}

func parseUidGid(col string) (uint32, uint32, error) {
	parts := strings.SplitN(col, "/", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("uid/gid column %q malformed", col)
	}
	uid, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return 0, 0, err
	}
	gid, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return 0, 0, err
	}
	return uint32(uid), uint32(gid), nil
}

func parseSecNanos(col string) (int64, int64, error) {
	parts := strings.SplitN(col, ".", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("mtime column %q malformed", col)
	}
	sec, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, err
	}
	nsec, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, err
	}
	return sec, nsec, nil
}

// parsedManifest is the fully decoded text body of one manifest: a flat
// list of file_line records plus the tar names the header's #tars
// section named, in the same order the forward engine wrote them.
type parsedManifest struct {
	version string
	message string
	lines   []fileLineFields
	tars    []string
}

// fileLineFields is one file_line's nine NUL-separated columns, decoded.
type fileLineFields struct {
	mode      uint32
	uid, gid  uint32
	size      int64
	mtimeSec  int64
	mtimeNsec int64
	path      string // leading-'/' path relative to the storage directory
	linkInfo  string
	tarName   string
	offset    int64
}

// parseManifestText decodes the NUL/newline mixed manifest body the
// forward engine writes. Header lines are newline-terminated; the
// #files and #tars bodies are flat runs of NUL-terminated tokens (9 per
// file_line, 1 per tar name), with no extra delimiter between records.
func parseManifestText(text []byte) (*parsedManifest, error) {
	r := bufio.NewReader(bytes.NewReader(text))

	version, err := readHeaderLine(r, "#beak ")
	if err != nil {
		return nil, err
	}
	if version != tarfile.ManifestVersion {
		return nil, fmt.Errorf("unsupported manifest version %q", version)
	}
	message, err := readHeaderLine(r, "#message ")
	if err != nil {
		return nil, err
	}
	if _, err := readHeaderLine(r, "#uids "); err != nil {
		return nil, err
	}
	if _, err := readHeaderLine(r, "#gids "); err != nil {
		return nil, err
	}
	filesCountStr, err := readHeaderLine(r, "#files ")
	if err != nil {
		return nil, err
	}
	numFiles, err := strconv.Atoi(filesCountStr)
	if err != nil {
		return nil, fmt.Errorf("bad #files count %q: %w", filesCountStr, err)
	}

	lines := make([]fileLineFields, 0, numFiles)
	for i := 0; i < numFiles; i++ {
		cols, err := readNulTokens(r, 9)
		if err != nil {
			return nil, fmt.Errorf("file line %d: %w", i, err)
		}
		fl, err := decodeFileLine(cols)
		if err != nil {
			return nil, fmt.Errorf("file line %d: %w", i, err)
		}
		lines = append(lines, fl)
	}

	tarsCountStr, err := readHeaderLine(r, "#tars ")
	if err != nil {
		return nil, err
	}
	numTars, err := strconv.Atoi(tarsCountStr)
	if err != nil {
		return nil, fmt.Errorf("bad #tars count %q: %w", tarsCountStr, err)
	}
	tars := make([]string, 0, numTars)
	for i := 0; i < numTars; i++ {
		cols, err := readNulTokens(r, 1)
		if err != nil {
			return nil, fmt.Errorf("tar name %d: %w", i, err)
		}
		tars = append(tars, cols[0])
	}

	return &parsedManifest{
		version: version,
		message: message,
		lines:   lines,
		tars:    tars,
	}, nil
}

// readHeaderLine reads one '\n'-terminated line, asserts it starts with
// prefix, and returns the remainder.
func readHeaderLine(r *bufio.Reader, prefix string) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading %q header: %w", prefix, err)
	}
	line = strings.TrimSuffix(line, "\n")
	if !strings.HasPrefix(line, prefix) {
		return "", fmt.Errorf("expected line starting %q, got %q", prefix, line)
	}
	return line[len(prefix):], nil
}

// readNulTokens reads exactly n NUL-terminated tokens.
func readNulTokens(r *bufio.Reader, n int) ([]string, error) {
	out := make([]string, n)
	for i := 0; i < n; i++ {
		tok, err := r.ReadString(0)
		if err != nil {
			return nil, fmt.Errorf("reading token %d: %w", i, err)
		}
		out[i] = strings.TrimSuffix(tok, "\x00")
	}
	return out, nil
}

func decodeFileLine(cols []string) (fileLineFields, error) {
	mode, err := decodePermString(cols[0])
	if err != nil {
		return fileLineFields{}, err
	}
	uid, gid, err := parseUidGid(cols[1])
	if err != nil {
		return fileLineFields{}, err
	}
	size, err := strconv.ParseInt(cols[2], 10, 64)
	if err != nil {
		return fileLineFields{}, err
	}
	// cols[3] is the human-readable "YYYY-MM-DD HH:MM.SS" rendering,
	// redundant with the secs.nanos column and not needed to reconstruct
	// state.
	sec, nsec, err := parseSecNanos(cols[4])
	if err != nil {
		return fileLineFields{}, err
	}
	var offset int64
	if cols[8] != "" {
		offset, err = strconv.ParseInt(cols[8], 10, 64)
		if err != nil {
			return fileLineFields{}, err
		}
	}
	return fileLineFields{
		mode:      mode,
		uid:       uid,
		gid:       gid,
		size:      size,
		mtimeSec:  sec,
		mtimeNsec: nsec,
		path:      cols[5],
		linkInfo:  cols[6],
		tarName:   cols[7],
		offset:    offset,
	}, nil
}

// wrapManifestCorrupt turns a parse failure at manifestPath into the
// documented ManifestCorrupt error kind.
func wrapManifestCorrupt(manifestPath string, err error) error {
	if err == nil {
		return nil
	}
	return berrors.ManifestCorrupt(manifestPath, err)
}
