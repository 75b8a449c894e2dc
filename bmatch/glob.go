// Package bmatch implements the rclone-style glob dialect used to select
// trigger, include, and exclude paths: '*' matches a run of non-'/'
// bytes, '?' matches one non-'/' character, '[...]' character classes, '{a,b,c}'
// brace alternation, '\x' escapes, and '**' matches anything including
// '/' (either trailing, meaning "this prefix and everything under it",
// or anywhere in the pattern). A pattern starting with '/' anchors at
// the scan root; otherwise it matches against the path's final
// component suffix.
package bmatch

import (
	"regexp"
	"strings"

	"github.com/msg555/beakfs/berrors"
)

// Pattern is a single compiled glob.
type Pattern struct {
	raw    string
	rooted bool
	re     *regexp.Regexp
}

// Use compiles pattern, returning an error wrapping berrors.InvalidGlob
// if it cannot be parsed.
func Use(pattern string) (*Pattern, error) {
	rooted := strings.HasPrefix(pattern, "/")
	body := strings.TrimPrefix(pattern, "/")

	re, err := compileGlob(body)
	if err != nil {
		return nil, berrors.InvalidGlob(pattern, err)
	}

	return &Pattern{raw: pattern, rooted: rooted, re: re}, nil
}

// Match reports whether p's full path (leading '/') matches the
// pattern. Unrooted patterns are matched against every path suffix
// (i.e. they may match starting at any '/'-delimited boundary), mirroring
// "a pattern not starting with '/' matches the last path component
// suffix" extended to intermediate directories as rclone does.
func (p *Pattern) Match(fullPath string) bool {
	full := strings.TrimPrefix(fullPath, "/")
	if p.rooted {
		return p.re.MatchString(full)
	}
	for {
		if p.re.MatchString(full) {
			return true
		}
		idx := strings.IndexByte(full, '/')
		if idx < 0 {
			return false
		}
		full = full[idx+1:]
	}
}

func (p *Pattern) String() string {
	return p.raw
}

// MatchAny reports whether any pattern in patterns matches fullPath; an
// empty list matches nothing. Used for trigger-glob style "does any of
// these force this path in" checks, distinct from Chain's combined
// include/exclude keep rule.
func MatchAny(patterns []*Pattern, fullPath string) bool {
	for _, p := range patterns {
		if p.Match(fullPath) {
			return true
		}
	}
	return false
}

// CompileAll compiles every pattern string, returning on the first
// error.
func CompileAll(patterns []string) ([]*Pattern, error) {
	out := make([]*Pattern, 0, len(patterns))
	for _, s := range patterns {
		p, err := Use(s)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Chain is an ordered list of include/exclude patterns, applied with
// the keep-iff rule: a path is kept iff no exclude matches, and either
// no include patterns exist or at least one include matches.
type Chain struct {
	includes []*Pattern
	excludes []*Pattern
}

// AddInclude compiles and appends an include pattern.
func (c *Chain) AddInclude(pattern string) error {
	p, err := Use(pattern)
	if err != nil {
		return err
	}
	c.includes = append(c.includes, p)
	return nil
}

// AddExclude compiles and appends an exclude pattern.
func (c *Chain) AddExclude(pattern string) error {
	p, err := Use(pattern)
	if err != nil {
		return err
	}
	c.excludes = append(c.excludes, p)
	return nil
}

// Keep applies the include/exclude rule to fullPath.
func (c *Chain) Keep(fullPath string) bool {
	for _, ex := range c.excludes {
		if ex.Match(fullPath) {
			return false
		}
	}
	if len(c.includes) == 0 {
		return true
	}
	for _, in := range c.includes {
		if in.Match(fullPath) {
			return true
		}
	}
	return false
}
