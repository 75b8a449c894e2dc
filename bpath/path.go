package bpath

import (
	"strings"
	"sync"
)

// Path is an interned, immutable node in the path tree. The root has
// depth 0, an empty name, and a nil parent. Paths live for the lifetime
// of the process; there is no erase operation.
type Path struct {
	parent *Path
	name   *Atom
	depth  int

	strOnce sync.Once
	str     string
}

var (
	root = &Path{}

	pathLock  sync.RWMutex
	pathTable = make(map[pathKey]*Path)
)

type pathKey struct {
	parent *Path
	name   string
}

// Root returns the interned root path ("").
func Root() *Path {
	return root
}

// Lookup interns the given path string (idempotent; a trailing '/' is
// stripped; the empty string is the root). It never fails: invalid
// characters can't appear in a path built purely from '/'-joined
// components, and any component containing only non-'/' bytes is a
// legal Atom.
func Lookup(s string) *Path {
	s = strings.TrimSuffix(s, "/")
	s = strings.TrimPrefix(s, "/")
	if s == "" {
		return root
	}

	cur := root
	for _, part := range strings.Split(s, "/") {
		cur = cur.child(part)
	}
	return cur
}

func (p *Path) child(name string) *Path {
	key := pathKey{parent: p, name: name}

	pathLock.RLock()
	c, ok := pathTable[key]
	pathLock.RUnlock()
	if ok {
		return c
	}

	pathLock.Lock()
	defer pathLock.Unlock()
	if c, ok := pathTable[key]; ok {
		return c
	}

	c = &Path{
		parent: p,
		name:   MustLookupAtom(name),
		depth:  p.depth + 1,
	}
	pathTable[key] = c
	return c
}

// Parent returns p's parent, or nil if p is the root.
func (p *Path) Parent() *Path {
	if p == root {
		return nil
	}
	return p.parent
}

// Name returns p's basename atom, or nil for the root.
func (p *Path) Name() *Atom {
	return p.name
}

// Depth returns p's depth: 0 for the root, parent depth + 1 otherwise.
func (p *Path) Depth() int {
	return p.depth
}

// String renders the full, leading-'/' path. The root renders as "/".
func (p *Path) String() string {
	if p == root {
		return "/"
	}
	p.strOnce.Do(func() {
		if p.parent == root {
			p.str = "/" + p.name.String()
		} else {
			p.str = p.parent.String() + "/" + p.name.String()
		}
	})
	return p.str
}

// Append interns the child path name under p.
func (p *Path) Append(name string) *Path {
	return p.child(name)
}

// Prepend returns the path formed by re-rooting p underneath prefix,
// i.e. prefix + p's full component chain.
func (p *Path) Prepend(prefix *Path) *Path {
	if p == root {
		return prefix
	}
	return p.Parent().Prepend(prefix).Append(p.name.String())
}

// ParentAtDepth returns p's ancestor at the given depth (which may be p
// itself). depth must be in [0, p.Depth()].
func (p *Path) ParentAtDepth(depth int) *Path {
	cur := p
	for cur.depth > depth {
		cur = cur.parent
	}
	return cur
}

// components returns p's chain of atoms from just below the root to p,
// i.e. components()[i] is the name at depth i+1.
func (p *Path) components() []*Atom {
	comps := make([]*Atom, p.depth)
	cur := p
	for cur != root {
		comps[cur.depth-1] = cur.name
		cur = cur.parent
	}
	return comps
}

// Subpath returns the path built from components [from, from+length) of
// p's chain (0-indexed from just below the root). If length is negative
// it runs to the end of p's chain.
func (p *Path) Subpath(from int, length int) *Path {
	comps := p.components()
	end := len(comps)
	if length >= 0 && from+length < end {
		end = from + length
	}
	if from > end {
		from = end
	}
	cur := root
	for _, a := range comps[from:end] {
		cur = cur.child(a.String())
	}
	return cur
}

// CommonPrefix returns the deepest path that is an ancestor of both a
// and b.
func CommonPrefix(a, b *Path) *Path {
	for a.depth > b.depth {
		a = a.parent
	}
	for b.depth > a.depth {
		b = b.parent
	}
	for a != b {
		a = a.parent
		b = b.parent
	}
	return a
}
