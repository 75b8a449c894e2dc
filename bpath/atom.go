// Package bpath interns path strings into a stable tree of *Path nodes,
// each carrying a parent pointer, depth, and an interned basename Atom.
// Interning is monotone: lookups never free or mutate an existing node.
package bpath

import (
	"strings"
	"sync"

	"github.com/msg555/beakfs/berrors"
)

// Atom is an interned path component with no '/' in it. Two equal strings
// always resolve to the same *Atom.
type Atom struct {
	name string
}

func (a *Atom) String() string {
	return a.name
}

var (
	atomLock  sync.RWMutex
	atomTable = make(map[string]*Atom)
)

// LookupAtom interns name, returning an error if it contains '/'.
func LookupAtom(name string) (*Atom, error) {
	if strings.Contains(name, "/") {
		return nil, berrors.InvalidName(name)
	}

	atomLock.RLock()
	a, ok := atomTable[name]
	atomLock.RUnlock()
	if ok {
		return a, nil
	}

	atomLock.Lock()
	defer atomLock.Unlock()
	if a, ok := atomTable[name]; ok {
		return a, nil
	}
	a = &Atom{name: name}
	atomTable[name] = a
	return a, nil
}

// MustLookupAtom is LookupAtom for callers certain name cannot contain '/'.
func MustLookupAtom(name string) *Atom {
	a, err := LookupAtom(name)
	if err != nil {
		panic(err)
	}
	return a
}
