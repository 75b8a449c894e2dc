package bpath

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupIdempotent(t *testing.T) {
	p1 := Lookup("/a/b/c")
	p2 := Lookup("a/b/c")
	p3 := Lookup("/a/b/c/")
	assert.Same(t, p1, p2)
	assert.Same(t, p1, p3)
	assert.Same(t, p1, Lookup(p1.String()))
}

func TestRootIdentity(t *testing.T) {
	assert.Same(t, Root(), Lookup(""))
	assert.Same(t, Root(), Lookup("/"))
	assert.Equal(t, 0, Root().Depth())
	assert.Nil(t, Root().Parent())
	assert.Equal(t, "/", Root().String())
}

func TestDepthAndParentInvariant(t *testing.T) {
	p := Lookup("/a/b/c")
	require.NotNil(t, p.Parent())
	assert.Equal(t, p.Parent().Depth()+1, p.Depth())
	assert.Equal(t, p.Parent().String()+"/"+p.Name().String(), p.String())
}

func TestSubpathAndPrepend(t *testing.T) {
	p := Lookup("/a/b/c/d")
	sub := p.Subpath(1, 2)
	assert.Equal(t, "/b/c", sub.String())

	full := sub.Subpath(0, -1)
	assert.Equal(t, "/b/c", full.String())

	prepended := Lookup("/c/d").Prepend(Lookup("/x/y"))
	assert.Equal(t, "/x/y/c/d", prepended.String())
}

func TestCommonPrefix(t *testing.T) {
	a := Lookup("/a/b/c")
	b := Lookup("/a/b/d/e")
	assert.Equal(t, "/a/b", CommonPrefix(a, b).String())
	assert.Same(t, Root(), CommonPrefix(Lookup("/x"), Lookup("/y")))
}

func TestParentAtDepth(t *testing.T) {
	p := Lookup("/a/b/c/d")
	assert.Equal(t, "/a/b", p.ParentAtDepth(2).String())
	assert.Same(t, Root(), p.ParentAtDepth(0))
	assert.Same(t, p, p.ParentAtDepth(p.Depth()))
}

func TestInvalidAtom(t *testing.T) {
	_, err := LookupAtom("a/b")
	assert.Error(t, err)
}

func TestDepthFirstDeepestFirstOrdering(t *testing.T) {
	paths := []*Path{
		Lookup("/a"),
		Lookup("/a/b/c"),
		Lookup("/a/b"),
		Lookup("/a/a/z"),
	}
	sort.Slice(paths, func(i, j int) bool {
		return DepthFirstDeepestFirst(paths[i], paths[j])
	})
	var got []string
	for _, p := range paths {
		got = append(got, p.String())
	}
	assert.Equal(t, []string{"/a/a/z", "/a/b/c", "/a/b", "/a"}, got)
}

func TestTarFriendlyOrdering(t *testing.T) {
	dir := Lookup("/root/a")
	file1 := Lookup("/root/a/x")
	sub := Lookup("/root/a/sub")
	file2 := Lookup("/root/a/sub/y")
	file3 := Lookup("/root/a/z")

	paths := []*Path{file3, sub, file1, dir, file2}
	sort.Slice(paths, func(i, j int) bool {
		return TarFriendly(paths[i], paths[j])
	})
	var got []string
	for _, p := range paths {
		got = append(got, p.String())
	}
	assert.Equal(t, []string{
		"/root/a",
		"/root/a/sub",
		"/root/a/sub/y",
		"/root/a/x",
		"/root/a/z",
	}, got)
}
