package bmatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustUse(t *testing.T, pattern string) *Pattern {
	t.Helper()
	p, err := Use(pattern)
	require.NoError(t, err)
	return p
}

func TestStarMatchesWithinComponent(t *testing.T) {
	p := mustUse(t, "*.txt")
	assert.True(t, p.Match("/a/b/note.txt"))
	assert.False(t, p.Match("/a/b/note.txt.bak"))
}

func TestDoubleStarTrailing(t *testing.T) {
	p := mustUse(t, "/cache/**")
	assert.True(t, p.Match("/cache/x/y/z"))
	assert.True(t, p.Match("/cache"))
	assert.False(t, p.Match("/other/cache/x"))
}

func TestDoubleStarAnywhere(t *testing.T) {
	p := mustUse(t, "/a/**/z")
	assert.True(t, p.Match("/a/z"))
	assert.True(t, p.Match("/a/b/c/z"))
	assert.False(t, p.Match("/a/b/c/y"))
}

func TestRootedVsUnrooted(t *testing.T) {
	rooted := mustUse(t, "/a/x")
	assert.True(t, rooted.Match("/a/x"))
	assert.False(t, rooted.Match("/b/a/x"))

	unrooted := mustUse(t, "x")
	assert.True(t, unrooted.Match("/a/x"))
	assert.True(t, unrooted.Match("/b/a/x"))
}

func TestQuestionMarkAndClass(t *testing.T) {
	p := mustUse(t, "fil?.[tc]xt")
	assert.True(t, p.Match("/file.txt"))
	assert.True(t, p.Match("/file.cxt"))
	assert.False(t, p.Match("/file.axt"))
}

func TestBraceAlternation(t *testing.T) {
	p := mustUse(t, "*.{jpg,png,gif}")
	assert.True(t, p.Match("/x/y.jpg"))
	assert.True(t, p.Match("/x/y.png"))
	assert.False(t, p.Match("/x/y.bmp"))
}

func TestEscape(t *testing.T) {
	p := mustUse(t, `weird\*name`)
	assert.True(t, p.Match("/weird*name"))
	assert.False(t, p.Match("/weirdXname"))
}

func TestChainKeepRule(t *testing.T) {
	var c Chain
	require.NoError(t, c.AddInclude("*.go"))
	require.NoError(t, c.AddExclude("*_test.go"))

	assert.True(t, c.Keep("/pkg/file.go"))
	assert.False(t, c.Keep("/pkg/file_test.go"))
	assert.False(t, c.Keep("/pkg/readme.md"))
}

func TestChainNoIncludesKeepsEverythingNotExcluded(t *testing.T) {
	var c Chain
	require.NoError(t, c.AddExclude("/tmp/**"))
	assert.True(t, c.Keep("/home/user/file"))
	assert.False(t, c.Keep("/tmp/file"))
}

func TestUnterminatedClassIsLiteral(t *testing.T) {
	_, err := Use("[unterminated")
	// An unterminated class falls back to a literal '[', so the pattern
	// compiles without error.
	assert.NoError(t, err)
}
