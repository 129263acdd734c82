package conflict_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigilvc/sigil/conflict"
	"github.com/sigilvc/sigil/merge"
)

func twoSided(base, side1, side2 string) merge.Merge[[]byte] {
	return merge.New([][]byte{[]byte(side1), []byte(side2)}, [][]byte{[]byte(base)})
}

func TestMaterializeResolvedWhenSidesDoNotConflict(t *testing.T) {
	m := twoSided("a\nb\nc\n", "a\nB\nc\n", "a\nb\nC\n")
	out := conflict.Materialize(m, conflict.StyleDiff)
	assert.Equal(t, "a\nB\nC\n", string(out))
}

func TestMaterializeDiffStyleRoundTrips(t *testing.T) {
	m := twoSided("base\n", "a\n", "b\n")
	out := conflict.Materialize(m, conflict.StyleDiff)

	parsed, ok := conflict.Parse(out, 1, 2)
	require.True(t, ok)
	assert.ElementsMatch(t, [][]byte{[]byte("a\n"), []byte("b\n")}, parsed.Adds())
	assert.Equal(t, [][]byte{[]byte("base\n")}, parsed.Removes())
}

func TestMaterializeSnapshotStyleRoundTrips(t *testing.T) {
	m := twoSided("base\n", "a\n", "b\n")
	out := conflict.Materialize(m, conflict.StyleSnapshot)

	parsed, ok := conflict.Parse(out, 1, 2)
	require.True(t, ok)
	assert.ElementsMatch(t, [][]byte{[]byte("a\n"), []byte("b\n")}, parsed.Adds())
	assert.Equal(t, [][]byte{[]byte("base\n")}, parsed.Removes())
}

func TestMaterializeDiff3StyleRoundTrips(t *testing.T) {
	m := twoSided("base\n", "a\n", "b\n")
	out := conflict.Materialize(m, conflict.StyleDiff3)

	parsed, ok := conflict.Parse(out, 1, 2)
	require.True(t, ok)
	assert.Equal(t, []byte("a\n"), parsed.Adds()[0])
	assert.Equal(t, []byte("b\n"), parsed.Adds()[1])
	assert.Equal(t, []byte("base\n"), parsed.Removes()[0])
}

func TestMaterializeGitStyleDoesNotClaimToParse(t *testing.T) {
	m := twoSided("base\n", "a\n", "b\n")
	out := conflict.Materialize(m, conflict.StyleGit)
	assert.Contains(t, string(out), "=======")

	_, ok := conflict.Parse(out, 1, 2)
	assert.False(t, ok)
}

func TestParseWrongArityTreatsBlockAsResolvedText(t *testing.T) {
	m := twoSided("base\n", "a\n", "b\n")
	out := conflict.Materialize(m, conflict.StyleDiff)

	_, ok := conflict.Parse(out, 2, 3)
	assert.False(t, ok)
}

func TestParsePlainTextIsResolved(t *testing.T) {
	resolved, ok := conflict.Parse([]byte("just a file\n"), 0, 1)
	require.True(t, ok)
	v, isResolved := resolved.IntoResolved()
	require.True(t, isResolved)
	assert.Equal(t, "just a file\n", string(v))
}
