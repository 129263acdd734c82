package linemerge_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigilvc/sigil/linemerge"
	"github.com/sigilvc/sigil/merge"
)

func TestMergeResolvedWhenNoSidesConflict(t *testing.T) {
	base := []byte("a\nb\nc\n")
	side1 := []byte("a\nB\nc\n")
	side2 := []byte("a\nb\nC\n")
	m := merge.New([][]byte{side1, side2}, [][]byte{base})

	res := linemerge.Merge(m)
	require.True(t, res.Resolved)
	assert.Equal(t, "a\nB\nC\n", string(res.Bytes))
}

func TestMergeConflictsWhenBothSidesChangeSameLine(t *testing.T) {
	base := []byte("base\n")
	side1 := []byte("a\n")
	side2 := []byte("b\n")
	m := merge.New([][]byte{side1, side2}, [][]byte{base})

	res := linemerge.Merge(m)
	require.False(t, res.Resolved)
	require.Len(t, res.Segments, 1)
	seg := res.Segments[0]
	assert.False(t, seg.Matching)
	assert.Equal(t, []string{"a\n", "b\n"}, linemergeStrings(seg.Hunk.Adds()))
	assert.Equal(t, []string{"base\n"}, linemergeStrings(seg.Hunk.Removes()))
}

func linemergeStrings(bs [][]byte) []string {
	var out []string
	for _, b := range bs {
		out = append(out, string(b))
	}
	return out
}

func TestMergeAlreadyResolvedInputPassesThrough(t *testing.T) {
	m := merge.Resolved([]byte("same\n"))
	res := linemerge.Merge(m)
	require.True(t, res.Resolved)
	assert.Equal(t, "same\n", string(res.Bytes))
}

func TestMergeHigherArityFallsBackToWholeFileHunk(t *testing.T) {
	m := merge.New(
		[][]byte{[]byte("x\n"), []byte("y\n"), []byte("z\n")},
		[][]byte{[]byte("base1\n"), []byte("base2\n")},
	)
	res := linemerge.Merge(m)
	require.False(t, res.Resolved)
	require.Len(t, res.Segments, 1)
	assert.Equal(t, 3, res.Segments[0].Hunk.NumAdds())
}

func TestMergePreservesMatchingPrefixAndSuffix(t *testing.T) {
	base := []byte("one\ntwo\nthree\nfour\n")
	side1 := []byte("one\nTWO\nthree\nfour\n")
	side2 := []byte("one\ntwo\nTHREE\nfour\n")
	m := merge.New([][]byte{side1, side2}, [][]byte{base})

	res := linemerge.Merge(m)
	require.True(t, res.Resolved)
	assert.Equal(t, "one\nTWO\nTHREE\nfour\n", string(res.Bytes))
}
