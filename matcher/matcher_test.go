package matcher_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sigilvc/sigil/matcher"
)

func TestNothingMatchesNone(t *testing.T) {
	m := matcher.Nothing()
	assert.False(t, m.Matches("a/b"))
	assert.Equal(t, matcher.VisitNothing, m.Visit("a").Kind)
}

func TestEverythingMatchesAll(t *testing.T) {
	m := matcher.Everything()
	assert.True(t, m.Matches("a/b/c"))
	assert.Equal(t, matcher.VisitAllRecursively, m.Visit("a").Kind)
}

func TestFilesMatcherReportsIntermediateDirsOnly(t *testing.T) {
	m := matcher.Files([]string{"a/b/c.txt", "a/x.txt"})
	assert.True(t, m.Matches("a/b/c.txt"))
	assert.False(t, m.Matches("a/b"))

	v := m.Visit("a")
	assert.Equal(t, matcher.VisitSpecific, v.Kind)
	assert.ElementsMatch(t, []string{"b"}, v.Dirs)
	assert.ElementsMatch(t, []string{"a/x.txt"}, v.Files)

	v2 := m.Visit("a/b")
	assert.ElementsMatch(t, []string{"a/b/c.txt"}, v2.Files)
	assert.Empty(t, v2.Dirs)
}

func TestPrefixMatcherExactMatchIsAllRecursively(t *testing.T) {
	m := matcher.Prefix([]string{"a/b"})
	assert.True(t, m.Matches("a/b/c/d.txt"))
	assert.False(t, m.Matches("a/other.txt"))
	assert.Equal(t, matcher.VisitAllRecursively, m.Visit("a/b").Kind)
	assert.Equal(t, matcher.VisitAllRecursively, m.Visit("a/b/c").Kind)

	v := m.Visit("a")
	assert.Equal(t, matcher.VisitSpecific, v.Kind)
	assert.ElementsMatch(t, []string{"b"}, v.Dirs)
}

func TestIntersectionNothingPropagates(t *testing.T) {
	m := matcher.Intersection(matcher.Files([]string{"a/x.txt"}), matcher.Prefix([]string{"z"}))
	assert.False(t, m.Matches("a/x.txt"))
	assert.Equal(t, matcher.VisitNothing, m.Visit("a").Kind)
}

func TestUnionCombinesDirs(t *testing.T) {
	m := matcher.Union(matcher.Files([]string{"a/x.txt"}), matcher.Files([]string{"a/y.txt"}))
	v := m.Visit("a")
	assert.ElementsMatch(t, []string{"a/x.txt", "a/y.txt"}, v.Files)
}

func TestDifferenceExcludesMatches(t *testing.T) {
	m := matcher.Difference(matcher.Everything(), matcher.Prefix([]string{"vendor"}))
	assert.True(t, m.Matches("src/main.go"))
	assert.False(t, m.Matches("vendor/lib/x.go"))
}
