// Package matcher implements path-set predicates used to scope tree diffs
// and tree merges to a selection of files, the same split-on-"/" path
// handling an ignore-pattern reader uses (modules/plumbing/format/ignore),
// generalized into a small combinator tree instead of a flat pattern list.
package matcher

import "strings"

// Visit is the pruning hint a Matcher gives a caller about to descend into
// a directory: whether it can skip the recursive descent entirely.
type Visit int

const (
	VisitNothing Visit = iota
	VisitAllRecursively
	VisitSpecific
)

// VisitResult carries the Specific case's detail: which immediate
// children are worth descending into or testing.
type VisitResult struct {
	Kind  Visit
	Dirs  []string
	Files []string
}

// Matcher answers whether a path matches, and how a directory should be
// visited during a tree walk that wants to avoid descending into
// subtrees no match could ever touch.
type Matcher interface {
	Matches(path string) bool
	Visit(dir string) VisitResult
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// nothingMatcher matches no path at all.
type nothingMatcher struct{}

func Nothing() Matcher { return nothingMatcher{} }

func (nothingMatcher) Matches(string) bool      { return false }
func (nothingMatcher) Visit(string) VisitResult { return VisitResult{Kind: VisitNothing} }

// everythingMatcher matches every path.
type everythingMatcher struct{}

func Everything() Matcher { return everythingMatcher{} }

func (everythingMatcher) Matches(string) bool { return true }
func (everythingMatcher) Visit(string) VisitResult {
	return VisitResult{Kind: VisitAllRecursively}
}

// filesMatcher matches an exact set of file paths. Any directory that is
// a prefix of one of those paths is reported Specific so the walker keeps
// descending; it never reports files for an intermediate directory, only
// for the terminal path itself.
type filesMatcher struct {
	paths map[string][]string // path -> split components, for prefix checks
}

func Files(paths []string) Matcher {
	m := filesMatcher{paths: make(map[string][]string, len(paths))}
	for _, p := range paths {
		m.paths[p] = splitPath(p)
	}
	return m
}

func (m filesMatcher) Matches(path string) bool {
	_, ok := m.paths[path]
	return ok
}

func (m filesMatcher) Visit(dir string) VisitResult {
	dirParts := splitPath(dir)
	var dirs, files []string
	seenDir := map[string]bool{}
	for p, parts := range m.paths {
		if len(parts) <= len(dirParts) {
			continue
		}
		if !hasPrefix(parts, dirParts) {
			continue
		}
		next := parts[len(dirParts)]
		if len(parts) == len(dirParts)+1 {
			files = append(files, p)
			continue
		}
		if !seenDir[next] {
			seenDir[next] = true
			dirs = append(dirs, next)
		}
	}
	if len(dirs) == 0 && len(files) == 0 {
		return VisitResult{Kind: VisitNothing}
	}
	return VisitResult{Kind: VisitSpecific, Dirs: dirs, Files: files}
}

func hasPrefix(parts, prefix []string) bool {
	if len(parts) < len(prefix) {
		return false
	}
	for i, p := range prefix {
		if parts[i] != p {
			return false
		}
	}
	return true
}

// prefixMatcher matches any path under one of a set of directory
// prefixes, including the prefix itself.
type prefixMatcher struct {
	prefixes [][]string
}

func Prefix(paths []string) Matcher {
	m := prefixMatcher{}
	for _, p := range paths {
		m.prefixes = append(m.prefixes, splitPath(p))
	}
	return m
}

func (m prefixMatcher) Matches(path string) bool {
	parts := splitPath(path)
	for _, pre := range m.prefixes {
		if hasPrefix(parts, pre) {
			return true
		}
	}
	return false
}

func (m prefixMatcher) Visit(dir string) VisitResult {
	dirParts := splitPath(dir)
	for _, pre := range m.prefixes {
		if hasPrefix(dirParts, pre) {
			// dir is at or below a prefix: everything under it matches.
			return VisitResult{Kind: VisitAllRecursively}
		}
	}
	var dirs []string
	seen := map[string]bool{}
	for _, pre := range m.prefixes {
		if len(pre) <= len(dirParts) {
			continue
		}
		if !hasPrefix(pre, dirParts) {
			continue
		}
		next := pre[len(dirParts)]
		if !seen[next] {
			seen[next] = true
			dirs = append(dirs, next)
		}
	}
	if len(dirs) == 0 {
		return VisitResult{Kind: VisitNothing}
	}
	return VisitResult{Kind: VisitSpecific, Dirs: dirs}
}

type unionMatcher struct{ a, b Matcher }

func Union(a, b Matcher) Matcher { return unionMatcher{a, b} }

func (m unionMatcher) Matches(path string) bool {
	return m.a.Matches(path) || m.b.Matches(path)
}

func (m unionMatcher) Visit(dir string) VisitResult {
	return combineVisit(m.a.Visit(dir), m.b.Visit(dir), true)
}

type intersectionMatcher struct{ a, b Matcher }

func Intersection(a, b Matcher) Matcher { return intersectionMatcher{a, b} }

func (m intersectionMatcher) Matches(path string) bool {
	return m.a.Matches(path) && m.b.Matches(path)
}

func (m intersectionMatcher) Visit(dir string) VisitResult {
	return combineVisit(m.a.Visit(dir), m.b.Visit(dir), false)
}

type differenceMatcher struct{ a, b Matcher }

// Difference matches paths a matches and b does not.
func Difference(a, b Matcher) Matcher { return differenceMatcher{a, b} }

func (m differenceMatcher) Matches(path string) bool {
	return m.a.Matches(path) && !m.b.Matches(path)
}

func (m differenceMatcher) Visit(dir string) VisitResult {
	av := m.a.Visit(dir)
	if av.Kind == VisitNothing {
		return VisitResult{Kind: VisitNothing}
	}
	bv := m.b.Visit(dir)
	if bv.Kind == VisitAllRecursively {
		// b matches everything under dir, so nothing under dir is in
		// the difference. An AllRecursively a is narrowed to a Specific
		// result that lists no subdirectories or files; any other a's
		// hint is returned unchanged, which can only over-approximate.
		if av.Kind == VisitAllRecursively {
			return VisitResult{Kind: VisitSpecific}
		}
		return av
	}
	return av
}

// combineVisit merges two child visit results pointwise. union=true for
// set-union semantics (broaden), false for intersection (narrow: seeing
// Nothing on either side makes the combination Nothing).
func combineVisit(a, b VisitResult, union bool) VisitResult {
	if !union {
		if a.Kind == VisitNothing || b.Kind == VisitNothing {
			return VisitResult{Kind: VisitNothing}
		}
		if a.Kind == VisitAllRecursively {
			return b
		}
		if b.Kind == VisitAllRecursively {
			return a
		}
		return VisitResult{Kind: VisitSpecific, Dirs: intersectStrings(a.Dirs, b.Dirs), Files: intersectStrings(a.Files, b.Files)}
	}
	if a.Kind == VisitAllRecursively || b.Kind == VisitAllRecursively {
		return VisitResult{Kind: VisitAllRecursively}
	}
	if a.Kind == VisitNothing {
		return b
	}
	if b.Kind == VisitNothing {
		return a
	}
	return VisitResult{Kind: VisitSpecific, Dirs: unionStrings(a.Dirs, b.Dirs), Files: unionStrings(a.Files, b.Files)}
}

func unionStrings(a, b []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range append(append([]string{}, a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func intersectStrings(a, b []string) []string {
	set := map[string]bool{}
	for _, s := range a {
		set[s] = true
	}
	var out []string
	for _, s := range b {
		if set[s] {
			out = append(out, s)
		}
	}
	return out
}
