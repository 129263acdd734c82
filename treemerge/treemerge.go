// Package treemerge implements the recursive three-way (generalized
// N-way) tree merge: given a base tree and N side trees, produce a
// merged tree, resolving what can be resolved automatically via the line
// merge (package linemerge) and persisting the rest as conflict objects
// (package conflict) referenced from the result.
package treemerge

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/sigilvc/sigil/conflict"
	"github.com/sigilvc/sigil/linemerge"
	"github.com/sigilvc/sigil/merge"
	"github.com/sigilvc/sigil/optional"
	"github.com/sigilvc/sigil/plumbing"
	"github.com/sigilvc/sigil/store"
)

// ReadError reports a failure reading a file's content mid-merge,
// distinct from a plumbing.Backend fault on the tree/commit layer.
type ReadError struct {
	FileId plumbing.FileId
	Err    error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("treemerge: read file %s: %v", e.FileId, e.Err)
}
func (e *ReadError) Unwrap() error { return e.Err }

type term = optional.Option[store.TreeValue]

// MergeTrees implements C5, generalized to N sides via the same Merge
// algebra used everywhere else: base and sides must have the same
// length convention as a Merge (one base, len(sides) adds), most
// commonly the three-way case (base, side1, side2).
func MergeTrees(ctx context.Context, backend store.Backend, base plumbing.TreeId, sides []plumbing.TreeId) (plumbing.TreeId, error) {
	if len(sides) == 2 {
		if base == sides[0] {
			return sides[1], nil
		}
		if base == sides[1] || sides[0] == sides[1] {
			return sides[0], nil
		}
	}
	baseTree, err := readTreeOrEmpty(ctx, backend, base)
	if err != nil {
		return plumbing.ZeroId, err
	}
	sideTrees := make([]*store.Tree, len(sides))
	for i, s := range sides {
		t, err := readTreeOrEmpty(ctx, backend, s)
		if err != nil {
			return plumbing.ZeroId, err
		}
		sideTrees[i] = t
	}

	names := unionNames(baseTree, sideTrees)
	results := make([]store.TreeEntry, len(names))
	present := make([]bool, len(names))

	// Each name's merge only touches entries at that name across base and
	// sides, so the union walk fans out across names rather than running
	// it as one long serial loop — the same shape used for independent
	// per-object upload/fetch fan-out (pkg/serve/odb).
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			baseVal, baseOk := baseTree.Lookup(name)
			sideVals := make([]store.TreeValue, len(sideTrees))
			sideOk := make([]bool, len(sideTrees))
			for j, t := range sideTrees {
				sideVals[j], sideOk[j] = t.Lookup(name)
			}
			resolved, ok, err := mergeEntry(gctx, backend, optFrom(baseVal, baseOk), optsFrom(sideVals, sideOk))
			if err != nil {
				return err
			}
			results[i] = store.TreeEntry{Name: name, Value: resolved}
			present[i] = ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return plumbing.ZeroId, err
	}

	entries := make([]store.TreeEntry, 0, len(results))
	for i, ok := range present {
		if ok {
			entries = append(entries, results[i])
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return backend.WriteTree(ctx, &store.Tree{Entries: entries})
}

func optFrom(v store.TreeValue, ok bool) term {
	if !ok {
		return optional.None[store.TreeValue]()
	}
	return optional.Some(v)
}

func optsFrom(vs []store.TreeValue, oks []bool) []term {
	out := make([]term, len(vs))
	for i := range vs {
		out[i] = optFrom(vs[i], oks[i])
	}
	return out
}

// mergeEntry applies the per-name decision table from §4.5: if every
// side that differs from base holds the same value (one changed side, or
// several identical changes), take that value (or base, if no side
// changed); otherwise recurse (if all are trees) or resolve the conflict
// value.
func mergeEntry(ctx context.Context, backend store.Backend, base term, sides []term) (store.TreeValue, bool, error) {
	changed := false
	for _, s := range sides {
		if s != base {
			changed = true
			break
		}
	}
	if !changed {
		return unwrapOr(base), base.IsSome(), nil
	}
	// Every side that differs from base holds the same value: take it
	// verbatim (§4.5's first two decision rows, plus identical changes on
	// several sides). If the differing sides disagree with each other, we
	// fall into the general conflict path below.
	var distinctFromBase []term
	for _, s := range sides {
		if s != base {
			distinctFromBase = append(distinctFromBase, s)
		}
	}
	allSame := true
	for _, s := range distinctFromBase[1:] {
		if s != distinctFromBase[0] {
			allSame = false
			break
		}
	}
	if allSame {
		v := distinctFromBase[0]
		return unwrapOr(v), v.IsSome(), nil
	}

	// All-trees (or absent, treated as empty): recurse.
	if allTrees(base, sides) {
		baseId := treeIdOrEmpty(backend, base)
		sideIds := make([]plumbing.TreeId, len(sides))
		for i, s := range sides {
			sideIds[i] = treeIdOrEmpty(backend, s)
		}
		mergedId, err := MergeTrees(ctx, backend, baseId, sideIds)
		if err != nil {
			return store.TreeValue{}, false, err
		}
		if mergedId == backend.EmptyTreeId() {
			return store.TreeValue{}, false, nil
		}
		return store.NewSubTree(mergedId), true, nil
	}

	adds := make([]term, len(sides))
	copy(adds, sides)
	m := merge.New(adds, []term{base})
	simplified := merge.Simplify(m)
	if v, ok := simplified.IntoResolved(); ok {
		return unwrapOr(v), v.IsSome(), nil
	}

	if resolved, ok, err := tryResolveFileConflict(ctx, backend, simplified); err != nil {
		return store.TreeValue{}, false, err
	} else if ok {
		return resolved, true, nil
	}

	conflictObj := conflict.FromMerge(simplified)
	id, err := backend.WriteConflict(ctx, conflictObj)
	if err != nil {
		return store.TreeValue{}, false, err
	}
	return store.NewConflictRef(id), true, nil
}

func unwrapOr(t term) store.TreeValue {
	if !t.IsSome() {
		return store.TreeValue{}
	}
	return t.Unwrap()
}

func allTrees(base term, sides []term) bool {
	if base.IsSome() && base.Unwrap().Kind != store.KindTree {
		return false
	}
	for _, s := range sides {
		if s.IsSome() && s.Unwrap().Kind != store.KindTree {
			return false
		}
	}
	return true
}

func treeIdOrEmpty(backend store.Backend, t term) plumbing.TreeId {
	if !t.IsSome() {
		return backend.EmptyTreeId()
	}
	return t.Unwrap().Id
}

func readTreeOrEmpty(ctx context.Context, backend store.Backend, id plumbing.TreeId) (*store.Tree, error) {
	if id == backend.EmptyTreeId() || id.IsZero() {
		return &store.Tree{}, nil
	}
	return backend.ReadTree(ctx, id)
}

func unionNames(base *store.Tree, sides []*store.Tree) []string {
	seen := map[string]bool{}
	var names []string
	add := func(t *store.Tree) {
		for _, e := range t.Entries {
			if !seen[e.Name] {
				seen[e.Name] = true
				names = append(names, e.Name)
			}
		}
	}
	add(base)
	for _, t := range sides {
		add(t)
	}
	return names
}

// tryResolveFileConflict attempts to resolve a Merge<Option<TreeValue>>
// whose terms are all regular files by reading their content and
// invoking the line merge (C4); the executable bit resolves by
// delta-arithmetic independent of content resolution.
func tryResolveFileConflict(ctx context.Context, backend store.Backend, m merge.Merge[term]) (store.TreeValue, bool, error) {
	for _, v := range m.Adds() {
		if v.IsSome() && v.Unwrap().Kind != store.KindFile {
			return store.TreeValue{}, false, nil
		}
	}
	for _, v := range m.Removes() {
		if v.IsSome() && v.Unwrap().Kind != store.KindFile {
			return store.TreeValue{}, false, nil
		}
	}

	contentMerge, err := buildByteMerge(ctx, backend, m)
	if err != nil {
		return store.TreeValue{}, false, err
	}
	res := linemerge.Merge(contentMerge)
	if !res.Resolved {
		return store.TreeValue{}, false, nil
	}

	executable, ok := resolveExecutableBit(m)
	if !ok {
		return store.TreeValue{}, false, nil
	}

	fileId, err := backend.WriteFile(ctx, &store.File{Body: res.Bytes, Executable: executable})
	if err != nil {
		return store.TreeValue{}, false, err
	}
	return store.NewFile(fileId, executable), true, nil
}

func buildByteMerge(ctx context.Context, backend store.Backend, m merge.Merge[term]) (merge.Merge[[]byte], error) {
	readOne := func(v term) ([]byte, error) {
		if !v.IsSome() {
			return nil, nil
		}
		f, err := backend.ReadFile(ctx, v.Unwrap().Id)
		if err != nil {
			if plumbing.IsNotFound(err) {
				return nil, err
			}
			return nil, &ReadError{FileId: v.Unwrap().Id, Err: err}
		}
		return f.Body, nil
	}
	adds := make([][]byte, len(m.Adds()))
	for i, v := range m.Adds() {
		b, err := readOne(v)
		if err != nil {
			return merge.Merge[[]byte]{}, err
		}
		adds[i] = b
	}
	removes := make([][]byte, len(m.Removes()))
	for i, v := range m.Removes() {
		b, err := readOne(v)
		if err != nil {
			return merge.Merge[[]byte]{}, err
		}
		removes[i] = b
	}
	return merge.New(adds, removes), nil
}

// resolveExecutableBit applies the delta arithmetic from §4.5: +1 per
// executable positive, -1 per executable negative, symmetrically for the
// non-executable count; resolves only if exactly one of the two deltas
// is positive.
func resolveExecutableBit(m merge.Merge[term]) (bool, bool) {
	execDelta, regularDelta := 0, 0
	tally := func(v term, sign int) {
		if !v.IsSome() {
			return
		}
		if v.Unwrap().Executable {
			execDelta += sign
		} else {
			regularDelta += sign
		}
	}
	for _, v := range m.Adds() {
		tally(v, 1)
	}
	for _, v := range m.Removes() {
		tally(v, -1)
	}
	if execDelta > 0 && regularDelta <= 0 {
		return true, true
	}
	if regularDelta > 0 && execDelta <= 0 {
		return false, true
	}
	return false, false
}
