package oplog

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/sigilvc/sigil/dag"
	"github.com/sigilvc/sigil/internal/xlog"
	"github.com/sigilvc/sigil/merge"
	"github.com/sigilvc/sigil/optional"
	"github.com/sigilvc/sigil/plumbing"
	"github.com/sigilvc/sigil/store"
	"github.com/sigilvc/sigil/treemerge"
)

func (s *Store) lookup(id plumbing.OpId) (opNode, bool) {
	op, err := s.ReadOperation(id)
	if err != nil {
		return opNode{}, false
	}
	return opNode{id: id, op: op}, true
}

// Head returns the sole current head, reconciling a fork of concurrent
// writers (per §4.8) into a synthetic merge operation under the store's
// lock if more than one head is present.
func (s *Store) Head(ctx context.Context, backend store.Backend) (plumbing.OpId, error) {
	heads, err := s.Heads()
	if err != nil {
		return plumbing.ZeroId, err
	}
	if len(heads) == 0 {
		return plumbing.ZeroId, xlog.Errorf("oplog: no operations published yet")
	}
	if len(heads) == 1 {
		return heads[0], nil
	}

	var resolved plumbing.OpId
	err = s.withLock(func() error {
		heads, err := s.Heads()
		if err != nil {
			return err
		}
		if len(heads) == 1 {
			resolved = heads[0]
			return nil
		}
		merged, err := s.reconcile(ctx, backend, heads)
		if err != nil {
			return err
		}
		resolved = merged
		return nil
	})
	return resolved, err
}

// reconcile builds a synthetic merge operation whose parents are heads
// (sorted for determinism) and whose view is the N-way tree merge (C5)
// of the common ancestor's view and every head's view, then publishes
// it as the sole new head.
func (s *Store) reconcile(ctx context.Context, backend store.Backend, heads []plumbing.OpId) (plumbing.OpId, error) {
	sorted := append([]plumbing.OpId(nil), heads...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].String() < sorted[j].String() })
	logrus.Debugf("oplog: reconciling %d concurrent heads in %s", len(sorted), s.dir)

	base, ok := dag.ClosestCommonNode(sorted[:1], sorted[1:], s.lookup)
	baseView := &View{}
	if ok {
		baseOp, err := s.ReadOperation(base)
		if err != nil {
			return plumbing.ZeroId, err
		}
		baseView, err = s.ReadView(baseOp.ViewId)
		if err != nil {
			return plumbing.ZeroId, err
		}
	}

	// Each head's own operation/view read is independent of the others,
	// so fetch them concurrently rather than serially — the same
	// per-item fan-out shape as the object-transfer fan-out in
	// pkg/serve/odb/oss.go and pkg/serve/odb/unpack.go.
	sideTrees := make([]plumbing.TreeId, len(sorted))
	sideViews := make([]*View, len(sorted))
	fetchGroup, _ := errgroup.WithContext(ctx)
	for i, h := range sorted {
		fetchGroup.Go(func() error {
			op, err := s.ReadOperation(h)
			if err != nil {
				return err
			}
			v, err := s.ReadView(op.ViewId)
			if err != nil {
				return err
			}
			sideViews[i] = v
			sideTrees[i] = v.RootTree
			return nil
		})
	}
	if err := fetchGroup.Wait(); err != nil {
		return plumbing.ZeroId, err
	}

	mergedTree, err := treemerge.MergeTrees(ctx, backend, baseView.RootTree, sideTrees)
	if err != nil {
		return plumbing.ZeroId, fmt.Errorf("oplog: merge view trees: %w", err)
	}

	wcSides := make([]map[string]plumbing.CommitId, len(sideViews))
	gitRefSides := make([]map[string]plumbing.CommitId, len(sideViews))
	gitHeadSides := make([]optional.Option[plumbing.CommitId], len(sideViews))
	localBranchSides := make([]map[string]BranchState, len(sideViews))
	tagSides := make([]map[string]BranchState, len(sideViews))
	remoteBranchSides := make([]map[RemoteBranchKey]RemoteBranch, len(sideViews))
	for i, v := range sideViews {
		wcSides[i] = v.WCCommits
		gitRefSides[i] = v.GitRefs
		gitHeadSides[i] = v.GitHead
		localBranchSides[i] = v.LocalBranches
		tagSides[i] = v.Tags
		remoteBranchSides[i] = v.RemoteBranches
	}

	merged := &View{
		RootTree:       mergedTree,
		WCCommits:      mergePointerMap(baseView.WCCommits, wcSides),
		GitRefs:        mergePointerMap(baseView.GitRefs, gitRefSides),
		GitHead:        mergeOptionalCommit(baseView.GitHead, gitHeadSides),
		LocalBranches:  mergeBranchMap(baseView.LocalBranches, localBranchSides),
		Tags:           mergeBranchMap(baseView.Tags, tagSides),
		RemoteBranches: mergeRemoteBranchMap(baseView.RemoteBranches, remoteBranchSides),
	}

	viewId, err := s.WriteView(merged)
	if err != nil {
		return plumbing.ZeroId, err
	}

	now := time.Now()
	op := &Operation{
		ViewId:      viewId,
		Parents:     sorted,
		Description: "reconcile concurrent operations",
		Start:       now,
		End:         now,
	}
	// Publish's own parent-removal loop (op.Parents == sorted) retires
	// every reconciled head, leaving this operation as the sole head.
	return s.Publish(op)
}

// optionalCommit looks up key in m, returning None rather than the zero
// CommitId when absent so absence and "points at the zero id" are never
// confused.
func optionalCommit(m map[string]plumbing.CommitId, key string) optional.Option[plumbing.CommitId] {
	if v, ok := m[key]; ok {
		return optional.Some(v)
	}
	return optional.None[plumbing.CommitId]()
}

// mergeOptionalCommit resolves one bare-pointer field (a working-copy
// commit, a Git ref, Git HEAD) across the base and every side. Unlike a
// branch or tag, a bare pointer carries no Merge representation of its
// own, so a genuine three-way divergence has no conflicted form to fall
// back to: the first side (in the order sides is given) that differs
// from base wins, deterministically, whatever the later sides hold.
func mergeOptionalCommit(base optional.Option[plumbing.CommitId], sides []optional.Option[plumbing.CommitId]) optional.Option[plumbing.CommitId] {
	var distinct []optional.Option[plumbing.CommitId]
	for _, side := range sides {
		if side != base {
			distinct = append(distinct, side)
		}
	}
	switch len(distinct) {
	case 0:
		return base
	case 1:
		return distinct[0]
	default:
		return distinct[0]
	}
}

// mergePointerMap merges a map of bare commit pointers (WCCommits,
// GitRefs) key by key via mergeOptionalCommit, dropping any key whose
// merged value is None.
func mergePointerMap(base map[string]plumbing.CommitId, sides []map[string]plumbing.CommitId) map[string]plumbing.CommitId {
	keys := map[string]struct{}{}
	for k := range base {
		keys[k] = struct{}{}
	}
	for _, side := range sides {
		for k := range side {
			keys[k] = struct{}{}
		}
	}
	if len(keys) == 0 {
		return nil
	}
	out := make(map[string]plumbing.CommitId, len(keys))
	for k := range keys {
		sideVals := make([]optional.Option[plumbing.CommitId], len(sides))
		for i, side := range sides {
			sideVals[i] = optionalCommit(side, k)
		}
		if v, ok := mergeOptionalCommit(optionalCommit(base, k), sideVals).Get(); ok {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// representative reduces a BranchState to a single comparable value: the
// resolved target if resolved, otherwise an arbitrary term. merge.Merge
// is not itself comparable (its adds/removes are slices), so this is the
// stand-in Merge.Flatten would otherwise provide for a Merge[Merge[T]].
func representative(b BranchState) optional.Option[plumbing.CommitId] {
	if v, ok := b.IntoResolved(); ok {
		return v
	}
	return b.First()
}

// branchStateOrAbsent treats a missing map entry as a resolved "no such
// branch" state, so a branch created on only some sides still merges
// correctly against the sides where it never existed.
func branchStateOrAbsent(m map[string]BranchState, key string) BranchState {
	if v, ok := m[key]; ok {
		return v
	}
	return merge.Resolved(optional.None[plumbing.CommitId]())
}

// mergeBranchState reconciles one branch or tag's target across the base
// and every side, keeping the branch conflicted (a higher-arity Merge)
// rather than picking a winner when sides genuinely disagree — the same
// way a tree entry stays conflicted until C5/C6 can simplify it, instead
// of the deterministic-winner fallback mergeOptionalCommit must use for
// bare pointers that have no conflicted representation.
func mergeBranchState(base BranchState, sides []BranchState) BranchState {
	baseRep := representative(base)
	var distinct []optional.Option[plumbing.CommitId]
	for _, side := range sides {
		rep := representative(side)
		if rep != baseRep {
			distinct = append(distinct, rep)
		}
	}
	switch len(distinct) {
	case 0:
		return base
	case 1:
		return merge.Resolved(distinct[0])
	default:
		allSame := true
		for _, r := range distinct[1:] {
			if r != distinct[0] {
				allSame = false
				break
			}
		}
		if allSame {
			return merge.Resolved(distinct[0])
		}
		// len(distinct) sides disagree with base and with each other:
		// the arity invariant (len(adds) == len(removes)+1) is satisfied
		// by repeating baseRep as a remove term once per extra add,
		// exactly the shape a C5 tree conflict has when more than two
		// sides diverge from one ancestor.
		removes := make([]optional.Option[plumbing.CommitId], len(distinct)-1)
		for i := range removes {
			removes[i] = baseRep
		}
		return merge.Simplify(merge.New(distinct, removes))
	}
}

// mergeBranchMap merges a map of branch or tag states key by key via
// mergeBranchState, dropping any key that resolves to "no such branch"
// on every side.
func mergeBranchMap(base map[string]BranchState, sides []map[string]BranchState) map[string]BranchState {
	keys := map[string]struct{}{}
	for k := range base {
		keys[k] = struct{}{}
	}
	for _, side := range sides {
		for k := range side {
			keys[k] = struct{}{}
		}
	}
	if len(keys) == 0 {
		return nil
	}
	out := make(map[string]BranchState, len(keys))
	for k := range keys {
		sideStates := make([]BranchState, len(sides))
		for i, side := range sides {
			sideStates[i] = branchStateOrAbsent(side, k)
		}
		merged := mergeBranchState(branchStateOrAbsent(base, k), sideStates)
		if v, ok := merged.IntoResolved(); ok && v.IsNone() {
			continue
		}
		out[k] = merged
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// remoteBranchOrAbsent treats a missing map entry as a resolved "not
// tracked, no target" remote branch.
func remoteBranchOrAbsent(m map[RemoteBranchKey]RemoteBranch, key RemoteBranchKey) RemoteBranch {
	if v, ok := m[key]; ok {
		return v
	}
	return RemoteBranch{Target: merge.Resolved(optional.None[plumbing.CommitId]())}
}

// mergeRemoteBranchMap merges each remote branch's target through
// mergeBranchState and its Tracked flag by OR: the result is tracked
// whenever the base or any side tracks the branch, so an untrack made
// on one side does not survive a merge with a side that left the flag
// as it was.
func mergeRemoteBranchMap(base map[RemoteBranchKey]RemoteBranch, sides []map[RemoteBranchKey]RemoteBranch) map[RemoteBranchKey]RemoteBranch {
	keys := map[RemoteBranchKey]struct{}{}
	for k := range base {
		keys[k] = struct{}{}
	}
	for _, side := range sides {
		for k := range side {
			keys[k] = struct{}{}
		}
	}
	if len(keys) == 0 {
		return nil
	}
	out := make(map[RemoteBranchKey]RemoteBranch, len(keys))
	for k := range keys {
		baseRB := remoteBranchOrAbsent(base, k)
		sideTargets := make([]BranchState, len(sides))
		tracked := baseRB.Tracked
		for i, side := range sides {
			rb := remoteBranchOrAbsent(side, k)
			sideTargets[i] = rb.Target
			tracked = tracked || rb.Tracked
		}
		mergedTarget := mergeBranchState(baseRB.Target, sideTargets)
		if v, ok := mergedTarget.IntoResolved(); ok && v.IsNone() && !tracked {
			continue
		}
		out[k] = RemoteBranch{Target: mergedTarget, Tracked: tracked}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
