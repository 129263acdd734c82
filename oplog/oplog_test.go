package oplog_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigilvc/sigil/merge"
	"github.com/sigilvc/sigil/oplog"
	"github.com/sigilvc/sigil/optional"
	"github.com/sigilvc/sigil/plumbing"
	"github.com/sigilvc/sigil/store"
	"github.com/sigilvc/sigil/store/memstore"
)

func headMarker(backend store.Backend) store.TreeValue {
	return store.NewSubTree(backend.EmptyTreeId())
}

func viewWithHeads(t *testing.T, ctx context.Context, backend store.Backend, commitIds ...plumbing.CommitId) *oplog.View {
	t.Helper()
	entries := make([]store.TreeEntry, len(commitIds))
	for i, id := range commitIds {
		entries[i] = store.TreeEntry{Name: id.String(), Value: headMarker(backend)}
	}
	treeId, err := backend.WriteTree(ctx, &store.Tree{Entries: entries})
	require.NoError(t, err)
	return &oplog.View{RootTree: treeId, WCCommits: map[string]plumbing.CommitId{}}
}

func randomCommitId(seed string) plumbing.CommitId {
	return plumbing.HashBytes("commit", []byte(seed))
}

func TestPublishTracksHeadSet(t *testing.T) {
	ctx := context.Background()
	backend := memstore.New()
	s, err := oplog.Open(t.TempDir())
	require.NoError(t, err)

	v0 := viewWithHeads(t, ctx, backend, randomCommitId("c0"))
	viewId0, err := s.WriteView(v0)
	require.NoError(t, err)
	op0 := &oplog.Operation{ViewId: viewId0, Description: "init"}
	id0, err := s.Publish(op0)
	require.NoError(t, err)

	heads, err := s.Heads()
	require.NoError(t, err)
	assert.ElementsMatch(t, []plumbing.OpId{id0}, heads)

	v1 := viewWithHeads(t, ctx, backend, randomCommitId("c1"))
	viewId1, err := s.WriteView(v1)
	require.NoError(t, err)
	op1 := &oplog.Operation{ViewId: viewId1, Parents: []plumbing.OpId{id0}, Description: "tx1"}
	id1, err := s.Publish(op1)
	require.NoError(t, err)

	heads, err = s.Heads()
	require.NoError(t, err)
	assert.ElementsMatch(t, []plumbing.OpId{id1}, heads)
}

func TestConcurrentWritersReconcileOnHead(t *testing.T) {
	ctx := context.Background()
	backend := memstore.New()
	s, err := oplog.Open(t.TempDir())
	require.NoError(t, err)

	base := viewWithHeads(t, ctx, backend, randomCommitId("base"))
	baseViewId, err := s.WriteView(base)
	require.NoError(t, err)
	baseOpId, err := s.Publish(&oplog.Operation{ViewId: baseViewId, Description: "init"})
	require.NoError(t, err)

	v1 := viewWithHeads(t, ctx, backend, randomCommitId("base"), randomCommitId("side1"))
	viewId1, err := s.WriteView(v1)
	require.NoError(t, err)
	_, err = s.Publish(&oplog.Operation{ViewId: viewId1, Parents: []plumbing.OpId{baseOpId}, Description: "tx1"})
	require.NoError(t, err)

	v2 := viewWithHeads(t, ctx, backend, randomCommitId("base"), randomCommitId("side2"))
	viewId2, err := s.WriteView(v2)
	require.NoError(t, err)
	_, err = s.Publish(&oplog.Operation{ViewId: viewId2, Parents: []plumbing.OpId{baseOpId}, Description: "tx2"})
	require.NoError(t, err)

	heads, err := s.Heads()
	require.NoError(t, err)
	require.Len(t, heads, 2)

	mergedId, err := s.Head(ctx, backend)
	require.NoError(t, err)

	finalHeads, err := s.Heads()
	require.NoError(t, err)
	assert.ElementsMatch(t, []plumbing.OpId{mergedId}, finalHeads)

	mergedOp, err := s.ReadOperation(mergedId)
	require.NoError(t, err)
	mergedView, err := s.ReadView(mergedOp.ViewId)
	require.NoError(t, err)
	mergedTree, err := backend.ReadTree(ctx, mergedView.RootTree)
	require.NoError(t, err)
	var names []string
	for _, e := range mergedTree.Entries {
		names = append(names, e.Name)
	}
	assert.ElementsMatch(t, []string{
		randomCommitId("base").String(),
		randomCommitId("side1").String(),
		randomCommitId("side2").String(),
	}, names)
}

func TestReconcileMergesBranchesAndWorkingCopies(t *testing.T) {
	ctx := context.Background()
	backend := memstore.New()
	s, err := oplog.Open(t.TempDir())
	require.NoError(t, err)

	baseCommit := randomCommitId("base")
	mainAdvanced := randomCommitId("main-advanced")
	featureTip := randomCommitId("feature-tip")

	base := viewWithHeads(t, ctx, backend, baseCommit)
	base.WCCommits = map[string]plumbing.CommitId{"default": baseCommit}
	base.LocalBranches = map[string]oplog.BranchState{
		"main":    merge.Resolved(optional.Some(baseCommit)),
		"feature": merge.Resolved(optional.Some(baseCommit)),
	}
	baseViewId, err := s.WriteView(base)
	require.NoError(t, err)
	baseOpId, err := s.Publish(&oplog.Operation{ViewId: baseViewId, Description: "init"})
	require.NoError(t, err)

	// Side 1 only moves "main" and its own working copy; "feature" is
	// left untouched, so the one-side-differs-from-base shortcut should
	// carry the base's feature state straight through.
	v1 := viewWithHeads(t, ctx, backend, baseCommit)
	v1.WCCommits = map[string]plumbing.CommitId{"default": mainAdvanced}
	v1.LocalBranches = map[string]oplog.BranchState{
		"main":    merge.Resolved(optional.Some(mainAdvanced)),
		"feature": merge.Resolved(optional.Some(baseCommit)),
	}
	viewId1, err := s.WriteView(v1)
	require.NoError(t, err)
	_, err = s.Publish(&oplog.Operation{ViewId: viewId1, Parents: []plumbing.OpId{baseOpId}, Description: "advance main"})
	require.NoError(t, err)

	// Side 2 only moves "feature", leaving "main" untouched.
	v2 := viewWithHeads(t, ctx, backend, baseCommit)
	v2.WCCommits = map[string]plumbing.CommitId{"default": baseCommit}
	v2.LocalBranches = map[string]oplog.BranchState{
		"main":    merge.Resolved(optional.Some(baseCommit)),
		"feature": merge.Resolved(optional.Some(featureTip)),
	}
	viewId2, err := s.WriteView(v2)
	require.NoError(t, err)
	_, err = s.Publish(&oplog.Operation{ViewId: viewId2, Parents: []plumbing.OpId{baseOpId}, Description: "advance feature"})
	require.NoError(t, err)

	mergedId, err := s.Head(ctx, backend)
	require.NoError(t, err)
	mergedOp, err := s.ReadOperation(mergedId)
	require.NoError(t, err)
	mergedView, err := s.ReadView(mergedOp.ViewId)
	require.NoError(t, err)

	mainTarget, ok := mergedView.LocalBranches["main"].IntoResolved()
	require.True(t, ok, "main only diverged on one side and should resolve cleanly")
	assert.Equal(t, optional.Some(mainAdvanced), mainTarget)

	featureTarget, ok := mergedView.LocalBranches["feature"].IntoResolved()
	require.True(t, ok, "feature only diverged on one side and should resolve cleanly")
	assert.Equal(t, optional.Some(featureTip), featureTarget)

	assert.Equal(t, mainAdvanced, mergedView.WCCommits["default"], "working copy pointer follows the side that advanced it")
}

func TestWalkReverseOrdersChildrenFirst(t *testing.T) {
	ctx := context.Background()
	backend := memstore.New()
	s, err := oplog.Open(t.TempDir())
	require.NoError(t, err)

	v0 := viewWithHeads(t, ctx, backend, randomCommitId("c0"))
	viewId0, _ := s.WriteView(v0)
	id0, err := s.Publish(&oplog.Operation{ViewId: viewId0})
	require.NoError(t, err)

	v1 := viewWithHeads(t, ctx, backend, randomCommitId("c1"))
	viewId1, _ := s.WriteView(v1)
	id1, err := s.Publish(&oplog.Operation{ViewId: viewId1, Parents: []plumbing.OpId{id0}})
	require.NoError(t, err)

	entries := s.WalkReverse([]plumbing.OpId{id1})
	require.Len(t, entries, 2)
	assert.Equal(t, id1, entries[0].Id)
	assert.Equal(t, id0, entries[1].Id)
}

func TestReparentRewritesRangeOntoNewBase(t *testing.T) {
	ctx := context.Background()
	backend := memstore.New()
	s, err := oplog.Open(t.TempDir())
	require.NoError(t, err)

	v0 := viewWithHeads(t, ctx, backend, randomCommitId("c0"))
	viewId0, _ := s.WriteView(v0)
	id0, err := s.Publish(&oplog.Operation{ViewId: viewId0, Description: "op0"})
	require.NoError(t, err)

	v1 := viewWithHeads(t, ctx, backend, randomCommitId("c1"))
	viewId1, _ := s.WriteView(v1)
	id1, err := s.Publish(&oplog.Operation{ViewId: viewId1, Parents: []plumbing.OpId{id0}, Description: "op1"})
	require.NoError(t, err)

	op2Start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	op2End := op2Start.Add(5 * time.Second)
	v2 := viewWithHeads(t, ctx, backend, randomCommitId("c2"))
	viewId2, _ := s.WriteView(v2)
	id2, err := s.Publish(&oplog.Operation{ViewId: viewId2, Parents: []plumbing.OpId{id1}, Description: "op2", Start: op2Start, End: op2End})
	require.NoError(t, err)

	newBaseOp := &oplog.Operation{ViewId: viewId0, Description: "alternate base"}
	newBaseId, err := s.WriteOperation(newBaseOp)
	require.NoError(t, err)

	result, err := s.Reparent(id0, id2, newBaseId, []plumbing.OpId{id2})
	require.NoError(t, err)
	assert.Equal(t, 2, result.RewrittenCount)
	assert.Equal(t, 1, result.UnreachableCount, "id0 (the exclusive range boundary) is unreachable from the rewritten head")
	require.Len(t, result.NewHeadIds, 1)

	newTop, err := s.ReadOperation(result.NewHeadIds[0])
	require.NoError(t, err)
	assert.Equal(t, "op2", newTop.Description)
	assert.True(t, op2Start.Equal(newTop.Start), "rewritten op's Start must be byte-equal to its pre-image")
	assert.True(t, op2End.Equal(newTop.End), "rewritten op's End must be byte-equal to its pre-image")

	chain := s.WalkForward([]plumbing.OpId{result.NewHeadIds[0]})
	require.Len(t, chain, 3)
	assert.Equal(t, newBaseId, chain[0].Id)
}

func TestGcDeletesOldUnreachableOperations(t *testing.T) {
	ctx := context.Background()
	backend := memstore.New()
	s, err := oplog.Open(t.TempDir())
	require.NoError(t, err)

	v0 := viewWithHeads(t, ctx, backend, randomCommitId("c0"))
	viewId0, _ := s.WriteView(v0)
	id0, err := s.Publish(&oplog.Operation{ViewId: viewId0})
	require.NoError(t, err)

	v1 := viewWithHeads(t, ctx, backend, randomCommitId("c1"))
	viewId1, _ := s.WriteView(v1)
	id1, err := s.Publish(&oplog.Operation{ViewId: viewId1, Parents: []plumbing.OpId{id0}})
	require.NoError(t, err)

	// Simulate an abandoned branch: a third operation parented on id0 but
	// never reachable from the current head id1.
	vAbandoned := viewWithHeads(t, ctx, backend, randomCommitId("abandoned"))
	viewIdAbandoned, _ := s.WriteView(vAbandoned)
	_, err = s.WriteOperation(&oplog.Operation{ViewId: viewIdAbandoned, Parents: []plumbing.OpId{id0}})
	require.NoError(t, err)

	result, err := s.Gc([]plumbing.OpId{id1}, time.Duration(0), time.Now().Add(24*time.Hour))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.DeletedOperations, 1)

	_, err = s.ReadOperation(id0)
	assert.NoError(t, err, "id0 stays: reachable from id1")
}

func TestDivergentChangesFindsSharedChangeId(t *testing.T) {
	ctx := context.Background()
	backend := memstore.New()

	changeId := plumbing.HashBytes("change", []byte("shared"))
	makeCommit := func(body string) plumbing.CommitId {
		treeId, err := backend.WriteTree(ctx, &store.Tree{})
		require.NoError(t, err)
		id, err := backend.WriteCommit(ctx, &store.Commit{RootTree: treeId, ChangeId: changeId, Description: []byte(body)})
		require.NoError(t, err)
		return id
	}
	c1 := makeCommit("first attempt")
	c2 := makeCommit("divergent rewrite")

	v := viewWithHeads(t, ctx, backend, c1, c2)
	matches, err := oplog.DivergentChanges(ctx, backend, v, changeId)
	require.NoError(t, err)
	assert.ElementsMatch(t, []plumbing.CommitId{c1, c2}, matches)
}
