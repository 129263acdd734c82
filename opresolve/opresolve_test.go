package opresolve_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigilvc/sigil/oplog"
	"github.com/sigilvc/sigil/opresolve"
	"github.com/sigilvc/sigil/plumbing"
	"github.com/sigilvc/sigil/store"
	"github.com/sigilvc/sigil/store/memstore"
)

// linearHistory builds root -> id0 -> id1 -> id2, returning the ids in
// that order plus the store they live in.
func linearHistory(t *testing.T) (*oplog.Store, plumbing.OpId, plumbing.OpId, plumbing.OpId) {
	t.Helper()
	ctx := context.Background()
	backend := memstore.New()
	s, err := oplog.Open(t.TempDir())
	require.NoError(t, err)

	emptyTree, err := backend.WriteTree(ctx, &store.Tree{})
	require.NoError(t, err)
	view := &oplog.View{RootTree: emptyTree, WCCommits: map[string]plumbing.CommitId{}}
	viewId, err := s.WriteView(view)
	require.NoError(t, err)

	id0, err := s.Publish(&oplog.Operation{ViewId: viewId, Description: "op0"})
	require.NoError(t, err)
	id1, err := s.Publish(&oplog.Operation{ViewId: viewId, Parents: []plumbing.OpId{id0}, Description: "op1"})
	require.NoError(t, err)
	id2, err := s.Publish(&oplog.Operation{ViewId: viewId, Parents: []plumbing.OpId{id1}, Description: "op2"})
	require.NoError(t, err)
	return s, id0, id1, id2
}

func TestResolveAtIsCurrent(t *testing.T) {
	s, id0, _, id2 := linearHistory(t)
	got, err := opresolve.Resolve(s, []plumbing.OpId{id2}, id0, "@")
	require.NoError(t, err)
	assert.Equal(t, id0, got)
}

func TestResolveFullHexId(t *testing.T) {
	s, id0, _, id2 := linearHistory(t)
	got, err := opresolve.Resolve(s, []plumbing.OpId{id2}, id0, id2.String())
	require.NoError(t, err)
	assert.Equal(t, id2, got)
}

func TestResolveUnambiguousPrefix(t *testing.T) {
	s, id0, _, id2 := linearHistory(t)
	prefix := id2.String()[:8]
	got, err := opresolve.Resolve(s, []plumbing.OpId{id2}, id0, prefix)
	require.NoError(t, err)
	assert.Equal(t, id2, got)
}

func TestResolveEmptyPrefixIsInvalid(t *testing.T) {
	s, id0, _, id2 := linearHistory(t)
	_, err := opresolve.Resolve(s, []plumbing.OpId{id2}, id0, "")
	var invalid *opresolve.InvalidIdPrefix
	assert.ErrorAs(t, err, &invalid)
}

func TestResolveParentStep(t *testing.T) {
	s, id0, id1, id2 := linearHistory(t)
	got, err := opresolve.Resolve(s, []plumbing.OpId{id2}, id2, id2.String()+"-")
	require.NoError(t, err)
	assert.Equal(t, id1, got)

	got, err = opresolve.Resolve(s, []plumbing.OpId{id2}, id2, id2.String()+"--")
	require.NoError(t, err)
	assert.Equal(t, id0, got)
}

func TestResolveParentPastRootIsEmpty(t *testing.T) {
	s, id0, _, id2 := linearHistory(t)
	_, err := opresolve.Resolve(s, []plumbing.OpId{id2}, id2, id0.String()+"-")
	var empty *opresolve.EmptyOperations
	assert.ErrorAs(t, err, &empty)
}

func TestResolveChildStep(t *testing.T) {
	s, id0, id1, id2 := linearHistory(t)
	got, err := opresolve.Resolve(s, []plumbing.OpId{id2}, id2, id0.String()+"+")
	require.NoError(t, err)
	assert.Equal(t, id1, got)

	got, err = opresolve.Resolve(s, []plumbing.OpId{id2}, id2, id0.String()+"++")
	require.NoError(t, err)
	assert.Equal(t, id2, got)
}

func TestResolveChildPastFrontierIsEmpty(t *testing.T) {
	s, _, _, id2 := linearHistory(t)
	_, err := opresolve.Resolve(s, []plumbing.OpId{id2}, id2, id2.String()+"+")
	var empty *opresolve.EmptyOperations
	assert.ErrorAs(t, err, &empty)
}

func TestResolveMultipleParentsIsAmbiguous(t *testing.T) {
	ctx := context.Background()
	backend := memstore.New()
	s, err := oplog.Open(t.TempDir())
	require.NoError(t, err)

	emptyTree, err := backend.WriteTree(ctx, &store.Tree{})
	require.NoError(t, err)
	view := &oplog.View{RootTree: emptyTree, WCCommits: map[string]plumbing.CommitId{}}
	viewId, err := s.WriteView(view)
	require.NoError(t, err)

	left, err := s.Publish(&oplog.Operation{ViewId: viewId, Description: "left"})
	require.NoError(t, err)
	right, err := s.WriteOperation(&oplog.Operation{ViewId: viewId, Description: "right"})
	require.NoError(t, err)
	merge, err := s.Publish(&oplog.Operation{ViewId: viewId, Parents: []plumbing.OpId{left, right}, Description: "merge"})
	require.NoError(t, err)

	_, err = opresolve.Resolve(s, []plumbing.OpId{merge}, merge, merge.String()+"-")
	var multi *opresolve.MultipleOperations
	assert.ErrorAs(t, err, &multi)
}

func TestResolveMultipleChildrenIsAmbiguous(t *testing.T) {
	ctx := context.Background()
	backend := memstore.New()
	s, err := oplog.Open(t.TempDir())
	require.NoError(t, err)

	emptyTree, err := backend.WriteTree(ctx, &store.Tree{})
	require.NoError(t, err)
	view := &oplog.View{RootTree: emptyTree, WCCommits: map[string]plumbing.CommitId{}}
	viewId, err := s.WriteView(view)
	require.NoError(t, err)

	root, err := s.Publish(&oplog.Operation{ViewId: viewId, Description: "root"})
	require.NoError(t, err)
	childA, err := s.WriteOperation(&oplog.Operation{ViewId: viewId, Parents: []plumbing.OpId{root}, Description: "a"})
	require.NoError(t, err)
	childB, err := s.WriteOperation(&oplog.Operation{ViewId: viewId, Parents: []plumbing.OpId{root}, Description: "b"})
	require.NoError(t, err)

	_, err = opresolve.Resolve(s, []plumbing.OpId{childA, childB}, root, root.String()+"+")
	var multi *opresolve.MultipleOperations
	assert.ErrorAs(t, err, &multi)
}

func TestResolveUnknownIdIsNoSuchOperation(t *testing.T) {
	s, id0, _, id2 := linearHistory(t)
	bogus := plumbing.HashBytes("bogus", []byte("nope")).String()
	_, err := opresolve.Resolve(s, []plumbing.OpId{id2}, id0, bogus)
	var missing *opresolve.NoSuchOperation
	assert.ErrorAs(t, err, &missing)
}

func TestResolveInvalidPrefixIsRejected(t *testing.T) {
	s, id0, _, id2 := linearHistory(t)
	_, err := opresolve.Resolve(s, []plumbing.OpId{id2}, id0, "not-hex!!")
	var invalid *opresolve.InvalidIdPrefix
	assert.ErrorAs(t, err, &invalid)
}

func TestResolveRootAlias(t *testing.T) {
	s, id0, _, id2 := linearHistory(t)
	got, err := opresolve.Resolve(s, []plumbing.OpId{id2}, id2, opresolve.RootAlias)
	require.NoError(t, err)
	assert.Equal(t, id0, got)
}
