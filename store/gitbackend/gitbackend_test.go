package gitbackend_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigilvc/sigil/plumbing"
	"github.com/sigilvc/sigil/store"
	"github.com/sigilvc/sigil/store/gitbackend"
)

func TestFileRoundTrip(t *testing.T) {
	ctx := context.Background()
	b, err := gitbackend.Open(t.TempDir())
	require.NoError(t, err)

	id, err := b.WriteFile(ctx, &store.File{Body: []byte("hello world\n")})
	require.NoError(t, err)

	got, err := b.ReadFile(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "hello world\n", string(got.Body))

	// content-addressed and idempotent
	id2, err := b.WriteFile(ctx, &store.File{Body: []byte("hello world\n")})
	require.NoError(t, err)
	assert.Equal(t, id, id2)
}

func TestTreeRoundTripWithConflictEntry(t *testing.T) {
	ctx := context.Background()
	b, err := gitbackend.Open(t.TempDir())
	require.NoError(t, err)

	fileId, err := b.WriteFile(ctx, &store.File{Body: []byte("a")})
	require.NoError(t, err)

	conflictId, err := b.WriteConflict(ctx, &store.Conflict{
		Adds:    []*store.TreeValue{{Kind: store.KindFile, Id: fileId}, nil},
		Removes: []*store.TreeValue{{Kind: store.KindFile, Id: fileId}},
	})
	require.NoError(t, err)

	tree := &store.Tree{Entries: []store.TreeEntry{
		{Name: "a.txt", Value: store.NewFile(fileId, false)},
		{Name: "conflicted.txt", Value: store.NewConflictRef(conflictId)},
	}}
	treeId, err := b.WriteTree(ctx, tree)
	require.NoError(t, err)

	got, err := b.ReadTree(ctx, treeId)
	require.NoError(t, err)
	require.Len(t, got.Entries, 2)

	byName := map[string]store.TreeValue{}
	for _, e := range got.Entries {
		byName[e.Name] = e.Value
	}
	assert.Equal(t, store.KindFile, byName["a.txt"].Kind)
	assert.Equal(t, store.KindConflict, byName["conflicted.txt"].Kind)

	readBack, err := b.ReadConflict(ctx, byName["conflicted.txt"].Id)
	require.NoError(t, err)
	require.Len(t, readBack.Adds, 2)
	require.NotNil(t, readBack.Adds[0])
	assert.Nil(t, readBack.Adds[1])
	require.Len(t, readBack.Removes, 1)
}

func TestCommitRoundTripPreservesEngineMetadata(t *testing.T) {
	ctx := context.Background()
	b, err := gitbackend.Open(t.TempDir())
	require.NoError(t, err)

	c := &store.Commit{
		Parents:      []plumbing.Id{b.EmptyTreeId()},
		RootTree:     b.EmptyTreeId(),
		ChangeId:     b.EmptyTreeId(),
		Author:       store.Signature{Name: "A", Email: "a@example.com", When: 1000},
		Committer:    store.Signature{Name: "A", Email: "a@example.com", When: 1000},
		Description:  []byte("initial\n"),
		Predecessors: []plumbing.Id{b.EmptyTreeId()},
	}
	id, err := b.WriteCommit(ctx, c)
	require.NoError(t, err)

	got, err := b.ReadCommit(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, c.RootTree, got.RootTree)
	assert.Equal(t, c.ChangeId, got.ChangeId)
	assert.Equal(t, c.Description, got.Description)
	assert.Equal(t, c.Predecessors, got.Predecessors)
	assert.Equal(t, c.Author.Name, got.Author.Name)
}
