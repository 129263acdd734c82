package memstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigilvc/sigil/plumbing"
	"github.com/sigilvc/sigil/store"
	"github.com/sigilvc/sigil/store/memstore"
)

func TestFileRoundTripIsContentAddressedAndIdempotent(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	id, err := s.WriteFile(ctx, &store.File{Body: []byte("hello world\n")})
	require.NoError(t, err)

	got, err := s.ReadFile(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "hello world\n", string(got.Body))

	id2, err := s.WriteFile(ctx, &store.File{Body: []byte("hello world\n")})
	require.NoError(t, err)
	assert.Equal(t, id, id2)
}

func TestReadFileMissingIsNotFound(t *testing.T) {
	s := memstore.New()
	_, err := s.ReadFile(context.Background(), plumbing.HashBytes("file", []byte("nope")))
	assert.True(t, plumbing.IsNotFound(err))
}

func TestSymlinkRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	id, err := s.WriteSymlink(ctx, &store.Symlink{Target: []byte("../other")})
	require.NoError(t, err)

	got, err := s.ReadSymlink(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "../other", string(got.Target))
}

func TestEmptyTreeIsPreseeded(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	got, err := s.ReadTree(ctx, s.EmptyTreeId())
	require.NoError(t, err)
	assert.Empty(t, got.Entries)
}

func TestTreeRoundTripWithConflictEntry(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	fileId, err := s.WriteFile(ctx, &store.File{Body: []byte("a")})
	require.NoError(t, err)

	conflictId, err := s.WriteConflict(ctx, &store.Conflict{
		Adds:    []*store.TreeValue{{Kind: store.KindFile, Id: fileId}, nil},
		Removes: []*store.TreeValue{{Kind: store.KindFile, Id: fileId}},
	})
	require.NoError(t, err)

	tree := &store.Tree{Entries: []store.TreeEntry{
		{Name: "a.txt", Value: store.NewFile(fileId, false)},
		{Name: "conflicted.txt", Value: store.NewConflictRef(conflictId)},
	}}
	treeId, err := s.WriteTree(ctx, tree)
	require.NoError(t, err)

	got, err := s.ReadTree(ctx, treeId)
	require.NoError(t, err)
	require.Len(t, got.Entries, 2)

	readBack, err := s.ReadConflict(ctx, conflictId)
	require.NoError(t, err)
	require.Len(t, readBack.Adds, 2)
	require.NotNil(t, readBack.Adds[0])
	assert.Nil(t, readBack.Adds[1])
}

func TestCommitRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	c := &store.Commit{
		Parents:     []plumbing.Id{s.EmptyTreeId()},
		RootTree:    s.EmptyTreeId(),
		ChangeId:    s.EmptyTreeId(),
		Author:      store.Signature{Name: "A", Email: "a@example.com", When: 1000},
		Committer:   store.Signature{Name: "A", Email: "a@example.com", When: 1000},
		Description: []byte("initial\n"),
	}
	id, err := s.WriteCommit(ctx, c)
	require.NoError(t, err)

	got, err := s.ReadCommit(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, c.RootTree, got.RootTree)
	assert.Equal(t, c.Description, got.Description)
}

func TestWriteFileCopiesBodySoCallerMutationDoesNotLeak(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	body := []byte("mutable")
	id, err := s.WriteFile(ctx, &store.File{Body: body})
	require.NoError(t, err)

	body[0] = 'M'

	got, err := s.ReadFile(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "mutable", string(got.Body))
}
