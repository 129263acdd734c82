package store

import (
	"context"

	"github.com/sigilvc/sigil/plumbing"
)

// Backend is the capability set every object-store implementation must
// provide. Implementations must make writes content-addressed and
// idempotent, and must guarantee that an id returned from a successful
// write can be read back within the same process. Reads fail with a
// plumbing.NotFound error only when the id is genuinely unknown to this
// store; every other fault is wrapped with plumbing.Backend.
//
// A backend MAY surface objects it never received through a Write method
// (e.g. commits fetched from a remote into a Git-compatible backend); the
// engine does not assume ReadCommit/WriteCommit round-trip byte-for-byte,
// only that Parents, RootTree, ChangeId, Predecessors and Description
// survive the round trip exactly.
type Backend interface {
	ReadFile(ctx context.Context, id plumbing.FileId) (*File, error)
	WriteFile(ctx context.Context, f *File) (plumbing.FileId, error)

	ReadSymlink(ctx context.Context, id plumbing.SymlinkId) (*Symlink, error)
	WriteSymlink(ctx context.Context, s *Symlink) (plumbing.SymlinkId, error)

	ReadTree(ctx context.Context, id plumbing.TreeId) (*Tree, error)
	WriteTree(ctx context.Context, t *Tree) (plumbing.TreeId, error)

	ReadCommit(ctx context.Context, id plumbing.CommitId) (*Commit, error)
	WriteCommit(ctx context.Context, c *Commit) (plumbing.CommitId, error)

	ReadConflict(ctx context.Context, id plumbing.ConflictId) (*Conflict, error)
	WriteConflict(ctx context.Context, c *Conflict) (plumbing.ConflictId, error)

	// EmptyTreeId returns the well-known id of the tree with no entries.
	EmptyTreeId() plumbing.TreeId

	// HashLength reports the width, in bytes, of ids this backend
	// produces natively (20 for a Git-compatible backend, 32 for the
	// engine's own BLAKE3 ids).
	HashLength() int
}
