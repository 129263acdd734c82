// Copyright (c) sigilvc authors.
// SPDX-License-Identifier: Apache-2.0

// Package store implements the content-addressed object store (files,
// symlinks, trees, commits, conflict objects) and the Backend
// abstraction that lets the rest of the engine stay agnostic of where
// those objects actually live.
package store

import (
	"github.com/sigilvc/sigil/plumbing"
)

// Kind tags the variant a TreeValue holds.
type Kind int8

const (
	KindFile Kind = iota + 1
	KindSymlink
	KindTree
	KindGitSubmodule
	// KindConflict is only ever legal as the value of a Tree entry; a
	// conflict object's own terms are never themselves conflicts (see
	// TreeValue.ValidConflictTerm).
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindSymlink:
		return "symlink"
	case KindTree:
		return "tree"
	case KindGitSubmodule:
		return "git-submodule"
	case KindConflict:
		return "conflict"
	default:
		return "invalid"
	}
}

// TreeValue is the tagged union of everything a tree entry, or a
// conflict-object term, can hold:
//
//	File         { id: FileId, executable: bool }
//	Symlink      (SymlinkId)
//	Tree         (TreeId)
//	GitSubmodule (CommitId)
//	Conflict     (ConflictId)   -- tree entries only
//
// It is a plain comparable struct (not an interface) so that
// merge.Merge[optional.Option[TreeValue]] can use built-in equality for
// simplification without reflection.
type TreeValue struct {
	Kind       Kind
	Id         plumbing.Id
	Executable bool // meaningful only when Kind == KindFile
}

func NewFile(id plumbing.FileId, executable bool) TreeValue {
	return TreeValue{Kind: KindFile, Id: id, Executable: executable}
}

func NewSymlink(id plumbing.SymlinkId) TreeValue { return TreeValue{Kind: KindSymlink, Id: id} }

func NewSubTree(id plumbing.TreeId) TreeValue { return TreeValue{Kind: KindTree, Id: id} }

func NewGitSubmodule(id plumbing.CommitId) TreeValue {
	return TreeValue{Kind: KindGitSubmodule, Id: id}
}

func NewConflictRef(id plumbing.ConflictId) TreeValue { return TreeValue{Kind: KindConflict, Id: id} }

// ValidConflictTerm reports whether this value is legal as a term of a
// persisted conflict object: every variant except KindConflict, since
// conflicts are not nested at the storage layer (a term that is itself
// conflicted is expanded and simplified away before the conflict object
// is written; see package conflict).
func (v TreeValue) ValidConflictTerm() bool { return v.Kind != KindConflict && v.Kind != 0 }

// IsDir reports whether this value denotes something a path can descend
// into during tree recursion.
func (v TreeValue) IsDir() bool { return v.Kind == KindTree }

// Signature is a single author/committer line: name, email, timestamp.
type Signature struct {
	Name  string
	Email string
	When  int64 // unix seconds; callers needing sub-second precision should carry it out of band
}

// File is an ordered byte sequence plus its executable bit's referencing
// id. The body is held separately from the id: Backend.ReadFile streams
// it, WriteFile computes the id from it.
type File struct {
	Executable bool
	Body       []byte
}

// Symlink is a byte sequence interpreted as a link target.
type Symlink struct {
	Target []byte
}

// Tree is an ordered mapping from path component to TreeValue. Path
// components are non-empty, contain no '/', and are never "." or "..".
// The invariant that a tree never embeds an empty subtree (empty
// subtrees are represented by the entry's absence) is enforced by
// treemerge, which is the only code path that manufactures new trees
// from scratch.
type Tree struct {
	Entries []TreeEntry
}

type TreeEntry struct {
	Name  string
	Value TreeValue
}

// Lookup returns the entry named name, if present. Tree.Entries is kept
// sorted by Name by every writer in this module, so callers that need
// repeated lookups should prefer building a map once rather than calling
// Lookup in a loop over a large tree.
func (t *Tree) Lookup(name string) (TreeValue, bool) {
	for _, e := range t.Entries {
		if e.Name == name {
			return e.Value, true
		}
	}
	return TreeValue{}, false
}

// Commit is the immutable unit of history. ChangeId is the anonymous
// identity that survives rewrites (multiple commits may share one,
// denoting divergence); Predecessors records the pre-rewrite commits that
// this one replaces, forming the evolution graph.
type Commit struct {
	Parents      []plumbing.CommitId
	RootTree     plumbing.TreeId
	ChangeId     plumbing.ChangeId
	Author       Signature
	Committer    Signature
	Description  []byte
	Predecessors []plumbing.CommitId

	// IsOpen and IsPruned are engine bookkeeping flags with no native
	// Git counterpart; a Git-compatible backend persists them as extra
	// commit headers (see gitbackend). IsOpen marks a commit still open
	// for amendment by its workspace; IsPruned marks a commit abandoned
	// by a rewrite but still reachable for evolution-graph purposes.
	IsOpen   bool
	IsPruned bool
}

// Conflict is a persisted Merge<Option<TreeValue>>, referenced from a
// tree entry by ConflictId. It is stored in the arithmetic-invariant form
// (adds/removes) rather than as a generic merge.Merge so the store
// package does not need to import merge's generics into its on-disk
// envelope; conflict.FromMerge/ToMerge convert between the two.
type Conflict struct {
	// Adds and Removes satisfy len(Adds) == len(Removes)+1, the Merge
	// arithmetic invariant; a nil entry within either slice denotes
	// absence (the optional.None case) on that side.
	Adds    []*TreeValue
	Removes []*TreeValue
}
