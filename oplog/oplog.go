// Package oplog implements the operation log (C8): an append-only DAG of
// repository states. Each Operation names a View (the visible commit
// set and per-workspace working-copy pointers at that point in history)
// and a set of parent operations; the current head set is tracked by
// marker files the way store/gitbackend tracks keep-refs, and
// concurrent writers are reconciled by synthesizing a merge operation
// whose view is produced by package treemerge.
package oplog

import (
	"time"

	"github.com/sigilvc/sigil/merge"
	"github.com/sigilvc/sigil/optional"
	"github.com/sigilvc/sigil/plumbing"
)

// BranchState is a named ref whose target can itself be conflicted: two
// divergent operations that each moved the same branch are reconciled by
// keeping both as terms of the Merge rather than picking a winner, the
// same way a tree entry stays conflicted until C5/C6 can simplify it.
type BranchState = merge.Merge[optional.Option[plumbing.CommitId]]

// RemoteBranchKey names one remote's view of one branch.
type RemoteBranchKey struct {
	Name   string
	Remote string
}

// RemoteBranch is a remote's last-known position for a branch plus
// whether the local repository tracks it (i.e. pushing/pulling the local
// branch of the same name should update this remote ref too).
type RemoteBranch struct {
	Target  BranchState
	Tracked bool
}

// View is the repository state an Operation captures: the set of commits
// the user currently considers "visible" (the heads of ordinary history,
// as opposed to the full reachable set), each workspace's working-copy
// commit, the local/remote branch and tag namespaces, and a mirror of
// the underlying Git repository's own refs and HEAD for a Git-backed
// store (C1, §6).
//
// Heads is stored as a sorted tree (RootTree) rather than a flat id list
// so that package treemerge can merge two divergent views the same way
// it merges any other tree: each entry's name is the head commit's hex
// id and its value is not interpreted, which makes "the set of
// visible heads" a first-class mergeable tree instead of bespoke set
//-reconciliation logic.
type View struct {
	RootTree       plumbing.TreeId
	WCCommits      map[string]plumbing.CommitId // workspace name -> working-copy commit
	LocalBranches  map[string]BranchState
	RemoteBranches map[RemoteBranchKey]RemoteBranch
	Tags           map[string]BranchState
	// GitRefs and GitHead mirror a Git-compatible backend's own ref
	// namespace; unlike branches/tags they are not given Merge
	// semantics of their own; a divergence between two views is
	// resolved the same way a bare working-copy pointer is (see
	// mergeOptionalCommit in reconcile.go), since a foreign ref has no
	// textual conflict-marker representation to fall back to.
	GitRefs map[string]plumbing.CommitId
	GitHead optional.Option[plumbing.CommitId]
}

// Operation is one node of the operation DAG.
type Operation struct {
	ViewId      plumbing.ViewId
	Parents     []plumbing.OpId
	Description string
	Tags        map[string]string
	Start       time.Time
	End         time.Time
	// Hostname, Username, and Args are provenance stamped onto every
	// operation by Publish when not already set by the caller, mirroring
	// how a real operation log records who ran what, from where.
	Hostname string
	Username string
	Args     []string
}

// opNode adapts *Operation (plus its id, known only to the store that
// loaded it) to dag.Node so package dag's topological utilities apply
// directly to the operation graph.
type opNode struct {
	id plumbing.OpId
	op *Operation
}

func (n opNode) ID() plumbing.OpId        { return n.id }
func (n opNode) Parents() []plumbing.OpId { return n.op.Parents }
