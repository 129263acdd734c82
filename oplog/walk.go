package oplog

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sigilvc/sigil/dag"
	"github.com/sigilvc/sigil/plumbing"
)

// WalkEntry pairs an operation with the id it was stored under, since
// package dag's Node interface keeps identity separate from the node
// value itself.
type WalkEntry struct {
	Id plumbing.OpId
	Op *Operation
}

func toEntries(nodes []opNode) []WalkEntry {
	out := make([]WalkEntry, len(nodes))
	for i, n := range nodes {
		out[i] = WalkEntry{Id: n.id, Op: n.op}
	}
	return out
}

// WalkReverse returns heads and every operation reachable from them,
// newest (children) first.
func (s *Store) WalkReverse(heads []plumbing.OpId) []WalkEntry {
	return toEntries(dag.TopoOrderReverse(heads, s.lookup))
}

// WalkForward is the dual: oldest (parents) first.
func (s *Store) WalkForward(heads []plumbing.OpId) []WalkEntry {
	return toEntries(dag.TopoOrderForward(heads, s.lookup))
}

// ReparentResult reports the outcome of Reparent.
type ReparentResult struct {
	NewHeadIds       []plumbing.OpId
	RewrittenCount   int
	UnreachableCount int
}

// Reparent copies the contiguous operation range (from..to] — from is
// exclusive, the common ancestor the range starts just after; to is the
// range's topmost operation — onto a new base B, preserving each
// operation's own metadata (description, tags, view id) but replacing
// the root of the range's parent set with B. This is the primitive
// behind undo/restore: rewinding history by rebuilding the suffix of
// operations that came after the one being undone.
//
// "Unreachable" operations are `from` itself (unless it is the zero id)
// plus members of currentHeads that are not reachable from `to`
// (concurrent forks the range never accounted for);
// they are reported, not silently dropped, so a caller can decide
// whether to also reparent them.
func (s *Store) Reparent(from, to, newBase plumbing.OpId, currentHeads []plumbing.OpId) (*ReparentResult, error) {
	chain := dag.TopoOrderForward([]plumbing.OpId{to}, s.lookup)

	var inRange []plumbing.OpId
	started := from == plumbing.ZeroId
	for _, n := range chain {
		if n.ID() == from {
			started = true
			continue
		}
		if started {
			inRange = append(inRange, n.ID())
		}
	}
	if len(inRange) == 0 {
		return nil, fmt.Errorf("oplog: reparent: empty range (%s, %s]", from, to)
	}

	rewritten := make(map[plumbing.OpId]plumbing.OpId, len(inRange))
	for _, id := range inRange {
		op, err := s.ReadOperation(id)
		if err != nil {
			return nil, fmt.Errorf("oplog: reparent: read %s: %w", id, err)
		}
		newParents := make([]plumbing.OpId, 0, len(op.Parents))
		for _, p := range op.Parents {
			switch {
			case p == from:
				newParents = append(newParents, newBase)
			default:
				if np, ok := rewritten[p]; ok {
					newParents = append(newParents, np)
				} else {
					newParents = append(newParents, p) // parent outside the range: kept as-is
				}
			}
		}
		newOp := &Operation{
			ViewId:      op.ViewId,
			Parents:     newParents,
			Description: op.Description,
			Tags:        op.Tags,
			Start:       op.Start,
			End:         op.End,
			Hostname:    op.Hostname,
			Username:    op.Username,
			Args:        op.Args,
		}
		newId, err := s.WriteOperation(newOp)
		if err != nil {
			return nil, err
		}
		rewritten[id] = newId
	}

	newTop := rewritten[to]
	if err := os.WriteFile(filepath.Join(s.headsDir(), newTop.String()), nil, 0644); err != nil {
		return nil, fmt.Errorf("oplog: write rewritten head marker: %w", err)
	}

	reachableFromTo := map[plumbing.OpId]bool{}
	for _, n := range chain {
		reachableFromTo[n.ID()] = true
	}

	// Every op in the inclusive range [from, to] counts toward
	// rewritten_count + unreachable_count == |reachable(from..to)|: the
	// boundary op `from` itself is never rewritten (its content doesn't
	// carry forward once the range is rebased onto newBase) and so is
	// unreachable from the new head, the same as S4 counts B as the lone
	// unreachable op when reparenting (B, D] onto A.
	unreachableSet := map[plumbing.OpId]bool{}
	if from != plumbing.ZeroId {
		unreachableSet[from] = true
	}
	// A head outside this range entirely — a concurrent fork the caller
	// didn't ask to reparent — is unreachable from the new top too.
	for _, h := range currentHeads {
		if h == to {
			_ = os.Remove(filepath.Join(s.headsDir(), h.String()))
			continue
		}
		if !reachableFromTo[h] {
			unreachableSet[h] = true
		}
	}

	return &ReparentResult{
		NewHeadIds:       []plumbing.OpId{newTop},
		RewrittenCount:   len(inRange),
		UnreachableCount: len(unreachableSet),
	}, nil
}
