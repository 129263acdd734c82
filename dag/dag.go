// Package dag implements generic graph utilities over an abstract id and
// neighbor function, following the same push/pop stack shape as a
// commit-walker family (modules/zeta/object/commit_walker_topo_order.go,
// commit_walker_bfs.go), generalized from *Commit to any comparable id
// type so it serves the operation log (C8) as well as any future
// commit-graph walk.
package dag

import (
	"github.com/emirpasic/gods/trees/binaryheap"
)

// Node is the minimal shape a graph element must provide: a comparable
// identity and its direct parents (the edges point from child to
// parent, matching commit/operation DAGs where children are discovered
// first and parents are older).
type Node[ID comparable] interface {
	ID() ID
	Parents() []ID
}

// Lookup resolves an ID to its Node; returns false if unknown (the walk
// treats an unknown parent as a graph boundary, not an error).
type Lookup[ID comparable, N Node[ID]] func(id ID) (N, bool)

// ErrCycle is panicked by TopoOrderReverse and TopoOrderForward
// (TopoOrderReverseLazy does not check for cycles); per spec the
// input is assumed acyclic and a cycle indicates data corruption.
type ErrCycle[ID comparable] struct{ At ID }

func (e ErrCycle[ID]) Error() string { return "dag: cycle detected" }

// DFS performs a lazy depth-first traversal from the given starts,
// calling visit once per newly-discovered node in pre-order. It does not
// revisit nodes.
func DFS[ID comparable, N Node[ID]](starts []ID, lookup Lookup[ID, N], visit func(N)) {
	visited := make(map[ID]bool)
	var stack []ID
	stack = append(stack, starts...)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[id] {
			continue
		}
		visited[id] = true
		n, ok := lookup(id)
		if !ok {
			continue
		}
		visit(n)
		stack = append(stack, n.Parents()...)
	}
}

// TopoOrderReverse returns starts and everything reachable from them via
// Parents, ordered children-before-parents (a node appears only after
// every node that has it as a parent has already appeared would be the
// forward order; this is the reverse: parents-after-children, the order
// a log viewer wants). Cycles panic with ErrCycle.
func TopoOrderReverse[ID comparable, N Node[ID]](starts []ID, lookup Lookup[ID, N]) []N {
	const (
		white = 0 // unvisited
		grey  = 1 // on the current DFS stack (cycle if seen again)
		black = 2 // finished
	)
	color := make(map[ID]int)
	var order []N

	var visit func(id ID)
	visit = func(id ID) {
		switch color[id] {
		case black:
			return
		case grey:
			panic(ErrCycle[ID]{At: id})
		}
		color[id] = grey
		n, ok := lookup(id)
		if !ok {
			color[id] = black
			return
		}
		for _, p := range n.Parents() {
			visit(p)
		}
		color[id] = black
		order = append(order, n)
	}
	for _, s := range starts {
		visit(s)
	}
	// order is currently parents-before-children (post-order); reverse
	// it so children come first, matching a log's newest-first display.
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order
}

// TopoOrderForward is the dual of TopoOrderReverse: parents before
// children.
func TopoOrderForward[ID comparable, N Node[ID]](starts []ID, lookup Lookup[ID, N]) []N {
	rev := TopoOrderReverse(starts, lookup)
	for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
		rev[i], rev[j] = rev[j], rev[i]
	}
	return rev
}

// TopoOrderReverseLazy is the linear-chain fast path for
// TopoOrderReverse: most real commit/operation graphs are long runs of
// single-parent nodes with the occasional merge, so walking a priority
// queue ordered by rank (newest first) and only buffering the in-degree
// bookkeeping for the branchy regions avoids materializing the whole
// reachable set up front the way TopoOrderReverse's recursive coloring
// does. Modeled on commitTopoOrderIterator
// (modules/zeta/object/commit_walker_topo_order.go), which drives the
// same explorer-heap/visit-stack pair over *Commit; here it is
// generalized to any Node[ID] plus a caller-supplied rank function
// (typically a commit/operation timestamp).
//
// rank(a) > rank(b) must hold whenever a is newer than b; ties are
// broken arbitrarily. Unlike TopoOrderReverse this path trusts the
// acyclic assumption rather than re-verifying it: a cycle here simply
// starves some node's in-count from ever reaching zero and that node is
// silently dropped from the result rather than panicking. Callers that
// need the cycle check should use TopoOrderReverse.
func TopoOrderReverseLazy[ID comparable, N Node[ID]](starts []ID, lookup Lookup[ID, N], rank func(N) int64) []N {
	explorer := binaryheap.NewWith(func(a, b any) int {
		ra, rb := rank(a.(N)), rank(b.(N))
		switch {
		case ra > rb:
			return -1
		case ra < rb:
			return 1
		default:
			return 0
		}
	})
	var visitStack []N
	discovered := make(map[ID]bool)

	for _, s := range starts {
		if n, ok := lookup(s); ok && !discovered[s] {
			discovered[s] = true
			explorer.Push(n)
			visitStack = append(visitStack, n)
		}
	}

	inCounts := make(map[ID]int)
	var order []N

	for len(visitStack) > 0 {
		var next N
		found := false
		for len(visitStack) > 0 {
			next = visitStack[len(visitStack)-1]
			visitStack = visitStack[:len(visitStack)-1]
			if inCounts[next.ID()] == 0 {
				found = true
				break
			}
		}
		if !found {
			break
		}

		for {
			top, ok := explorer.Peek()
			if !ok {
				break
			}
			n := top.(N)
			if n.ID() != next.ID() && explorer.Size() == 1 {
				break
			}
			explorer.Pop()
			for _, p := range n.Parents() {
				if inCounts[p] == 0 && !discovered[p] {
					discovered[p] = true
					if pn, ok := lookup(p); ok {
						explorer.Push(pn)
					}
				}
				inCounts[p]++
			}
		}

		for _, p := range next.Parents() {
			if inCounts[p] == 0 {
				continue
			}
			inCounts[p]--
			if inCounts[p] == 0 {
				if pn, ok := lookup(p); ok {
					visitStack = append(visitStack, pn)
				}
			}
		}
		delete(inCounts, next.ID())
		order = append(order, next)
	}
	return order
}

// Heads returns the elements of s that are not reachable (via Parents,
// transitively) from any other element of s.
func Heads[ID comparable, N Node[ID]](s []ID, lookup Lookup[ID, N]) []ID {
	reachableFromOthers := make(map[ID]bool)
	for _, start := range s {
		n, ok := lookup(start)
		if !ok {
			continue
		}
		DFS(n.Parents(), lookup, func(m N) {
			reachableFromOthers[m.ID()] = true
		})
	}
	var heads []ID
	for _, id := range s {
		if !reachableFromOthers[id] {
			heads = append(heads, id)
		}
	}
	return heads
}

// ClosestCommonNode finds a nearest common ancestor of two id sets via
// bidirectional BFS: expand the smaller ancestor-distance frontier first
// at each step, stopping at the first id that is reachable from both
// sides.
func ClosestCommonNode[ID comparable, N Node[ID]](s1, s2 []ID, lookup Lookup[ID, N]) (ID, bool) {
	seen1 := map[ID]bool{}
	seen2 := map[ID]bool{}
	frontier1 := append([]ID{}, s1...)
	frontier2 := append([]ID{}, s2...)
	for _, id := range frontier1 {
		seen1[id] = true
	}
	for _, id := range frontier2 {
		seen2[id] = true
	}
	if found, ok := intersectAny(seen1, seen2); ok {
		return found, true
	}
	for len(frontier1) > 0 || len(frontier2) > 0 {
		if len(frontier2) == 0 || (len(frontier1) > 0 && len(frontier1) <= len(frontier2)) {
			frontier1 = stepFrontier(frontier1, seen1, lookup)
		} else {
			frontier2 = stepFrontier(frontier2, seen2, lookup)
		}
		if found, ok := intersectAny(seen1, seen2); ok {
			return found, true
		}
	}
	var zero ID
	return zero, false
}

func stepFrontier[ID comparable, N Node[ID]](frontier []ID, seen map[ID]bool, lookup Lookup[ID, N]) []ID {
	var next []ID
	for _, id := range frontier {
		n, ok := lookup(id)
		if !ok {
			continue
		}
		for _, p := range n.Parents() {
			if !seen[p] {
				seen[p] = true
				next = append(next, p)
			}
		}
	}
	return next
}

func intersectAny[ID comparable](a, b map[ID]bool) (ID, bool) {
	for id := range a {
		if b[id] {
			return id, true
		}
	}
	var zero ID
	return zero, false
}
