// Package opresolve implements the operation reference resolver (C9):
// parsing a short textual reference the way a revset's "@"/hex-prefix
// syntax works for commits, but over the operation log instead.
package opresolve

import (
	"fmt"
	"strings"

	"github.com/sigilvc/sigil/oplog"
	"github.com/sigilvc/sigil/plumbing"
)

// RootAlias is the reserved reference naming the operation-log root: the
// stored operation with no parents that every other operation descends
// from, found by walking back from the current heads (see resolveRoot).
const RootAlias = "root"

// NoSuchOperation is returned when expr names no known operation.
type NoSuchOperation struct{ Expr string }

func (e *NoSuchOperation) Error() string { return fmt.Sprintf("opresolve: no such operation: %q", e.Expr) }

// AmbiguousIdPrefix is returned when a hex prefix matches more than one
// stored operation.
type AmbiguousIdPrefix struct {
	Prefix     string
	Candidates []plumbing.OpId
}

func (e *AmbiguousIdPrefix) Error() string {
	return fmt.Sprintf("opresolve: prefix %q is ambiguous (%d candidates)", e.Prefix, len(e.Candidates))
}

// MultipleOperations is returned when a `-`/`+` step has more than one
// valid target (an operation with multiple parents, or multiple
// children reachable from the current heads).
type MultipleOperations struct{ Expr string }

func (e *MultipleOperations) Error() string {
	return fmt.Sprintf("opresolve: %q resolves to multiple operations", e.Expr)
}

// EmptyOperations is returned when a `-`/`+` step has no valid target
// (stepping past the root, or past the current frontier).
type EmptyOperations struct{ Expr string }

func (e *EmptyOperations) Error() string {
	return fmt.Sprintf("opresolve: %q resolves to no operations", e.Expr)
}

// InvalidIdPrefix is returned when expr is not valid hex.
type InvalidIdPrefix struct{ Expr string }

func (e *InvalidIdPrefix) Error() string {
	return fmt.Sprintf("opresolve: %q is not a valid id prefix", e.Expr)
}

// Resolve parses expr against store, using current as the meaning of
// "@" and heads as the current frontier that `+` steps must stay within.
func Resolve(store *oplog.Store, heads []plumbing.OpId, current plumbing.OpId, expr string) (plumbing.OpId, error) {
	if expr == "@" {
		return current, nil
	}
	if expr == RootAlias {
		return resolveRoot(store, heads)
	}

	if trimmed, n := trimTrailing(expr, '-'); n > 0 {
		id, err := Resolve(store, heads, current, trimmed)
		if err != nil {
			return plumbing.ZeroId, err
		}
		return stepParents(store, id, n, expr)
	}
	if trimmed, n := trimTrailing(expr, '+'); n > 0 {
		id, err := Resolve(store, heads, current, trimmed)
		if err != nil {
			return plumbing.ZeroId, err
		}
		return stepChildren(store, heads, id, n, expr)
	}

	return resolveId(store, expr)
}

func trimTrailing(s string, c byte) (string, int) {
	n := 0
	for len(s) > 0 && s[len(s)-1] == c {
		s = s[:len(s)-1]
		n++
	}
	return s, n
}

func resolveId(store *oplog.Store, expr string) (plumbing.OpId, error) {
	if !isHex(expr) || len(expr) == 0 {
		return plumbing.ZeroId, &InvalidIdPrefix{Expr: expr}
	}
	if len(expr) == plumbing.DigestSize*2 {
		id, err := plumbing.ParseId(expr)
		if err != nil {
			return plumbing.ZeroId, &InvalidIdPrefix{Expr: expr}
		}
		if _, err := store.ReadOperation(id); err != nil {
			return plumbing.ZeroId, &NoSuchOperation{Expr: expr}
		}
		return id, nil
	}

	all, err := store.ListOperationIds()
	if err != nil {
		return plumbing.ZeroId, err
	}
	var matches []plumbing.OpId
	for _, id := range all {
		if strings.HasPrefix(id.String(), expr) {
			matches = append(matches, id)
		}
	}
	switch len(matches) {
	case 0:
		return plumbing.ZeroId, &NoSuchOperation{Expr: expr}
	case 1:
		return matches[0], nil
	default:
		return plumbing.ZeroId, &AmbiguousIdPrefix{Prefix: expr, Candidates: matches}
	}
}

func isHex(s string) bool {
	for _, r := range s {
		if !(r >= '0' && r <= '9') && !(r >= 'a' && r <= 'f') && !(r >= 'A' && r <= 'F') {
			return false
		}
	}
	return true
}

func stepParents(store *oplog.Store, id plumbing.OpId, n int, expr string) (plumbing.OpId, error) {
	cur := id
	for i := 0; i < n; i++ {
		op, err := store.ReadOperation(cur)
		if err != nil {
			return plumbing.ZeroId, &NoSuchOperation{Expr: expr}
		}
		switch len(op.Parents) {
		case 0:
			return plumbing.ZeroId, &EmptyOperations{Expr: expr}
		case 1:
			cur = op.Parents[0]
		default:
			return plumbing.ZeroId, &MultipleOperations{Expr: expr}
		}
	}
	return cur, nil
}

// stepChildren finds the operation(s) whose parent is id, restricted to
// those reachable from heads (the "current head at resolution time"
// constraint from §4.9): a child that was since GC'd or superseded by a
// reconciliation no longer resolves.
func stepChildren(store *oplog.Store, heads []plumbing.OpId, id plumbing.OpId, n int, expr string) (plumbing.OpId, error) {
	cur := id
	for i := 0; i < n; i++ {
		children := findChildren(store, heads, cur)
		switch len(children) {
		case 0:
			return plumbing.ZeroId, &EmptyOperations{Expr: expr}
		case 1:
			cur = children[0]
		default:
			return plumbing.ZeroId, &MultipleOperations{Expr: expr}
		}
	}
	return cur, nil
}

func findChildren(store *oplog.Store, heads []plumbing.OpId, parent plumbing.OpId) []plumbing.OpId {
	var children []plumbing.OpId
	for _, entry := range store.WalkReverse(heads) {
		for _, p := range entry.Op.Parents {
			if p == parent {
				children = append(children, entry.Id)
				break
			}
		}
	}
	return children
}

func resolveRoot(store *oplog.Store, heads []plumbing.OpId) (plumbing.OpId, error) {
	entries := store.WalkForward(heads)
	if len(entries) == 0 {
		return plumbing.ZeroId, &NoSuchOperation{Expr: RootAlias}
	}
	// WalkForward is parents-before-children, so the first entry with no
	// parents is the root of the walked range.
	for _, e := range entries {
		if len(e.Op.Parents) == 0 {
			return e.Id, nil
		}
	}
	return plumbing.ZeroId, &NoSuchOperation{Expr: RootAlias}
}
