package oplog

import (
	"os"
	"path/filepath"
	"time"

	"github.com/sigilvc/sigil/dag"
	"github.com/sigilvc/sigil/plumbing"
)

// GcResult reports what Gc actually removed, so callers can log it
// instead of Gc silently reclaiming more (or less) than expected.
type GcResult struct {
	DeletedOperations int
	DeletedViews      int
}

// Gc deletes operation and view files that are unreachable from every
// current head AND older than maxAge, per §4.8. Reachability is the
// transitive closure of Parents plus each reached operation's ViewId —
// an operation's view is only safe to delete once the operation itself
// is unreachable, since a view file has no parent pointer of its own.
func (s *Store) Gc(heads []plumbing.OpId, maxAge time.Duration, now time.Time) (*GcResult, error) {
	reachable := map[plumbing.OpId]bool{}
	reachableViews := map[plumbing.ViewId]bool{}
	for _, n := range dag.TopoOrderForward(heads, s.lookup) {
		reachable[n.ID()] = true
		reachableViews[n.op.ViewId] = true
	}

	cutoff := now.Add(-maxAge)
	result := &GcResult{}

	opEntries, err := os.ReadDir(filepath.Join(s.dir, "operations"))
	if err != nil {
		return nil, err
	}
	for _, e := range opEntries {
		id, err := plumbing.ParseId(e.Name())
		if err != nil {
			continue
		}
		if reachable[id] {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, "operations", e.Name())); err == nil {
			result.DeletedOperations++
		}
	}

	viewEntries, err := os.ReadDir(filepath.Join(s.dir, "views"))
	if err != nil {
		return nil, err
	}
	for _, e := range viewEntries {
		id, err := plumbing.ParseId(e.Name())
		if err != nil {
			continue
		}
		if reachableViews[id] {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, "views", e.Name())); err == nil {
			result.DeletedViews++
		}
	}

	return result, nil
}
