package oplog

import (
	"context"

	"github.com/sigilvc/sigil/plumbing"
	"github.com/sigilvc/sigil/store"
)

// DivergentChanges is a SUPPLEMENTED FEATURE (see SPEC_FULL.md): a
// read-only query over a view's current heads for every commit sharing
// changeId, surfacing rewrites that have diverged into multiple
// concurrent commits rather than linearly replacing one another. It
// walks only the view's visible head set (View.RootTree), not the full
// reachable history, matching how the rest of the view-merge machinery
// treats "visible" as the unit of work.
func DivergentChanges(ctx context.Context, backend store.Backend, v *View, changeId plumbing.ChangeId) ([]plumbing.CommitId, error) {
	tree, err := backend.ReadTree(ctx, v.RootTree)
	if err != nil {
		return nil, err
	}
	var matches []plumbing.CommitId
	for _, entry := range tree.Entries {
		id, err := plumbing.ParseId(entry.Name)
		if err != nil {
			continue
		}
		commit, err := backend.ReadCommit(ctx, id)
		if err != nil {
			continue // a head entry whose commit went missing is skipped, not fatal
		}
		if commit.ChangeId == changeId {
			matches = append(matches, id)
		}
	}
	return matches, nil
}
