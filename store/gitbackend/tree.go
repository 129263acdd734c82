package gitbackend

import (
	"context"
	"fmt"
	"strings"

	"github.com/sigilvc/sigil/plumbing"
	"github.com/sigilvc/sigil/plumbing/filemode"
	"github.com/sigilvc/sigil/store"
)

// conflictSuffix marks a tree entry whose blob is a JSON conflict
// envelope rather than ordinary file content. The suffix is stripped on
// read and appended on write, so a plain Git client sees an otherwise
// normal tree with one oddly-named blob per unresolved conflict.
const conflictSuffix = ".conflict"

func (b *Backend) ReadTree(ctx context.Context, id plumbing.TreeId) (*store.Tree, error) {
	if v, ok := b.cacheGet("tree:" + id.String()); ok {
		return v.(*store.Tree), nil
	}
	payload, err := b.readFramed(kindTree, id)
	if err != nil {
		return nil, err
	}
	rows, err := decodeTree(payload)
	if err != nil {
		return nil, plumbing.Backend("decode tree", err)
	}
	t := &store.Tree{Entries: make([]store.TreeEntry, 0, len(rows))}
	for _, r := range rows {
		name := r.name
		value := store.TreeValue{Id: r.id}
		switch {
		case strings.HasSuffix(name, conflictSuffix):
			name = strings.TrimSuffix(name, conflictSuffix)
			value.Kind = store.KindConflict
		case r.mode.IsDir():
			value.Kind = store.KindTree
		case r.mode.IsSymlink():
			value.Kind = store.KindSymlink
		case r.mode.IsSubmodule():
			value.Kind = store.KindGitSubmodule
		default:
			value.Kind = store.KindFile
			value.Executable = r.mode.IsExecutable()
		}
		t.Entries = append(t.Entries, store.TreeEntry{Name: name, Value: value})
	}
	b.cacheSet("tree:"+id.String(), t, int64(len(payload)))
	return t, nil
}

func (b *Backend) WriteTree(ctx context.Context, t *store.Tree) (plumbing.TreeId, error) {
	rows := make([]treeRow, 0, len(t.Entries))
	for _, e := range t.Entries {
		row, err := treeRowFor(e)
		if err != nil {
			return plumbing.ZeroId, err
		}
		rows = append(rows, row)
	}
	payload := encodeTree(rows)
	framed := frameObject(kindTree, payload)
	id := hashObject(framed)
	if err := writeLoose(b.Root, id, defaultHashLength, framed); err != nil {
		return plumbing.ZeroId, err
	}
	return id, nil
}

func treeRowFor(e store.TreeEntry) (treeRow, error) {
	name := e.Name
	var mode filemode.FileMode
	switch e.Value.Kind {
	case store.KindFile:
		if e.Value.Executable {
			mode = filemode.Executable
		} else {
			mode = filemode.Regular
		}
	case store.KindSymlink:
		mode = filemode.Symlink
	case store.KindTree:
		mode = filemode.Dir
	case store.KindGitSubmodule:
		mode = filemode.Submodule
	case store.KindConflict:
		mode = filemode.Regular
		name += conflictSuffix
	default:
		return treeRow{}, fmt.Errorf("gitbackend: tree entry %q has invalid kind %d", e.Name, e.Value.Kind)
	}
	return treeRow{mode: mode, name: name, id: e.Value.Id, sortKey: gitSortKey(name, mode)}, nil
}
