package gitbackend

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sigilvc/sigil/plumbing"
	"github.com/sigilvc/sigil/store"
)

// conflictEnvelope is the JSON shape stored in the blob a ".conflict"
// tree entry points at: {"removes": [term...], "adds": [term...]} with
// each term wrapping a tagged value, matching the external interface the
// Git-compatible backend promises so that other tooling speaking that
// format can parse it without linking this package.
type conflictEnvelope struct {
	Removes []conflictTerm `json:"removes"`
	Adds    []conflictTerm `json:"adds"`
}

type conflictTerm struct {
	Value *taggedValue `json:"value"`
}

type taggedValue struct {
	File         *fileTerm      `json:"file,omitempty"`
	SymlinkId    *plumbing.Id   `json:"symlink_id,omitempty"`
	TreeId       *plumbing.Id   `json:"tree_id,omitempty"`
	SubmoduleId  *plumbing.Id   `json:"submodule_id,omitempty"`
	ConflictId   *plumbing.Id   `json:"conflict_id,omitempty"`
}

type fileTerm struct {
	Id         plumbing.Id `json:"id"`
	Executable bool        `json:"executable"`
}

func encodeTerm(v *store.TreeValue) conflictTerm {
	if v == nil {
		return conflictTerm{}
	}
	tv := &taggedValue{}
	switch v.Kind {
	case store.KindFile:
		tv.File = &fileTerm{Id: v.Id, Executable: v.Executable}
	case store.KindSymlink:
		id := v.Id
		tv.SymlinkId = &id
	case store.KindTree:
		id := v.Id
		tv.TreeId = &id
	case store.KindGitSubmodule:
		id := v.Id
		tv.SubmoduleId = &id
	}
	return conflictTerm{Value: tv}
}

func decodeTerm(t conflictTerm) (*store.TreeValue, error) {
	if t.Value == nil {
		return nil, nil
	}
	tv := t.Value
	switch {
	case tv.File != nil:
		return &store.TreeValue{Kind: store.KindFile, Id: tv.File.Id, Executable: tv.File.Executable}, nil
	case tv.SymlinkId != nil:
		return &store.TreeValue{Kind: store.KindSymlink, Id: *tv.SymlinkId}, nil
	case tv.TreeId != nil:
		return &store.TreeValue{Kind: store.KindTree, Id: *tv.TreeId}, nil
	case tv.SubmoduleId != nil:
		return &store.TreeValue{Kind: store.KindGitSubmodule, Id: *tv.SubmoduleId}, nil
	default:
		return nil, fmt.Errorf("gitbackend: conflict term has no recognized tag")
	}
}

func (b *Backend) ReadConflict(ctx context.Context, id plumbing.ConflictId) (*store.Conflict, error) {
	payload, err := b.readFramed(kindBlob, id)
	if err != nil {
		return nil, err
	}
	var env conflictEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, plumbing.Backend("decode conflict", err)
	}
	c := &store.Conflict{
		Adds:    make([]*store.TreeValue, len(env.Adds)),
		Removes: make([]*store.TreeValue, len(env.Removes)),
	}
	for i, t := range env.Adds {
		if c.Adds[i], err = decodeTerm(t); err != nil {
			return nil, err
		}
	}
	for i, t := range env.Removes {
		if c.Removes[i], err = decodeTerm(t); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (b *Backend) WriteConflict(ctx context.Context, c *store.Conflict) (plumbing.ConflictId, error) {
	env := conflictEnvelope{
		Adds:    make([]conflictTerm, len(c.Adds)),
		Removes: make([]conflictTerm, len(c.Removes)),
	}
	for i, v := range c.Adds {
		env.Adds[i] = encodeTerm(v)
	}
	for i, v := range c.Removes {
		env.Removes[i] = encodeTerm(v)
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return plumbing.ZeroId, fmt.Errorf("gitbackend: encode conflict: %w", err)
	}
	framed := frameObject(kindBlob, payload)
	id := hashObject(framed)
	if err := writeLoose(b.Root, id, defaultHashLength, framed); err != nil {
		return plumbing.ZeroId, err
	}
	return id, nil
}
