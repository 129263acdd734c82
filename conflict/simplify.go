package conflict

import (
	"context"

	"github.com/sigilvc/sigil/merge"
	"github.com/sigilvc/sigil/optional"
	"github.com/sigilvc/sigil/store"
)

// termOption is the Merge type parameter for conflict objects: a
// persisted Conflict is a Merge<Option<TreeValue>>, represented here with
// optional.Option so it satisfies merge.Merge's comparable constraint.
type termOption = optional.Option[store.TreeValue]

// ToMerge converts a persisted Conflict into the generic Merge algebra.
func ToMerge(c *store.Conflict) merge.Merge[termOption] {
	adds := make([]termOption, len(c.Adds))
	for i, v := range c.Adds {
		adds[i] = toOption(v)
	}
	removes := make([]termOption, len(c.Removes))
	for i, v := range c.Removes {
		removes[i] = toOption(v)
	}
	return merge.New(adds, removes)
}

// FromMerge is ToMerge's inverse.
func FromMerge(m merge.Merge[termOption]) *store.Conflict {
	c := &store.Conflict{
		Adds:    make([]*store.TreeValue, m.NumAdds()),
		Removes: make([]*store.TreeValue, m.NumRemoves()),
	}
	for i, v := range m.Adds() {
		c.Adds[i] = fromOption(v)
	}
	for i, v := range m.Removes() {
		c.Removes[i] = fromOption(v)
	}
	return c
}

func toOption(v *store.TreeValue) termOption {
	if v == nil {
		return optional.None[store.TreeValue]()
	}
	return optional.Some(*v)
}

func fromOption(o termOption) *store.TreeValue {
	if !o.IsSome() {
		return nil
	}
	v := o.Unwrap()
	return &v
}

// Simplify implements C6: recursively expand any term that is itself a
// reference to a conflict object (reading it through backend), XOR its
// polarity with the position it was found at (handled by merge.Flatten),
// cancel matching positive/negative pairs, and return the canonical
// form. A conflict with no nested Conflict terms is simplified in a
// single pass with no backend reads beyond the root.
func Simplify(ctx context.Context, backend store.Backend, c *store.Conflict) (*store.Conflict, error) {
	expanded, err := expandMerge(ctx, backend, ToMerge(c))
	if err != nil {
		return nil, err
	}
	return FromMerge(expanded), nil
}

func expandMerge(ctx context.Context, backend store.Backend, m merge.Merge[termOption]) (merge.Merge[termOption], error) {
	addTerms := make([]merge.Merge[termOption], len(m.Adds()))
	for i, a := range m.Adds() {
		sub, err := expandTerm(ctx, backend, a)
		if err != nil {
			return merge.Merge[termOption]{}, err
		}
		addTerms[i] = sub
	}
	removeTerms := make([]merge.Merge[termOption], len(m.Removes()))
	for i, r := range m.Removes() {
		sub, err := expandTerm(ctx, backend, r)
		if err != nil {
			return merge.Merge[termOption]{}, err
		}
		removeTerms[i] = sub
	}
	return merge.Flatten(merge.New(addTerms, removeTerms)), nil
}

func expandTerm(ctx context.Context, backend store.Backend, term termOption) (merge.Merge[termOption], error) {
	if !term.IsSome() || term.Unwrap().Kind != store.KindConflict {
		return merge.Resolved(term), nil
	}
	nested, err := backend.ReadConflict(ctx, term.Unwrap().Id)
	if err != nil {
		return merge.Merge[termOption]{}, err
	}
	return expandMerge(ctx, backend, ToMerge(nested))
}
