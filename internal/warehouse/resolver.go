package warehouse

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// Resolver finds the existing material a purchase line item refers to. The
// same physical material may be referenced by id in some purchases and by a
// differently-cased name or synonym unit in others, so resolution runs in
// decreasing strictness: id, then name+unit, then name alone. Cross-unit
// name fallback can mismatch across unit families; that risk is accepted in
// exchange for resilience against legacy identifiers.
type Resolver struct {
	store   Store
	ownerID string
}

// NewResolver builds a Resolver scoped to one owner.
func NewResolver(store Store, ownerID string) *Resolver {
	return &Resolver{store: store, ownerID: ownerID}
}

// Resolve returns the best-matching material for item, or MatchNewItem with a
// nil material when the caller should create one.
func (r *Resolver) Resolve(ctx context.Context, item LineItem) (*Material, MatchConfidence, error) {
	if r.ownerID == "" {
		return nil, MatchNewItem, ErrOwnerRequired
	}

	if item.MaterialID != "" {
		m, err := r.store.GetMaterial(ctx, r.ownerID, item.MaterialID)
		if err == nil {
			return &m, MatchByID, nil
		}
		if !errors.Is(err, ErrMaterialNotFound) {
			return nil, MatchNewItem, fmt.Errorf("resolve by id %s: %w", item.MaterialID, err)
		}
		// Stale identifier, fall through to name matching.
	}

	if item.Name == "" {
		return nil, MatchNewItem, nil
	}

	candidates, err := r.store.FindMaterialsByName(ctx, r.ownerID, item.Name)
	if err != nil {
		return nil, MatchNewItem, fmt.Errorf("resolve by name %q: %w", item.Name, err)
	}
	if len(candidates) == 0 {
		return nil, MatchNewItem, nil
	}

	if m := r.rank(candidates, item); m != nil {
		return m, MatchByName, nil
	}
	return nil, MatchNewItem, nil
}

// rank orders name candidates: unit match beats unit mismatch, and within
// each group an exact case-insensitive name beats a partial one.
func (r *Resolver) rank(candidates []Material, item LineItem) *Material {
	wantName := foldCase(item.Name)
	wantUnit := NormalizeUnit(item.Unit)

	var unitExact, unitPartial, anyExact, anyPartial *Material
	for i := range candidates {
		c := &candidates[i]
		name := foldCase(c.Name)
		exact := name == wantName
		partial := exact || strings.Contains(name, wantName) || strings.Contains(wantName, name)
		if !partial {
			continue
		}
		unitOK := wantUnit != "" && NormalizeUnit(c.Unit) == wantUnit

		switch {
		case unitOK && exact && unitExact == nil:
			unitExact = c
		case unitOK && !exact && unitPartial == nil:
			unitPartial = c
		case !unitOK && exact && anyExact == nil:
			anyExact = c
		case !unitOK && !exact && anyPartial == nil:
			anyPartial = c
		}
	}

	for _, m := range []*Material{unitExact, unitPartial, anyExact, anyPartial} {
		if m != nil {
			return m
		}
	}
	return nil
}

// foldCase produces a case-insensitive comparison key. A fresh Caser per
// call because cases.Caser carries state and is not safe for concurrent use.
func foldCase(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}
