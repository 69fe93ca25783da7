// Package lookup implements the iterative parent-wildcard resolution
// algorithm shared by every authoritative filter (spec §4.3). It is
// grounded on original_source/DNS/Utilities.py's
// async_iterative_lookup: try an exact match on the name itself, then
// walk rootward trying the "*." wildcard of each ancestor, returning
// on the first hit.
package lookup

import (
	"context"

	"github.com/amirdaaee/dnspy/internal/namepath"
)

// Func performs a single backend lookup for a store key and reports
// whether it matched. A non-nil error short-circuits the walk and is
// propagated to the caller, which is expected to treat it as a
// StoreError and fail open.
type Func func(ctx context.Context, key string) (value string, found bool, err error)

// Resolve queries name exactly, then walks from name's parent up to
// the root querying each ancestor's "*." wildcard (ancestors are never
// queried exactly), and returns the value from the first hit. It returns found=false if the root is
// reached with no match. name must already be in canonical
// (no-trailing-dot) form.
func Resolve(ctx context.Context, name string, lookup Func) (value string, found bool, err error) {
	// Step 1: exact match at the leaf.
	value, found, err = lookup(ctx, name)
	if err != nil || found {
		return value, found, err
	}

	n := name
	for n != namepath.Root {
		// Steps 2-4: escalate one level and try the wildcard there.
		n = namepath.Parent(n)
		value, found, err = lookup(ctx, namepath.Wildcard(n))
		if err != nil || found {
			return value, found, err
		}
	}
	return "", false, nil
}
