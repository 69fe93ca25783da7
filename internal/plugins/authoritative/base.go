// Package authoritative implements the three KV-backed filters that
// can answer a question locally: LocalDB, DenySet, and AllowSet (spec
// §4.4.1-4.4.3). All three are grounded on
// original_source/Plugins/Authoritative.py, whose _Authoritative base
// class holds the Redis handle and drives the iterative wildcard
// lookup; here that becomes the embeddable authoritative.Base.
package authoritative

import (
	"context"

	"github.com/amirdaaee/dnspy/internal/dnspyerr"
	"github.com/amirdaaee/dnspy/internal/lookup"
	"github.com/amirdaaee/dnspy/internal/namepath"
	"github.com/amirdaaee/dnspy/internal/store"
	"github.com/sirupsen/logrus"
)

// canonicalQuestionName strips the trailing dot miekg/dns keeps on a
// fully-qualified question name, yielding the store-key form spec §3
// requires ("domains should be stored in db without trailing dot").
func canonicalQuestionName(name string) string {
	return namepath.Canonical(name)
}

// Base embeds the store handle and resolver used by every
// authoritative filter. Each resolver method records its own op name
// ("hget"/"sismember") so StoreError can report which operation failed.
type Base struct {
	Store store.Store
	Log   *logrus.Entry
}

// ResolveHash runs the wildcard resolver with L(s) = HGET(key, s),
// used by LocalDB.
func (b Base) ResolveHash(ctx context.Context, key, name string) (string, bool, error) {
	value, found, err := lookup.Resolve(ctx, name, func(ctx context.Context, s string) (string, bool, error) {
		return b.Store.HGet(ctx, key, s)
	})
	if err != nil {
		b.Log.WithError(err).Warn("store error during hget lookup, failing open")
		return "", false, &dnspyerr.StoreError{Op: "hget", Cause: err}
	}
	return value, found, nil
}

// ResolveSet runs the wildcard resolver with L(s) = SISMEMBER(key, s),
// used by DenySet and AllowSet. The returned "value" is the name that
// matched (exact or wildcard key), since set membership alone carries
// no payload.
func (b Base) ResolveSet(ctx context.Context, key, name string) (matched string, found bool, err error) {
	value, hit, resolveErr := lookup.Resolve(ctx, name, func(ctx context.Context, s string) (string, bool, error) {
		ok, e := b.Store.SIsMember(ctx, key, s)
		if e != nil {
			return "", false, e
		}
		return s, ok, nil
	})
	if resolveErr != nil {
		b.Log.WithError(resolveErr).Warn("store error during sismember lookup, failing open")
		return "", false, &dnspyerr.StoreError{Op: "sismember", Cause: resolveErr}
	}
	return value, hit, nil
}
