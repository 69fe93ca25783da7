// Package probe implements the active-probe filter, which HTTP-probes
// domains it has never seen to find out whether an upstream blocks
// them, and feeds the ones it finds blocked into a bound DenySet. It
// is grounded on original_source/Plugins/Google403.py's Inquirer,
// which this binds to Authoritative.DenySet the same way the original
// binds to Authoritative.BlackList: by scanning the already-built
// filter chain for an instance of it.
package probe

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/amirdaaee/dnspy/internal/config"
	"github.com/amirdaaee/dnspy/internal/dnspyerr"
	"github.com/amirdaaee/dnspy/internal/filter"
	"github.com/amirdaaee/dnspy/internal/namepath"
	"github.com/amirdaaee/dnspy/internal/plugins/authoritative"
	"github.com/amirdaaee/dnspy/internal/registry"
	"github.com/amirdaaee/dnspy/internal/store"
	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// blockedMarker is the substring the probed origin's 403 body carries
// when it is the upstream's own block page rather than a generic 403.
const blockedMarker = "Your client does not have permission to get URL"

func init() {
	registry.Register(registry.Descriptor{
		PluginSchema: config.PluginSchema{
			Module: "Probe",
			Class:  "Inquirer",
			ModuleOptions: []config.OptionSpec{
				{Name: "redis_uri", Type: config.TString, Default: ""},
			},
			ClassOptions: []config.OptionSpec{
				{Name: "redis_key_queue", Type: config.TString, Default: "G403_que"},
				{Name: "redis_key_open", Type: config.TString, Default: "G403_open"},
				{Name: "redis_key_block", Type: config.TString, Default: "G403_block"},
				{Name: "redis_key_unknown", Type: config.TString, Default: "G403_unknown"},
				{Name: "concurrency", Type: config.TInt, Default: 8},
			},
		},
		New: newInquirer,
	})
}

// Inquirer queues every A-question it has no classification for yet,
// and resolves the queue in the background: it HTTP-probes each host
// and files the result under redis_key_{open,block,unknown}. Hosts
// found blocked are added to the bound DenySet's backing set, so
// subsequent queries for them are answered locally (spec §4.4.4).
type Inquirer struct {
	filter.Base

	Store    store.Store
	Resolver *authoritative.DenySet

	QueueKey   string
	OpenKey    string
	BlockKey   string
	UnknownKey string

	Concurrency int
	HTTPClient  *http.Client

	Log *logrus.Entry
}

func newInquirer(ctx context.Context, built []filter.Filter, values config.Values) (filter.Filter, error) {
	resolver, ok := registry.FindByType[*authoritative.DenySet](built)
	if !ok {
		return nil, &dnspyerr.PluginInitError{
			Plugin: "Probe.Inquirer",
			Cause:  errors.New("Probe.Inquirer must be used in conjunction with Authoritative.DenySet, declared earlier in PLUGINS"),
		}
	}

	var st store.Store
	if uri := values.String("redis_uri"); uri != "" {
		redisStore, err := store.NewRedisStore(uri)
		if err != nil {
			return nil, err
		}
		st = redisStore
	} else {
		// No dedicated redis_uri: share the resolver's connection,
		// the Go analogue of the original falling back to
		// resolver.config.redis_uri.
		st = resolver.Authority.Store
	}

	concurrency := values.Int("concurrency")
	if concurrency <= 0 {
		concurrency = 8
	}

	inq := &Inquirer{
		Base:        filter.Base{PluginName: "Probe.Inquirer"},
		Store:       st,
		Resolver:    resolver,
		QueueKey:    values.String("redis_key_queue"),
		OpenKey:     values.String("redis_key_open"),
		BlockKey:    values.String("redis_key_block"),
		UnknownKey:  values.String("redis_key_unknown"),
		Concurrency: concurrency,
		HTTPClient:  &http.Client{Timeout: 60 * time.Second},
		Log:         logrus.WithField("plugin", "Probe.Inquirer"),
	}

	if err := inq.seedResolverFromBlockSet(ctx); err != nil {
		inq.Log.WithError(err).Warn("failed to seed resolver from existing block set")
	}
	go inq.run(ctx)

	return inq, nil
}

// seedResolverFromBlockSet mirrors the original's _init_db: domains
// already known blocked from a previous run are re-added to the
// resolver immediately, since the resolver's own set may have been
// cleared independently of the probe's bookkeeping sets.
func (inq *Inquirer) seedResolverFromBlockSet(ctx context.Context) error {
	members, err := inq.Store.SMembers(ctx, inq.BlockKey)
	if err != nil {
		return err
	}
	if len(members) == 0 {
		return nil
	}
	if err := inq.addToResolver(ctx, members...); err != nil {
		return err
	}
	inq.Log.Infof("seeded %d domain(s) into %s from %s", len(members), inq.Resolver.RedisKeyA, inq.BlockKey)
	return nil
}

// addToResolver adds each domain, with a leading "www." removed, and
// its wildcard form to the bound DenySet's backing set.
func (inq *Inquirer) addToResolver(ctx context.Context, domains ...string) error {
	members := make([]string, 0, len(domains)*2)
	for _, d := range domains {
		d = strings.TrimPrefix(d, "www.")
		members = append(members, d, namepath.Wildcard(d))
	}
	return inq.Resolver.Authority.Store.SAdd(ctx, inq.Resolver.RedisKeyA, members...)
}

// run drains the inquiry queue until ctx is canceled, dispatching each
// host to an HTTP probe bounded to Concurrency concurrent requests.
func (inq *Inquirer) run(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(inq.Concurrency)

	for {
		if ctx.Err() != nil {
			_ = g.Wait()
			return
		}

		host, found, err := inq.Store.SPop(ctx, inq.QueueKey)
		if err != nil {
			inq.Log.WithError(err).Warn("probe queue pop failed")
			sleepOrDone(ctx, time.Second)
			continue
		}
		if !found {
			sleepOrDone(ctx, time.Second)
			continue
		}

		h := host
		inq.Log.Infof("got %s to inquire", h)
		g.Go(func() error {
			inq.inquire(gctx, h)
			return nil
		})
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// inquire classifies host and files it under the matching bookkeeping
// set, adding it to the resolver when blocked.
func (inq *Inquirer) inquire(ctx context.Context, host string) {
	mode := inq.classify(ctx, host)

	var key string
	addToResolver := false
	switch mode {
	case "o":
		key = inq.OpenKey
	case "b":
		key = inq.BlockKey
		addToResolver = true
	default:
		key = inq.UnknownKey
	}

	if err := inq.Store.SAdd(ctx, key, host); err != nil {
		inq.Log.WithError(err).Warnf("failed to record %s under %s", host, key)
		return
	}
	if addToResolver {
		if err := inq.addToResolver(ctx, host); err != nil {
			inq.Log.WithError(err).Warnf("failed to add %s to resolver", host)
			return
		}
		inq.Log.Infof("added %s to %s", host, inq.Resolver.RedisKeyA)
	}
}

// classify probes host over https then http and returns "b" (blocked,
// the upstream's own 403 page), "o" (open), or "u" (unknown, neither
// scheme answered conclusively).
func (inq *Inquirer) classify(ctx context.Context, host string) string {
	for _, scheme := range []string{"https://", "http://"} {
		url := scheme + host
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			continue
		}
		resp, err := inq.HTTPClient.Do(req)
		if err != nil {
			inq.Log.WithError(err).Warnf("error getting %s", url)
			continue
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode == http.StatusForbidden && strings.Contains(string(body), blockedMarker) {
			inq.Log.Infof("%s is blocked", url)
			return "b"
		}
		inq.Log.Infof("%s is open", url)
		return "o"
	}
	return "u"
}

// BeforeResolve queues every A-question name this filter has no
// classification for yet. It never answers directly; classification
// happens asynchronously in run/inquire.
func (inq *Inquirer) BeforeResolve(ctx context.Context, query, _ *dns.Msg, _ net.Addr) error {
	for _, q := range append([]dns.Question(nil), query.Question...) {
		if q.Qtype != dns.TypeA {
			continue
		}
		name := namepath.Canonical(q.Name)

		known := false
		for _, key := range []string{inq.OpenKey, inq.BlockKey, inq.UnknownKey} {
			found, err := inq.Store.SIsMember(ctx, key, name)
			if err != nil {
				inq.Log.WithError(err).Warn("store error checking classification, skipping")
				known = true
				break
			}
			if found {
				known = true
				break
			}
		}
		if known {
			continue
		}

		inq.Log.Infof("no record for %s, adding to %s", name, inq.QueueKey)
		if err := inq.Store.SAdd(ctx, inq.QueueKey, name); err != nil {
			inq.Log.WithError(err).Warn("failed to enqueue host for probing")
		}
	}
	return nil
}
