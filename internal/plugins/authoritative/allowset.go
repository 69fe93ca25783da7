package authoritative

import (
	"context"
	"net"

	"github.com/amirdaaee/dnspy/internal/config"
	"github.com/amirdaaee/dnspy/internal/filter"
	"github.com/amirdaaee/dnspy/internal/namepath"
	"github.com/amirdaaee/dnspy/internal/registry"
	"github.com/amirdaaee/dnspy/internal/rr"
	"github.com/amirdaaee/dnspy/internal/store"
	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
)

func init() {
	registry.Register(registry.Descriptor{
		PluginSchema: config.PluginSchema{
			Module:        "Authoritative",
			Class:         "AllowSet",
			ModuleOptions: ModuleOptions,
			ClassOptions: []config.OptionSpec{
				{Name: "redis_key_A", Type: config.TString, Default: "WLDB"},
				{Name: "response_ip", Type: config.TIPv4List, Required: true},
				{Name: "ttl", Type: config.TInt, Default: 0},
			},
		},
		New: newAllowSet,
	})
}

// AllowSet answers every A-question with a fixed response_ip except
// names present in an allow-listed set, which are forwarded untouched
// (spec §4.4.3). The original calls this class WhiteList.
type AllowSet struct {
	filter.Base
	Authority  Base
	RedisKeyA  string
	ResponseIP []string
	TTL        uint32
}

func newAllowSet(_ context.Context, _ []filter.Filter, values config.Values) (filter.Filter, error) {
	st, err := store.NewRedisStore(values.String("redis_uri"))
	if err != nil {
		return nil, err
	}
	ttl := values.Int("ttl")
	if ttl == 0 {
		ttl = values.Int("default_ttl")
	}
	return &AllowSet{
		Base:       filter.Base{PluginName: "Authoritative.AllowSet"},
		Authority:  Base{Store: st, Log: logrus.WithField("plugin", "Authoritative.AllowSet")},
		RedisKeyA:  values.String("redis_key_A"),
		ResponseIP: values.IPv4List("response_ip"),
		TTL:        uint32(ttl),
	}, nil
}

func (w *AllowSet) BeforeResolve(ctx context.Context, query, response *dns.Msg, _ net.Addr) error {
	for _, q := range append([]dns.Question(nil), query.Question...) {
		if q.Qtype != dns.TypeA {
			continue
		}
		name := namepath.Canonical(q.Name)
		_, found, err := w.Authority.ResolveSet(ctx, w.RedisKeyA, name)
		if err != nil {
			continue
		}
		if found {
			// Allow-listed: leave the question untouched for upstream.
			continue
		}
		rrset := rr.NewA(q.Name, w.TTL, w.ResponseIP)
		filter.Answer(query, response, q, rrset)
	}
	return nil
}
