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
			Class:         "DenySet",
			ModuleOptions: ModuleOptions,
			ClassOptions: []config.OptionSpec{
				{Name: "redis_key_A", Type: config.TString, Default: "BLDB"},
				{Name: "response_ip", Type: config.TIPv4List, Required: true},
				{Name: "ttl", Type: config.TInt, Default: 0},
			},
		},
		New: newDenySet,
	})
}

// DenySet synthesizes a fixed response_ip answer for any A-question
// whose name matches a set of deny-listed domains (spec §4.4.2). The
// original calls this class BlackList.
type DenySet struct {
	filter.Base
	Authority  Base
	RedisKeyA  string
	ResponseIP []string
	TTL        uint32
}

func newDenySet(_ context.Context, _ []filter.Filter, values config.Values) (filter.Filter, error) {
	st, err := store.NewRedisStore(values.String("redis_uri"))
	if err != nil {
		return nil, err
	}
	ttl := values.Int("ttl")
	if ttl == 0 {
		ttl = values.Int("default_ttl")
	}
	return &DenySet{
		Base:       filter.Base{PluginName: "Authoritative.DenySet"},
		Authority:  Base{Store: st, Log: logrus.WithField("plugin", "Authoritative.DenySet")},
		RedisKeyA:  values.String("redis_key_A"),
		ResponseIP: values.IPv4List("response_ip"),
		TTL:        uint32(ttl),
	}, nil
}

func (d *DenySet) BeforeResolve(ctx context.Context, query, response *dns.Msg, _ net.Addr) error {
	for _, q := range append([]dns.Question(nil), query.Question...) {
		if q.Qtype != dns.TypeA {
			continue
		}
		name := namepath.Canonical(q.Name)
		_, found, err := d.Authority.ResolveSet(ctx, d.RedisKeyA, name)
		if err != nil || !found {
			continue
		}
		rrset := rr.NewA(q.Name, d.TTL, d.ResponseIP)
		filter.Answer(query, response, q, rrset)
	}
	return nil
}
