package authoritative

import (
	"context"
	"net"

	"github.com/amirdaaee/dnspy/internal/config"
	"github.com/amirdaaee/dnspy/internal/filter"
	"github.com/amirdaaee/dnspy/internal/registry"
	"github.com/amirdaaee/dnspy/internal/rr"
	"github.com/amirdaaee/dnspy/internal/store"
	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
)

// ModuleOptions are shared by every class in the Authoritative
// module, mirroring Plugins/Authoritative.py's module-level CONFIG.
var ModuleOptions = []config.OptionSpec{
	{Name: "redis_uri", Type: config.TString, Required: true},
	{Name: "default_ttl", Type: config.TInt, Default: 0},
}

func init() {
	registry.Register(registry.Descriptor{
		PluginSchema: config.PluginSchema{
			Module:        "Authoritative",
			Class:         "LocalDB",
			ModuleOptions: ModuleOptions,
			ClassOptions: []config.OptionSpec{
				{Name: "redis_key_A", Type: config.TString, Default: "LocalDB"},
			},
		},
		New: newLocalDB,
	})
}

// LocalDB answers A-questions from a Redis hash whose fields are
// domain names (exact or "*." wildcard) and whose values are
// ";"-joined IPv4 lists (spec §4.4.1).
type LocalDB struct {
	filter.Base
	Authority  Base
	RedisKeyA  string
	DefaultTTL uint32
}

func newLocalDB(_ context.Context, _ []filter.Filter, values config.Values) (filter.Filter, error) {
	st, err := store.NewRedisStore(values.String("redis_uri"))
	if err != nil {
		return nil, err
	}
	return &LocalDB{
		Base:       filter.Base{PluginName: "Authoritative.LocalDB"},
		Authority:  Base{Store: st, Log: logrus.WithField("plugin", "Authoritative.LocalDB")},
		RedisKeyA:  values.String("redis_key_A"),
		DefaultTTL: uint32(values.Int("default_ttl")),
	}, nil
}

func (l *LocalDB) BeforeResolve(ctx context.Context, query, response *dns.Msg, _ net.Addr) error {
	for _, q := range append([]dns.Question(nil), query.Question...) {
		if q.Qtype != dns.TypeA {
			continue
		}
		name := canonicalQuestionName(q.Name)
		result, found, err := l.Authority.ResolveHash(ctx, l.RedisKeyA, name)
		if err != nil || !found {
			continue
		}
		addresses := rr.SplitAddresses(result)
		rrset := rr.NewA(q.Name, l.DefaultTTL, addresses)
		filter.Answer(query, response, q, rrset)
	}
	return nil
}
