package authoritative

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/amirdaaee/dnspy/internal/filter"
	"github.com/amirdaaee/dnspy/internal/store"
	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
)

func newTestStore(t *testing.T) (store.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	st, err := store.NewRedisStore("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("NewRedisStore() error = %v", err)
	}
	return st, mr
}

func aQuestion(name string) dns.Question {
	return dns.Question{Name: dns.Fqdn(name), Qtype: dns.TypeA, Qclass: dns.ClassINET}
}

func TestLocalDBExactMatch(t *testing.T) {
	st, mr := newTestStore(t)
	mr.HSet("LocalDB", "test.com", "1.2.3.4;5.6.7.8")

	l := &LocalDB{
		Base:       filter.Base{PluginName: "Authoritative.LocalDB"},
		Authority:  Base{Store: st, Log: logrus.WithField("test", true)},
		RedisKeyA:  "LocalDB",
		DefaultTTL: 60,
	}

	query := &dns.Msg{Question: []dns.Question{aQuestion("test.com")}}
	response := &dns.Msg{}
	if err := l.BeforeResolve(context.Background(), query, response, nil); err != nil {
		t.Fatalf("BeforeResolve() error = %v", err)
	}
	if len(query.Question) != 0 {
		t.Errorf("expected question removed, got %v", query.Question)
	}
	if len(response.Answer) != 2 {
		t.Fatalf("expected 2 answers, got %d", len(response.Answer))
	}
}

func TestLocalDBMissFallsThrough(t *testing.T) {
	st, _ := newTestStore(t)
	l := &LocalDB{
		Base:      filter.Base{PluginName: "Authoritative.LocalDB"},
		Authority: Base{Store: st, Log: logrus.WithField("test", true)},
		RedisKeyA: "LocalDB",
	}
	query := &dns.Msg{Question: []dns.Question{aQuestion("test.test.com")}}
	response := &dns.Msg{}
	if err := l.BeforeResolve(context.Background(), query, response, nil); err != nil {
		t.Fatalf("BeforeResolve() error = %v", err)
	}
	if len(query.Question) != 1 {
		t.Errorf("expected question to remain for upstream forwarding, got %v", query.Question)
	}
	if len(response.Answer) != 0 {
		t.Errorf("expected no local answer, got %v", response.Answer)
	}
}

func TestLocalDBWildcardAndExactCoexist(t *testing.T) {
	st, mr := newTestStore(t)
	mr.HSet("LocalDB", "test.com", "1.2.3.4")
	mr.HSet("LocalDB", "*.test.com", "9.9.9.9")

	l := &LocalDB{
		Base:      filter.Base{PluginName: "Authoritative.LocalDB"},
		Authority: Base{Store: st, Log: logrus.WithField("test", true)},
		RedisKeyA: "LocalDB",
	}

	cases := map[string]string{
		"test.com":     "1.2.3.4",
		"a.test.com":   "9.9.9.9",
		"b.a.test.com": "9.9.9.9",
	}
	for name, want := range cases {
		query := &dns.Msg{Question: []dns.Question{aQuestion(name)}}
		response := &dns.Msg{}
		if err := l.BeforeResolve(context.Background(), query, response, nil); err != nil {
			t.Fatalf("BeforeResolve(%s) error = %v", name, err)
		}
		if len(response.Answer) != 1 {
			t.Fatalf("%s: expected 1 answer, got %d", name, len(response.Answer))
		}
		a, ok := response.Answer[0].(*dns.A)
		if !ok || a.A.String() != want {
			t.Errorf("%s: expected %s, got %v", name, want, response.Answer[0])
		}
		if a.Hdr.Name != dns.Fqdn(name) {
			t.Errorf("%s: expected answer to bear original question name, got %s", name, a.Hdr.Name)
		}
	}
}

func TestDenySetMatchAndMiss(t *testing.T) {
	st, mr := newTestStore(t)
	mr.SetAdd("BLDB", "*.test.com")

	d := &DenySet{
		Base:       filter.Base{PluginName: "Authoritative.DenySet"},
		Authority:  Base{Store: st, Log: logrus.WithField("test", true)},
		RedisKeyA:  "BLDB",
		ResponseIP: []string{"10.0.0.1"},
	}

	// x.test.com is deny-listed via the wildcard.
	query := &dns.Msg{Question: []dns.Question{aQuestion("x.test.com")}}
	response := &dns.Msg{}
	_ = d.BeforeResolve(context.Background(), query, response, nil)
	if len(query.Question) != 0 || len(response.Answer) != 1 {
		t.Fatalf("expected x.test.com to be deny-answered, query=%v answer=%v", query.Question, response.Answer)
	}
	if got := response.Answer[0].(*dns.A).A.String(); got != "10.0.0.1" {
		t.Errorf("expected 10.0.0.1, got %s", got)
	}

	// test.com itself is not matched by the wildcard.
	query = &dns.Msg{Question: []dns.Question{aQuestion("test.com")}}
	response = &dns.Msg{}
	_ = d.BeforeResolve(context.Background(), query, response, nil)
	if len(query.Question) != 1 || len(response.Answer) != 0 {
		t.Errorf("expected test.com to pass through, query=%v answer=%v", query.Question, response.Answer)
	}
}

func TestAllowSetInversion(t *testing.T) {
	st, mr := newTestStore(t)
	mr.SetAdd("WLDB", "example.com")

	w := &AllowSet{
		Base:       filter.Base{PluginName: "Authoritative.AllowSet"},
		Authority:  Base{Store: st, Log: logrus.WithField("test", true)},
		RedisKeyA:  "WLDB",
		ResponseIP: []string{"10.0.0.1"},
	}

	// example.com is allow-listed: left untouched.
	query := &dns.Msg{Question: []dns.Question{aQuestion("example.com")}}
	response := &dns.Msg{}
	_ = w.BeforeResolve(context.Background(), query, response, nil)
	if len(query.Question) != 1 || len(response.Answer) != 0 {
		t.Errorf("expected example.com untouched, query=%v answer=%v", query.Question, response.Answer)
	}

	// foo.bar is not allow-listed: answered with the fixed response_ip.
	query = &dns.Msg{Question: []dns.Question{aQuestion("foo.bar")}}
	response = &dns.Msg{}
	_ = w.BeforeResolve(context.Background(), query, response, nil)
	if len(query.Question) != 0 || len(response.Answer) != 1 {
		t.Fatalf("expected foo.bar answered, query=%v answer=%v", query.Question, response.Answer)
	}
	if got := response.Answer[0].(*dns.A).A.String(); got != "10.0.0.1" {
		t.Errorf("expected 10.0.0.1, got %s", got)
	}
}

func TestLocalDBPassesThroughNonAQuestions(t *testing.T) {
	st, _ := newTestStore(t)
	l := &LocalDB{Authority: Base{Store: st, Log: logrus.WithField("test", true)}, RedisKeyA: "LocalDB"}
	q := dns.Question{Name: dns.Fqdn("test.com"), Qtype: dns.TypeAAAA, Qclass: dns.ClassINET}
	query := &dns.Msg{Question: []dns.Question{q}}
	response := &dns.Msg{}
	_ = l.BeforeResolve(context.Background(), query, response, nil)
	if len(query.Question) != 1 || len(response.Answer) != 0 {
		t.Errorf("expected AAAA question untouched, query=%v answer=%v", query.Question, response.Answer)
	}
}
