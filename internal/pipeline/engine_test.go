package pipeline

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/amirdaaee/dnspy/internal/filter"
	"github.com/amirdaaee/dnspy/internal/plugins/authoritative"
	"github.com/amirdaaee/dnspy/internal/store"
	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
)

// fakeUpstream runs a minimal in-process DNS-over-UDP server that
// answers A queries from a fixed map, or never responds at all
// (emulating scenario 6's timeout).
type fakeUpstream struct {
	conn    *net.UDPConn
	answers map[string]string
	silent  bool
}

func startFakeUpstream(t *testing.T, answers map[string]string, silent bool) *fakeUpstream {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		t.Fatalf("ListenUDP() error = %v", err)
	}
	u := &fakeUpstream{conn: conn, answers: answers, silent: silent}
	t.Cleanup(func() { conn.Close() })
	go u.serve()
	return u
}

func (u *fakeUpstream) serve() {
	buf := make([]byte, 512)
	for {
		n, addr, err := u.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		if u.silent {
			continue
		}
		req := new(dns.Msg)
		if err := req.Unpack(buf[:n]); err != nil {
			continue
		}
		resp := new(dns.Msg)
		resp.SetReply(req)
		for _, q := range req.Question {
			if q.Qtype != dns.TypeA {
				continue
			}
			name := q.Name
			key := name[:len(name)-1]
			if ip, ok := u.answers[key]; ok {
				rr, _ := dns.NewRR(name + " 60 IN A " + ip)
				resp.Answer = append(resp.Answer, rr)
			}
		}
		out, err := resp.Pack()
		if err != nil {
			continue
		}
		u.conn.WriteToUDP(out, addr)
	}
}

func (u *fakeUpstream) addr() string {
	return u.conn.LocalAddr().String()
}

func queryFor(name string) []byte {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), dns.TypeA)
	raw, _ := msg.Pack()
	return raw
}

func mustUnpack(t *testing.T, raw []byte) *dns.Msg {
	t.Helper()
	if raw == nil {
		t.Fatal("expected a response, got nil")
	}
	msg := new(dns.Msg)
	if err := msg.Unpack(raw); err != nil {
		t.Fatalf("Unpack() error = %v", err)
	}
	return msg
}

// Scenario 1: transparent proxy with no filters.
func TestEngineTransparentScenario(t *testing.T) {
	up := startFakeUpstream(t, map[string]string{"example.com": "93.184.216.34"}, false)
	e := New(nil, up.addr())

	raw := e.Handle(context.Background(), queryFor("example.com"), &net.UDPAddr{})
	resp := mustUnpack(t, raw)

	if len(resp.Answer) != 1 {
		t.Fatalf("expected 1 answer, got %d", len(resp.Answer))
	}
	a, ok := resp.Answer[0].(*dns.A)
	if !ok || a.A.String() != "93.184.216.34" {
		t.Errorf("expected 93.184.216.34, got %v", resp.Answer[0])
	}
	if len(resp.Question) != 1 || resp.Question[0].Name != dns.Fqdn("example.com") {
		t.Errorf("expected response question to mirror the original query, got %v", resp.Question)
	}
}

// Scenario 2: LocalDB exact match short-circuits upstream; a miss
// falls through to it.
func TestEngineLocalDBExactScenario(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.HSet("LocalDB", "test.com", "1.2.3.4;5.6.7.8")
	st, err := store.NewRedisStore("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("NewRedisStore() error = %v", err)
	}

	up := startFakeUpstream(t, map[string]string{"test.test.com": "1.1.1.1"}, false)
	localDB := &authoritative.LocalDB{
		Base:      filter.Base{PluginName: "Authoritative.LocalDB"},
		Authority: authoritative.Base{Store: st, Log: testLogger()},
		RedisKeyA: "LocalDB",
	}
	e := New([]filter.Filter{localDB}, up.addr())

	resp := mustUnpack(t, e.Handle(context.Background(), queryFor("test.com"), &net.UDPAddr{}))
	if len(resp.Answer) != 2 {
		t.Fatalf("expected 2 local answers, got %d", len(resp.Answer))
	}

	resp = mustUnpack(t, e.Handle(context.Background(), queryFor("test.test.com"), &net.UDPAddr{}))
	if len(resp.Answer) != 1 {
		t.Fatalf("expected upstream fallback answer, got %d", len(resp.Answer))
	}
	if got := resp.Answer[0].(*dns.A).A.String(); got != "1.1.1.1" {
		t.Errorf("expected 1.1.1.1 from upstream, got %s", got)
	}
}

// Scenario 6: upstream never responds; client still gets a
// well-formed, empty-answer response within the configured timeout.
func TestEngineUpstreamTimeoutScenario(t *testing.T) {
	up := startFakeUpstream(t, nil, true)
	e := New(nil, up.addr())
	e.UpstreamClient.Timeout = 200 * time.Millisecond

	start := time.Now()
	raw := e.Handle(context.Background(), queryFor("example.com"), &net.UDPAddr{})
	elapsed := time.Since(start)

	resp := mustUnpack(t, raw)
	if len(resp.Answer) != 0 {
		t.Errorf("expected empty answer section, got %v", resp.Answer)
	}
	if elapsed > 2*time.Second {
		t.Errorf("expected response within configured timeout + slack, took %s", elapsed)
	}
}

// P1: an answered A-question never simultaneously leaves the question
// in place while also depositing a synthetic RRSet for it.
func TestEngineP1AnsweredQuestionMove(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.HSet("LocalDB", "test.com", "1.2.3.4")
	st, _ := store.NewRedisStore("redis://" + mr.Addr())

	up := startFakeUpstream(t, nil, false)
	localDB := &authoritative.LocalDB{
		Authority: authoritative.Base{Store: st, Log: testLogger()},
		RedisKeyA: "LocalDB",
	}
	e := New([]filter.Filter{localDB}, up.addr())

	query := new(dns.Msg)
	query.SetQuestion(dns.Fqdn("test.com"), dns.TypeA)
	response := new(dns.Msg)
	response.SetReply(query)

	e.runHooks(context.Background(), query, response, &net.UDPAddr{}, filter.Filter.BeforeResolve)

	if len(query.Question) != 0 {
		t.Errorf("expected question removed once answered, got %v", query.Question)
	}
	if len(response.Answer) != 1 {
		t.Errorf("expected exactly one synthesized RRSet, got %d", len(response.Answer))
	}
}

func testLogger() *logrus.Entry { return logrus.WithField("test", true) }
