// Package filter defines the pluggable pre/post-resolve hook every
// dnspy plugin implements. Grounded on original_source/Plugins/Base.py's
// BasePlugin: a single flat contract (spec §9 "Filter polymorphism"
// says not to port inheritance depth), with dns.Msg pointers taking
// the place of the Python implementation's returned (query, response)
// tuple — mutating in place already gives every later filter the full
// effect of its predecessors.
package filter

import (
	"context"
	"net"

	"github.com/miekg/dns"
)

// Filter is a pluggable pipeline stage. BeforeResolve runs once per
// datagram before upstream forwarding; AfterResolve runs once after.
// Implementations that only need one hook embed Base and override the
// other.
type Filter interface {
	// Name reports the plugin's "<module>.<class>" identifier, as it
	// would appear in Settings.Plugins.
	Name() string
	BeforeResolve(ctx context.Context, query, response *dns.Msg, client net.Addr) error
	AfterResolve(ctx context.Context, query, response *dns.Msg, client net.Addr) error
}

// Base is embedded by filters that only need one of the two hooks; the
// other becomes a no-op, mirroring BasePlugin's default pass-through
// implementations.
type Base struct {
	PluginName string
}

func (b Base) Name() string { return b.PluginName }

func (Base) BeforeResolve(context.Context, *dns.Msg, *dns.Msg, net.Addr) error { return nil }

func (Base) AfterResolve(context.Context, *dns.Msg, *dns.Msg, net.Addr) error { return nil }

// RemoveQuestion deletes q from query.Question's slice by value
// equality (name, qtype, qclass) and returns whether it was found.
// This is the Go equivalent of Plugins/Authoritative.py's
// _manual_answer, which removes the matched question and appends the
// synthesized RRSet to the response in one step (spec §4.4, invariant
// P1).
func RemoveQuestion(query *dns.Msg, q dns.Question) bool {
	for i, cand := range query.Question {
		if cand == q {
			query.Question = append(query.Question[:i], query.Question[i+1:]...)
			return true
		}
	}
	return false
}

// Answer performs the answered-question move: removes q from
// query.Question and appends rrset to response.Answer.
func Answer(query, response *dns.Msg, q dns.Question, rrset []dns.RR) {
	RemoveQuestion(query, q)
	response.Answer = append(response.Answer, rrset...)
}
