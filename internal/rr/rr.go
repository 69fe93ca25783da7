// Package rr builds the A-type RRSets the authoritative filters
// synthesize. Grounded on original_source/DNS/Utilities.py's
// create_rrset/create_rdata, which only ever implement the A
// rdatatype and raise NotImplementedError for everything else — the
// spec's Non-goals section makes that restriction explicit, so this
// package only exposes an A constructor.
package rr

import (
	"net"
	"strings"

	"github.com/miekg/dns"
)

// NewA builds an A-type RRSet bearing name (fully-qualified, i.e.
// ending in a dot) with the given TTL and addresses. Addresses that
// fail to parse as IPv4 are skipped rather than producing a malformed
// record.
func NewA(name string, ttl uint32, addresses []string) []dns.RR {
	out := make([]dns.RR, 0, len(addresses))
	for _, a := range addresses {
		ip := net.ParseIP(strings.TrimSpace(a)).To4()
		if ip == nil {
			continue
		}
		out = append(out, &dns.A{
			Hdr: dns.RR_Header{
				Name:   name,
				Rrtype: dns.TypeA,
				Class:  dns.ClassINET,
				Ttl:    ttl,
			},
			A: ip,
		})
	}
	return out
}

// SplitAddresses parses the ";"-delimited IPv4 list stored as a
// LocalDB hash field value (spec §3 AuthoritativeRecord "Hash shape").
func SplitAddresses(field string) []string {
	parts := strings.Split(field, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// JoinAddresses is the inverse of SplitAddresses: it builds the
// ";"-delimited form of a LocalDB hash field value.
func JoinAddresses(addresses []string) string {
	return strings.Join(addresses, ";")
}
