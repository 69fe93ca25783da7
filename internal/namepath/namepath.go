// Package namepath implements domain-name parent navigation used by
// the wildcard resolver. It is grounded on the parent-walking done by
// original_source/DNS/Utilities.py's async_iterative_lookup, which
// leans on dnspython's dns.name.Name.parent(); here the equivalent is
// expressed directly over the dotted text form miekg/dns already
// normalizes query names to.
package namepath

import "strings"

// Root is the canonical text form of the DNS root name.
const Root = ""

// Canonical strips a single trailing dot from a fully-qualified DNS
// name, yielding the dotted text form without a trailing dot used as
// store keys throughout dnspy. The root name "." becomes "".
func Canonical(name string) string {
	if name == "." {
		return Root
	}
	return strings.TrimSuffix(name, ".")
}

// Parent returns the immediate parent of name, where name is in
// canonical (no trailing dot) form. The root is its own parent.
func Parent(name string) string {
	if name == Root {
		return Root
	}
	idx := strings.IndexByte(name, '.')
	if idx == -1 {
		return Root
	}
	return name[idx+1:]
}

// Wildcard returns the "*.<name>" wildcard form of a canonical name.
func Wildcard(name string) string {
	return "*." + name
}
