// Copyright © by Jeff Foley 2017-2025. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.
// SPDX-License-Identifier: Apache-2.0

package dnscore

import (
	"net/netip"
	"strings"
	"sync"

	"github.com/caffix/stringset"
	"github.com/miekg/dns"
)

// Hosts stands in for a parsed /etc/hosts database: the narrow collaborator
// RemoteLookup consults to rewrite NXDOMAIN responses, and that LocalLookup
// consults to resolve a name entirely locally.
type Hosts interface {
	// Exists reports whether name has a local entry.
	Exists(name string) bool
	// Answers returns the resource records a local lookup of name/qtype
	// should deliver, or nil if there is none.
	Answers(name string, qtype uint16) []dns.RR
}

// StaticHosts is an in-memory default Hosts implementation, keyed on the
// lower-cased, dot-trimmed name the way wildcards.go trims names before
// comparing them.
type StaticHosts struct {
	mu      sync.RWMutex
	names   *stringset.Set
	entries map[string][]netip.Addr
}

// NewStaticHosts builds an empty StaticHosts database.
func NewStaticHosts() *StaticHosts {
	return &StaticHosts{
		names:   stringset.New(),
		entries: make(map[string][]netip.Addr),
	}
}

// Add registers name as resolving to addr.
func (h *StaticHosts) Add(name string, addr netip.Addr) {
	name = normalizeHostname(name)

	h.mu.Lock()
	defer h.mu.Unlock()

	h.names.Insert(name)
	h.entries[name] = append(h.entries[name], addr)
}

// Exists reports whether name has a local entry.
func (h *StaticHosts) Exists(name string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.names.Has(normalizeHostname(name))
}

// Answers returns the local addresses matching name/qtype.
func (h *StaticHosts) Answers(name string, qtype uint16) []dns.RR {
	h.mu.RLock()
	defer h.mu.RUnlock()

	addrs, ok := h.entries[normalizeHostname(name)]
	if !ok {
		return nil
	}

	var rrs []dns.RR
	for _, addr := range addrs {
		hdr := dns.RR_Header{Name: dns.Fqdn(name), Class: dns.ClassINET, Ttl: 0}
		switch {
		case qtype == dns.TypeA && addr.Is4():
			hdr.Rrtype = dns.TypeA
			rrs = append(rrs, &dns.A{Hdr: hdr, A: addr.AsSlice()})
		case qtype == dns.TypeAAAA && addr.Is6() && !addr.Is4In6():
			hdr.Rrtype = dns.TypeAAAA
			rrs = append(rrs, &dns.AAAA{Hdr: hdr, AAAA: addr.AsSlice()})
		}
	}
	return rrs
}

func normalizeHostname(name string) string {
	sz := len(name)
	if sz > 0 && name[sz-1] == '.' {
		name = name[:sz-1]
	}
	return strings.ToLower(name)
}
