// Copyright © by Jeff Foley 2017-2025. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.
// SPDX-License-Identifier: Apache-2.0

package dnscore

import (
	"math/rand"

	"github.com/miekg/dns"
)

// Query is the immutable encoded DNS request carried by a Lookup for its
// entire lifetime; it never changes after construction.
type Query struct {
	msg *dns.Msg
}

// NewQuery builds a Query for name/qtype with a random 16-bit transaction id,
// the id doubling as the per-lookup value used for nameserver rotation.
func NewQuery(name string, qtype uint16) Query {
	m := new(dns.Msg)
	m.Id = uint16(rand.Intn(1 << 16))
	m.SetQuestion(dns.Fqdn(name), qtype)
	m.RecursionDesired = false
	return Query{msg: m}
}

// ID returns the query's transaction id.
func (q Query) ID() uint16 {
	return q.msg.Id
}

// Name returns the fully-qualified question name.
func (q Query) Name() string {
	if len(q.msg.Question) == 0 {
		return ""
	}
	return q.msg.Question[0].Name
}

// Type returns the question's record type.
func (q Query) Type() uint16 {
	if len(q.msg.Question) == 0 {
		return dns.TypeNone
	}
	return q.msg.Question[0].Qtype
}

// Pack encodes the query to wire format.
func (q Query) Pack() ([]byte, error) {
	return q.msg.Pack()
}

// Msg exposes the underlying message for transports that need to hand it
// directly to a dns.Client (the TCP path).
func (q Query) Msg() *dns.Msg {
	return q.msg
}

// Matches reports whether resp is a plausible answer to this query: same
// transaction id and same question name/type.
func (q Query) Matches(resp *Response) bool {
	if resp == nil || resp.msg == nil {
		return false
	}
	m := resp.msg
	if m.Id != q.msg.Id || len(m.Question) == 0 {
		return false
	}
	question := m.Question[0]
	return question.Qtype == q.Type() && equalFoldDNSName(question.Name, q.Name())
}

func equalFoldDNSName(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
