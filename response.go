// Copyright © by Jeff Foley 2017-2025. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.
// SPDX-License-Identifier: Apache-2.0

package dnscore

import "github.com/miekg/dns"

// Response wraps a decoded DNS message delivered to a Handler.
type Response struct {
	msg *dns.Msg
}

func newResponse(m *dns.Msg) *Response {
	if m == nil {
		return nil
	}
	return &Response{msg: m}
}

// Msg exposes the underlying decoded message.
func (r *Response) Msg() *dns.Msg {
	return r.msg
}

// Truncated reports whether the TC bit is set, signalling a TCP retry.
func (r *Response) Truncated() bool {
	return r.msg.Truncated
}

// Rcode returns the response code.
func (r *Response) Rcode() int {
	return r.msg.Rcode
}

// ID returns the response's transaction id.
func (r *Response) ID() uint16 {
	return r.msg.Id
}

// fakeResponse synthesizes a substitute response for query: same id,
// question and flags, the given rcode. RemoteLookup.report calls this with
// a nil answers section to rewrite an NXDOMAIN into a bare non-error rcode,
// exactly as RemoteLookup::report builds its FakeResponse with no answer
// data in the source library; LocalLookup.executeLocal is the one caller
// that passes real hosts-resolved records, since that is a wholly different
// component answering a query it owns end to end rather than patching a
// remote NXDOMAIN.
func fakeResponse(query Query, rcode int, answers []dns.RR) *Response {
	m := new(dns.Msg)
	m.SetReply(query.msg)
	m.Rcode = rcode
	m.Answer = answers
	return newResponse(m)
}
