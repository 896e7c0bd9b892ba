// Copyright © by Jeff Foley 2017-2025. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.
// SPDX-License-Identifier: Apache-2.0

package dnscore

import (
	"time"

	"github.com/miekg/dns"
)

// executeLocal answers the query directly from the hosts database and
// delivers the result to the handler right away, then returns false so the
// Scheduler places the lookup into ready rather than inflight — it never
// sends a datagram and never waits on a timer, per LocalLookup::execute in
// the source library.
//
// Apart from the synchronous cancel path, this is the one place a Lookup
// invokes its handler outside of Scheduler.Expire's ready-queue dispatch:
// LocalLookup has no wire round trip to bound by the per-tick budget, so
// there is nothing to defer.
func (op *Lookup) executeLocal(now time.Time) bool {
	op.last = now
	op.count++ // attempts == 1; this drives credits() to 0 after the one run

	name := op.query.Name()
	answers := op.hosts.Answers(name, op.query.Type())

	rcode := dns.RcodeNameError
	if len(answers) > 0 {
		rcode = dns.RcodeSuccess
	}
	resp := fakeResponse(op.query, rcode, answers)

	handler := op.handler
	op.handler = nil
	if handler != nil {
		handler.OnReceived(op, resp)
	}
	return false
}

// cancelLocal clears the handler and fires OnCancelled unless a result has
// already been delivered, matching LocalLookup::cancel.
func (op *Lookup) cancelLocal() {
	if op.handler == nil {
		return
	}
	handler := op.handler
	op.handler = nil
	handler.OnCancelled(op)
}
