// Copyright © by Jeff Foley 2017-2025. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.
// SPDX-License-Identifier: Apache-2.0

package dnscore

import (
	"net/netip"
	"time"

	"github.com/miekg/dns"
)

// executeRemote selects a nameserver, sends the query, and subscribes for
// the reply. It always places the lookup into inflight, transliterated
// from RemoteLookup::execute in the source library.
func (op *Lookup) executeRemote(now time.Time) bool {
	nameservers := op.sched.settings.Nameservers
	n := len(nameservers)

	var idx int
	if op.rotate {
		idx = int(op.count+int(op.rotateID)) % n
	} else {
		idx = op.count % n
	}
	ns := nameservers[idx]

	transport := op.sched.transportFor(ns)
	// A transient send failure is swallowed: the lookup behaves as if it
	// had sent and will simply time out and retry. It is only logged.
	if err := transport.Send(ns, op.query); err != nil {
		op.sched.log.Printf("send to %s failed: %v", ns, err)
	}
	transport.Subscribe(op, ns, op.query.ID())
	op.subscriptions = append(op.subscriptions, subscription{transport: transport, peer: ns})

	op.count++
	op.last = now
	return true
}

// onReceivedUDP handles a datagram delivered by a UDPTransport. It ignores
// responses that don't match the outstanding query, or that arrive after a
// TCP upgrade is already underway.
func (op *Lookup) onReceivedUDP(peer netip.AddrPort, resp *Response) {
	if op.terminal() || op.connection != nil {
		return
	}
	if !op.query.Matches(resp) {
		return
	}

	if !resp.Truncated() {
		op.report(resp)
		return
	}

	// Upgrade to TCP: unsubscribe from all UDP sockets and give the
	// exchange a fresh timeout budget, per RemoteLookup::onReceived.
	op.unsubscribeAll()
	op.truncated = resp
	op.connection = newTCPConnection(op.sched, op, peer, op.query, op.sched.settings.Timeout)
	op.last = time.Now()
}

// onReceivedTCP handles the result of the one-shot TCP exchange.
func (op *Lookup) onReceivedTCP(resp *Response) {
	if op.terminal() {
		return
	}
	if resp == nil || !op.query.Matches(resp) {
		return
	}
	op.report(resp)
}

// onFailureTCP surfaces the stashed truncated response when the TCP
// upgrade could not be completed, a best-effort delivery rather than an
// error per spec.md §7.
func (op *Lookup) onFailureTCP() {
	if op.terminal() {
		return
	}
	op.cleanup(&outcome{kind: outcomeReceived, resp: op.truncated})
	op.sched.done(op)
}

// report decides whether to rewrite an NXDOMAIN against the hosts database
// before handing the response off for delivery, transliterated from
// RemoteLookup::report.
func (op *Lookup) report(resp *Response) {
	if resp.Rcode() == dns.RcodeNameError && op.sched.hosts != nil {
		name := resp.msg.Question[0].Name
		if op.sched.hosts.Exists(name) {
			resp = fakeResponse(op.query, dns.RcodeSuccess, nil)
		}
	}
	op.cleanup(&outcome{kind: outcomeReceived, resp: resp})
	op.sched.done(op)
}

// timeoutRemote tags this lookup as timed out. It is called by
// Scheduler.Expire step 6 only after the lookup has already been popped
// from inflight, so unlike report/onFailureTCP it does not call done(op)
// itself — the caller pushes it onto ready.
func (op *Lookup) timeoutRemote() {
	op.cleanup(&outcome{kind: outcomeTimeout})
}

// cleanup clears subscriptions and the TCP connection and tags the lookup
// with its outcome. It does NOT itself invoke the handler: the terminal
// callback fires later, when Scheduler.Expire pops this lookup from ready,
// under the per-tick budget — see SPEC_FULL.md §9's "ready-queue firing vs.
// marking" decision. It also does not move the lookup between queues;
// callers that find the lookup still in inflight call sched.done(op)
// immediately afterward.
func (op *Lookup) cleanup(out *outcome) {
	op.unsubscribeAll()
	op.dropConnection()
	op.out = out
}
