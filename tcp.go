// Copyright © by Jeff Foley 2017-2025. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.
// SPDX-License-Identifier: Apache-2.0

package dnscore

import (
	"net"
	"net/netip"
	"strconv"
	"time"

	"github.com/miekg/dns"
)

// tcpCompletion is what a TCPConnection hands back to the Scheduler once
// its one-shot exchange finishes; it is buffered the same way a UDP
// datagram is, so the dispatch goroutine remains the only mutator of
// Lookup/Scheduler state.
type tcpCompletion struct {
	op   *Lookup
	resp *dns.Msg
	err  error
}

// TCPConnection is a one-shot TCP client opened when a UDP response carries
// the truncation bit. It writes the length-prefixed query, reads the
// length-prefixed response, and reports exactly one outcome to its owning
// Lookup. Single use; there is no retry at this layer.
type TCPConnection struct {
	op      *Lookup
	query   Query
	peer    netip.AddrPort
	timeout time.Duration
	sched   *Scheduler
}

// newTCPConnection dials peer on a private goroutine — there is no
// non-blocking polling story for TCP connect/write/read as clean as UDP
// readability in the standard library — and hands the result back to the
// Scheduler's buffered tcpResults queue, waking the event loop the same way
// UDP readability does (see SPEC_FULL.md §4.C).
func newTCPConnection(sched *Scheduler, op *Lookup, peer netip.AddrPort, query Query, timeout time.Duration) *TCPConnection {
	c := &TCPConnection{op: op, query: query, peer: peer, timeout: timeout, sched: sched}
	go c.run()
	return c
}

func (c *TCPConnection) run() {
	client := dns.Client{Net: "tcp", Timeout: c.timeout}
	addr := net.JoinHostPort(c.peer.Addr().String(), strconv.Itoa(int(c.peer.Port())))

	resp, _, err := client.Exchange(c.query.Msg(), addr)
	c.sched.tcpResults.Append(&tcpCompletion{op: c.op, resp: resp, err: err})
	c.sched.wake()
}

// close is a no-op placeholder for the one-shot connection's lifetime; the
// goroutine in run() always terminates on its own once the dial/exchange
// completes or times out, matching the "single use, destroyed with the
// Lookup" contract without needing an explicit teardown hook.
func (c *TCPConnection) close() {}
