// Copyright © by Jeff Foley 2017-2025. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.
// SPDX-License-Identifier: Apache-2.0

package dnscore

import (
	"net/netip"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lookupd/dnscore/eventloop"
	"github.com/miekg/dns"
)

type countingHandler struct {
	received chan *Response
	timeout  chan struct{}
}

func (h *countingHandler) OnReceived(op *Lookup, resp *Response) { h.received <- resp }
func (h *countingHandler) OnTimeout(op *Lookup)                  { close(h.timeout) }
func (h *countingHandler) OnCancelled(op *Lookup)                {}
func (h *countingHandler) OnFailure(op *Lookup, rcode int)       {}

// TestRetryThenSuccess drops the first two attempts against a nameserver
// that silently ignores the query (listed twice, at indices 0 and 1),
// succeeding only once the third send (count 2, index 2 mod 3) lands on a
// nameserver that always answers — exercising scenario 2.
func TestRetryThenSuccess(t *testing.T) {
	dns.HandleFunc("retry.test.", typeAHandler)
	defer dns.HandleRemove("retry.test.")

	good, goodAddr, err := runLocalUDPServer("127.0.0.1:0")
	if err != nil {
		t.Fatalf("unable to run good server: %v", err)
	}
	defer good.Shutdown()

	var drops int32
	blackhole, err := newBlackholeServer(&drops)
	if err != nil {
		t.Fatalf("unable to run blackhole server: %v", err)
	}
	defer blackhole.close()

	settings := DefaultSettings(blackhole.addr, blackhole.addr, serverAddr(t, goodAddr))
	settings.Timeout = 300 * time.Millisecond
	settings.Attempts = 3
	settings.Rotate = false

	loop := eventloop.New()
	defer loop.Stop()
	sched, err := NewScheduler(settings, nil, loop, nil)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	defer sched.Close()

	h := &countingHandler{received: make(chan *Response, 1), timeout: make(chan struct{})}
	op := sched.Query("retry.test", dns.TypeA, h)

	select {
	case resp := <-h.received:
		if resp.Rcode() != dns.RcodeSuccess {
			t.Fatalf("expected success, got rcode %d", resp.Rcode())
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("onReceived never fired")
	}
	if op.Count() != 3 {
		t.Fatalf("expected count == 3 after two drops and a success, got %d", op.Count())
	}
}

// TestExhaustionTimeout issues a lookup against two nameservers that never
// answer; with attempts=2 and rotate=false each nameserver should see
// exactly one send before the lookup times out — scenario 3.
func TestExhaustionTimeout(t *testing.T) {
	var drops1, drops2 int32
	b1, err := newBlackholeServer(&drops1)
	if err != nil {
		t.Fatalf("unable to run blackhole server 1: %v", err)
	}
	defer b1.close()
	b2, err := newBlackholeServer(&drops2)
	if err != nil {
		t.Fatalf("unable to run blackhole server 2: %v", err)
	}
	defer b2.close()

	settings := DefaultSettings(b1.addr, b2.addr)
	settings.Timeout = 300 * time.Millisecond
	settings.Attempts = 2
	settings.Rotate = false

	loop := eventloop.New()
	defer loop.Stop()
	sched, err := NewScheduler(settings, nil, loop, nil)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	defer sched.Close()

	h := &countingHandler{received: make(chan *Response, 1), timeout: make(chan struct{})}
	sched.Query("exhaust.test", dns.TypeA, h)

	select {
	case <-h.timeout:
	case <-h.received:
		t.Fatalf("expected a timeout, got a response")
	case <-time.After(5 * time.Second):
		t.Fatalf("onTimeout never fired")
	}

	if atomic.LoadInt32(&drops1) != 1 || atomic.LoadInt32(&drops2) != 1 {
		t.Fatalf("expected exactly one send per nameserver, got %d and %d", drops1, drops2)
	}
}

// TestTruncatedUDPUpgradesToTCP drives a nameserver that sets the TC bit
// over UDP and answers in full over TCP on the same address, exercising
// scenario 4: the lookup must complete via the TCP path and leave no
// dangling UDP subscription behind.
func TestTruncatedUDPUpgradesToTCP(t *testing.T) {
	dns.HandleFunc("truncate.test.", truncatingHandler)
	defer dns.HandleRemove("truncate.test.")

	udpSrv, addrstr, err := runLocalUDPServer("127.0.0.1:0")
	if err != nil {
		t.Fatalf("unable to run UDP server: %v", err)
	}
	defer udpSrv.Shutdown()

	tcpSrv, _, err := runLocalTCPServer(addrstr)
	if err != nil {
		t.Fatalf("unable to run TCP server: %v", err)
	}
	defer tcpSrv.Shutdown()

	settings := DefaultSettings(serverAddr(t, addrstr))
	settings.Timeout = 2 * time.Second

	loop := eventloop.New()
	defer loop.Stop()
	sched, err := NewScheduler(settings, nil, loop, nil)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	defer sched.Close()

	h := &countingHandler{received: make(chan *Response, 1), timeout: make(chan struct{})}
	op := sched.Query("truncate.test", dns.TypeA, h)

	select {
	case resp := <-h.received:
		if resp.Rcode() != dns.RcodeSuccess || len(resp.Msg().Answer) == 0 {
			t.Fatalf("expected a full answer via TCP, got rcode=%d answers=%d", resp.Rcode(), len(resp.Msg().Answer))
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("OnReceived never fired")
	}

	if len(op.subscriptions) != 0 {
		t.Fatalf("expected no remaining UDP subscriptions after the TCP upgrade, got %d", len(op.subscriptions))
	}
}

// blackholeServer is a UDP socket that counts received datagrams and never
// replies, standing in for an unresponsive nameserver.
type blackholeServer struct {
	addr netip.AddrPort
	conn *udpNoReply
}

func newBlackholeServer(counter *int32) (*blackholeServer, error) {
	conn, err := newUDPNoReply(counter)
	if err != nil {
		return nil, err
	}
	return &blackholeServer{addr: conn.addr, conn: conn}, nil
}

func (b *blackholeServer) close() { b.conn.close() }
