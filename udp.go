// Copyright © by Jeff Foley 2017-2025. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.
// SPDX-License-Identifier: Apache-2.0

package dnscore

import (
	"fmt"
	"net"
	"net/netip"
	"sync"

	"github.com/caffix/queue"
	"github.com/miekg/dns"
)

const headerSize = 12 // minimum size of a DNS message header

type bufferedDatagram struct {
	peer netip.AddrPort
	raw  []byte
}

type subscriberKey struct {
	peer netip.AddrPort
	qid  uint16
}

// UDPTransport owns one non-blocking datagram socket for a single IP
// family, lazily opened on the first Send. It buffers raw responses rather
// than dispatching them inline, decoupling the kernel drain from the
// per-tick callback budget — see DESIGN.md / conn.go's connections type,
// which this is adapted from.
type UDPTransport struct {
	mu   sync.Mutex
	conn *net.UDPConn

	bufSize int
	network string // "udp4" or "udp6"

	resps queue.Queue
	subs  map[subscriberKey]*Lookup

	// onBuffered, when set, is called after every datagram appended to
	// resps so the Scheduler can prompt a near-term Expire tick instead of
	// waiting for the next already-armed timer — the Go analogue of the
	// source library's onBuffered notification from udp.h.
	onBuffered func()

	done chan struct{}
}

// NewUDPTransport constructs a transport for one IP family ("udp4" or
// "udp6"); the socket itself is not opened until the first Send.
func NewUDPTransport(network string, bufferSize int) *UDPTransport {
	return &UDPTransport{
		network: network,
		bufSize: bufferSize,
		resps:   queue.NewQueue(),
		subs:    make(map[subscriberKey]*Lookup),
		done:    make(chan struct{}),
	}
}

func (t *UDPTransport) ensureOpen() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return nil
	}

	conn, err := net.ListenUDP(t.network, nil)
	if err != nil {
		return err
	}
	t.setBufSizes(conn)
	t.conn = conn
	go t.readLoop(conn)
	return nil
}

func (t *UDPTransport) setBufSizes(conn *net.UDPConn) {
	size := t.bufSize
	if size <= 0 {
		size = DefaultBufferSize
	}
	for s := size; s > 1024; s /= 2 {
		if err := conn.SetReadBuffer(s); err == nil {
			break
		}
	}
	for s := size; s > 1024; s /= 2 {
		if err := conn.SetWriteBuffer(s); err == nil {
			break
		}
	}
}

// Send lazily opens the socket and emits query as one unconnected datagram
// to peer, on peer's own port. A hard send failure (e.g. an unroutable address family
// mismatch) is returned as an error; a transient failure is swallowed by
// the caller per the source library's failure semantics — the lookup
// simply behaves as though it had sent and will time out naturally.
func (t *UDPTransport) Send(peer netip.AddrPort, query Query) error {
	if err := t.ensureOpen(); err != nil {
		return err
	}

	raw, err := query.Pack()
	if err != nil {
		return err
	}

	addr := &net.UDPAddr{IP: peer.Addr().AsSlice(), Port: int(peer.Port())}
	_, err = t.conn.WriteToUDP(raw, addr)
	return err
}

// Subscribe registers op's interest in a response from peer with the given
// query id.
func (t *UDPTransport) Subscribe(op *Lookup, peer netip.AddrPort, qid uint16) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subs[subscriberKey{peer: peer, qid: qid}] = op
}

func (t *UDPTransport) unsubscribe(peer netip.AddrPort, qid uint16) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.subs, subscriberKey{peer: peer, qid: qid})
}

func (t *UDPTransport) lookupSubscriber(peer netip.AddrPort, qid uint16) *Lookup {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.subs[subscriberKey{peer: peer, qid: qid}]
}

// readLoop drains the socket in a blocking loop on its own goroutine,
// appending raw datagrams to the response buffer without dispatching them
// — the only thing this goroutine ever touches is the thread-safe resps
// queue, never Lookup/Scheduler state directly.
func (t *UDPTransport) readLoop(conn *net.UDPConn) {
	buf := make([]byte, dns.DefaultMsgSize)

	for {
		select {
		case <-t.done:
			return
		default:
		}

		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-t.done:
				return
			default:
				continue
			}
		}
		if n < headerSize {
			continue
		}

		ip, ok := netip.AddrFromSlice(addr.IP)
		if !ok {
			continue
		}
		peer := netip.AddrPortFrom(ip.Unmap(), uint16(addr.Port))
		raw := make([]byte, n)
		copy(raw, buf[:n])
		t.resps.Append(&bufferedDatagram{peer: peer, raw: raw})
		if t.onBuffered != nil {
			t.onBuffered()
		}
	}
}

// Deliver pops up to max buffered datagrams, parses each header id, finds
// the matching subscriber by (peer, qid) and invokes its OnReceived. It
// returns the number of datagrams consumed, matching deliver(max) from
// spec.md §4.B.
func (t *UDPTransport) Deliver(max int) int {
	consumed := 0

	for consumed < max {
		e, ok := t.resps.Next()
		if !ok {
			break
		}
		consumed++

		bd, ok := e.(*bufferedDatagram)
		if !ok {
			continue
		}

		m := new(dns.Msg)
		if err := m.Unpack(bd.raw); err != nil || len(m.Question) == 0 {
			continue
		}

		op := t.lookupSubscriber(bd.peer, m.Id)
		if op == nil {
			continue
		}
		op.onReceivedUDP(bd.peer, newResponse(m))
	}
	return consumed
}

// Close tears down the socket and its reader goroutine; idempotent.
func (t *UDPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	select {
	case <-t.done:
		return nil
	default:
	}
	close(t.done)
	if t.conn != nil {
		return t.conn.Close()
	}
	return nil
}

func (t *UDPTransport) String() string {
	return fmt.Sprintf("udp-transport(%s)", t.network)
}
