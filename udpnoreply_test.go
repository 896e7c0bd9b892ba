// Copyright © by Jeff Foley 2017-2025. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.
// SPDX-License-Identifier: Apache-2.0

package dnscore

import (
	"net"
	"net/netip"
	"sync/atomic"
)

// udpNoReply is a UDP socket that counts every datagram it receives and
// never sends a reply, simulating an unresponsive nameserver for the
// exhaustion/retry tests.
type udpNoReply struct {
	conn    *net.UDPConn
	addr    netip.AddrPort
	counter *int32
	done    chan struct{}
}

func newUDPNoReply(counter *int32) (*udpNoReply, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	if err != nil {
		return nil, err
	}
	local := conn.LocalAddr().(*net.UDPAddr)
	host, _ := netip.AddrFromSlice(local.IP.To4())
	addr := netip.AddrPortFrom(host, uint16(local.Port))

	n := &udpNoReply{conn: conn, addr: addr, counter: counter, done: make(chan struct{})}
	go n.run()
	return n, nil
}

func (n *udpNoReply) run() {
	buf := make([]byte, 512)
	for {
		_, _, err := n.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-n.done:
				return
			default:
				continue
			}
		}
		atomic.AddInt32(n.counter, 1)
	}
}

func (n *udpNoReply) close() {
	select {
	case <-n.done:
		return
	default:
	}
	close(n.done)
	n.conn.Close()
}
