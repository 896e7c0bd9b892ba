// Copyright © by Jeff Foley 2017-2025. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.
// SPDX-License-Identifier: Apache-2.0

// Package eventloop provides the default dnscore.Loop implementation: one
// dispatcher goroutine driving a timer min-heap plus per-connection reader
// goroutines, generalized from the select-driven dispatch cmd/resolve/main.go
// hand-rolls for a single command into a reusable event loop.
package eventloop

import (
	"container/heap"
	"net"
	"sync"
	"time"
)

// Monitor is the callback sink an event loop drives: Notify on socket
// readability, Expire on timer fire. dnscore.Monitor is an alias of this
// type so the two packages share a single identity without an import
// cycle (dnscore.Scheduler implements it; dnscore.Loop's methods use it).
type Monitor interface {
	Notify()
	Expire()
}

type timerEntry struct {
	id        int
	at        time.Time
	monitor   Monitor
	cancelled bool
	index     int
}

type timerHeap []*timerEntry

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].at.Before(h[j].at) }
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *timerHeap) Push(x interface{}) {
	e := x.(*timerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

type connEntry struct {
	id     int
	conn   net.PacketConn
	closed chan struct{}
}

// Loop is the default Loop implementation. The zero value is not usable;
// construct one with New.
type Loop struct {
	mu     sync.Mutex
	nextID int
	timers timerHeap
	conns  map[int]*connEntry

	tasks chan func()
	quit  chan struct{}
}

// New starts a Loop's dispatcher goroutine and returns it.
func New() *Loop {
	l := &Loop{
		conns: make(map[int]*connEntry),
		tasks: make(chan func(), 64),
		quit:  make(chan struct{}),
	}
	go l.run()
	return l
}

// PacketReceiver is an optional extension a Monitor passed to Add can
// implement to receive the datagrams the Loop reads on its behalf. A
// net.PacketConn carries no portable way to ask "is this readable" without
// consuming a full message (UDP has no partial reads), so Add performs the
// real read itself rather than the 1-byte peek a socket-based poller could
// get away with, and hands the payload to Receive before calling Notify.
type PacketReceiver interface {
	Receive(addr net.Addr, data []byte)
}

// Add registers conn for readability notifications. A private goroutine
// blocks on conn.ReadFrom with a full-sized buffer and, on every successful
// read, hands the datagram to monitor (if it implements PacketReceiver)
// before scheduling monitor.Notify() to run on the dispatcher goroutine.
// dnscore's own UDPTransport does not route through this path — it manages
// its socket directly, the same way conn.go does — so this exists for
// other Monitor implementations that want the Loop to own the read.
func (l *Loop) Add(conn net.PacketConn, monitor Monitor) int {
	l.mu.Lock()
	l.nextID++
	id := l.nextID
	entry := &connEntry{id: id, conn: conn, closed: make(chan struct{})}
	l.conns[id] = entry
	l.mu.Unlock()

	go l.watchConn(entry, monitor)
	return id
}

func (l *Loop) watchConn(entry *connEntry, monitor Monitor) {
	buf := make([]byte, 65535)
	receiver, _ := monitor.(PacketReceiver)

	for {
		select {
		case <-entry.closed:
			return
		case <-l.quit:
			return
		default:
		}
		// The short deadline lets this goroutine notice shutdown promptly
		// even though net.PacketConn gives no portable way to select on
		// readability without reading; a timeout is not an error worth
		// reporting, just another pass through the loop.
		_ = entry.conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		n, addr, err := entry.conn.ReadFrom(buf)
		if err != nil {
			continue
		}
		if receiver != nil {
			receiver.Receive(addr, buf[:n])
		}
		l.schedule(monitor.Notify)
	}
}

// Remove deregisters conn; safe to call once per successful Add.
func (l *Loop) Remove(id int, conn net.PacketConn, monitor Monitor) {
	l.mu.Lock()
	entry, ok := l.conns[id]
	delete(l.conns, id)
	l.mu.Unlock()

	if ok {
		close(entry.closed)
	}
}

// Timer arms monitor.Expire() to fire after delay.
func (l *Loop) Timer(delay time.Duration, monitor Monitor) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	e := &timerEntry{id: l.nextID, at: time.Now().Add(delay), monitor: monitor}
	heap.Push(&l.timers, e)
	l.wakeDispatcher()
	return e.id
}

// Cancel invalidates a previously armed timer; a no-op if it already fired.
func (l *Loop) Cancel(id int, monitor Monitor) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, e := range l.timers {
		if e.id == id {
			e.cancelled = true
			return
		}
	}
}

// Stop shuts the dispatcher and every reader goroutine down.
func (l *Loop) Stop() {
	close(l.quit)
}

func (l *Loop) schedule(fn func()) {
	select {
	case l.tasks <- fn:
	case <-l.quit:
	}
}

func (l *Loop) wakeDispatcher() {
	select {
	case l.tasks <- func() {}:
	default:
	}
}

func (l *Loop) run() {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		l.mu.Lock()
		var next *timerEntry
		for l.timers.Len() > 0 {
			next = l.timers[0]
			if !next.cancelled {
				break
			}
			heap.Pop(&l.timers)
			next = nil
		}
		wait := time.Hour
		if next != nil {
			wait = time.Until(next.at)
			if wait < 0 {
				wait = 0
			}
		}
		l.mu.Unlock()

		timer.Reset(wait)
		select {
		case <-l.quit:
			return
		case fn := <-l.tasks:
			fn()
		case <-timer.C:
			l.mu.Lock()
			var fired *timerEntry
			if l.timers.Len() > 0 {
				e := l.timers[0]
				if !time.Now().Before(e.at) {
					fired = heap.Pop(&l.timers).(*timerEntry)
				}
			}
			l.mu.Unlock()
			if fired != nil && !fired.cancelled {
				fired.monitor.Expire()
			}
		}
	}
}
