// Copyright © by Jeff Foley 2017-2025. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.
// SPDX-License-Identifier: Apache-2.0

package dnscore

import (
	"io"
	"log"
	"net/netip"
	"time"

	"github.com/caffix/queue"
	"golang.org/x/time/rate"
)

// readyBudget bounds how many user callbacks a single Expire tick may
// invoke, the "B" named throughout spec.md §4.E.
const readyBudget = 8

// Scheduler is the Core: it owns the three queues, the nameserver list, the
// single timer, and drives the tick loop. It is not safe for concurrent
// use — per spec.md §5 there is no internal lock, every method is meant to
// be called from the single goroutine an event Loop drives.
type Scheduler struct {
	settings *Settings
	hosts    Hosts

	udp4 *UDPTransport
	udp6 *UDPTransport

	scheduled *lookupQueue
	inflight  *lookupQueue
	ready     *lookupQueue

	tcpResults queue.Queue

	loop    Loop
	timerID int
	hasTmr  bool

	limiter *rate.Limiter

	log *log.Logger

	destroyed bool
}

// NewScheduler validates settings and builds a Scheduler bound to the
// given event loop. hosts may be nil, in which case every lookup is
// treated as remote and NXDOMAIN rewriting never triggers.
func NewScheduler(settings *Settings, hosts Hosts, loop Loop, logger *log.Logger) (*Scheduler, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	limit := rate.Inf
	if settings.QPS > 0 {
		limit = rate.Limit(settings.QPS)
	}

	s := &Scheduler{
		settings:   settings,
		hosts:      hosts,
		udp4:       NewUDPTransport("udp4", settings.BufferSize),
		udp6:       NewUDPTransport("udp6", settings.BufferSize),
		scheduled:  newLookupQueue(),
		inflight:   newLookupQueue(),
		ready:      newLookupQueue(),
		tcpResults: queue.NewQueue(),
		loop:       loop,
		limiter:    rate.NewLimiter(limit, 1),
		log:        logger,
	}
	s.udp4.onBuffered = s.wake
	s.udp6.onBuffered = s.wake
	return s, nil
}

// Close flips the destroyed flag so any Watcher bound to this Scheduler
// invalidates, then releases the transports. It is the Go idiom standing
// in for the source library's Scheduler destructor.
func (s *Scheduler) Close() {
	if s.destroyed {
		return
	}
	s.destroyed = true
	s.udp4.Close()
	s.udp6.Close()
	if s.loop != nil && s.hasTmr {
		s.loop.Cancel(s.timerID, s)
		s.hasTmr = false
	}
}

func (s *Scheduler) transportFor(ns netip.AddrPort) *UDPTransport {
	addr := ns.Addr()
	if addr.Is4() || addr.Is4In6() {
		return s.udp4
	}
	return s.udp6
}

// Query constructs a Lookup for name/qtype and schedules it. A name present
// in hosts is answered locally; everything else goes out over the wire.
func (s *Scheduler) Query(name string, qtype uint16, handler Handler) *Lookup {
	query := NewQuery(name, qtype)

	var op *Lookup
	if s.hosts != nil && s.hosts.Exists(name) {
		op = newLocalLookup(query, handler, s.hosts)
	} else {
		op = newRemoteLookup(query, handler, s.settings.Attempts, s.settings.Rotate)
	}
	s.add(op)
	return op
}

// Cancel cancels a previously scheduled Lookup. Safe to call at any point
// in the lookup's lifetime; a no-op once it is already terminal.
func (s *Scheduler) Cancel(op *Lookup) {
	op.cancel()
}

// add pushes a freshly constructed lookup onto scheduled and requests an
// immediate timer fire, coalescing bursts the way spec.md §4.E describes.
func (s *Scheduler) add(op *Lookup) {
	op.sched = s
	s.push(s.scheduled, op, locScheduled)
	s.armTimer(0)
}

// done removes a lookup from inflight via its stored position handle and
// pushes it onto ready. Called by the report/onFailureTCP paths while the
// lookup is still sitting in inflight.
func (s *Scheduler) done(op *Lookup) {
	if op.location == locInflight {
		s.inflight.pop(op)
	}
	s.push(s.ready, op, locReady)
	s.armTimer(0)
}

// remove pops op from whichever queue currently holds it, used by the
// synchronous Cancel path.
func (s *Scheduler) remove(op *Lookup) {
	switch op.location {
	case locScheduled:
		s.scheduled.pop(op)
	case locInflight:
		s.inflight.pop(op)
	case locReady:
		s.ready.pop(op)
	}
	op.location = locNone
}

func (s *Scheduler) push(q *lookupQueue, op *Lookup, loc queueLocation) {
	q.push(op)
	op.location = loc
}

// wake prompts a near-term Expire tick from a goroutine other than the
// dispatcher (a UDPTransport reader, a completed TCPConnection). It goes
// straight to the Loop's own thread-safe Timer call rather than through
// armTimer, which mutates scheduler-owned bookkeeping (hasTmr/timerID)
// that only the dispatcher goroutine may touch; an occasional redundant
// tick from overlapping timers is harmless since Expire is idempotent on
// an idle scheduler.
func (s *Scheduler) wake() {
	if s.loop != nil {
		s.loop.Timer(0, s)
	}
}

func (s *Scheduler) armTimer(delay time.Duration) {
	if s.loop == nil {
		return
	}
	if s.hasTmr {
		s.loop.Cancel(s.timerID, s)
	}
	s.timerID = s.loop.Timer(delay, s)
	s.hasTmr = true
}

// Notify implements Monitor. The UDP transports do not register their
// sockets with the Loop — their reader goroutines buffer datagrams and call
// wake through onBuffered — so the Loop never calls Notify on their behalf.
// When it is called, it simply guarantees a near-term Expire.
func (s *Scheduler) Notify() {
	s.armTimer(0)
}

// Expire implements Monitor and is the heart of the scheduler: the tick
// loop described in spec.md §4.E, executed in exactly these steps.
func (s *Scheduler) Expire() {
	w := newWatcher(s)
	now := time.Now()

	// Step 2: the timer fired; clear the handle.
	s.hasTmr = false

	// Step 3: drain buffered responses, UDP v4 then v6 then completed TCP
	// exchanges, under the shared per-tick budget.
	budget := readyBudget
	budget -= s.udp4.Deliver(budget)
	if !w.valid() {
		return
	}
	budget -= s.udp6.Deliver(budget)
	if !w.valid() {
		return
	}
	budget -= s.drainTCP(budget)
	if !w.valid() {
		return
	}

	// Step 4: fire ready callbacks, up to the remaining budget.
	for budget > 0 {
		op := s.ready.popFront()
		if op == nil {
			break
		}
		op.location = locNone
		budget--
		s.fire(op)
		if !w.valid() {
			return
		}
	}

	// Step 5: start scheduled lookups while capacity allows, gated by the
	// optional non-blocking QPS governor.
	for s.inflight.len() < s.settings.Capacity && !s.scheduled.empty() {
		if !s.limiter.AllowN(now, 1) {
			break
		}
		op := s.scheduled.popFront()
		op.location = locNone

		wantsInflight := op.execute(now)
		if !w.valid() {
			return
		}
		switch {
		case wantsInflight:
			s.push(s.inflight, op, locInflight)
		case op.credits() > 0:
			s.push(s.scheduled, op, locScheduled)
		default:
			s.push(s.ready, op, locReady)
		}
	}

	// Step 6: time out stale in-flight lookups.
	deadline := now.Add(-s.settings.Timeout)
	for !s.inflight.empty() && !s.inflight.front().last.After(deadline) {
		op := s.inflight.popFront()
		op.location = locNone

		if op.credits() > 0 {
			s.push(s.scheduled, op, locScheduled)
			continue
		}
		op.timeoutRemote()
		s.push(s.ready, op, locReady)
	}

	// Step 7: rearm the timer.
	switch {
	case !s.ready.empty():
		s.armTimer(0)
	case !s.scheduled.empty() && s.inflight.len() < s.settings.Capacity:
		// step 6 sent retries back to scheduled, or the QPS governor held
		// some back in step 5; start them on the next tick
		s.armTimer(0)
	case !s.inflight.empty():
		wait := s.inflight.front().last.Add(s.settings.Timeout).Sub(now)
		if wait < 0 {
			wait = 0
		}
		s.armTimer(wait)
	default:
		// everything idle; scheduled must also be empty
	}
}

// fire dispatches a popped ready lookup to its handler based on the
// outcome tagged during cleanup — the deferred half of the "ready-queue
// firing vs. marking" design decision.
func (s *Scheduler) fire(op *Lookup) {
	if op.out == nil {
		// A LocalLookup already fired its handler synchronously inside
		// execute(); being in ready at all is just bookkeeping.
		return
	}
	handler := op.handler
	op.handler = nil
	if handler == nil {
		return
	}
	switch op.out.kind {
	case outcomeReceived:
		handler.OnReceived(op, op.out.resp)
	case outcomeTimeout:
		handler.OnTimeout(op)
	case outcomeFailure:
		handler.OnFailure(op, op.out.rcode)
	}
}

func (s *Scheduler) drainTCP(max int) int {
	consumed := 0
	for consumed < max {
		e, ok := s.tcpResults.Next()
		if !ok {
			break
		}
		consumed++

		tc, ok := e.(*tcpCompletion)
		if !ok {
			continue
		}
		op := tc.op
		if op.terminal() {
			continue
		}
		if tc.err != nil || tc.resp == nil {
			op.onFailureTCP()
			continue
		}
		op.onReceivedTCP(newResponse(tc.resp))
	}
	return consumed
}
