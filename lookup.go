// Copyright © by Jeff Foley 2017-2025. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.
// SPDX-License-Identifier: Apache-2.0

package dnscore

import (
	"container/list"
	"net/netip"
	"time"
)

// queueLocation tracks which of the Scheduler's three queues currently
// holds a Lookup, so Cancel and the timeout/ready paths can remove it by
// its stored position handle without guessing which queue owns it.
type queueLocation int

const (
	locNone queueLocation = iota
	locScheduled
	locInflight
	locReady
)

// outcomeKind tags a Lookup that has reached ready with the terminal event
// its handler should receive once Scheduler.Expire pops it — the resolution
// of the source library's ready-queue ambiguity: cleanup only marks the
// lookup terminal, the tag decides what fires at pop time.
type outcomeKind int

const (
	outcomeReceived outcomeKind = iota
	outcomeTimeout
	outcomeFailure
)

type outcome struct {
	kind  outcomeKind
	resp  *Response
	rcode int
}

// subscription is a registered interest of a Lookup in UDP responses from
// one peer on one transport; a flat slice is adequate since its cardinality
// never exceeds attempts, per the source design notes.
type subscription struct {
	transport *UDPTransport
	peer      netip.AddrPort
}

// Lookup is a single outstanding DNS question together with its retry and
// subscription state. Both variants described by the source library — a
// RemoteLookup sent over the wire, and a LocalLookup answered from the
// hosts database — are represented by this one struct; the variant-specific
// behavior lives in remotelookup.go and locallookup.go and is selected by
// the local field set at construction.
type Lookup struct {
	local bool

	handler Handler
	query   Query
	hosts   Hosts // only used by the local variant

	attempts int
	count    int
	rotateID uint16
	rotate   bool
	last     time.Time

	position *list.Element
	location queueLocation

	subscriptions []subscription
	connection    *TCPConnection
	truncated     *Response // stashed UDP response while a TCP upgrade is in flight

	out *outcome

	sched *Scheduler // non-owning back-reference
}

// newRemoteLookup builds a Lookup that will be sent over the wire.
func newRemoteLookup(query Query, handler Handler, attempts int, rotate bool) *Lookup {
	return &Lookup{
		query:    query,
		handler:  handler,
		attempts: attempts,
		rotate:   rotate,
		rotateID: query.ID(),
		last:     time.Time{},
	}
}

// newLocalLookup builds a Lookup answered synchronously from hosts.
func newLocalLookup(query Query, handler Handler, hosts Hosts) *Lookup {
	return &Lookup{
		local:    true,
		query:    query,
		handler:  handler,
		hosts:    hosts,
		attempts: 1,
	}
}

// Query returns the immutable request this lookup carries.
func (op *Lookup) Query() Query { return op.query }

// Count returns the number of send attempts performed so far.
func (op *Lookup) Count() int { return op.count }

// credits returns the number of attempts remaining; a lookup is retriable
// iff credits() > 0.
func (op *Lookup) credits() int {
	return op.attempts - op.count
}

// terminal reports whether a terminal event has already been reported (or
// is already queued to be reported) to user space; further transport
// events against this lookup must be silent no-ops.
func (op *Lookup) terminal() bool {
	return op.handler == nil || op.out != nil
}

func (op *Lookup) unsubscribeAll() {
	for _, sub := range op.subscriptions {
		sub.transport.unsubscribe(sub.peer, op.query.ID())
	}
	op.subscriptions = nil
}

func (op *Lookup) dropConnection() {
	if op.connection != nil {
		op.connection.close()
		op.connection = nil
	}
}

// execute dispatches to the variant-specific send/answer logic. It returns
// true when the lookup wants to be placed into inflight (always the case
// for a remote lookup) and false when it is already settled and belongs in
// ready (always the case for a local lookup).
func (op *Lookup) execute(now time.Time) bool {
	if op.local {
		return op.executeLocal(now)
	}
	return op.executeRemote(now)
}

// cancel is the synchronous, user-invoked terminal path: unlike responses
// and timeouts it does not wait for the next tick's ready-queue budget —
// it fires OnCancelled immediately, matching the source library's cancel()
// and the spec's "cancel during callback" scenario.
func (op *Lookup) cancel() {
	if op.terminal() {
		return
	}
	if op.sched != nil {
		op.sched.remove(op)
	}
	op.unsubscribeAll()
	op.dropConnection()

	if op.local {
		op.cancelLocal()
		return
	}
	handler := op.handler
	op.handler = nil
	if handler != nil {
		handler.OnCancelled(op)
	}
}
