// Copyright © by Jeff Foley 2017-2025. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.
// SPDX-License-Identifier: Apache-2.0

package dnscore

import (
	"context"
	"log"

	"github.com/lookupd/dnscore/eventloop"
	"github.com/miekg/dns"
)

// Resolver is the user-facing facade wiring Settings, Hosts, and a
// Scheduler driven by the default event loop — the adaptation of the
// source library's own NewServerPool facade constructor and pool.go's
// Query/QueryChan convenience trio.
type Resolver struct {
	sched *Scheduler
	loop  *eventloop.Loop
}

// New builds a Resolver with the default event loop and the given
// Settings/Hosts. Hosts may be nil.
func New(settings *Settings, hosts Hosts, logger *log.Logger) (*Resolver, error) {
	loop := eventloop.New()

	sched, err := NewScheduler(settings, hosts, loop, logger)
	if err != nil {
		loop.Stop()
		return nil, err
	}
	return &Resolver{sched: sched, loop: loop}, nil
}

// Stop releases the Scheduler and the event loop.
func (r *Resolver) Stop() {
	r.sched.Close()
	r.loop.Stop()
}

// Scheduler exposes the underlying Scheduler for callers that want direct
// access to Query/Cancel/Expire.
func (r *Resolver) Scheduler() *Scheduler {
	return r.sched
}

// chanHandler adapts the callback-based Handler contract to a channel,
// the way pool.go's Query/QueryChan trio offers a blocking convenience on
// top of the callback-driven core.
type chanHandler struct {
	ch chan *dns.Msg
}

func (h *chanHandler) OnReceived(op *Lookup, resp *Response) {
	h.ch <- resp.Msg()
}

func (h *chanHandler) OnTimeout(op *Lookup) {
	h.ch <- noResponseMsg(op, RcodeNoResponse)
}

func (h *chanHandler) OnCancelled(op *Lookup) {
	h.ch <- noResponseMsg(op, RcodeNoResponse)
}

func (h *chanHandler) OnFailure(op *Lookup, rcode int) {
	h.ch <- noResponseMsg(op, rcode)
}

func noResponseMsg(op *Lookup, rcode int) *dns.Msg {
	m := new(dns.Msg)
	m.SetQuestion(op.Query().Name(), op.Query().Type())
	m.Rcode = rcode
	return m
}

// QueryBlocking issues name/qtype and blocks until a terminal event
// arrives or ctx is cancelled, mirroring pool.go's Query convenience on
// top of the otherwise purely callback-driven core.
func (r *Resolver) QueryBlocking(ctx context.Context, name string, qtype uint16) (*dns.Msg, error) {
	ch := make(chan *dns.Msg, 1)
	op := r.sched.Query(name, qtype, &chanHandler{ch: ch})

	select {
	case m := <-ch:
		return m, nil
	case <-ctx.Done():
		r.sched.Cancel(op)
		return nil, ctx.Err()
	}
}

// Query issues name/qtype with a user-supplied Handler, the non-blocking
// counterpart to QueryBlocking.
func (r *Resolver) Query(name string, qtype uint16, handler Handler) *Lookup {
	return r.sched.Query(name, qtype, handler)
}
