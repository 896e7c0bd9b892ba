// Copyright © by Jeff Foley 2017-2025. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.
// SPDX-License-Identifier: Apache-2.0

package dnscore

import (
	"net"
	"time"

	"github.com/lookupd/dnscore/eventloop"
)

// Monitor is the callback sink an event loop drives: Notify on socket
// readability, Expire on timer fire. Scheduler implements Monitor. It is
// an alias of eventloop.Monitor so the default eventloop.Loop
// implementation can satisfy the Loop interface below without eventloop
// importing this package back (which would be an import cycle).
type Monitor = eventloop.Monitor

// Loop is the external event-loop collaborator this module consumes
// rather than implements, per spec.md §1/§6 — a thin abstraction over
// "add this fd, tell me when it's readable" plus a one-shot timer. Add
// takes a net.PacketConn rather than a raw file descriptor since Go has no
// portable first-class pollable fd value; the default implementation in
// the eventloop subpackage spawns one reader goroutine per added
// connection and serializes its readability signal onto a single
// dispatch channel.
type Loop interface {
	Add(conn net.PacketConn, monitor Monitor) (id int)
	Remove(id int, conn net.PacketConn, monitor Monitor)
	Timer(delay time.Duration, monitor Monitor) (id int)
	Cancel(id int, monitor Monitor)
}
