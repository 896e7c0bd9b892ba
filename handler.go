// Copyright © by Jeff Foley 2017-2025. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.
// SPDX-License-Identifier: Apache-2.0

package dnscore

// Handler receives the terminal events of a Lookup. Exactly one of these
// methods fires per Lookup, and never more than once.
type Handler interface {
	// OnReceived delivers a successfully matched response, UDP or TCP.
	OnReceived(op *Lookup, resp *Response)
	// OnTimeout fires once a lookup's attempts are exhausted without a match.
	OnTimeout(op *Lookup)
	// OnCancelled fires when a lookup is cancelled before completion.
	OnCancelled(op *Lookup)
	// OnFailure is part of the external contract alongside the other three
	// terminal callbacks. No path in this package produces it: a TCP
	// upgrade failure is delivered best-effort through OnReceived with the
	// stashed truncated response instead.
	OnFailure(op *Lookup, rcode int)
}
