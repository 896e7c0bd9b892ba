// Copyright © by Jeff Foley 2017-2025. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.
// SPDX-License-Identifier: Apache-2.0

package dnscore

import "testing"

func TestLookupQueuePushPopFront(t *testing.T) {
	q := newLookupQueue()
	a, b, c := &Lookup{}, &Lookup{}, &Lookup{}

	q.push(a)
	q.push(b)
	q.push(c)
	if q.len() != 3 {
		t.Fatalf("expected len 3, got %d", q.len())
	}

	if got := q.popFront(); got != a {
		t.Fatalf("expected a first, got %v", got)
	}
	if got := q.popFront(); got != b {
		t.Fatalf("expected b second, got %v", got)
	}
	if a.position != nil || b.position != nil {
		t.Fatalf("popped elements must clear their position handle")
	}
	if q.len() != 1 {
		t.Fatalf("expected len 1, got %d", q.len())
	}
}

func TestLookupQueueHandleRemoval(t *testing.T) {
	q := newLookupQueue()
	a, b, c := &Lookup{}, &Lookup{}, &Lookup{}
	q.push(a)
	q.push(b)
	q.push(c)

	if wasFront := q.pop(b); wasFront {
		t.Fatalf("b was not the front element")
	}
	if q.len() != 2 {
		t.Fatalf("expected len 2 after removing interior element, got %d", q.len())
	}
	if got := q.popFront(); got != a {
		t.Fatalf("expected a still at front, got %v", got)
	}
	if got := q.popFront(); got != c {
		t.Fatalf("expected c remaining after b was removed, got %v", got)
	}
}

func TestLookupQueuePopNotMember(t *testing.T) {
	q := newLookupQueue()
	stray := &Lookup{}
	if q.pop(stray) {
		t.Fatalf("pop of a lookup never pushed must report false")
	}
}

func TestLookupQueueEmptyFront(t *testing.T) {
	q := newLookupQueue()
	if !q.empty() {
		t.Fatalf("new queue must be empty")
	}
	if q.front() != nil {
		t.Fatalf("front of an empty queue must be nil")
	}
	if q.popFront() != nil {
		t.Fatalf("popFront of an empty queue must be nil")
	}
}
