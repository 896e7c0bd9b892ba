// Copyright © by Jeff Foley 2017-2025. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.
// SPDX-License-Identifier: Apache-2.0

package dnscore

// Watcher is a scoped probe that registers with a Scheduler at construction
// time and detects whether that Scheduler was destroyed by the time the
// caller checks valid() again. It guards Scheduler.Expire against a user
// callback that closes the whole resolver context mid-tick.
type Watcher struct {
	destroyed *bool
}

// newWatcher binds a Watcher to the Scheduler's own destroyed flag, an
// externally owned bit rather than a weak reference (Go has none), per the
// design note in spec.md §9.
func newWatcher(s *Scheduler) Watcher {
	return Watcher{destroyed: &s.destroyed}
}

// valid reports whether the bound Scheduler is still alive.
func (w Watcher) valid() bool {
	return !*w.destroyed
}
