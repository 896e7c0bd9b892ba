// Copyright © by Jeff Foley 2017-2025. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.
// SPDX-License-Identifier: Apache-2.0

package dnscore

import (
	"net/netip"
	"time"
)

// Default tuning values used when Settings omits a field, mirrored from the
// source library's own constants (xchg.go's DefaultTimeout among them).
const (
	DefaultTimeout    = 3 * time.Second
	DefaultAttempts   = 3
	DefaultCapacity   = 100
	DefaultBufferSize = 64 * 1024
)

// Settings stands in for a parsed /etc/resolv.conf record: the narrow
// collaborator this module consumes rather than builds. Callers construct
// one directly or via DefaultSettings and customize it.
type Settings struct {
	// Nameservers is the ordered list of upstream resolver addresses, each
	// carrying its own port (conventionally 53, but not fixed — e.g. a
	// forwarder or a test fixture may listen elsewhere).
	Nameservers []netip.AddrPort
	// Timeout is the time after the last send before a lookup times out.
	Timeout time.Duration
	// Interval mirrors Timeout (DefaultSettings sets both to the same
	// value); the Scheduler times out and retries on Timeout alone and does
	// not read Interval.
	Interval time.Duration
	// Attempts is the maximum number of UDP sends per lookup.
	Attempts int
	// Capacity is the maximum number of lookups in flight at once.
	Capacity int
	// Rotate adds a per-lookup random offset to nameserver selection.
	Rotate bool
	// BufferSize is the per-socket send/receive buffer size, in bytes.
	BufferSize int
	// QPS optionally caps newly started lookups per second; zero means
	// unlimited.
	QPS int
}

// DefaultPort is the conventional DNS server port assumed by NameserversFromIPs.
const DefaultPort = 53

// DefaultSettings returns a Settings using the source library's defaults,
// with the given nameservers.
func DefaultSettings(nameservers ...netip.AddrPort) *Settings {
	return &Settings{
		Nameservers: nameservers,
		Timeout:     DefaultTimeout,
		Interval:    DefaultTimeout,
		Attempts:    DefaultAttempts,
		Capacity:    DefaultCapacity,
		BufferSize:  DefaultBufferSize,
	}
}

// NameserversFromIPs builds a Nameservers list from bare IPs, assuming
// DefaultPort for each — the common case for callers who don't need a
// non-standard resolver port.
func NameserversFromIPs(ips ...netip.Addr) []netip.AddrPort {
	ns := make([]netip.AddrPort, len(ips))
	for i, ip := range ips {
		ns[i] = netip.AddrPortFrom(ip, DefaultPort)
	}
	return ns
}

// Validate reports whether the settings are usable, surfaced as a
// ConfigError from NewScheduler rather than a panic.
func (s *Settings) Validate() error {
	if len(s.Nameservers) == 0 {
		return &ConfigError{Field: "nameservers", Err: errNoNameservers}
	}
	if s.Attempts <= 0 {
		return &ConfigError{Field: "attempts", Err: errNonPositive}
	}
	if s.Capacity <= 0 {
		return &ConfigError{Field: "capacity", Err: errNonPositive}
	}
	if s.Timeout <= 0 {
		return &ConfigError{Field: "timeout", Err: errNonPositive}
	}
	return nil
}
