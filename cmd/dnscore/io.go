// Copyright © by Jeff Foley 2017-2025. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/caffix/stringset"
	"github.com/miekg/dns"
)

var defaultResolvers = []string{
	"8.8.8.8",        // Google
	"1.1.1.1",        // Cloudflare
	"9.9.9.9",        // Quad9
	"208.67.222.222", // Cisco OpenDNS
}

// CommaSep implements the flag.Value interface for comma-separated lists.
type CommaSep []string

// String implements the fmt.Stringer interface.
func (c CommaSep) String() string {
	if len(c) == 0 {
		return ""
	}
	return strings.Join(c, ",")
}

// Set implements the flag.Value interface.
func (c *CommaSep) Set(s string) error {
	if s == "" {
		return fmt.Errorf("failed to parse the provided string: %s", s)
	}
	for _, part := range strings.Split(s, ",") {
		if part != "" {
			*c = append(*c, strings.TrimSpace(part))
		}
	}
	return nil
}

// inputDomainNames scans input for domain names, one per line, skipping
// anything already seen so a repeated name in stdin issues only one lookup.
func inputDomainNames(input io.Reader, requests chan<- string) {
	seen := stringset.New()
	defer seen.Close()

	_ = extractLines(input, func(str string) error {
		name := strings.ToLower(removeLastDot(str))
		if _, ok := dns.IsDomainName(name); !ok {
			return nil
		}
		if seen.Has(name) {
			return nil
		}
		seen.Insert(name)
		requests <- name
		return nil
	})
}

func extractLines(reader io.Reader, cb func(str string) error) error {
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		if err := cb(scanner.Text()); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func removeLastDot(name string) string {
	sz := len(name)
	if sz > 0 && name[sz-1] == '.' {
		return name[:sz-1]
	}
	return name
}

// stringsToQtypes resolves record-type mnemonics (e.g. "A", "MX") against
// the library's own dns.StringToType table rather than a hand-rolled switch.
func stringsToQtypes(strs []string) []uint16 {
	var qtypes []uint16
	for _, str := range strs {
		if qtype, ok := dns.StringToType[strings.ToUpper(str)]; ok {
			qtypes = append(qtypes, qtype)
		}
	}
	return qtypes
}
