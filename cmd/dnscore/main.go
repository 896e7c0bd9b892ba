// Copyright © by Jeff Foley 2017-2025. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.
// SPDX-License-Identifier: Apache-2.0

// Command dnscore reads domain names from stdin, one per line, and issues
// each one through a dnscore.Resolver, printing the resulting answers.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/netip"
	"os"
	"sync"
	"time"

	"github.com/lookupd/dnscore"
	"github.com/miekg/dns"
)

func main() {
	var qtypes CommaSep
	var nameservers CommaSep

	set := flag.NewFlagSet("dnscore", flag.ContinueOnError)
	set.Var(&nameservers, "r", "comma-separated nameservers to query (default: public resolvers)")
	set.Var(&qtypes, "t", "comma-separated query types, e.g. A,AAAA,MX (default: A)")
	timeout := set.Duration("timeout", 2*time.Second, "per-attempt timeout")
	attempts := set.Int("attempts", 3, "attempts per lookup before giving up")
	capacity := set.Int("c", 64, "max concurrent in-flight lookups")
	qps := set.Int("qps", 0, "queries per second ceiling (0 disables the limiter)")
	verbose := set.Bool("v", false, "log scheduler activity to stderr")
	if err := set.Parse(os.Args[1:]); err != nil {
		os.Exit(1)
	}

	servers := []string(nameservers)
	if len(servers) == 0 {
		servers = defaultResolvers
	}
	var addrs []netip.Addr
	for _, s := range servers {
		addr, err := netip.ParseAddr(s)
		if err != nil {
			fmt.Fprintf(os.Stderr, "skipping invalid nameserver %q: %v\n", s, err)
			continue
		}
		addrs = append(addrs, addr)
	}
	if len(addrs) == 0 {
		fmt.Fprintln(os.Stderr, "no valid nameservers provided")
		os.Exit(1)
	}

	types := stringsToQtypes([]string(qtypes))
	if len(types) == 0 {
		types = []uint16{dns.TypeA}
	}

	var logger *log.Logger
	if *verbose {
		logger = log.New(os.Stderr, "dnscore: ", log.LstdFlags)
	}

	settings := dnscore.DefaultSettings(dnscore.NameserversFromIPs(addrs...)...)
	settings.Timeout = *timeout
	settings.Attempts = *attempts
	settings.Capacity = *capacity
	settings.QPS = *qps

	resolver, err := dnscore.New(settings, dnscore.NewStaticHosts(), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start resolver: %v\n", err)
		os.Exit(1)
	}
	defer resolver.Stop()

	requests := make(chan string, 100)
	go func() {
		defer close(requests)
		inputDomainNames(os.Stdin, requests)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	for name := range requests {
		for _, qtype := range types {
			wg.Add(1)
			go func(name string, qtype uint16) {
				defer wg.Done()
				reportLookup(ctx, resolver, name, qtype)
			}(name, qtype)
		}
	}
	wg.Wait()
}

func reportLookup(ctx context.Context, resolver *dnscore.Resolver, name string, qtype uint16) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	msg, err := resolver.QueryBlocking(ctx, name, qtype)
	if err != nil {
		fmt.Printf("%s\t%s\tERROR: %v\n", name, dns.TypeToString[qtype], err)
		return
	}
	if msg.Rcode != dns.RcodeSuccess {
		fmt.Printf("%s\t%s\t%s\n", name, dns.TypeToString[qtype], dns.RcodeToString[msg.Rcode])
		return
	}
	for _, rr := range msg.Answer {
		fmt.Printf("%s\t%s\t%s\n", name, dns.TypeToString[qtype], rr.String())
	}
}
