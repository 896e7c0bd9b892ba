// Copyright © by Jeff Foley 2017-2025. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.
// SPDX-License-Identifier: Apache-2.0

package dnscore

import (
	"errors"
	"fmt"
)

var (
	errNoNameservers = errors.New("at least one nameserver is required")
	errNonPositive   = errors.New("must be greater than zero")
)

// RcodeNoResponse is returned on a Lookup that never received an answer,
// the way the teacher's xchg.go marks a dropped exchange.
const RcodeNoResponse = -1

// ConfigError reports a problem discovered while constructing a Scheduler.
// NewScheduler returns one for invalid Settings; it does not check Hosts.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("dnscore: invalid %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
