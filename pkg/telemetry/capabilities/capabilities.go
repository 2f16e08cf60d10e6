// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package capabilities checks the Linux capabilities of the current
// process. The latency sampler uses it to predict whether SCHED_FIFO
// elevation will succeed before attempting it.
package capabilities

// Capability represents a Linux capability
type Capability int

const (
	// CAP_SYS_NICE allows raising process priority and setting real-time
	// scheduling policies. Required for SCHED_FIFO elevation in the
	// latency sampler.
	CAP_SYS_NICE Capability = 23

	// CAP_SYS_ADMIN allows a range of system administration operations
	// and implies most privileged paths the collectors may touch.
	CAP_SYS_ADMIN Capability = 21
)

// String returns the string representation of the capability
func (c Capability) String() string {
	switch c {
	case CAP_SYS_NICE:
		return "CAP_SYS_NICE"
	case CAP_SYS_ADMIN:
		return "CAP_SYS_ADMIN"
	default:
		return "UNKNOWN"
	}
}

// SchedulingCapabilities returns the capabilities that allow real-time
// scheduling elevation. Either one is sufficient.
func SchedulingCapabilities() []Capability {
	return []Capability{CAP_SYS_NICE, CAP_SYS_ADMIN}
}
