// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

//go:build linux

package capabilities

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// HasAnyCapability checks whether the current process holds at least one
// of the given capabilities in its effective set.
func HasAnyCapability(wanted []Capability) (bool, error) {
	if len(wanted) == 0 {
		return true, nil
	}

	current, err := getCurrentCapabilities()
	if err != nil {
		return false, fmt.Errorf("failed to get current capabilities: %w", err)
	}

	for _, cap := range wanted {
		if current[cap] {
			return true, nil
		}
	}
	return false, nil
}

// getCurrentCapabilities reads the effective capability mask from
// /proc/self/status.
func getCurrentCapabilities() (map[Capability]bool, error) {
	data, err := os.ReadFile("/proc/self/status")
	if err != nil {
		return nil, fmt.Errorf("failed to read /proc/self/status: %w", err)
	}

	caps := make(map[Capability]bool)
	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, "CapEff:") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) != 2 {
			continue
		}
		capValue, err := strconv.ParseUint(parts[1], 16, 64)
		if err != nil {
			continue
		}
		for _, cap := range []Capability{CAP_SYS_NICE, CAP_SYS_ADMIN} {
			if capValue&(1<<uint(cap)) != 0 {
				caps[cap] = true
			}
		}
		break
	}
	return caps, nil
}
