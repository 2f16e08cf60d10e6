// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

//go:build !linux

package collectors

import "time"

var processStart = time.Now()

// MonotonicNow returns a monotonic nanosecond reading. The non-Linux
// fallback measures from process start; it exists so unit tests run on
// macOS and Windows. The +1 keeps the very first reading away from the
// sentinel value 0.
func MonotonicNow() int64 {
	return time.Since(processStart).Nanoseconds() + 1
}
