// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

//go:build !linux

package latency

import (
	"time"

	"github.com/go-logr/logr"

	"github.com/antimetal/rtscope/pkg/telemetry/collectors"
)

// elevatePriority is a no-op off Linux; sampling proceeds unelevated so
// unit tests run on macOS and Windows.
func elevatePriority(priority int, logger logr.Logger) (restore func(), elevated bool) {
	logger.V(1).Info("priority elevation unsupported on this platform")
	return func() {}, false
}

func sleepFor(d time.Duration) {
	time.Sleep(d)
}

func sleepUntil(deadlineNs int64) {
	remaining := deadlineNs - collectors.MonotonicNow()
	if remaining > 0 {
		time.Sleep(time.Duration(remaining))
	}
}
