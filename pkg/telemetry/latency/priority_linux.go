// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

//go:build linux

package latency

import (
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sys/unix"
)

// elevatePriority switches the calling thread to SCHED_FIFO at the given
// priority via sched_setattr. It returns a restore function that puts the
// previous scheduling attributes back, and whether elevation took effect.
// The restore function is safe to call even when elevation failed.
//
// The caller must hold runtime.LockOSThread for the whole
// elevate-sample-restore span.
func elevatePriority(priority int, logger logr.Logger) (restore func(), elevated bool) {
	prev, err := unix.SchedGetAttr(0, 0)
	if err != nil {
		logger.V(1).Info("sched_getattr failed, skipping elevation", "error", err)
		return func() {}, false
	}

	attr := unix.SchedAttr{
		Size:     unix.SizeofSchedAttr,
		Policy:   unix.SCHED_FIFO,
		Priority: uint32(priority),
	}
	if err := unix.SchedSetAttr(0, &attr, 0); err != nil {
		// Typically EPERM without CAP_SYS_NICE. Recoverable: sampling
		// proceeds unelevated.
		logger.V(1).Info("sched_setattr failed", "priority", priority, "error", err)
		return func() {}, false
	}

	return func() {
		prev.Size = unix.SizeofSchedAttr
		if err := unix.SchedSetAttr(0, prev, 0); err != nil {
			logger.Error(err, "failed to restore scheduling attributes")
		}
	}, true
}

// sleepFor blocks for the given relative duration on CLOCK_MONOTONIC,
// resuming across signal interruptions with the remaining time.
func sleepFor(d time.Duration) {
	req := unix.NsecToTimespec(d.Nanoseconds())
	var rem unix.Timespec
	for {
		err := unix.ClockNanosleep(unix.CLOCK_MONOTONIC, 0, &req, &rem)
		if err != unix.EINTR {
			return
		}
		req = rem
	}
}

// sleepUntil blocks until the given CLOCK_MONOTONIC deadline in
// nanoseconds. The absolute form is immune to drift: an interrupted sleep
// retries the same deadline.
func sleepUntil(deadlineNs int64) {
	ts := unix.NsecToTimespec(deadlineNs)
	for {
		err := unix.ClockNanosleep(unix.CLOCK_MONOTONIC, unix.TIMER_ABSTIME, &ts, nil)
		if err != unix.EINTR {
			return
		}
	}
}
