// SPDX-FileCopyrightText: Copyright (c) 2026 the vmmcid authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package clock

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// System is the Linux system clock (CLOCK_REALTIME).
type System struct{}

var _ Clock = (*System)(nil)

// Now returns the current system time.
func (c *System) Now() time.Time {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_REALTIME, &ts); err != nil {
		// CLOCK_REALTIME is always readable; an error here means the
		// process environment is broken beyond recovery.
		panic(fmt.Sprintf("unix.ClockGettime failed: %v", err))
	}

	return time.Unix(ts.Unix()).UTC()
}

// Step sets the system clock to t. settimeofday steps the clock and
// fires pending timers, like OpenBSD's tc_setclock.
func (c *System) Step(t time.Time) error {
	tv := unix.NsecToTimeval(t.UnixNano())
	if err := unix.Settimeofday(&tv); err != nil {
		return fmt.Errorf("error setting system clock: %w", err)
	}

	return nil
}
