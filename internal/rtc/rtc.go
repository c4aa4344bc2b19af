// SPDX-FileCopyrightText: Copyright (c) 2026 the vmmcid authors
// SPDX-License-Identifier: Apache-2.0

// Package rtc provides the hardware-clock collaborator used by the
// SYNC_RTC command path. Under vmd the guest's RTC is an emulated
// mc146818 kept on host time, so reading it is equivalent to reading
// the host clock registers.
package rtc

import "time"

// Handle is an open hardware clock.
type Handle interface {
	// ReadTime reads the hardware clock. RTC resolution is one second.
	ReadTime() (time.Time, error)

	Close() error
}

// Opener opens the hardware clock device.
type Opener interface {
	Open() (Handle, error)
}
