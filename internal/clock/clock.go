// SPDX-FileCopyrightText: Copyright (c) 2026 the vmmcid authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the guest wall-clock collaborator.
package clock

import "time"

// Clock reads and steps the guest wall clock.
type Clock interface {
	// Now returns the current guest wall-clock time.
	Now() time.Time

	// Step sets the guest wall clock to t, firing any timers and
	// alarms pending between the old and new time.
	Step(t time.Time) error
}
