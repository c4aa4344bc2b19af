// SPDX-FileCopyrightText: Copyright (c) 2026 the vmmcid authors
// SPDX-License-Identifier: Apache-2.0

package vmmci

import (
	"time"

	"github.com/vmd-guest/vmmcid/internal/metrics"
	"github.com/vmd-guest/vmmcid/internal/registers"
	"github.com/vmd-guest/vmmcid/internal/util"
)

// runCycle measures the drift between the host clock registers and the
// guest wall clock and steps the guest clock when the drift leaves the
// dead band. Transient failures are logged and retried implicitly on
// the next cycle.
func (d *Device) runCycle() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ch == nil {
		return
	}

	util.TraceLog(d.logger, "measuring clock drift")

	sec, usec, err := registers.ReadHostTime(d.ch)
	if err != nil {
		d.logger.Warn("error reading host clock registers", "err", err)

		return
	}

	guest := d.clk.Now()
	host := hostTime(sec, usec)
	diff := host.Sub(guest)

	metrics.DriftCycles.Inc()
	metrics.ClockDrift.Set(diff.Seconds())

	util.TraceLog(d.logger, "clocks sampled",
		"host", host.UTC().Format(time.RFC3339Nano),
		"guest", guest.UTC().Format(time.RFC3339Nano),
		"drift", diff)

	// Dead-band controller: the expected drift source is a discrete
	// host suspend, not oscillator skew, so there is nothing to slew.
	if s := wholeSeconds(diff); s < -driftMaxSeconds || s > driftMaxSeconds {
		d.logger.Info("clock drift exceeds threshold, stepping clock",
			"drift", diff, "threshold_seconds", driftMaxSeconds)
		d.stepClock(host, "host clock")
	} else {
		d.logger.Debug("clock drift within threshold", "drift", diff)
	}
}

// stepClock steps the guest wall clock to target. It is shared by the
// drift corrector and the SYNC_RTC command path. Failure is non-fatal;
// the caller's trigger fires again while the condition persists.
func (d *Device) stepClock(target time.Time, source string) {
	if err := d.clk.Step(target); err != nil {
		d.logger.Warn("error stepping system clock", "source", source, "err", err)

		return
	}

	metrics.ClockSteps.Inc()
	d.logger.Info("set system clock", "source", source,
		"time", target.UTC().Format("2006-01-02 15:04:05 MST"))
}

// hostTime converts the host clock register pair to a time.Time. The
// microseconds field is normalized rather than trusted to be below one
// million; overflow carries into whole seconds.
func hostTime(sec int64, usec uint64) time.Time {
	sec += int64(usec / 1e6)
	rem := usec % 1e6

	return time.Unix(sec, int64(rem)*int64(time.Microsecond)).UTC()
}

// wholeSeconds truncates d to whole seconds toward zero, giving the
// symmetric dead-band comparison on second granularity.
func wholeSeconds(d time.Duration) int64 {
	return int64(d / time.Second)
}
