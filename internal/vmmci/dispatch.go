// SPDX-FileCopyrightText: Copyright (c) 2026 the vmmcid authors
// SPDX-License-Identifier: Apache-2.0

package vmmci

import (
	"time"

	"github.com/vmd-guest/vmmcid/internal/metrics"
	"github.com/vmd-guest/vmmcid/internal/registers"
	"github.com/vmd-guest/vmmcid/internal/util"
)

// HandleConfigChange dispatches a host notification. The notification
// carries no payload, so the command is re-read from the register. It
// is safe to call concurrently with the drift corrector; both paths
// serialize on the device mutex. Notifications arriving after detach
// are dropped.
func (d *Device) HandleConfigChange() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.attached || d.ch == nil {
		d.logger.Debug("dropping notification on unattached device")

		return
	}

	cmd, err := registers.ReadCommand(d.ch)
	if err != nil {
		d.logger.Warn("error reading command register", "err", err)

		return
	}

	switch cmd {
	case registers.CmdNone:
		util.TraceLog(d.logger, "command register empty")

	case registers.CmdShutdown:
		d.logger.Info("shutdown requested by host")

		if err := d.power.Shutdown(); err != nil {
			d.logger.Warn("error requesting shutdown", "err", err)
		}

	case registers.CmdReboot:
		d.logger.Info("reboot requested by host")

		if err := d.power.Reboot(); err != nil {
			d.logger.Warn("error requesting reboot", "err", err)
		}

	case registers.CmdSyncRTC:
		d.logger.Debug("clock sync requested by host")
		d.syncRTC()

	default:
		// The only branch indicating a protocol violation by the host.
		d.logger.Error("invalid command received", "command", int32(cmd))
		metrics.InvalidCommands.Inc()

		return
	}

	metrics.HostCommands.WithLabelValues(cmd.String()).Inc()

	// Acknowledge after the action: the host treats the write as
	// "guest has observed and acted on the command".
	if cmd != registers.CmdNone && d.caps.Has(registers.FeatAck) {
		if err := registers.WriteCommand(d.ch, cmd); err != nil {
			d.logger.Warn("error acknowledging command", "command", cmd.String(), "err", err)

			return
		}

		metrics.CommandAcks.Inc()
		d.logger.Debug("acknowledged command", "command", cmd.String())
	}
}

// syncRTC performs the one-shot hardware-clock-to-system-clock
// synchronization, the same process the kernel runs at startup in
// hctosys. Every failure skips the command without detaching.
func (d *Device) syncRTC() {
	if !d.caps.Has(registers.FeatSyncRTC) {
		d.logger.Warn("rtc sync requested but SYNCRTC was not negotiated")

		return
	}

	h, err := d.rtc.Open()
	if err != nil {
		d.logger.Warn("rtc device unavailable", "err", err)

		return
	}
	defer h.Close() //nolint:errcheck

	t, err := h.ReadTime()
	if err != nil {
		d.logger.Warn("error reading hardware clock", "err", err)

		return
	}

	// The RTC ticks in whole seconds; aim for the middle of the
	// current second like hctosys does.
	d.stepClock(t.Add(time.Second/2), "rtc")
}
