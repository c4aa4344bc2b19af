// SPDX-FileCopyrightText: Copyright (c) 2026 the vmmcid authors
// SPDX-License-Identifier: Apache-2.0

// Package vmmci implements the guest side of the OpenBSD vmd VMM
// control interface: a periodic clock drift corrector and a dispatcher
// for host-issued control commands, both sharing one register channel.
package vmmci

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/vmd-guest/vmmcid/internal/clock"
	"github.com/vmd-guest/vmmcid/internal/power"
	"github.com/vmd-guest/vmmcid/internal/registers"
	"github.com/vmd-guest/vmmcid/internal/rtc"
)

const (
	// initialSyncDelay is the delay before the first drift check after
	// attach, kept short to surface drift quickly after load.
	initialSyncDelay = 1 * time.Second

	// syncInterval is the steady-state delay between drift checks.
	syncInterval = 10 * time.Second

	// driftMaxSeconds is the dead band of the drift corrector: the
	// clock is stepped only when the whole-second drift magnitude
	// exceeds this value.
	driftMaxSeconds int64 = 5
)

var (
	// ErrAlreadyAttached is returned by Attach on an attached device.
	ErrAlreadyAttached = errors.New("device already attached")

	// ErrChannelReleased is returned by Attach after the register
	// channel reference has been released by a detach.
	ErrChannelReleased = errors.New("register channel released")
)

// Config carries the collaborators of a Device.
type Config struct {
	// Channel is the register interface of the vmmci device.
	Channel registers.Channel

	// Clock is the guest wall clock.
	Clock clock.Clock

	// Power executes host-requested power state changes.
	Power power.Delegate

	// RTC opens the hardware clock for the SYNC_RTC path.
	RTC rtc.Opener

	// HostFeatures is the feature set advertised by the host. The
	// active capability set is the intersection with DriverFeatures.
	HostFeatures registers.Features
}

// Device is one attached vmmci device instance. All register channel
// access is serialized by a single mutex so the drift corrector and
// the command dispatcher never interleave multi-field transactions.
type Device struct {
	logger *slog.Logger

	mu    sync.Mutex
	ch    registers.Channel
	clk   clock.Clock
	power power.Delegate
	rtc   rtc.Opener

	hostFeatures registers.Features
	caps         registers.Features

	attached bool
	stop     chan struct{}
	wg       sync.WaitGroup

	// delays of the periodic task, fixed except under test
	initialDelay time.Duration
	interval     time.Duration
}

// NewDevice creates a Device from cfg. The device starts unattached.
func NewDevice(logger *slog.Logger, cfg Config) *Device {
	return &Device{
		logger:       logger,
		ch:           cfg.Channel,
		clk:          cfg.Clock,
		power:        cfg.Power,
		rtc:          cfg.RTC,
		hostFeatures: cfg.HostFeatures,
		initialDelay: initialSyncDelay,
		interval:     syncInterval,
	}
}

// Capabilities returns the negotiated capability set. It is immutable
// for the lifetime of the attachment.
func (d *Device) Capabilities() registers.Features {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.caps
}

// Attach negotiates capabilities with the host and starts the periodic
// drift check when TIMESYNC is active. It leaves no partial state
// behind on failure.
func (d *Device) Attach() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.attached {
		return ErrAlreadyAttached
	}

	if d.ch == nil {
		return ErrChannelReleased
	}

	// A capability is active only if both sides support it.
	d.caps = d.hostFeatures & registers.DriverFeatures
	d.stop = make(chan struct{})
	d.attached = true

	d.logger.Info("attached vmm control interface",
		"host_features", d.hostFeatures.String(),
		"capabilities", d.caps.String())

	if d.caps.Has(registers.FeatTimesync) {
		d.wg.Add(1)

		go d.timesyncLoop()
	}

	return nil
}

// Detach cancels the periodic drift check, waits for any in-flight
// cycle to drain, and only then releases the register channel
// reference. No register access happens after Detach returns. Detach
// of an unattached device is a no-op.
func (d *Device) Detach() {
	d.mu.Lock()

	if !d.attached {
		d.mu.Unlock()

		return
	}

	d.attached = false
	close(d.stop)
	d.mu.Unlock()

	// Drain outside the lock: an in-flight cycle holds d.mu while it
	// touches the channel.
	d.wg.Wait()

	d.mu.Lock()
	d.ch = nil
	d.mu.Unlock()

	d.logger.Info("detached vmm control interface")
}

// Suspend is a no-op: the next drift cycle corrects any drift
// accumulated while suspended.
func (d *Device) Suspend() {
	d.logger.Debug("suspend: no action required")
}

// Resume is a no-op, see Suspend.
func (d *Device) Resume() {
	d.logger.Debug("resume: no action required")
}

// timesyncLoop runs drift cycles until Detach closes the stop channel.
func (d *Device) timesyncLoop() {
	defer d.wg.Done()

	delay := d.initialDelay

	for {
		select {
		case <-d.stop:
			return
		case <-time.After(delay):
			// The stop channel may have been closed while the timer
			// was also ready; no cycle may begin once a detach has
			// started draining.
			select {
			case <-d.stop:
				return
			default:
			}

			d.runCycle()

			delay = d.interval
		}
	}
}
