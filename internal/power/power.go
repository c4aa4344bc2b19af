// SPDX-FileCopyrightText: Copyright (c) 2026 the vmmcid authors
// SPDX-License-Identifier: Apache-2.0

// Package power executes host-requested power state changes in the
// guest operating system.
package power

import (
	"fmt"
	"log/slog"
	"os/exec"
)

// Delegate is the interface the command dispatcher drives for power
// operations. Both operations are orderly: in-flight I/O completes and
// filesystems unmount cleanly before the state change.
type Delegate interface {
	Shutdown() error
	Reboot() error
}

// Local performs power operations on the local guest by invoking the
// init system's shutdown command.
type Local struct {
	logger *slog.Logger
}

var _ Delegate = (*Local)(nil)

// NewLocal creates a Local power delegate.
func NewLocal(logger *slog.Logger) *Local {
	return &Local{logger: logger}
}

// Shutdown requests an orderly guest power-off.
func (l *Local) Shutdown() error {
	return l.run("-h")
}

// Reboot requests an orderly guest restart.
func (l *Local) Reboot() error {
	return l.run("-r")
}

func (l *Local) run(flag string) error {
	cmd := exec.Command("shutdown", flag, "now")

	out, err := cmd.CombinedOutput()
	if err != nil {
		l.logger.Error("shutdown command failed", "flag", flag, "output", string(out), "err", err)

		return fmt.Errorf("error running shutdown %s: %w", flag, err)
	}

	l.logger.Debug("shutdown command issued", "flag", flag)

	return nil
}
