// SPDX-FileCopyrightText: Copyright (c) 2026 the vmmcid authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

// Package transport maps the vmmci register window into the process
// and delivers host config-change notifications. It assumes the device
// is already bound to a UIO driver; bus discovery is the platform's
// job, the daemon is handed the device node.
package transport

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sys/unix"

	"github.com/vmd-guest/vmmcid/internal/registers"
	"github.com/vmd-guest/vmmcid/internal/util"
)

// UIO is a register channel backed by a UIO device node. Reads and
// writes are plain memory accesses into the mapped window; interrupts
// surface as blocking reads on the device file.
type UIO struct {
	logger *slog.Logger
	f      *os.File
	mem    []byte
}

var _ registers.Channel = (*UIO)(nil)

// OpenUIO opens the UIO device at path and maps its first region.
func OpenUIO(logger *slog.Logger, path string) (*UIO, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("error opening uio device %q: %w", path, err)
	}

	// UIO maps whole pages; the config window sits at the start of
	// region 0.
	mem, err := unix.Mmap(int(f.Fd()), 0, unix.Getpagesize(),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close() //nolint:errcheck

		return nil, fmt.Errorf("error mapping uio region of %q: %w", path, err)
	}

	logger.Debug("mapped register window", "device", path, "size", len(mem))

	return &UIO{logger: logger, f: f, mem: mem}, nil
}

// Get copies the field's bytes out of the mapped window.
func (u *UIO) Get(field registers.Field, buf []byte) error {
	if err := u.check(field, buf); err != nil {
		return err
	}

	copy(buf, u.mem[field.Offset:field.Offset+field.Size])
	util.TraceLog(u.logger, "register read", "field", field.Name, "data", buf)

	return nil
}

// Set copies buf into the field's bytes in the mapped window.
func (u *UIO) Set(field registers.Field, buf []byte) error {
	if err := u.check(field, buf); err != nil {
		return err
	}

	copy(u.mem[field.Offset:field.Offset+field.Size], buf)
	util.TraceLog(u.logger, "register write", "field", field.Name, "data", buf)

	return nil
}

func (u *UIO) check(field registers.Field, buf []byte) error {
	if len(buf) != field.Size {
		return fmt.Errorf("buffer size %d does not match register %s size %d",
			len(buf), field.Name, field.Size)
	}

	if field.Offset+field.Size > len(u.mem) {
		return fmt.Errorf("register %s outside mapped window", field.Name)
	}

	return nil
}

// Notifications returns a stream that yields once per device interrupt,
// i.e. once per host config change. The stream closes when ctx is
// cancelled or the device file is closed. Pending notifications
// coalesce; the command value must be re-read from the register anyway.
func (u *UIO) Notifications(ctx context.Context) <-chan struct{} {
	out := make(chan struct{}, 1)

	go func() {
		defer close(out)

		enable := make([]byte, 4)
		count := make([]byte, 4)

		for {
			// Re-enable the interrupt, then block until the next one.
			binary.LittleEndian.PutUint32(enable, 1)

			if _, err := u.f.Write(enable); err != nil {
				u.logger.Warn("error enabling uio interrupt", "err", err)

				return
			}

			if _, err := u.f.Read(count); err != nil {
				u.logger.Debug("uio interrupt stream closed", "err", err)

				return
			}

			util.TraceLog(u.logger, "config change interrupt",
				"count", binary.LittleEndian.Uint32(count))

			select {
			case <-ctx.Done():
				return
			case out <- struct{}{}:
			default:
			}
		}
	}()

	return out
}

// Close unmaps the register window and closes the device, unblocking
// the notification stream.
func (u *UIO) Close() error {
	if u.mem != nil {
		if err := unix.Munmap(u.mem); err != nil {
			u.logger.Warn("error unmapping register window", "err", err)
		}

		u.mem = nil
	}

	return u.f.Close()
}
