// SPDX-FileCopyrightText: Copyright (c) 2026 the vmmcid authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package rtc

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// DefaultDevice is the RTC character device most guests expose.
const DefaultDevice = "/dev/rtc"

// Device opens the RTC character device at Path.
type Device struct {
	Path string
}

var _ Opener = Device{}

// Open opens the RTC device.
func (d Device) Open() (Handle, error) {
	path := d.Path
	if path == "" {
		path = DefaultDevice
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening rtc device %q: %w", path, err)
	}

	return &deviceHandle{f: f}, nil
}

type deviceHandle struct {
	f *os.File
}

func (h *deviceHandle) ReadTime() (time.Time, error) {
	rt, err := unix.IoctlGetRTCTime(int(h.f.Fd()))
	if err != nil {
		return time.Time{}, fmt.Errorf("error reading rtc time: %w", err)
	}

	t := time.Date(int(rt.Year)+1900, time.Month(rt.Mon+1), int(rt.Mday),
		int(rt.Hour), int(rt.Min), int(rt.Sec), 0, time.UTC)

	return t, nil
}

func (h *deviceHandle) Close() error {
	return h.f.Close()
}
