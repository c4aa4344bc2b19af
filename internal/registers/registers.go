// SPDX-FileCopyrightText: Copyright (c) 2026 the vmmcid authors
// SPDX-License-Identifier: Apache-2.0

// Package registers describes the vmmci device's configuration register
// layout and the codecs for the fields the guest reads and writes. All
// fields are little-endian, matching what vmd exposes to the guest.
package registers

import (
	"encoding/binary"
	"fmt"
)

// Field names a register in the vmmci configuration window.
type Field struct {
	Name   string
	Offset int
	Size   int
}

// Register layout of the vmmci configuration window.
var (
	// FieldCommand holds the pending host command as a signed 32-bit
	// integer. The guest writes the same value back to acknowledge.
	FieldCommand = Field{Name: "command", Offset: 0x00, Size: 4}

	// FieldTimeSec holds the host wall clock's seconds as a signed
	// 64-bit integer.
	FieldTimeSec = Field{Name: "time_sec", Offset: 0x04, Size: 8}

	// FieldTimeUSec holds the host wall clock's sub-second part in
	// microseconds as an unsigned 64-bit integer. vmd does not promise
	// the value is below one million.
	FieldTimeUSec = Field{Name: "time_usec", Offset: 0x0c, Size: 8}
)

// ConfigSize is the size of the configuration window in bytes.
const ConfigSize = 0x14

// Channel is the register interface supplied by the paravirtual
// transport. Get and Set carry no atomicity guarantee across fields;
// callers that need a coherent multi-field view must serialize access
// themselves.
type Channel interface {
	Get(f Field, buf []byte) error
	Set(f Field, buf []byte) error
}

// Command is a host-issued control command read from FieldCommand.
type Command int32

// Commands understood by the guest. Any other value is a protocol
// violation and must not trigger a privileged action.
const (
	CmdNone Command = iota
	CmdShutdown
	CmdReboot
	CmdSyncRTC
)

// Valid reports whether c is a command this guest understands.
func (c Command) Valid() bool {
	return c >= CmdNone && c <= CmdSyncRTC
}

// String returns the command name.
func (c Command) String() string {
	switch c {
	case CmdNone:
		return "none"
	case CmdShutdown:
		return "shutdown"
	case CmdReboot:
		return "reboot"
	case CmdSyncRTC:
		return "syncrtc"
	}

	return fmt.Sprintf("invalid(%d)", int32(c))
}

// Features is the set of optional behaviors negotiated with the host
// at attach time.
type Features uint64

// Feature bits advertised by vmd.
const (
	// FeatTimesync enables the periodic clock drift check.
	FeatTimesync Features = 1 << 0
	// FeatAck makes the guest write executed commands back to the
	// command register.
	FeatAck Features = 1 << 1
	// FeatSyncRTC allows the host to request a one-shot resync of the
	// system clock from the hardware clock.
	FeatSyncRTC Features = 1 << 2
)

// DriverFeatures is the set of features this guest implements.
const DriverFeatures = FeatTimesync | FeatAck | FeatSyncRTC

// Has reports whether all bits of x are present in f.
func (f Features) Has(x Features) bool {
	return f&x == x
}

// String lists the named feature bits present in f.
func (f Features) String() string {
	s := ""

	for _, b := range []struct {
		bit  Features
		name string
	}{
		{FeatTimesync, "TIMESYNC"},
		{FeatAck, "ACK"},
		{FeatSyncRTC, "SYNCRTC"},
	} {
		if f&b.bit != 0 {
			if s != "" {
				s += "|"
			}

			s += b.name
		}
	}

	if s == "" {
		return "none"
	}

	return s
}

// ReadCommand reads the current command register value.
func ReadCommand(ch Channel) (Command, error) {
	buf := make([]byte, FieldCommand.Size)
	if err := ch.Get(FieldCommand, buf); err != nil {
		return CmdNone, fmt.Errorf("error reading %s register: %w", FieldCommand.Name, err)
	}

	return Command(int32(binary.LittleEndian.Uint32(buf))), nil
}

// WriteCommand writes cmd to the command register. The host interprets
// a write of the command it issued as an acknowledgment.
func WriteCommand(ch Channel, cmd Command) error {
	buf := make([]byte, FieldCommand.Size)
	binary.LittleEndian.PutUint32(buf, uint32(int32(cmd)))

	if err := ch.Set(FieldCommand, buf); err != nil {
		return fmt.Errorf("error writing %s register: %w", FieldCommand.Name, err)
	}

	return nil
}

// ReadHostTime reads the host clock registers. The two fields are read
// independently; a host update between the reads yields a bounded,
// accepted error.
func ReadHostTime(ch Channel) (sec int64, usec uint64, err error) {
	buf := make([]byte, FieldTimeSec.Size)
	if err := ch.Get(FieldTimeSec, buf); err != nil {
		return 0, 0, fmt.Errorf("error reading %s register: %w", FieldTimeSec.Name, err)
	}

	sec = int64(binary.LittleEndian.Uint64(buf))

	buf = make([]byte, FieldTimeUSec.Size)
	if err := ch.Get(FieldTimeUSec, buf); err != nil {
		return 0, 0, fmt.Errorf("error reading %s register: %w", FieldTimeUSec.Name, err)
	}

	usec = binary.LittleEndian.Uint64(buf)

	return sec, usec, nil
}
