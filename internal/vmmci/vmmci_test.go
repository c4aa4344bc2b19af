// SPDX-FileCopyrightText: Copyright (c) 2026 the vmmcid authors
// SPDX-License-Identifier: Apache-2.0

package vmmci

import (
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/vmd-guest/vmmcid/internal/registers"
	"github.com/vmd-guest/vmmcid/internal/rtc"
)

// recorder collects an ordered trace of observable side effects so
// tests can assert ordering (e.g. action before acknowledgment).
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(ev string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, ev)
}

func (r *recorder) trace() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.events...)
}

// fakeChannel is an in-memory register window.
type fakeChannel struct {
	mu     sync.Mutex
	mem    [registers.ConfigSize]byte
	rec    *recorder
	getErr error
	setErr error

	// gate, when non-nil, blocks Get until released and signals entry
	// via entered.
	gate    chan struct{}
	entered chan struct{}

	reads  int
	writes int
}

func newFakeChannel(rec *recorder) *fakeChannel {
	return &fakeChannel{rec: rec}
}

func (c *fakeChannel) Get(f registers.Field, buf []byte) error {
	if c.entered != nil {
		select {
		case c.entered <- struct{}{}:
		default:
		}
	}

	if c.gate != nil {
		<-c.gate
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.reads++

	if c.getErr != nil {
		return c.getErr
	}

	copy(buf, c.mem[f.Offset:f.Offset+f.Size])

	return nil
}

func (c *fakeChannel) Set(f registers.Field, buf []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.writes++

	if c.setErr != nil {
		return c.setErr
	}

	copy(c.mem[f.Offset:f.Offset+f.Size], buf)

	if c.rec != nil && f == registers.FieldCommand {
		cmd := registers.Command(int32(binary.LittleEndian.Uint32(buf)))
		c.rec.add("ack:" + cmd.String())
	}

	return nil
}

func (c *fakeChannel) setCommand(cmd registers.Command) {
	c.mu.Lock()
	defer c.mu.Unlock()

	binary.LittleEndian.PutUint32(c.mem[registers.FieldCommand.Offset:], uint32(int32(cmd)))
}

func (c *fakeChannel) setHostTime(sec int64, usec uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	binary.LittleEndian.PutUint64(c.mem[registers.FieldTimeSec.Offset:], uint64(sec))
	binary.LittleEndian.PutUint64(c.mem[registers.FieldTimeUSec.Offset:], usec)
}

func (c *fakeChannel) accesses() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.reads + c.writes
}

func (c *fakeChannel) ackCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.writes
}

// fakeClock is a settable wall clock.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	stepErr error
	steps   []time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Step(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stepErr != nil {
		return c.stepErr
	}

	c.steps = append(c.steps, t)
	c.now = t

	return nil
}

func (c *fakeClock) stepped() []time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]time.Time(nil), c.steps...)
}

// fakePower records power operations.
type fakePower struct {
	rec       *recorder
	err       error
	shutdowns int
	reboots   int
	mu        sync.Mutex
}

func (p *fakePower) Shutdown() error {
	p.mu.Lock()
	p.shutdowns++
	p.mu.Unlock()

	if p.rec != nil {
		p.rec.add("shutdown")
	}

	return p.err
}

func (p *fakePower) Reboot() error {
	p.mu.Lock()
	p.reboots++
	p.mu.Unlock()

	if p.rec != nil {
		p.rec.add("reboot")
	}

	return p.err
}

// fakeRTC is both the opener and the handle.
type fakeRTC struct {
	openErr error
	readErr error
	t       time.Time
	opens   int
	closes  int
}

func (r *fakeRTC) Open() (rtc.Handle, error) {
	if r.openErr != nil {
		return nil, r.openErr
	}

	r.opens++

	return r, nil
}

func (r *fakeRTC) ReadTime() (time.Time, error) {
	if r.readErr != nil {
		return time.Time{}, r.readErr
	}

	return r.t, nil
}

func (r *fakeRTC) Close() error {
	r.closes++

	return nil
}

var errFake = errors.New("fake failure")

type harness struct {
	rec   *recorder
	ch    *fakeChannel
	clk   *fakeClock
	power *fakePower
	rtc   *fakeRTC
	dev   *Device
}

func newHarness(t *testing.T, hostFeatures registers.Features) *harness {
	t.Helper()

	rec := &recorder{}
	h := &harness{
		rec:   rec,
		ch:    newFakeChannel(rec),
		clk:   &fakeClock{now: time.Unix(1700000000, 0).UTC()},
		power: &fakePower{rec: rec},
		rtc:   &fakeRTC{t: time.Unix(1700000100, 0).UTC()},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h.dev = NewDevice(logger, Config{
		Channel:      h.ch,
		Clock:        h.clk,
		Power:        h.power,
		RTC:          h.rtc,
		HostFeatures: hostFeatures,
	})

	return h
}
