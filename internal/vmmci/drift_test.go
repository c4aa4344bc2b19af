// SPDX-FileCopyrightText: Copyright (c) 2026 the vmmcid authors
// SPDX-License-Identifier: Apache-2.0

package vmmci

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmd-guest/vmmcid/internal/registers"
)

func TestHostTimeNormalization(t *testing.T) {
	tests := []struct {
		name string
		sec  int64
		usec uint64
		want time.Time
	}{
		{
			name: "already normalized",
			sec:  10,
			usec: 500000,
			want: time.Unix(10, 500000000),
		},
		{
			name: "microsecond overflow carries into seconds",
			sec:  10,
			usec: 1500000,
			want: time.Unix(11, 500000000),
		},
		{
			name: "zero host time",
			sec:  0,
			usec: 0,
			want: time.Unix(0, 0),
		},
		{
			name: "negative host seconds",
			sec:  -30,
			usec: 250000,
			want: time.Unix(-30, 250000000),
		},
		{
			name: "large overflow",
			sec:  100,
			usec: 5250000,
			want: time.Unix(105, 250000000),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := hostTime(tt.sec, tt.usec)
			assert.True(t, got.Equal(tt.want), "hostTime(%d, %d) = %v, want %v",
				tt.sec, tt.usec, got, tt.want)
		})
	}
}

func TestWholeSeconds(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want int64
	}{
		{0, 0},
		{5 * time.Second, 5},
		{5900 * time.Millisecond, 5},
		{6 * time.Second, 6},
		{-5900 * time.Millisecond, -5},
		{-6 * time.Second, -6},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, wholeSeconds(tt.d), "wholeSeconds(%v)", tt.d)
	}
}

func TestDriftCycleDeadBand(t *testing.T) {
	guestNow := time.Unix(1700000000, 0).UTC()

	tests := []struct {
		name     string
		drift    time.Duration
		wantStep bool
	}{
		{name: "no drift", drift: 0, wantStep: false},
		{name: "small positive drift", drift: 2 * time.Second, wantStep: false},
		{name: "at threshold", drift: 5 * time.Second, wantStep: false},
		{name: "below threshold by fraction", drift: 5900 * time.Millisecond, wantStep: false},
		{name: "just past threshold", drift: 6 * time.Second, wantStep: true},
		{name: "small negative drift", drift: -2 * time.Second, wantStep: false},
		{name: "negative at threshold", drift: -5 * time.Second, wantStep: false},
		{name: "negative past threshold", drift: -6 * time.Second, wantStep: true},
		{name: "host suspend gap", drift: 91 * time.Second, wantStep: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, registers.DriverFeatures)
			h.clk.now = guestNow

			host := guestNow.Add(tt.drift)
			h.ch.setHostTime(host.Unix(), uint64(host.Nanosecond()/1000))

			h.dev.runCycle()

			steps := h.clk.stepped()
			if !tt.wantStep {
				assert.Empty(t, steps, "no clock step expected for drift %v", tt.drift)

				return
			}

			require.Len(t, steps, 1, "exactly one clock step expected for drift %v", tt.drift)
			assert.True(t, steps[0].Equal(host), "step target = %v, want host time %v", steps[0], host)
		})
	}
}

func TestDriftCycleStepFailureIsRetriedNextCycle(t *testing.T) {
	h := newHarness(t, registers.DriverFeatures)

	host := h.clk.Now().Add(90 * time.Second)
	h.ch.setHostTime(host.Unix(), 0)

	h.clk.stepErr = errFake
	h.dev.runCycle()
	assert.Empty(t, h.clk.stepped())

	// Same drift condition holds on the next cycle; once the clock
	// recovers, the step goes through.
	h.clk.stepErr = nil
	h.dev.runCycle()
	require.Len(t, h.clk.stepped(), 1)
}

func TestDriftCycleReadFailureSkipsCycle(t *testing.T) {
	h := newHarness(t, registers.DriverFeatures)

	h.ch.setHostTime(h.clk.Now().Add(90*time.Second).Unix(), 0)
	h.ch.getErr = errFake

	h.dev.runCycle()

	assert.Empty(t, h.clk.stepped())
}

func TestDriftCycleUninitializedHostTime(t *testing.T) {
	// A zero (uninitialized) host register pair goes through the same
	// diff computation and, being far from guest time, steps the clock
	// to the epoch. No special-casing.
	h := newHarness(t, registers.DriverFeatures)
	h.ch.setHostTime(0, 0)

	h.dev.runCycle()

	steps := h.clk.stepped()
	require.Len(t, steps, 1)
	assert.True(t, steps[0].Equal(time.Unix(0, 0)))
}

func TestDriftCycleMicrosecondOverflowEndToEnd(t *testing.T) {
	// host_time = 10s + 1,500,000us must be read as 11.5s. With the
	// guest at 4s the drift is 7.5s and the step target is 11.5s.
	h := newHarness(t, registers.DriverFeatures)
	h.clk.now = time.Unix(4, 0).UTC()
	h.ch.setHostTime(10, 1500000)

	h.dev.runCycle()

	steps := h.clk.stepped()
	require.Len(t, steps, 1)
	assert.True(t, steps[0].Equal(time.Unix(11, 500000000)),
		"step target = %v, want 11.5s", steps[0])
}
