// SPDX-FileCopyrightText: Copyright (c) 2026 the vmmcid authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics defines the daemon's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	clockDriftH = "The clock drift between host and guest measured by the last cycle, in seconds"
	clockDriftN = "vmmcid_clock_drift_seconds"

	clockStepsH = "The total number of times the system clock was stepped"
	clockStepsN = "vmmcid_clock_steps_total"

	driftCyclesH = "The total number of drift measurement cycles run"
	driftCyclesN = "vmmcid_drift_cycles_total"

	hostCommandsH = "The total number of recognized host commands dispatched"
	hostCommandsN = "vmmcid_host_commands_total"

	invalidCommandsH = "The total number of unrecognized host command codes received"
	invalidCommandsN = "vmmcid_invalid_commands_total"

	commandAcksH = "The total number of command acknowledgments written back to the host"
	commandAcksN = "vmmcid_command_acks_total"
)

var (
	// ClockDrift is the host-minus-guest offset observed by the last
	// drift cycle.
	ClockDrift = promauto.NewGauge(prometheus.GaugeOpts{
		Name: clockDriftN,
		Help: clockDriftH,
	})

	// ClockSteps counts clock steps from both the drift corrector and
	// the SYNC_RTC path.
	ClockSteps = promauto.NewCounter(prometheus.CounterOpts{
		Name: clockStepsN,
		Help: clockStepsH,
	})

	// DriftCycles counts completed drift measurement cycles.
	DriftCycles = promauto.NewCounter(prometheus.CounterOpts{
		Name: driftCyclesN,
		Help: driftCyclesH,
	})

	// HostCommands counts dispatched commands by name.
	HostCommands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: hostCommandsN,
		Help: hostCommandsH,
	}, []string{"command"})

	// InvalidCommands counts protocol violations by the host.
	InvalidCommands = promauto.NewCounter(prometheus.CounterOpts{
		Name: invalidCommandsN,
		Help: invalidCommandsH,
	})

	// CommandAcks counts acknowledgment writes.
	CommandAcks = promauto.NewCounter(prometheus.CounterOpts{
		Name: commandAcksN,
		Help: commandAcksH,
	})
)
