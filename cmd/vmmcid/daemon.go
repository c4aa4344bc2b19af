// SPDX-FileCopyrightText: Copyright (c) 2026 the vmmcid authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vmd-guest/vmmcid/internal/capcheck"
	"github.com/vmd-guest/vmmcid/internal/clock"
	"github.com/vmd-guest/vmmcid/internal/power"
	"github.com/vmd-guest/vmmcid/internal/registers"
	"github.com/vmd-guest/vmmcid/internal/rtc"
	"github.com/vmd-guest/vmmcid/internal/transport"
	"github.com/vmd-guest/vmmcid/internal/version"
	"github.com/vmd-guest/vmmcid/internal/vmmci"
)

const (
	flagDevice       = "device"
	flagRTCDevice    = "rtc-device"
	flagMetricsAddr  = "metrics-addr"
	flagHostFeatures = "host-features"
	flagSkipCapCheck = "skip-capability-check"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "a daemon that responds to requests from an OpenBSD vmd host",
	Long:  "this daemon watches the vmm control interface for clock drift and host power requests",
	RunE:  daemon,
}

var errDaemonStartFailed = errors.New("error starting vmmci daemon")

func init() {
	pf := daemonCmd.PersistentFlags()
	pf.String(flagDevice, "/dev/uio0", "uio device node the vmmci registers are bound to")
	pf.String(flagRTCDevice, rtc.DefaultDevice, "rtc device node for SYNC_RTC")
	pf.String(flagMetricsAddr, "", "listen address for prometheus metrics (disabled when empty)")
	pf.Uint64(flagHostFeatures, uint64(registers.DriverFeatures),
		"feature bits advertised by the host (TIMESYNC=1, ACK=2, SYNCRTC=4)")
	pf.Bool(flagSkipCapCheck, false, "skip the CAP_SYS_TIME capability check")

	if err := viper.BindPFlags(pf); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(daemonCmd)
}

func daemon(_ *cobra.Command, _ []string) error {
	// Stepping the system clock requires CAP_SYS_TIME; failing at the
	// first drift correction ten seconds in is a worse experience than
	// failing at startup.
	if !viper.GetBool(flagSkipCapCheck) {
		hascap, err := capcheck.HasCapability(capcheck.CapSysTime)
		if err != nil {
			logger.Error("error checking capabilities", "err", err)

			return err
		}

		if !hascap {
			logger.Error("we lack CAP_SYS_TIME and cannot step the system clock")

			return fmt.Errorf("lacking capabilities")
		}
	} else {
		logger.Info("skipping capability check")
	}

	ch, err := transport.OpenUIO(logger.With("module", "transport"), viper.GetString(flagDevice))
	if err != nil {
		logger.Error("error opening register channel", "err", err)

		return errDaemonStartFailed
	}
	defer ch.Close() //nolint:errcheck

	dev := vmmci.NewDevice(logger.With("module", "vmmci"), vmmci.Config{
		Channel:      ch,
		Clock:        &clock.System{},
		Power:        power.NewLocal(logger.With("module", "power")),
		RTC:          rtc.Device{Path: viper.GetString(flagRTCDevice)},
		HostFeatures: registers.Features(viper.GetUint64(flagHostFeatures)),
	})

	if err := dev.Attach(); err != nil {
		logger.Error("error attaching device", "err", err)

		return errDaemonStartFailed
	}

	logger.Info(fmt.Sprintf("started %s, the VMM control interface daemon", version.Name),
		"version", version.Tag)

	if addr := viper.GetString(flagMetricsAddr); addr != "" {
		go serveMetrics(addr)
	}

	// Host notifications dispatch commands independently of the
	// periodic drift task.
	go func() {
		for range ch.Notifications(ctx) {
			dev.HandleConfigChange()
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	logger.Debug("signal received", "signal", <-sig)
	ctxCancel()
	dev.Detach()

	logger.Info("graceful shutdown done, fair winds!")

	return nil
}

func serveMetrics(addr string) {
	http.Handle("/metrics", promhttp.Handler())

	if err := http.ListenAndServe(addr, nil); err != nil { //nolint:gosec
		logger.Error("error serving metrics", "err", err)
	}
}
