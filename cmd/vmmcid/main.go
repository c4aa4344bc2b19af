// SPDX-FileCopyrightText: Copyright (c) 2026 the vmmcid authors
// SPDX-License-Identifier: Apache-2.0

// Package main is the main package invoking the daemon
package main

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vmd-guest/vmmcid/internal/util"
)

const (
	flagLogLevel = "log-level"
)

var rootCmd = &cobra.Command{
	Use:               "vmmcid",
	Short:             "guest tools for OpenBSD vmm/vmd hosts",
	Long:              "this tool keeps the guest clock in sync with an OpenBSD vmd host and handles host power requests",
	PersistentPreRunE: setup,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

var (
	logger    *slog.Logger
	ctx       context.Context
	ctxCancel context.CancelFunc
)

func parseLevel(s string) (slog.Level, error) {
	// slog does not support trace level logging by default, but is flexible
	if strings.ToUpper(s) == "TRACE" {
		return util.LogLevelTrace, nil
	}

	var level slog.Level

	err := level.UnmarshalText([]byte(s))

	return level, err
}

func setup(cmd *cobra.Command, _ []string) error {
	level, err := parseLevel(viper.GetString(flagLogLevel))
	if err != nil {
		panic("error parsing log level")
	}

	logOpts := &slog.HandlerOptions{
		Level: level,
	}

	logger = slog.New(slog.NewTextHandler(os.Stdout, logOpts)).With("command", cmd.Name())

	ctx = context.Background()
	ctx, ctxCancel = context.WithCancel(ctx) // nolint:fatcontext

	return nil
}

func init() {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(`-`, `_`))
	viper.SetEnvPrefix("vmmcid")

	pf := rootCmd.PersistentFlags()
	pf.String(flagLogLevel, "info", "log level (error, warning, info, debug, trace)")

	if err := viper.BindPFlags(pf); err != nil {
		panic(err)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}
