// SPDX-FileCopyrightText: Copyright (c) 2026 the vmmcid authors
// SPDX-License-Identifier: Apache-2.0

// Package version contains variables such as project name, tag and sha. It's a proper alternative to using
// -ldflags '-X ...'.
package version

import (
	_ "embed"
	"runtime/debug"
	"strings"
)

var (
	// Tag declares project git tag.
	//go:embed data/tag
	Tag string
	// SHA declares project git SHA.
	//go:embed data/sha
	SHA string
	// Name declares project name.
	Name = func() string {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			panic("cannot read build info, something is very wrong")
		}

		prefix := "github.com/vmd-guest/"
		if strings.HasPrefix(info.Path, prefix) {
			tail := info.Path[len(prefix):]

			before, _, found := strings.Cut(tail, "/")
			if found {
				return before
			}

			return tail
		}

		return "community-project"
	}()
)
