// SPDX-FileCopyrightText: Copyright (c) 2026 the vmmcid authors
// SPDX-License-Identifier: Apache-2.0

package capcheck

// see https://github.com/torvalds/linux/blob/v6.14/include/uapi/linux/capability.h
const (
	CapSysRawio = 17 // CAP_SYS_RAWIO, required to map device registers
	CapSysTime  = 25 // CAP_SYS_TIME, required to step the system clock
)
