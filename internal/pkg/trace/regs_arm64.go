// Copyright (c) e4s-cl-go authors. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

//go:build arm64

package trace

import "golang.org/x/sys/unix"

// arm64 has no open(2) syscall, only openat(2); sysOpen is left at -1 so
// the switch in Trace never matches it.
const (
	sysOpen   = -1
	sysOpenat = unix.SYS_OPENAT
)

func syscallNumber(regs *unix.PtraceRegs) int64 { return int64(regs.Regs[8]) }

func syscallArg(regs *unix.PtraceRegs, n int) uint64 {
	if n < 0 || n > 5 {
		return 0
	}
	return regs.Regs[n]
}
