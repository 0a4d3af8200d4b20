// Copyright (c) e4s-cl-go authors. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

//go:build amd64

package trace

import "golang.org/x/sys/unix"

const (
	sysOpen   = unix.SYS_OPEN
	sysOpenat = unix.SYS_OPENAT
)

func syscallNumber(regs *unix.PtraceRegs) int64 { return int64(regs.Orig_rax) }

func syscallArg(regs *unix.PtraceRegs, n int) uint64 {
	switch n {
	case 0:
		return regs.Rdi
	case 1:
		return regs.Rsi
	case 2:
		return regs.Rdx
	default:
		return 0
	}
}
