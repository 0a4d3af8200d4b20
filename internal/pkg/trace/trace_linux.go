// Copyright (c) e4s-cl-go authors. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package trace runs a command under ptrace and records every path it
// passes to open(2)/openat(2), the low-level half of dependency discovery.
package trace

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/e4s-cl/e4s-cl-go/pkg/sylog"
)

// Tracer is the seam between dependency discovery and the underlying
// tracing mechanism; a seccomp-notify or eBPF backend could implement it
// for environments where ptrace itself is unavailable (nested containers,
// hardened kernels), but only the ptrace implementation ships here.
type Tracer interface {
	Trace(ctx context.Context, argv []string) (exitCode int, paths []string, err error)
}

// PtraceTracer is the only Tracer implementation this repository ships.
type PtraceTracer struct{}

// New returns the default Tracer.
func New() Tracer { return &PtraceTracer{} }

// Trace forks argv[0] under PTRACE_TRACEME, single-steps its syscalls, and
// collects every path given to open/openat along the way.
func (PtraceTracer) Trace(ctx context.Context, argv []string) (int, []string, error) {
	if len(argv) == 0 {
		return -1, nil, fmt.Errorf("trace: empty argv")
	}
	bin, err := lookPath(argv[0])
	if err != nil {
		return -1, nil, err
	}

	// ptrace is a thread-local relationship between tracer and tracee: the
	// whole trace must run on a single, unmigratable OS thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var attr syscall.SysProcAttr
	attr.Ptrace = true
	attr.Setpgid = true

	pid, err := syscall.ForkExec(bin, argv, &syscall.ProcAttr{
		Env:   os.Environ(),
		Files: []uintptr{os.Stdin.Fd(), os.Stdout.Fd(), os.Stderr.Fd()},
		Sys:   &attr,
	})
	if err != nil {
		return -1, nil, fmt.Errorf("trace: fork/exec %s: %w", bin, err)
	}

	var ws unix.WaitStatus
	if _, err := unix.Wait4(pid, &ws, 0, nil); err != nil {
		return -1, nil, fmt.Errorf("trace: initial wait: %w", err)
	}
	_ = unix.PtraceSetOptions(pid, unix.PTRACE_O_TRACESYSGOOD)

	seen := map[string]bool{}
	var paths []string
	inSyscall := false

	for {
		select {
		case <-ctx.Done():
			_ = unix.Kill(pid, unix.SIGKILL)
			return -1, paths, ctx.Err()
		default:
		}

		if err := unix.PtraceSyscall(pid, 0); err != nil {
			return -1, paths, fmt.Errorf("trace: PTRACE_SYSCALL: %w", err)
		}
		if _, err := unix.Wait4(pid, &ws, 0, nil); err != nil {
			return -1, paths, fmt.Errorf("trace: wait: %w", err)
		}

		if ws.Exited() {
			return ws.ExitStatus(), paths, nil
		}
		if ws.Signaled() {
			return -1, paths, fmt.Errorf("trace: tracee killed by signal %v", ws.Signal())
		}
		if !ws.Stopped() || ws.StopSignal()&0x80 == 0 {
			// Not a syscall-stop (PTRACE_O_TRACESYSGOOD tags those with the
			// high bit of SIGTRAP); forward whatever signal it was.
			sig := ws.StopSignal()
			if sig == unix.SIGTRAP {
				sig = 0
			}
			_ = unix.PtraceSyscall(pid, int(sig))
			continue
		}

		inSyscall = !inSyscall
		if !inSyscall {
			// This stop is the syscall's exit; arguments were already read
			// on entry.
			continue
		}

		var regs unix.PtraceRegs
		if err := unix.PtraceGetRegs(pid, &regs); err != nil {
			sylog.Debugf("trace: PtraceGetRegs: %v", err)
			continue
		}

		var addr uintptr
		switch syscallNumber(&regs) {
		case sysOpen:
			addr = uintptr(syscallArg(&regs, 0))
		case sysOpenat:
			addr = uintptr(syscallArg(&regs, 1))
		default:
			continue
		}

		if path, err := readCString(pid, addr); err == nil && path != "" {
			if !seen[path] {
				seen[path] = true
				paths = append(paths, path)
			}
		}
	}
}

// readCString reads a NUL-terminated string out of the tracee's address
// space at addr, one machine word at a time via PTRACE_PEEKDATA.
func readCString(pid int, addr uintptr) (string, error) {
	var sb strings.Builder
	word := make([]byte, 8)
	for offset := uintptr(0); offset < 4096; offset += 8 {
		n, err := unix.PtracePeekData(pid, addr+offset, word)
		if err != nil || n == 0 {
			return "", err
		}
		for _, b := range word {
			if b == 0 {
				return sb.String(), nil
			}
			sb.WriteByte(b)
		}
	}
	return sb.String(), nil
}

func lookPath(name string) (string, error) {
	if strings.Contains(name, "/") {
		return name, nil
	}
	for _, dir := range strings.Split(os.Getenv("PATH"), ":") {
		candidate := dir + "/" + name
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("trace: %q not found in PATH", name)
}
