// Copyright (c) e4s-cl-go authors. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package relay carries JSON fragments from detect-child subprocesses back
// to the parent aggregating them across MPI ranks, either over an
// anonymous pipe inherited as an extra file descriptor, or over a named
// FIFO when the launcher won't preserve extra descriptors across its own
// exec (as is the case for several MPI launchers that close everything
// above stderr before starting the rank).
package relay

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	units "github.com/docker/go-units"
	"golang.org/x/sys/unix"

	"github.com/e4s-cl/e4s-cl-go/pkg/stablehash"
	"github.com/e4s-cl/e4s-cl-go/pkg/sylog"
)

// EnvVarFD names the environment variable a detect-child reads its
// inherited write-end file descriptor number from.
const EnvVarFD = "__E4SCL_PIPE_FD"

// EnvVarNamed names the environment variable a detect-child reads its
// named-pipe path from, when the anonymous-pipe mode isn't usable.
const EnvVarNamed = "__E4SCL_PIPE_NAME"

// NamedPipeDir is the directory named pipes are created under.
const NamedPipeDir = "/var/tmp/e4s-cl"

// defaultDataSize bounds a single relay read, matching the original tool's
// 1GiB ceiling for one rank's discovered-dependency payload.
const defaultDataSize = 1 << 30

// DataSize is defaultDataSize unless overridden by E4S_CL_RELAY_BUFFER_SIZE,
// parsed with the same human-readable size syntax ("512MiB", "2GB") every
// other size-accepting flag in this tool's lineage uses.
var DataSize = resolveDataSize()

func resolveDataSize() int {
	v := os.Getenv("E4S_CL_RELAY_BUFFER_SIZE")
	if v == "" {
		return defaultDataSize
	}
	n, err := units.RAMInBytes(v)
	if err != nil || n <= 0 {
		sylog.Warningf("relay: ignoring invalid E4S_CL_RELAY_BUFFER_SIZE %q: %v", v, err)
		return defaultDataSize
	}
	return int(n)
}

// Pipe is an anonymous, fd-inherited relay: the parent creates it, adds the
// read end to its own process, and arranges for cmd to inherit the write
// end as an extra file descriptor.
type Pipe struct {
	read  *os.File
	write *os.File
}

// NewPipe creates an anonymous pipe and returns it unattached to any
// command yet.
func NewPipe() (*Pipe, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("relay: could not create pipe: %w", err)
	}
	return &Pipe{read: r, write: w}, nil
}

// Attach arranges for cmd to inherit the pipe's write end and exports the
// env var the child uses to find it. It must be called before cmd.Start.
func (p *Pipe) Attach(cmd *exec.Cmd) {
	cmd.ExtraFiles = append(cmd.ExtraFiles, p.write)
	fd := 3 + len(cmd.ExtraFiles) - 1
	cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%d", EnvVarFD, fd))
}

// Read reads the pipe's read end until EOF (at most DataSize bytes),
// closing the parent's copy of the write end first so EOF is observable
// once every child closes its own copy.
func (p *Pipe) Read() ([]byte, error) {
	p.write.Close()
	return io.ReadAll(io.LimitReader(p.read, int64(DataSize)))
}

// Close releases both ends of the pipe.
func (p *Pipe) Close() error {
	p.write.Close()
	return p.read.Close()
}

// AttachFromEnv opens the write end of a Pipe created by a parent process,
// from within the child, using the fd number exported via EnvVarFD.
func AttachFromEnv() (*os.File, bool) {
	v, ok := os.LookupEnv(EnvVarFD)
	if !ok {
		return nil, false
	}
	var fd int
	if _, err := fmt.Sscanf(v, "%d", &fd); err != nil {
		return nil, false
	}
	return os.NewFile(uintptr(fd), "relay-pipe"), true
}

// NamedPipe is a FIFO-backed relay for launchers that don't preserve extra
// file descriptors across their own re-exec of the rank.
type NamedPipe struct {
	path string
	read *os.File
}

// NewNamedPipe creates a FIFO uniquely named after the parent's pid under
// NamedPipeDir and opens its read end non-blocking.
func NewNamedPipe(parentPID int) (*NamedPipe, error) {
	if err := os.MkdirAll(NamedPipeDir, 0o755); err != nil {
		return nil, fmt.Errorf("relay: could not create %s: %w", NamedPipeDir, err)
	}
	name := stablehash.Hex(fmt.Sprintf("%d", parentPID), 16)
	path := filepath.Join(NamedPipeDir, name)

	_ = os.Remove(path)
	if err := unix.Mkfifo(path, 0o600); err != nil {
		return nil, fmt.Errorf("relay: mkfifo %s: %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("relay: open %s: %w", path, err)
	}
	return &NamedPipe{path: path, read: f}, nil
}

// Path returns the filesystem path of the FIFO, to export to a child via
// EnvVarNamed.
func (n *NamedPipe) Path() string { return n.path }

// Read reads the full contents written to the FIFO by a single writer.
func (n *NamedPipe) Read() ([]byte, error) {
	buf := make([]byte, DataSize)
	nRead, err := n.read.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:nRead], nil
}

// Close removes the FIFO from disk and releases the read end.
func (n *NamedPipe) Close() error {
	n.read.Close()
	return os.Remove(n.path)
}

// AttachNamedFromEnv opens the write end of a NamedPipe created by a
// parent process, from within the child.
func AttachNamedFromEnv() (*os.File, bool) {
	path, ok := os.LookupEnv(EnvVarNamed)
	if !ok {
		return nil, false
	}
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, false
	}
	return f, true
}
