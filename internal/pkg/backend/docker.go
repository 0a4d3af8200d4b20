// Copyright (c) e4s-cl-go authors. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package backend

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/docker/docker/api/types/mount"

	"github.com/e4s-cl/e4s-cl-go/pkg/bindset"
)

// dockerBackend shells out to the docker CLI rather than talking to the
// engine over its API socket, matching how this repository runs every
// other backend; it still reaches for docker/docker's own mount types so
// the bind-spec formatting can't drift from what the daemon actually
// expects.
type dockerBackend struct {
	common
}

func newDocker() Backend { return &dockerBackend{common: newCommon()} }

func (d *dockerBackend) Name() string { return "docker" }

func formatMount(origin, destination string, mode bindset.Mode) string {
	m := mount.Mount{
		Type:     mount.TypeBind,
		Source:   origin,
		Target:   destination,
		ReadOnly: mode == bindset.ReadOnly,
	}
	spec := fmt.Sprintf("type=%s,source=%s,target=%s", m.Type, m.Source, m.Target)
	if m.ReadOnly {
		spec += ",readonly"
	}
	return spec
}

func (d *dockerBackend) Prepare(image string, command []string) (*Plan, error) {
	exe, err := exec.LookPath(resolveOption("docker", "executable", "docker"))
	if err != nil {
		return nil, fmt.Errorf("docker: executable not found: %w", err)
	}

	argv := []string{exe, "run", "--rm"}
	for _, b := range d.binds {
		argv = append(argv, "--mount", formatMount(b.Origin, b.Destination, b.Mode))
	}

	libPath := strings.Join(d.libraries, ":")
	if libPath != "" {
		argv = append(argv, "--env", "LD_LIBRARY_PATH="+libPath)
	}
	if len(d.preloads) > 0 {
		argv = append(argv, "--env", "LD_PRELOAD="+strings.Join(d.preloads, ":"))
	}
	for k, v := range d.env {
		argv = append(argv, "--env", k+"="+v)
	}

	argv = append(argv, image)
	argv = append(argv, command...)
	return &Plan{Argv: argv, Env: map[string]string{}}, nil
}

func (d *dockerBackend) GetData(image string) (*ProbeData, error) {
	return probeViaExec(d, image)
}

func init() {
	register("docker", newDocker)
}
