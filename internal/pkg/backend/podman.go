// Copyright (c) e4s-cl-go authors. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package backend

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/e4s-cl/e4s-cl-go/pkg/bindset"
)

// podmanBackend drives rootless podman via its own "--mount" flag syntax,
// which unlike Apptainer's has no single environment-variable escape hatch
// for binds, so every mount becomes its own repeated CLI flag.
type podmanBackend struct {
	common
}

func newPodman() Backend { return &podmanBackend{common: newCommon()} }

func (p *podmanBackend) Name() string { return "podman" }

func (p *podmanBackend) Prepare(image string, command []string) (*Plan, error) {
	exe, err := exec.LookPath(resolveOption("podman", "executable", "podman"))
	if err != nil {
		return nil, fmt.Errorf("podman: executable not found: %w", err)
	}

	argv := []string{exe, "run", "--rm"}
	for _, b := range p.binds {
		mode := "ro"
		if b.Mode == bindset.ReadWrite {
			mode = "rw"
		}
		argv = append(argv, "--mount",
			fmt.Sprintf("type=bind,source=%s,destination=%s,%s", b.Origin, b.Destination, mode))
	}

	libPath := strings.Join(p.libraries, ":")
	if libPath != "" {
		argv = append(argv, "--env", "LD_LIBRARY_PATH="+libPath)
	}
	if len(p.preloads) > 0 {
		argv = append(argv, "--env", "LD_PRELOAD="+strings.Join(p.preloads, ":"))
	}
	for k, v := range p.env {
		argv = append(argv, "--env", k+"="+v)
	}

	argv = append(argv, image)
	argv = append(argv, command...)
	return &Plan{Argv: argv, Env: map[string]string{}}, nil
}

func (p *podmanBackend) GetData(image string) (*ProbeData, error) {
	return probeViaExec(p, image)
}

func init() {
	register("podman", newPodman)
}
