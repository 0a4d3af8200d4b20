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

// singularityFamily drives both "apptainer" and "singularity": the two
// tools share an identical CLI and environment-variable scheme, differing
// only in their binary name and variable prefix (Apptainer is Singularity's
// successor project and kept its predecessor's variables as an alias).
type singularityFamily struct {
	common
	executableName string
	envPrefix      string
	bindVar        string
}

func newApptainer() Backend {
	return &singularityFamily{common: newCommon(), executableName: "apptainer", envPrefix: "APPTAINERENV_", bindVar: "APPTAINER_BIND"}
}

func newSingularity() Backend {
	return &singularityFamily{common: newCommon(), executableName: "singularity", envPrefix: "SINGULARITYENV_", bindVar: "SINGULARITY_BIND"}
}

func (s *singularityFamily) Name() string { return s.executableName }

func (s *singularityFamily) BindEnv(key, value string) {
	s.common.BindEnv(s.envPrefix+key, value)
}

func (s *singularityFamily) formatBinds() string {
	parts := make([]string, 0, len(s.binds))
	for _, b := range s.binds {
		mode := "ro"
		if b.Mode == bindset.ReadWrite {
			mode = "rw"
		}
		parts = append(parts, fmt.Sprintf("%s:%s:%s", b.Origin, b.Destination, mode))
	}
	return strings.Join(parts, ",")
}

func (s *singularityFamily) Prepare(image string, command []string) (*Plan, error) {
	exe, err := exec.LookPath(resolveOption(s.executableName, "executable", s.executableName))
	if err != nil {
		return nil, fmt.Errorf("%s: executable not found: %w", s.executableName, err)
	}

	env := map[string]string{}
	for k, v := range s.env {
		env[k] = v
	}
	if len(s.preloads) > 0 {
		env[s.envPrefix+"LD_PRELOAD"] = strings.Join(s.preloads, ":")
	}
	libPath := append([]string{"/.singularity.d/libs"}, s.libraries...)
	env[s.envPrefix+"LD_LIBRARY_PATH"] = strings.Join(libPath, ":")
	if binds := s.formatBinds(); binds != "" {
		env[s.bindVar] = binds
	}

	argv := append([]string{exe, "exec"}, image)
	argv = append(argv, command...)
	return &Plan{Argv: argv, Env: env}, nil
}

func (s *singularityFamily) GetData(image string) (*ProbeData, error) {
	return probeViaExec(s, image)
}

func init() {
	register("apptainer", newApptainer)
	register("singularity", newSingularity)
}
