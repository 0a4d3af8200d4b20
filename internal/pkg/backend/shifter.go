// Copyright (c) e4s-cl-go authors. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package backend

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/google/uuid"

	"github.com/e4s-cl/e4s-cl-go/pkg/bindset"
)

// shifterRestrictedPrefixes are the host directories shifter's own
// "--volume" flag binds from directly; any origin outside these is staged
// into /var/tmp first. A bind whose destination lies under one of them is
// refused.
var shifterRestrictedPrefixes = []string{"/var", "/etc"}

func isShifterRestricted(path string) bool {
	for _, p := range shifterRestrictedPrefixes {
		if path == p || strings.HasPrefix(path, p+string(os.PathSeparator)) {
			return true
		}
	}
	return false
}

// shifterBackend drives NERSC's Shifter, whose --volume flag refuses to
// bind arbitrary host paths; anything outside /var or /etc gets copied into
// a staging directory under /var/tmp first and bound from there instead.
// Binds into /var or /etc inside the container are refused with an error.
type shifterBackend struct {
	common
	stagingDir string
}

func newShifter() Backend {
	return &shifterBackend{common: newCommon()}
}

func (s *shifterBackend) Name() string { return "shifter" }

func (s *shifterBackend) stage() (string, error) {
	if s.stagingDir != "" {
		return s.stagingDir, nil
	}
	// The directory is created once and cached in s.stagingDir, so its name
	// stays the same for the lifetime of this backend instance; the uuid
	// in the pattern comes in addition to MkdirTemp's own random suffix.
	dir, err := os.MkdirTemp("/var/tmp", "e4s-cl-shifter-"+uuid.NewString()+"-")
	if err != nil {
		return "", fmt.Errorf("shifter: could not create staging directory: %w", err)
	}
	s.stagingDir = dir
	return dir, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}

func (s *shifterBackend) resolveOrigin(origin string) (string, error) {
	if isShifterRestricted(origin) {
		return origin, nil
	}
	dir, err := s.stage()
	if err != nil {
		return "", err
	}
	staged, err := securejoin.SecureJoin(dir, origin)
	if err != nil {
		return "", fmt.Errorf("shifter: resolving staged path for %s: %w", origin, err)
	}
	if err := copyFile(origin, staged); err != nil {
		return "", fmt.Errorf("shifter: staging %s: %w", origin, err)
	}
	return staged, nil
}

func (s *shifterBackend) Prepare(image string, command []string) (*Plan, error) {
	exe, err := exec.LookPath(resolveOption("shifter", "executable", "shifter"))
	if err != nil {
		return nil, fmt.Errorf("shifter: executable not found: %w", err)
	}

	argv := []string{exe, "--image=" + image}
	for _, b := range s.binds {
		if isShifterRestricted(b.Destination) {
			return nil, fmt.Errorf("shifter: refusing to bind %s into %s: binds into /var and /etc are not supported", b.Origin, b.Destination)
		}
		origin, err := s.resolveOrigin(b.Origin)
		if err != nil {
			return nil, err
		}
		mode := "ro"
		if b.Mode == bindset.ReadWrite {
			mode = "rw"
		}
		argv = append(argv, "--volume", fmt.Sprintf("%s:%s:%s", origin, b.Destination, mode))
	}

	env := map[string]string{}
	for k, v := range s.env {
		env[k] = v
	}
	libPath := strings.Join(s.libraries, ":")
	if libPath != "" {
		env["LD_LIBRARY_PATH"] = libPath
	}
	if len(s.preloads) > 0 {
		env["LD_PRELOAD"] = strings.Join(s.preloads, ":")
	}

	argv = append(argv, "--")
	argv = append(argv, command...)
	return &Plan{Argv: argv, Env: env}, nil
}

func (s *shifterBackend) GetData(image string) (*ProbeData, error) {
	return probeViaExec(s, image)
}

func init() {
	register("shifter", newShifter)
}
