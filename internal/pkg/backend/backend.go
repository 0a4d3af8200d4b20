// Copyright (c) e4s-cl-go authors. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package backend implements the container-backend abstraction: one
// driver per supported container technology, each knowing how to turn a
// bind-mount set, an environment, and an image reference into a runnable
// argv for that technology's own CLI.
package backend

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/cenkalti/backoff/v4"

	"github.com/e4s-cl/e4s-cl-go/pkg/bindset"
	"github.com/e4s-cl/e4s-cl-go/pkg/config"
	"github.com/e4s-cl/e4s-cl-go/pkg/elfx/ldcache"
	"github.com/e4s-cl/e4s-cl-go/pkg/sylog"
	"github.com/e4s-cl/e4s-cl-go/pkg/syfs"
)

// ProbeData is what a backend's GetData returns after inspecting an image
// from the outside (or, in practice, by running a trivial command inside
// it): the dynamic linker's cache and libc version, used by the
// dependency-discovery engine to decide which host libraries the
// container already provides.
type ProbeData struct {
	LdCache   map[string]string
	GlibcVers string
}

// Plan is the fully resolved argv and environment a backend produces for a
// given image and command; the execute-child stage execs Argv with Env
// after the bind-mount set has been materialized.
type Plan struct {
	Argv []string
	Env  map[string]string
}

// Backend is implemented by every container technology driver.
type Backend interface {
	// Name returns the backend's registry key ("apptainer", "podman", ...).
	Name() string
	// BindFile records a host path to make visible inside the container.
	BindFile(origin, destination string, mode bindset.Mode)
	// BindEnv records an environment variable to forward into the
	// container, prefixed/escaped however this backend requires.
	BindEnv(key, value string)
	// AddPreload appends a library to LD_PRELOAD inside the container.
	AddPreload(lib string)
	// AddLibraryPath appends a directory to LD_LIBRARY_PATH inside the
	// container.
	AddLibraryPath(dir string)
	// Prepare resolves the backend's own executable and produces the full
	// argv/env needed to run command inside image.
	Prepare(image string, command []string) (*Plan, error)
	// GetData probes the image for its dynamic linker cache and libc
	// version.
	GetData(image string) (*ProbeData, error)
}

// Factory constructs a fresh, empty Backend instance.
type Factory func() Backend

// registry is a static map, not a plugin-discovery loop: every backend
// this repository supports is known at compile time.
var registry = map[string]Factory{}

func register(name string, f Factory) {
	registry[name] = f
}

// New constructs the named backend, or an error if name isn't registered.
func New(name string) (Backend, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("backend: unknown backend %q", name)
	}
	return f(), nil
}

// Names lists every registered backend name.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	return names
}

// common holds the bind/env/preload bookkeeping shared by every driver, so
// each concrete backend only has to implement how it formats that state
// into an argv and environment.
type common struct {
	binds     bindset.Set
	env       map[string]string
	preloads  []string
	libraries []string
}

func newCommon() common {
	return common{env: map[string]string{}}
}

func (c *common) BindFile(origin, destination string, mode bindset.Mode) {
	c.binds = c.binds.Add(bindset.Request{Origin: origin, Destination: destination, Mode: mode})
}

func (c *common) BindEnv(key, value string) {
	c.env[key] = value
}

func (c *common) AddPreload(lib string) {
	c.preloads = append(c.preloads, lib)
}

func (c *common) AddLibraryPath(dir string) {
	c.libraries = append(c.libraries, dir)
}

var (
	configOnce   sync.Once
	loadedConfig *config.Config
)

// fileConfig lazily loads syfs.ConfigFile(), caching it for the process's
// lifetime; a missing or unparsable file degrades to an empty Config so
// the config tier simply never matches rather than failing resolution.
func fileConfig() *config.Config {
	configOnce.Do(func() {
		c, err := config.Load(syfs.ConfigFile())
		if err != nil {
			sylog.Debugf("backend: ignoring unparsable configuration file: %s", err)
			c = &config.Config{}
		}
		loadedConfig = c
	})
	return loadedConfig
}

// resolveOption implements the env -> config -> default precedence used to
// locate each backend's own executable, e.g.
// resolveOption("apptainer", "executable", "apptainer") looks up
// E4S_CL_APPTAINER_EXECUTABLE, then the backend's entry in e4s-cl.yaml,
// before falling back to def. The drivers only resolve the "executable"
// kind; no driver resolves or applies extra CLI options.
func resolveOption(backend, kind, def string) string {
	envKey := fmt.Sprintf("E4S_CL_%s_%s", upper(backend), upper(kind))
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	if v, ok := fileConfig().BackendOption(backend, kind); ok {
		return v
	}
	return def
}

func upper(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

// probeViaExec runs the backend's own Prepare against the image with a
// throwaway command that dumps the container's linker cache and glibc
// version to stdout, the same indirect probing approach every driver that
// cannot otherwise peek inside an opaque image has to fall back on. The run
// is retried a couple of times with backoff since the first invocation of a
// freshly-pulled rootless container engine can transiently fail (runtime
// directory still being set up, registry rate limiting on image metadata).
func probeViaExec(b Backend, image string) (*ProbeData, error) {
	plan, err := b.Prepare(image, []string{"sh", "-c", "ldconfig -p; ldd --version | head -n1"})
	if err != nil {
		return nil, fmt.Errorf("%s: probe: %w", b.Name(), err)
	}

	var out bytes.Buffer
	run := func() error {
		out.Reset()
		cmd := exec.Command(plan.Argv[0], plan.Argv[1:]...)
		cmd.Env = os.Environ()
		for k, v := range plan.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
		cmd.Stdout = &out
		return cmd.Run()
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2)
	if err := backoff.Retry(run, policy); err != nil {
		return nil, fmt.Errorf("%s: probe exec: %w", b.Name(), err)
	}

	cache, err := ldcache.ParseLdconfigOutput(out.Bytes())
	if err != nil {
		return nil, err
	}
	return &ProbeData{LdCache: cache, GlibcVers: lastLine(out.String())}, nil
}

// lastLine returns the last non-empty line of s: the probe prints the
// linker cache first and the "ldd --version" line last.
func lastLine(s string) string {
	for len(s) > 0 && s[len(s)-1] == '\n' {
		s = s[:len(s)-1]
	}
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '\n' {
			return s[i+1:]
		}
	}
	return s
}
