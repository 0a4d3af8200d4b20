// Copyright (c) e4s-cl-go authors. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package config reads e4s-cl.yaml, the config tier of a backend
// executable's env -> config -> default resolution order: a per-backend
// executable override and extra CLI options, plus per-launcher
// launcher_options. The extra options and launcher_options are decoded but
// not applied by any backend driver or launcher.
package config

import (
	"os"

	"gopkg.in/yaml.v2"
)

// BackendConfig overrides a single backend driver's resolved executable.
// Options is decoded from the file but not added to any invocation.
type BackendConfig struct {
	Executable string   `yaml:"executable"`
	Options    []string `yaml:"options"`
}

// Config is the on-disk shape of e4s-cl.yaml.
type Config struct {
	Backends        map[string]BackendConfig `yaml:"backends"`
	LauncherOptions map[string][]string      `yaml:"launcher_options"`
}

// Load reads and parses the configuration file at path. A missing file is
// not an error: it yields an empty Config, so callers can unconditionally
// consult it as the config tier of their resolution order.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Config{}, nil
	}
	if err != nil {
		return nil, err
	}

	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	if c.Backends == nil {
		c.Backends = map[string]BackendConfig{}
	}
	if c.LauncherOptions == nil {
		c.LauncherOptions = map[string][]string{}
	}
	return &c, nil
}

// BackendOption looks up a single resolvable value for a backend: "executable"
// returns BackendConfig.Executable, any other kind is currently unsupported
// and always misses.
func (c *Config) BackendOption(backend, kind string) (string, bool) {
	if c == nil {
		return "", false
	}
	b, ok := c.Backends[backend]
	if !ok {
		return "", false
	}
	if kind == "executable" && b.Executable != "" {
		return b.Executable, true
	}
	return "", false
}

// LauncherOptionsFor returns the configured extra options for a launcher
// basename (e.g. extra flags a site always passes to its own srun wrapper).
func (c *Config) LauncherOptionsFor(launcher string) []string {
	if c == nil {
		return nil
	}
	return c.LauncherOptions[launcher]
}
